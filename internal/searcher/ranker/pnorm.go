package ranker

import "math"

// And is the p-norm conjunction. An exact zero on either side yields zero
// for every p.
func And(w1, w2, p float64) float64 {
	if w1 == 0 || w2 == 0 {
		return 0
	}
	mean := (math.Pow(1-w1, p) + math.Pow(1-w2, p)) / 2
	return 1 - math.Pow(math.Max(0, mean), 1/p)
}

// Or is the p-norm disjunction.
func Or(w1, w2, p float64) float64 {
	mean := (math.Pow(w1, p) + math.Pow(w2, p)) / 2
	return math.Pow(math.Max(0, mean), 1/p)
}

func Not(w float64) float64 {
	return 1 - w
}

// ValidPNorm reports whether p is usable as a norm exponent.
func ValidPNorm(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
