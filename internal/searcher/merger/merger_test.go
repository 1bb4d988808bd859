package merger

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
)

func TestMerge(t *testing.T) {
	partials := [][]ranker.ScoredDoc{
		{{DocID: "a", Score: 0.9}, {DocID: "d", Score: 0.3}},
		{{DocID: "b", Score: 0.5}, {DocID: "c", Score: 0.5}},
		nil,
		{{DocID: "e", Score: 0.7}},
	}
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all with zero limit", 0, []string{"a", "e", "b", "c", "d"}},
		{"all with negative limit", -1, []string{"a", "e", "b", "c", "d"}},
		{"all with limit below total", -10, []string{"a", "e", "b", "c", "d"}},
		{"top three", 3, []string{"a", "e", "b"}},
		{"limit beyond size", 50, []string{"a", "e", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(partials, tt.limit)
			ids := make([]string, len(got))
			for i, d := range got {
				ids[i] = d.DocID
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Merge = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestMergeEmpty(t *testing.T) {
	got := Merge(nil, 0)
	if got == nil || len(got) != 0 {
		t.Errorf("Merge(nil) = %#v, want empty non-nil slice", got)
	}
}
