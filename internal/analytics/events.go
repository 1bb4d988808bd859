// Package analytics records what the search engine is asked and how it
// answers: search and build events are published to Kafka by a Collector
// and folded into running statistics by an Aggregator.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventSearch EventType = "search"
	EventBuild  EventType = "build"
)

type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Postfix      string    `json:"postfix"`
	PNorm        float64   `json:"p"`
	Terms        []string  `json:"terms"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	LatencyUs    int64     `json:"latency_us"`
	CacheHit     bool      `json:"cache_hit"`
	IndexVersion string    `json:"index_version"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
}

type BuildEvent struct {
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Version    string    `json:"version,omitempty"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Postings   int       `json:"postings"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decode returns the SearchEvent or BuildEvent encoded in value, chosen by
// its type field.
func Decode(value []byte) (any, error) {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		return nil, fmt.Errorf("decoding analytics event: %w", err)
	}
	switch probe.Type {
	case EventSearch:
		var ev SearchEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return ev, nil
	case EventBuild:
		var ev BuildEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil, fmt.Errorf("decoding build event: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown analytics event type %q", probe.Type)
	}
}

func eventKey(event any) string {
	switch event.(type) {
	case SearchEvent, *SearchEvent:
		return string(EventSearch)
	case BuildEvent, *BuildEvent:
		return string(EventBuild)
	default:
		return "analytics"
	}
}
