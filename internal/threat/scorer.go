// Package threat provides the two incident prioritization views: a
// per-incident DREAD-style severity score and a STRIDE-style category
// distribution.
package threat

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// Priority is the severity band of an incident.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Severity is the DREAD breakdown of a single incident.
type Severity struct {
	Key             string `json:"key"`
	Type            string `json:"type"`
	Damage          int    `json:"damage"`
	Reproducibility int    `json:"reproducibility"`
	Exploitability  int    `json:"exploitability"`
	AffectedUsers   int    `json:"affected_users"`
	Discoverability int    `json:"discoverability"`

	// Total is the strategy's aggregate of the five factors: a mean rounded
	// to one decimal for the heuristic strategy, a sum for the table one.
	Total    float64  `json:"total"`
	Priority Priority `json:"priority"`
}

// SeverityScorer scores one incident.
type SeverityScorer interface {
	// Name is the strategy key used in configuration.
	Name() string
	Score(inc model.Incident) Severity
}

// Strategy names.
const (
	StrategyHeuristic = "heuristic"
	StrategyTable     = "table"
)

// NewSeverityScorer returns the scorer registered under name. An empty
// name selects the heuristic strategy.
func NewSeverityScorer(name string) (SeverityScorer, error) {
	switch name {
	case "", StrategyHeuristic:
		return NewHeuristicScorer(), nil
	case StrategyTable:
		return NewTableScorer(), nil
	default:
		return nil, fmt.Errorf("unknown severity strategy %q", name)
	}
}

// ScoreAll scores every incident and returns the results ranked.
func ScoreAll(s SeverityScorer, incidents []model.Incident) []Severity {
	out := make([]Severity, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, s.Score(inc))
	}
	Rank(out)
	return out
}

// Rank sorts results by total descending. Ties are broken by incident key
// so the order does not depend on input order.
func Rank(results []Severity) {
	slices.SortStableFunc(results, func(a, b Severity) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// CountByPriority tallies results per priority band.
func CountByPriority(results []Severity) map[Priority]int {
	counts := make(map[Priority]int, 4)
	for _, r := range results {
		counts[r.Priority]++
	}
	return counts
}

// clampFactor keeps a factor on the 1–10 scale.
func clampFactor(v int) int {
	switch {
	case v < 1:
		return 1
	case v > 10:
		return 10
	default:
		return v
	}
}
