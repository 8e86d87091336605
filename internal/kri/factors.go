package kri

import (
	"github.com/jmerrifield20/riskposture/internal/model"
)

// TypeScore is one row of the weighted-volume breakdown.
type TypeScore struct {
	Count    int `json:"count"`
	Weight   int `json:"weight"`
	Subscore int `json:"subscore"`
}

// Volume is the weighted incident volume of a scope.
type Volume struct {
	WeightedScore  int                  `json:"weighted_score"`
	TotalIncidents int                  `json:"total_incidents"`
	Breakdown      map[string]TypeScore `json:"breakdown"`
}

// WeightedIncidents sums the type weight of every incident. When
// excludeDiscarded is set, incidents closed as false positives are skipped
// entirely and do not count toward the total either.
func WeightedIncidents(incidents []model.Incident, w Weights, excludeDiscarded bool) Volume {
	v := Volume{Breakdown: make(map[string]TypeScore)}
	for _, inc := range incidents {
		if excludeDiscarded && inc.Discarded() {
			continue
		}
		weight := w.Of(inc.Type)
		row := v.Breakdown[inc.Type]
		row.Count++
		row.Weight = weight
		row.Subscore += weight
		v.Breakdown[inc.Type] = row

		v.WeightedScore += weight
		v.TotalIncidents++
	}
	return v
}

// BenchmarkRatio compares an incident count against the sector median.
// A zero median yields the neutral ratio 1.0.
func BenchmarkRatio(total, median int) float64 {
	if median <= 0 {
		return 1.0
	}
	return float64(total) / float64(median)
}

// CountType returns how many incidents have the given type.
func CountType(incidents []model.Incident, threatType string) int {
	n := 0
	for _, inc := range incidents {
		if inc.Type == threatType {
			n++
		}
	}
	return n
}

// StealerFactor maps the number of infostealer incidents to a penalty.
func StealerFactor(count int) float64 {
	switch {
	case count <= 0:
		return 0.0
	case count <= 5:
		return 0.2
	case count <= 20:
		return 0.5
	default:
		return 1.0
	}
}

// maxSlowFactor caps the efficiency penalty.
const maxSlowFactor = 0.5

// Efficiency derives the slow-resolution penalty and the efficiency
// percentage from a takedown histogram. An empty histogram carries no
// penalty.
func Efficiency(h model.UptimeHistogram) (slowFactor, efficiencyPct float64) {
	total := h.Total()
	if total <= 0 {
		return 0, 100
	}
	slow := h.Slow()
	slowFactor = float64(slow) / float64(total) * maxSlowFactor
	efficiencyPct = float64(total-slow) / float64(total) * 100
	return slowFactor, efficiencyPct
}

// ReputationalFactor maps the number of web complaints to a penalty.
func ReputationalFactor(complaints int) float64 {
	switch {
	case complaints <= 0:
		return 0.0
	case complaints <= 10:
		return 0.1
	case complaints <= 50:
		return 0.3
	default:
		return 0.5
	}
}
