package kri

import (
	"fmt"
	"math"
	"strings"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 1000

	maxBase         = 500.0
	minBenchmarkDiv = 0.5
)

// Variant selects which penalty factors the aggregator multiplies in.
type Variant int

const (
	// FiveFactor applies the stealer, efficiency and reputational penalties.
	FiveFactor Variant = iota
	// FourFactor leaves the efficiency penalty out.
	FourFactor
)

func (v Variant) String() string {
	switch v {
	case FiveFactor:
		return "five-factor"
	case FourFactor:
		return "four-factor"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariant accepts "five-factor"/"5" and "four-factor"/"4".
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "five-factor", "five", "5":
		return FiveFactor, nil
	case "four-factor", "four", "4":
		return FourFactor, nil
	default:
		return 0, fmt.Errorf("unknown scoring variant %q", s)
	}
}

// Inputs are the indicator values fed to Aggregate.
type Inputs struct {
	WeightedScore      int
	BenchmarkRatio     float64
	StealerFactor      float64
	SlowFactor         float64
	ReputationalFactor float64
}

// Score is the outcome of aggregation.
type Score struct {
	Base              float64 `json:"base"`
	PenaltyMultiplier float64 `json:"penalty_multiplier"`
	Final             int     `json:"final_score"`
}

// Aggregate composes the indicators into a bounded score:
//
//	base  = min(500, weighted / max(ratio, 0.5))
//	mult  = (1+stealer) * (1+slow) * (1+reputational)
//	final = clamp(0, 1000, round(1000 - base*mult))
//
// FourFactor drops the (1+slow) term.
func Aggregate(in Inputs, v Variant) Score {
	base := math.Min(maxBase, float64(in.WeightedScore)/math.Max(in.BenchmarkRatio, minBenchmarkDiv))
	if base < 0 {
		base = 0
	}

	mult := (1 + in.StealerFactor) * (1 + in.ReputationalFactor)
	if v == FiveFactor {
		mult *= 1 + in.SlowFactor
	}

	final := math.Round(MaxScore - base*mult)
	return Score{
		Base:              base,
		PenaltyMultiplier: mult,
		Final:             clampScore(final),
	}
}

func clampScore(f float64) int {
	switch {
	case math.IsNaN(f) || f < MinScore:
		return MinScore
	case f > MaxScore:
		return MaxScore
	default:
		return int(f)
	}
}

// Grade is a letter grade derived from a final score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor bands a final score.
func GradeFor(score int) Grade {
	switch {
	case score >= 850:
		return GradeA
	case score >= 700:
		return GradeB
	case score >= 550:
		return GradeC
	case score >= 400:
		return GradeD
	default:
		return GradeF
	}
}

// Status is the human-readable description tied to the grade.
func (g Grade) Status() string {
	switch g {
	case GradeA:
		return "Excellent - Superior security posture"
	case GradeB:
		return "Good - Controlled risk"
	case GradeC:
		return "Moderate - Requires attention"
	case GradeD:
		return "High Risk - Immediate action required"
	default:
		return "Critical - Multiple active attack vectors"
	}
}
