package kri

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/riskposture/internal/model"
)

func incidentsOfType(typ string, n int) []model.Incident {
	out := make([]model.Incident, n)
	for i := range out {
		out[i] = model.Incident{Type: typ}
	}
	return out
}

// ── Indicator functions ─────────────────────────────────────────────────

func TestWeightedIncidents_DefaultWeight(t *testing.T) {
	incidents := []model.Incident{
		{Type: "ransomware-attack"},
		{Type: "phishing"},
		{Type: "unknown-type"},
	}
	v := WeightedIncidents(incidents, DefaultWeights(), false)
	if v.WeightedScore != 160 {
		t.Errorf("WeightedScore = %d, want 160", v.WeightedScore)
	}
	if v.TotalIncidents != 3 {
		t.Errorf("TotalIncidents = %d, want 3", v.TotalIncidents)
	}
	if got := v.Breakdown["unknown-type"]; got.Count != 1 || got.Weight != 10 || got.Subscore != 10 {
		t.Errorf("breakdown[unknown-type] = %+v", got)
	}
}

func TestWeightedIncidents_ExcludeDiscarded(t *testing.T) {
	incidents := []model.Incident{
		{Type: "malware"},
		{Type: "phishing", Resolution: model.ResolutionDiscarded},
	}

	included := WeightedIncidents(incidents, DefaultWeights(), false)
	if included.WeightedScore != 100 || included.TotalIncidents != 2 {
		t.Errorf("flag off: got %d/%d, want 100/2", included.WeightedScore, included.TotalIncidents)
	}

	excluded := WeightedIncidents(incidents, DefaultWeights(), true)
	if excluded.WeightedScore != 50 || excluded.TotalIncidents != 1 {
		t.Errorf("flag on: got %d/%d, want 50/1", excluded.WeightedScore, excluded.TotalIncidents)
	}
	if _, ok := excluded.Breakdown["phishing"]; ok {
		t.Error("discarded type must not appear in the breakdown")
	}
}

func TestBenchmarkRatio(t *testing.T) {
	tests := []struct {
		total, median int
		want          float64
	}{
		{10, 100, 0.1},
		{50, 50, 1.0},
		{7, 0, 1.0},
		{0, 0, 1.0},
		{0, 100, 0.0},
	}
	for _, tt := range tests {
		if got := BenchmarkRatio(tt.total, tt.median); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BenchmarkRatio(%d, %d) = %v, want %v", tt.total, tt.median, got, tt.want)
		}
	}
}

func TestStealerFactor_Bands(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{0, 0.0}, {1, 0.2}, {5, 0.2}, {6, 0.5}, {20, 0.5}, {21, 1.0}, {500, 1.0},
	}
	for _, tt := range tests {
		if got := StealerFactor(tt.count); got != tt.want {
			t.Errorf("StealerFactor(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestReputationalFactor_Bands(t *testing.T) {
	tests := []struct {
		complaints int
		want       float64
	}{
		{0, 0.0}, {1, 0.1}, {10, 0.1}, {11, 0.3}, {50, 0.3}, {51, 0.5},
	}
	for _, tt := range tests {
		if got := ReputationalFactor(tt.complaints); got != tt.want {
			t.Errorf("ReputationalFactor(%d) = %v, want %v", tt.complaints, got, tt.want)
		}
	}
}

func TestEfficiency(t *testing.T) {
	slow, pct := Efficiency(model.UptimeHistogram{})
	if slow != 0 || pct != 100 {
		t.Errorf("empty histogram: got %v/%v, want 0/100", slow, pct)
	}

	h := model.UptimeHistogram{LessThan1Day: 5, UpTo5Days: 1, UpTo30Days: 2, Over60Days: 2}
	slow, pct = Efficiency(h)
	if math.Abs(slow-0.2) > 1e-9 {
		t.Errorf("slowFactor = %v, want 0.2", slow)
	}
	if math.Abs(pct-60) > 1e-9 {
		t.Errorf("efficiencyPct = %v, want 60", pct)
	}

	allSlow := model.UptimeHistogram{Over60Days: 9}
	if slow, _ := Efficiency(allSlow); slow != 0.5 {
		t.Errorf("all slow: slowFactor = %v, want cap 0.5", slow)
	}
}

// ── Aggregation ─────────────────────────────────────────────────────────

func TestAggregate_EndToEndExample(t *testing.T) {
	incidents := append(incidentsOfType("phishing", 8), incidentsOfType(model.TypeInfostealer, 2)...)
	v := WeightedIncidents(incidents, DefaultWeights(), false)
	if v.WeightedScore != 540 {
		t.Fatalf("WeightedScore = %d, want 540", v.WeightedScore)
	}
	in := Inputs{
		WeightedScore:  v.WeightedScore,
		BenchmarkRatio: BenchmarkRatio(v.TotalIncidents, 100),
		StealerFactor:  StealerFactor(CountType(incidents, model.TypeInfostealer)),
	}
	// base = min(500, 540/0.5) = 500; mult = 1.2; final = 1000 - 600.
	for _, variant := range []Variant{FiveFactor, FourFactor} {
		s := Aggregate(in, variant)
		if s.Base != 500 {
			t.Errorf("%s: Base = %v, want 500", variant, s.Base)
		}
		if s.Final != 400 {
			t.Errorf("%s: Final = %d, want 400", variant, s.Final)
		}
		if GradeFor(s.Final) != GradeD {
			t.Errorf("%s: grade = %s, want D", variant, GradeFor(s.Final))
		}
	}
}

func TestAggregate_VariantControlsSlowFactor(t *testing.T) {
	in := Inputs{WeightedScore: 100, BenchmarkRatio: 1, SlowFactor: 0.5}
	five := Aggregate(in, FiveFactor)
	four := Aggregate(in, FourFactor)
	if five.Final != 850 {
		t.Errorf("five-factor final = %d, want 850", five.Final)
	}
	if four.Final != 900 {
		t.Errorf("four-factor final = %d, want 900", four.Final)
	}
}

func TestAggregate_Rounds(t *testing.T) {
	// base = 333/1 = 333, mult = 1.1 * 1.3 = 1.43, penalty = 476.19 -> 524.
	s := Aggregate(Inputs{WeightedScore: 333, BenchmarkRatio: 1, StealerFactor: 0.1, ReputationalFactor: 0.3}, FourFactor)
	if s.Final != 524 {
		t.Errorf("Final = %d, want 524", s.Final)
	}
}

func TestAggregate_Bounds(t *testing.T) {
	weighted := []int{0, 1, 10, 99, 500, 5000, 1_000_000}
	ratios := []float64{0, 0.1, 0.5, 1, 3, 100}
	factors := []float64{0, 0.1, 0.2, 0.3, 0.5, 1.0}
	for _, w := range weighted {
		for _, r := range ratios {
			for _, st := range factors {
				for _, sl := range []float64{0, 0.25, 0.5} {
					for _, rep := range factors {
						in := Inputs{WeightedScore: w, BenchmarkRatio: r, StealerFactor: st, SlowFactor: sl, ReputationalFactor: rep}
						for _, v := range []Variant{FiveFactor, FourFactor} {
							s := Aggregate(in, v)
							if s.Final < MinScore || s.Final > MaxScore {
								t.Fatalf("Aggregate(%+v, %s) = %d out of bounds", in, v, s.Final)
							}
							if s.Base > 500 {
								t.Fatalf("base %v above 500", s.Base)
							}
						}
					}
				}
			}
		}
	}
}

func TestGradeFor_Bands(t *testing.T) {
	tests := []struct {
		score int
		want  Grade
	}{
		{1000, GradeA}, {850, GradeA}, {849, GradeB}, {700, GradeB}, {699, GradeC},
		{550, GradeC}, {549, GradeD}, {400, GradeD}, {399, GradeF}, {0, GradeF},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.score); got != tt.want {
			t.Errorf("GradeFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestGradeFor_EveryScoreHasOneGrade(t *testing.T) {
	prev := GradeF
	order := map[Grade]int{GradeF: 0, GradeD: 1, GradeC: 2, GradeB: 3, GradeA: 4}
	for s := MinScore; s <= MaxScore; s++ {
		g := GradeFor(s)
		if g.Status() == "" {
			t.Fatalf("grade %s has no status", g)
		}
		if order[g] < order[prev] {
			t.Fatalf("grade decreased at score %d: %s after %s", s, g, prev)
		}
		prev = g
	}
}

func TestParseVariant(t *testing.T) {
	for in, want := range map[string]Variant{"five-factor": FiveFactor, "4": FourFactor, " Four ": FourFactor} {
		got, err := ParseVariant(in)
		if err != nil || got != want {
			t.Errorf("ParseVariant(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseVariant("three"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

// ── Weights ─────────────────────────────────────────────────────────────

func TestParseWeights_OverridesDefaults(t *testing.T) {
	w, err := ParseWeights([]byte("default: 5\nweights:\n  phishing: 65\n  smishing: 45\n"))
	if err != nil {
		t.Fatalf("ParseWeights: %v", err)
	}
	if w.Of("phishing") != 65 || w.Of("smishing") != 45 {
		t.Errorf("overrides not applied: %+v", w.Types)
	}
	if w.Of("ransomware-attack") != 100 {
		t.Errorf("built-in weight lost: %d", w.Of("ransomware-attack"))
	}
	if w.Of("nope") != 5 {
		t.Errorf("default = %d, want 5", w.Of("nope"))
	}
}

func TestParseWeights_Default(t *testing.T) {
	tests := []struct {
		doc  string
		want int
	}{
		{"weights:\n  phishing: 65\n", DefaultTypeWeight},
		{"default: 0\n", 0},
		{"default: 25\n", 25},
	}
	for _, tt := range tests {
		w, err := ParseWeights([]byte(tt.doc))
		if err != nil {
			t.Fatalf("ParseWeights(%q): %v", tt.doc, err)
		}
		if got := w.Of("unlisted-type"); got != tt.want {
			t.Errorf("ParseWeights(%q) default = %d, want %d", tt.doc, got, tt.want)
		}
	}
}

func TestParseWeights_Rejects(t *testing.T) {
	for _, doc := range []string{"weights: [1, 2]", "weights:\n  phishing: -1\n"} {
		if _, err := ParseWeights([]byte(doc)); err == nil {
			t.Errorf("ParseWeights(%q): expected error", doc)
		}
	}
}

func TestLoadWeights(t *testing.T) {
	w, err := LoadWeights("")
	if err != nil || w.Of("malware") != 50 {
		t.Fatalf("LoadWeights(\"\") = %+v, %v", w, err)
	}

	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("weights:\n  malware: 75\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err = LoadWeights(path)
	if err != nil || w.Of("malware") != 75 || w.Default != DefaultTypeWeight {
		t.Errorf("LoadWeights(file) = %+v, %v", w, err)
	}

	if _, err := LoadWeights(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTopThreats(t *testing.T) {
	breakdown := map[string]TypeScore{
		"phishing":          {Count: 2, Weight: 50, Subscore: 100},
		"malware":           {Count: 2, Weight: 50, Subscore: 100},
		"ransomware-attack": {Count: 3, Weight: 100, Subscore: 300},
		"dw-activity":       {Count: 1, Weight: 30, Subscore: 30},
	}
	top := TopThreats(breakdown, 3)
	want := []string{"ransomware-attack", "malware", "phishing"}
	if len(top) != 3 {
		t.Fatalf("len = %d, want 3", len(top))
	}
	for i, w := range want {
		if top[i].Type != w {
			t.Errorf("top[%d] = %s, want %s", i, top[i].Type, w)
		}
	}
}
