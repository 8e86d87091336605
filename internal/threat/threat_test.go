package threat

import (
	"math"
	"slices"
	"testing"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// ── Heuristic strategy ──────────────────────────────────────────────────

func TestHeuristicScorer_Score(t *testing.T) {
	tests := []struct {
		name     string
		inc      model.Incident
		factors  [5]int
		total    float64
		priority Priority
	}{
		{
			name: "high criticality phishing on social media",
			inc: model.Incident{Key: "T-1", Type: "phishing", Criticality: model.CriticalityHigh,
				PredictionRisk: 0.9, Collector: "social-media"},
			factors:  [5]int{9, 9, 9, 6, 9},
			total:    8.4,
			priority: PriorityCritical,
		},
		{
			name: "fake app in a public store",
			inc: model.Incident{Key: "T-2", Type: "fake-mobile-app", Criticality: model.CriticalityHigh,
				PredictionRisk: 0.8, Collector: "app-store"},
			factors:  [5]int{9, 7, 8, 4, 9},
			total:    7.4,
			priority: PriorityHigh,
		},
		{
			name: "executive leak from an unclassified collector",
			inc: model.Incident{Key: "T-3", Type: "executive-credential-leak", Criticality: model.CriticalityMedium,
				PredictionRisk: 0.7, Collector: "paste-site"},
			factors:  [5]int{6, 5, 7, 9, 6},
			total:    6.6,
			priority: PriorityMedium,
		},
		{
			name: "dark web is checked before web",
			inc: model.Incident{Key: "T-4", Type: "corporate-credential-leak", Criticality: model.CriticalityLow,
				PredictionRisk: 0.2, Collector: "darkweb-forum"},
			factors:  [5]int{3, 4, 2, 7, 4},
			total:    4.0,
			priority: PriorityLow,
		},
		{
			name:     "missing attributes use defaults and clamp exploitability",
			inc:      model.Incident{Key: "T-5", Type: "unknown"},
			factors:  [5]int{5, 5, 1, 4, 6},
			total:    4.2,
			priority: PriorityLow,
		},
	}

	s := NewHeuristicScorer()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Score(tc.inc)
			factors := [5]int{got.Damage, got.Reproducibility, got.Exploitability, got.AffectedUsers, got.Discoverability}
			if factors != tc.factors {
				t.Errorf("factors = %v, want %v", factors, tc.factors)
			}
			if got.Total != tc.total {
				t.Errorf("Total = %v, want %v", got.Total, tc.total)
			}
			if got.Priority != tc.priority {
				t.Errorf("Priority = %q, want %q", got.Priority, tc.priority)
			}
			if got.Key != tc.inc.Key {
				t.Errorf("Key = %q, want %q", got.Key, tc.inc.Key)
			}
		})
	}
}

func TestHeuristicScorer_ExploitabilityClampsHigh(t *testing.T) {
	got := NewHeuristicScorer().Score(model.Incident{Type: "phishing", PredictionRisk: 3})
	if got.Exploitability != 10 {
		t.Errorf("Exploitability = %d, want 10", got.Exploitability)
	}
}

func TestMeanPriority_Bands(t *testing.T) {
	tests := []struct {
		total float64
		want  Priority
	}{
		{10, PriorityCritical},
		{8, PriorityCritical},
		{7.9, PriorityHigh},
		{7, PriorityHigh},
		{6.9, PriorityMedium},
		{5, PriorityMedium},
		{4.9, PriorityLow},
		{1, PriorityLow},
	}
	for _, tc := range tests {
		if got := meanPriority(tc.total); got != tc.want {
			t.Errorf("meanPriority(%v) = %q, want %q", tc.total, got, tc.want)
		}
	}
}

// ── Table strategy ──────────────────────────────────────────────────────

func TestTableScorer_Score(t *testing.T) {
	tests := []struct {
		typ      string
		total    float64
		priority Priority
	}{
		{"phishing", 41, PriorityCritical},
		{"ransomware-attack", 31, PriorityHigh},
		{"similar-domain-name", 27, PriorityMedium},
		{"not-in-table", 25, PriorityMedium},
	}
	s := NewTableScorer()
	for _, tc := range tests {
		got := s.Score(model.Incident{Key: "K", Type: tc.typ})
		if got.Total != tc.total || got.Priority != tc.priority {
			t.Errorf("%s: total=%v priority=%q, want %v %q", tc.typ, got.Total, got.Priority, tc.total, tc.priority)
		}
	}
}

func TestSumPriority_Bands(t *testing.T) {
	tests := []struct {
		total int
		want  Priority
	}{
		{40, PriorityCritical},
		{39, PriorityHigh},
		{30, PriorityHigh},
		{29, PriorityMedium},
		{20, PriorityMedium},
		{19, PriorityLow},
	}
	for _, tc := range tests {
		if got := sumPriority(tc.total); got != tc.want {
			t.Errorf("sumPriority(%d) = %q, want %q", tc.total, got, tc.want)
		}
	}
}

func TestNewSeverityScorer(t *testing.T) {
	for name, want := range map[string]string{
		"":          StrategyHeuristic,
		"heuristic": StrategyHeuristic,
		"table":     StrategyTable,
	} {
		s, err := NewSeverityScorer(name)
		if err != nil {
			t.Fatalf("NewSeverityScorer(%q): %v", name, err)
		}
		if s.Name() != want {
			t.Errorf("NewSeverityScorer(%q).Name() = %q, want %q", name, s.Name(), want)
		}
	}
	if _, err := NewSeverityScorer("cvss"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

// ── Ranking ─────────────────────────────────────────────────────────────

func TestRank_TiesByKey(t *testing.T) {
	results := []Severity{
		{Key: "C", Total: 5},
		{Key: "B", Total: 8},
		{Key: "A", Total: 5},
		{Key: "D", Total: 9},
	}
	Rank(results)

	var keys []string
	for _, r := range results {
		keys = append(keys, r.Key)
	}
	if want := []string{"D", "B", "A", "C"}; !slices.Equal(keys, want) {
		t.Errorf("order = %v, want %v", keys, want)
	}
}

func TestScoreAll_CountByPriority(t *testing.T) {
	incidents := []model.Incident{
		{Key: "1", Type: "phishing"},
		{Key: "2", Type: "ransomware-attack"},
		{Key: "3", Type: "phishing"},
	}
	results := ScoreAll(NewTableScorer(), incidents)
	if len(results) != 3 || results[0].Key != "1" || results[1].Key != "3" {
		t.Fatalf("unexpected ranking: %+v", results)
	}
	counts := CountByPriority(results)
	if counts[PriorityCritical] != 2 || counts[PriorityHigh] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

// ── Categories ──────────────────────────────────────────────────────────

func sampleIncidents() []model.Incident {
	var out []model.Incident
	for _, typ := range []string{
		"phishing", "phishing", "phishing", "similar-domain-name",
		"malware", "ransomware-attack",
		"brand-new-type",
	} {
		out = append(out, model.Incident{Type: typ})
	}
	return out
}

func TestClassifier_DefaultPolicy(t *testing.T) {
	got := NewClassifier("").Aggregate(sampleIncidents())
	if len(got) != 3 {
		t.Fatalf("categories = %d, want 3: %+v", len(got), got)
	}
	wantCodes := []string{Spoofing, DenialOfService, InformationDisclosure}
	wantCounts := []int{4, 2, 1}
	for i := range got {
		if got[i].Code != wantCodes[i] || got[i].Count != wantCounts[i] {
			t.Errorf("[%d] = %s/%d, want %s/%d", i, got[i].Code, got[i].Count, wantCodes[i], wantCounts[i])
		}
	}
	if !slices.Equal(got[0].Types, []string{"phishing", "similar-domain-name"}) {
		t.Errorf("spoofing types = %v", got[0].Types)
	}
	if got[0].Name != "Spoofing (Identity Impersonation)" {
		t.Errorf("name = %q", got[0].Name)
	}
}

func TestClassifier_UnknownBucket(t *testing.T) {
	got := NewClassifier(UnknownBucket).Aggregate(sampleIncidents())
	last := got[len(got)-1]
	if last.Code != Unknown || last.Count != 1 || last.Types[0] != "brand-new-type" {
		t.Errorf("unknown bucket = %+v", last)
	}
	for _, c := range got {
		if c.Code == InformationDisclosure {
			t.Errorf("unknown type leaked into I: %+v", c)
		}
	}
}

func TestClassifier_PercentagesSumTo100(t *testing.T) {
	for _, policy := range []UnknownPolicy{DefaultInformationDisclosure, UnknownBucket} {
		var sum float64
		for _, c := range NewClassifier(policy).Aggregate(sampleIncidents()) {
			sum += c.Percentage
		}
		if math.Abs(sum-100) > 1e-9 {
			t.Errorf("%s: percentages sum to %v", policy, sum)
		}
	}
}

func TestClassifier_TiesByCode(t *testing.T) {
	got := NewClassifier("").Aggregate([]model.Incident{{Type: "phishing"}, {Type: "malware"}})
	if got[0].Code != DenialOfService || got[1].Code != Spoofing {
		t.Errorf("order = %s,%s, want D,S", got[0].Code, got[1].Code)
	}
}

func TestClassifier_Empty(t *testing.T) {
	if got := NewClassifier("").Aggregate(nil); len(got) != 0 {
		t.Errorf("expected no categories, got %+v", got)
	}
}

func TestParseUnknownPolicy(t *testing.T) {
	if p, err := ParseUnknownPolicy(""); err != nil || p != DefaultInformationDisclosure {
		t.Errorf("empty: %q %v", p, err)
	}
	if p, err := ParseUnknownPolicy("unknown"); err != nil || p != UnknownBucket {
		t.Errorf("unknown: %q %v", p, err)
	}
	if _, err := ParseUnknownPolicy("drop"); err == nil {
		t.Error("expected error")
	}
}
