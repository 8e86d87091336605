package threat

import (
	"math"
	"strings"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// factorFunc derives one DREAD factor from an incident.
type factorFunc func(inc model.Incident) int

// HeuristicScorer derives each factor from incident attributes and averages
// them. It is the default strategy.
type HeuristicScorer struct {
	damage          factorFunc
	reproducibility factorFunc
	exploitability  factorFunc
	affectedUsers   factorFunc
	discoverability factorFunc
}

// NewHeuristicScorer returns a HeuristicScorer loaded with the default rules.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		damage:          ruleDamage,
		reproducibility: ruleReproducibility,
		exploitability:  ruleExploitability,
		affectedUsers:   ruleAffectedUsers,
		discoverability: ruleDiscoverability,
	}
}

// Name implements SeverityScorer.
func (s *HeuristicScorer) Name() string { return StrategyHeuristic }

// Score implements SeverityScorer.
func (s *HeuristicScorer) Score(inc model.Incident) Severity {
	r := Severity{
		Key:             inc.Key,
		Type:            inc.Type,
		Damage:          clampFactor(s.damage(inc)),
		Reproducibility: clampFactor(s.reproducibility(inc)),
		Exploitability:  clampFactor(s.exploitability(inc)),
		AffectedUsers:   clampFactor(s.affectedUsers(inc)),
		Discoverability: clampFactor(s.discoverability(inc)),
	}
	sum := r.Damage + r.Reproducibility + r.Exploitability + r.AffectedUsers + r.Discoverability
	r.Total = math.Round(float64(sum)/5*10) / 10
	r.Priority = meanPriority(r.Total)
	return r
}

// meanPriority bands a 1–10 mean.
func meanPriority(total float64) Priority {
	switch {
	case total >= 8:
		return PriorityCritical
	case total >= 7:
		return PriorityHigh
	case total >= 5:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ── Rules ─────────────────────────────────────────────────────────────────────

func ruleDamage(inc model.Incident) int {
	switch inc.Criticality {
	case model.CriticalityHigh:
		return 9
	case model.CriticalityMedium:
		return 6
	case model.CriticalityLow:
		return 3
	default:
		return 5
	}
}

// reproducibility is how easily a threat of each type is repeated against
// the brand.
var reproducibility = map[string]int{
	"phishing":                  9,
	"infostealer-credential":    8,
	"fake-mobile-app":           7,
	"similar-domain-name":       7,
	"malware":                   6,
	"fraudulent-brand-use":      6,
	"ransomware-attack":         5,
	"corporate-credential-leak": 4,
}

func ruleReproducibility(inc model.Incident) int {
	if v, ok := reproducibility[inc.Type]; ok {
		return v
	}
	return 5
}

func ruleExploitability(inc model.Incident) int {
	return int(math.Round(inc.PredictionRisk * 10))
}

func ruleAffectedUsers(inc model.Incident) int {
	t := strings.ToLower(inc.Type)
	switch {
	case strings.Contains(t, "executive"):
		return 9
	case strings.Contains(t, "credential"):
		return 7
	case strings.Contains(t, "phishing"):
		return 6
	default:
		return 4
	}
}

// darkChannels are collector hints for sources that take effort to reach.
// They are checked before publicChannels so "darkweb" is not read as "web".
var darkChannels = []string{"dark", "deep", "onion"}

// publicChannels are collector hints for sources anyone can browse.
var publicChannels = []string{"public", "social", "web", "search", "store", "marketplace"}

func ruleDiscoverability(inc model.Incident) int {
	c := strings.ToLower(inc.Collector)
	if c == "" {
		return 6
	}
	for _, kw := range darkChannels {
		if strings.Contains(c, kw) {
			return 4
		}
	}
	for _, kw := range publicChannels {
		if strings.Contains(c, kw) {
			return 9
		}
	}
	return 6
}
