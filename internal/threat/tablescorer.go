package threat

import "github.com/jmerrifield20/riskposture/internal/model"

// dreadRow holds the five fixed factors of one threat type.
type dreadRow struct {
	damage, reproducibility, exploitability, affectedUsers, discoverability int
}

func (r dreadRow) sum() int {
	return r.damage + r.reproducibility + r.exploitability + r.affectedUsers + r.discoverability
}

var dreadTable = map[string]dreadRow{
	"phishing":                  {7, 9, 8, 8, 9},
	"ransomware-attack":         {10, 5, 4, 9, 3},
	"infostealer-credential":    {9, 8, 7, 6, 4},
	"corporate-credential-leak": {8, 4, 6, 7, 5},
	"malware":                   {8, 6, 5, 7, 4},
	"fake-mobile-app":           {6, 7, 6, 5, 8},
	"similar-domain-name":       {4, 7, 5, 3, 8},
	"fraudulent-brand-use":      {5, 6, 4, 4, 7},
}

var defaultDreadRow = dreadRow{5, 5, 5, 5, 5}

// TableScorer looks up all five factors by threat type and sums them.
type TableScorer struct{}

// NewTableScorer returns a TableScorer.
func NewTableScorer() *TableScorer { return &TableScorer{} }

// Name implements SeverityScorer.
func (TableScorer) Name() string { return StrategyTable }

// Score implements SeverityScorer.
func (TableScorer) Score(inc model.Incident) Severity {
	row, ok := dreadTable[inc.Type]
	if !ok {
		row = defaultDreadRow
	}
	total := row.sum()
	return Severity{
		Key:             inc.Key,
		Type:            inc.Type,
		Damage:          row.damage,
		Reproducibility: row.reproducibility,
		Exploitability:  row.exploitability,
		AffectedUsers:   row.affectedUsers,
		Discoverability: row.discoverability,
		Total:           float64(total),
		Priority:        sumPriority(total),
	}
}

// sumPriority bands a 5–50 sum.
func sumPriority(total int) Priority {
	switch {
	case total >= 40:
		return PriorityCritical
	case total >= 30:
		return PriorityHigh
	case total >= 20:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
