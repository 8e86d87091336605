package report

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/model"
	"github.com/jmerrifield20/riskposture/internal/threat"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// SeverityReport ranks incidents by DREAD-style severity.
type SeverityReport struct {
	CustomerID string                  `json:"customer_id"`
	Period     kri.Period              `json:"period"`
	Strategy   string                  `json:"strategy"`
	Total      int                     `json:"total"`
	ByPriority map[threat.Priority]int `json:"by_priority"`
	Results    []threat.Severity       `json:"results"`
}

// Severity scores every incident of the period. limit caps the returned
// ranking; zero or less returns all of it. Priority counts always cover
// every incident.
func (r *Runner) Severity(ctx context.Context, p kri.Period, limit int) (*SeverityReport, error) {
	incidents, err := r.fetchIncidents(ctx, p)
	if err != nil {
		return nil, err
	}
	results := threat.ScoreAll(r.severity, incidents)
	rep := &SeverityReport{
		CustomerID: r.customerID,
		Period:     p,
		Strategy:   r.severity.Name(),
		Total:      len(results),
		ByPriority: threat.CountByPriority(results),
		Results:    results,
	}
	if limit > 0 && len(rep.Results) > limit {
		rep.Results = rep.Results[:limit]
	}
	return rep, nil
}

// CategoryReport is the STRIDE-style distribution of a period's incidents.
type CategoryReport struct {
	CustomerID string                 `json:"customer_id"`
	Period     kri.Period             `json:"period"`
	Policy     threat.UnknownPolicy   `json:"unknown_policy"`
	Total      int                    `json:"total"`
	Categories []threat.CategoryShare `json:"categories"`
}

// Categories classifies every incident of the period.
func (r *Runner) Categories(ctx context.Context, p kri.Period) (*CategoryReport, error) {
	incidents, err := r.fetchIncidents(ctx, p)
	if err != nil {
		return nil, err
	}
	return &CategoryReport{
		CustomerID: r.customerID,
		Period:     p,
		Policy:     r.categories.Policy(),
		Total:      len(incidents),
		Categories: r.categories.Aggregate(incidents),
	}, nil
}

// Origin is a ticket originator accepted by the tickets API.
type Origin struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrUnknownOrigin is returned for an originator not in Origins.
var ErrUnknownOrigin = errors.New("unknown origin")

// Origins lists the supported ticket originators.
var Origins = []Origin{
	{Name: "onepixel", Description: "OnePixel - automatic detection by the site protection script"},
	{Name: "platform", Description: "Platform - detected by platform monitoring"},
	{Name: "api", Description: "API - manually inserted through the API integration"},
	{Name: "collector", Description: "Collector - detected by a specific collector"},
}

// LookupOrigin returns the origin with the given name, case-insensitively.
func LookupOrigin(name string) (Origin, error) {
	for _, o := range Origins {
		if strings.EqualFold(o.Name, name) {
			return o, nil
		}
	}
	names := make([]string, len(Origins))
	for i, o := range Origins {
		names[i] = o.Name
	}
	return Origin{}, fmt.Errorf("%w %q (want one of %s)", ErrUnknownOrigin, name, strings.Join(names, ", "))
}

// TypeSummary counts incidents of one type.
type TypeSummary struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TicketSummary is the short form of a ticket in listings.
type TicketSummary struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	OpenedAt time.Time `json:"opened_at"`
}

// OriginReport lists incidents raised by one originator.
type OriginReport struct {
	CustomerID string          `json:"customer_id"`
	Period     kri.Period      `json:"period"`
	Origin     Origin          `json:"origin"`
	Total      int             `json:"total"`
	ByType     []TypeSummary   `json:"by_type"`
	Tickets    []TicketSummary `json:"tickets"`
}

// ByOrigin lists the period's incidents raised by origin. Tickets are
// newest first and capped at limit when limit is positive.
func (r *Runner) ByOrigin(ctx context.Context, p kri.Period, origin string, limit int) (*OriginReport, error) {
	o, err := LookupOrigin(origin)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var incidents []model.Incident
	err = r.withRetry(ctx, "incidents by origin", func() error {
		var err error
		incidents, err = r.src.Incidents(ctx, client.IncidentQuery{
			CustomerID: r.customerID,
			From:       p.From,
			To:         p.To,
			DateField:  r.engine.Config().DateField,
			Originator: o.Name,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("incidents by origin: %w", err)
	}

	rep := &OriginReport{
		CustomerID: r.customerID,
		Period:     p,
		Origin:     o,
		Total:      len(incidents),
		ByType:     summarizeTypes(incidents),
	}
	for _, inc := range incidents {
		rep.Tickets = append(rep.Tickets, TicketSummary{Key: inc.Key, Type: inc.Type, OpenedAt: inc.OpenedAt})
	}
	slices.SortStableFunc(rep.Tickets, func(a, b TicketSummary) int {
		if c := b.OpenedAt.Compare(a.OpenedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if limit > 0 && len(rep.Tickets) > limit {
		rep.Tickets = rep.Tickets[:limit]
	}
	return rep, nil
}

// summarizeTypes counts incidents per type, most frequent first.
func summarizeTypes(incidents []model.Incident) []TypeSummary {
	counts := make(map[string]int)
	for _, inc := range incidents {
		counts[inc.Type]++
	}
	out := make([]TypeSummary, 0, len(counts))
	for _, t := range sortedKeys(counts) {
		out = append(out, TypeSummary{Type: t, Count: counts[t]})
	}
	slices.SortStableFunc(out, func(a, b TypeSummary) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}

// VolumeRow is one threat type in a volume cross-check.
type VolumeRow struct {
	Type        string `json:"type"`
	Weight      int    `json:"weight"`
	StatsCount  int    `json:"stats_count"`
	TicketCount int    `json:"ticket_count"`
}

// VolumeReport compares the weighted incident volume computed from raw
// tickets with the one computed from the ticket-type statistics endpoint.
type VolumeReport struct {
	CustomerID  string      `json:"customer_id"`
	Period      kri.Period  `json:"period"`
	TicketScore int         `json:"ticket_weighted_score"`
	TicketTotal int         `json:"ticket_total"`
	StatsScore  int         `json:"stats_weighted_score"`
	StatsTotal  int         `json:"stats_total"`
	Consistent  bool        `json:"consistent"`
	Mismatched  []string    `json:"mismatched,omitempty"`
	Rows        []VolumeRow `json:"rows"`
}

// Volume runs the weighted-volume cross-check for the period.
func (r *Runner) Volume(ctx context.Context, p kri.Period) (*VolumeReport, error) {
	incidents, err := r.fetchIncidents(ctx, p)
	if err != nil {
		return nil, err
	}

	var counts []model.TypeCount
	err = r.withRetry(ctx, "ticket type stats", func() error {
		var err error
		counts, err = r.src.TicketTypeCounts(ctx, client.StatsQuery{
			CustomerID: r.customerID,
			From:       p.From,
			To:         p.To,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ticket type stats: %w", err)
	}

	weights := r.engine.Config().Weights
	vol := kri.WeightedIncidents(incidents, weights, false)

	rows := make(map[string]*VolumeRow)
	row := func(t string) *VolumeRow {
		if rows[t] == nil {
			rows[t] = &VolumeRow{Type: t, Weight: weights.Of(t)}
		}
		return rows[t]
	}
	for t, s := range vol.Breakdown {
		row(t).TicketCount = s.Count
	}

	rep := &VolumeReport{
		CustomerID:  r.customerID,
		Period:      p,
		TicketScore: vol.WeightedScore,
		TicketTotal: vol.TotalIncidents,
	}
	for _, c := range counts {
		vr := row(c.Type)
		vr.StatsCount += c.Total
		rep.StatsScore += c.Total * vr.Weight
		rep.StatsTotal += c.Total
	}

	for _, t := range sortedKeys(rows) {
		vr := *rows[t]
		rep.Rows = append(rep.Rows, vr)
		if vr.StatsCount != vr.TicketCount {
			rep.Mismatched = append(rep.Mismatched, t)
		}
	}
	rep.Consistent = len(rep.Mismatched) == 0
	return rep, nil
}
