package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// DateField selects which ticket timestamp a date range applies to.
type DateField string

const (
	// DateOpened filters on the ticket's open date.
	DateOpened DateField = "open.date"
	// DateConfirmed filters on the date the incident was confirmed.
	DateConfirmed DateField = "incident.date"
)

const ticketsPath = "/tickets-api/tickets"

// IncidentQuery selects tickets of one tenant over a date range.
type IncidentQuery struct {
	CustomerID string
	From       time.Time
	To         time.Time
	// DateField defaults to DateOpened.
	DateField  DateField
	Type       string
	Originator string
}

// Validate checks that the query can be sent.
func (q IncidentQuery) Validate() error {
	if q.CustomerID == "" {
		return errors.New("customer id is required")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return errors.New("date range is required")
	}
	if q.To.Before(q.From) {
		return fmt.Errorf("invalid date range: %s is after %s", q.From.Format(time.DateOnly), q.To.Format(time.DateOnly))
	}
	switch q.DateField {
	case "", DateOpened, DateConfirmed:
		return nil
	default:
		return fmt.Errorf("unknown date field %q", q.DateField)
	}
}

// Params renders the query as ticket API parameters. The date constraint
// is sent twice under the same key, once with ge: and once with le:.
func (q IncidentQuery) Params(pageSize int) Params {
	field := q.DateField
	if field == "" {
		field = DateOpened
	}
	var p Params
	p.Add("ticket.customer", q.CustomerID)
	p.Add(string(field), "ge:"+StartOfDay(q.From))
	p.Add(string(field), "le:"+EndOfDay(q.To))
	p.Add("pageSize", strconv.Itoa(pageSize))
	p.Add("sortBy", "open.date")
	p.Add("order", "desc")
	p.AddIf("ticket.creation.originator", q.Originator)
	p.AddIf("type", q.Type)
	return p
}

// StartOfDay formats t as the API's inclusive lower bound.
func StartOfDay(t time.Time) string { return t.Format("2006-01-02") + "T00:00:00" }

// EndOfDay formats t as the API's inclusive upper bound.
func EndOfDay(t time.Time) string { return t.Format("2006-01-02") + "T23:59:59" }

// Incidents returns every ticket matching q, normalized, in API order.
func (c *Client) Incidents(ctx context.Context, q IncidentQuery) ([]model.Incident, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.FetchAll(ctx, ticketsPath, q.Params(c.pageSize), "tickets")
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	out := make([]model.Incident, 0, len(raw))
	for i, item := range raw {
		inc, err := DecodeIncident(item)
		if err != nil {
			return nil, &ParseError{Path: ticketsPath, Err: fmt.Errorf("ticket %d: %w", i, err)}
		}
		out = append(out, inc)
	}
	return out, nil
}

// DecodeIncident normalizes one raw ticket. Every field is optional; absent
// values take their zero value, except Type which defaults to "unknown".
func DecodeIncident(raw json.RawMessage) (model.Incident, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Incident{}, err
	}
	f := fields(doc)

	inc := model.Incident{
		Key:            f.str("ticket.ticketKey"),
		Type:           f.str("detection.type"),
		OpenedAt:       f.timestamp("detection.open.date", "ticket.creation.date"),
		ConfirmedAt:    f.timestamp("detection.incident.date"),
		Assets:         f.list("detection.assets"),
		Resolution:     f.str("current.resolution"),
		Criticality:    strings.ToLower(f.str("current.criticality", "detection.criticality")),
		Originator:     f.str("ticket.creation.originator"),
		Collector:      f.str("detection.collector", "ticket.creation.collector"),
		PredictionRisk: clampUnit(f.float("detection.prediction.risk", "detection.predictionRisk")),
	}
	if inc.Type == "" {
		inc.Type = "unknown"
	}
	return inc, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// fields resolves dotted paths against a decoded ticket. The API mixes
// nested objects with literal dotted keys ("open.date" inside "detection"),
// so every prefix split is tried.
type fields map[string]any

func (f fields) lookup(path string) (any, bool) {
	return lookupPath(map[string]any(f), path)
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if v, ok := m[path]; ok && v != nil {
		return v, true
	}
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		child, ok := m[path[:i]].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := lookupPath(child, path[i+1:]); ok {
			return v, true
		}
	}
	return nil, false
}

func (f fields) str(paths ...string) string {
	for _, p := range paths {
		v, ok := f.lookup(p)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func (f fields) float(paths ...string) float64 {
	for _, p := range paths {
		v, ok := f.lookup(p)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if x, err := strconv.ParseFloat(n, 64); err == nil {
				return x
			}
		}
	}
	return 0
}

func (f fields) list(path string) []string {
	v, ok := f.lookup(path)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(list); s != "" {
			return []string{s}
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (f fields) timestamp(paths ...string) time.Time {
	for _, p := range paths {
		s := f.str(p)
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
