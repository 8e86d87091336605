package client

import (
	"context"
	"strings"
	"time"

	"github.com/jmerrifield20/riskposture/internal/model"
)

const (
	uptimePath      = "/tickets-api/stats/takedown/uptime"
	ticketTypesPath = "/tickets-api/stats/incident/count/ticket-types"
	medianPath      = "/tickets-api/stats/incident/customer/market-segment/median"
	complaintsPath  = "/web-complaints/results"
)

// StatsQuery scopes a statistics request to a tenant and a date range.
type StatsQuery struct {
	CustomerID string
	From       time.Time
	To         time.Time
}

func (q StatsQuery) params() Params {
	var p Params
	p.Add("customer", q.CustomerID)
	p.Add("from", StartOfDay(q.From))
	p.Add("to", EndOfDay(q.To))
	return p
}

// TakedownUptime returns the resolution-time histogram for the period.
// A missing "uptime" object yields an empty histogram.
func (c *Client) TakedownUptime(ctx context.Context, q StatsQuery) (model.UptimeHistogram, error) {
	var resp struct {
		Uptime model.UptimeHistogram `json:"uptime"`
	}
	if err := c.getJSON(ctx, uptimePath, q.params(), &resp); err != nil {
		return model.UptimeHistogram{}, err
	}
	return resp.Uptime, nil
}

// TicketTypeCounts returns per-type incident totals for the period. When
// types is non-empty only those types are requested.
func (c *Client) TicketTypeCounts(ctx context.Context, q StatsQuery, types ...string) ([]model.TypeCount, error) {
	p := q.params()
	if len(types) > 0 {
		p.Add("ticketTypes", strings.Join(types, ","))
	}
	var resp struct {
		TotalByTicketType []model.TypeCount `json:"totalByTicketType"`
	}
	if err := c.getJSON(ctx, ticketTypesPath, p, &resp); err != nil {
		return nil, err
	}
	return resp.TotalByTicketType, nil
}

type monthlyTotal struct {
	Total          int    `json:"total"`
	ReferenceMonth string `json:"referenceMonth"`
}

// MarketSegmentMedian returns the most recent monthly sector median up to
// asOf. The endpoint reports months under "medians", or under "mean" on
// some deployments; an empty series yields a zero median.
func (c *Client) MarketSegmentMedian(ctx context.Context, customerID string, asOf time.Time) (model.MarketMedian, error) {
	var p Params
	p.Add("customer", customerID)
	p.Add("to", asOf.Format("2006-01-02"))
	p.Add("timezone", c.timezone)

	var resp struct {
		MarketSegment string         `json:"marketSegment"`
		Medians       []monthlyTotal `json:"medians"`
		Mean          []monthlyTotal `json:"mean"`
	}
	if err := c.getJSON(ctx, medianPath, p, &resp); err != nil {
		return model.MarketMedian{}, err
	}

	out := model.MarketMedian{Segment: resp.MarketSegment}
	if out.Segment == "" {
		out.Segment = "UNKNOWN"
	}
	series := resp.Medians
	if series == nil {
		series = resp.Mean
	}
	if n := len(series); n > 0 {
		out.Median = series[n-1].Total
		out.ReferenceMonth = series[n-1].ReferenceMonth
	}
	return out, nil
}

// WebComplaints returns the number of web complaints registered in the
// period. Only the total is read, so a single one-item page is requested.
func (c *Client) WebComplaints(ctx context.Context, from, to time.Time) (int, error) {
	var p Params
	p.Add("initialDate", from.Format("2006-01-02"))
	p.Add("finalDate", to.Format("2006-01-02"))
	p.Add("timezone", c.timezone)
	p.Add("page", "1")
	p.Add("pageSize", "1")

	var resp struct {
		TotalElements int `json:"totalElements"`
	}
	if err := c.getJSON(ctx, complaintsPath, p, &resp); err != nil {
		return 0, err
	}
	return resp.TotalElements, nil
}
