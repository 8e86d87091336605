package model

// UptimeHistogram is the takedown resolution-time distribution. The three
// slowest buckets count as slow resolutions.
type UptimeHistogram struct {
	LessThan1Day int `json:"lessThan1Day"`
	UpTo2Days    int `json:"upTo2Days"`
	UpTo5Days    int `json:"upTo5Days"`
	UpTo10Days   int `json:"upTo10Days"`
	UpTo15Days   int `json:"upTo15Days"`
	UpTo30Days   int `json:"upTo30Days"`
	UpTo60Days   int `json:"upTo60Days"`
	Over60Days   int `json:"over60Days"`
}

// Total is the number of resolved takedowns across all buckets.
func (h UptimeHistogram) Total() int {
	return h.LessThan1Day + h.UpTo2Days + h.UpTo5Days + h.UpTo10Days +
		h.UpTo15Days + h.UpTo30Days + h.UpTo60Days + h.Over60Days
}

// Slow is the number of takedowns that took longer than 15 days.
func (h UptimeHistogram) Slow() int {
	return h.UpTo30Days + h.UpTo60Days + h.Over60Days
}

// TypeCount is the number of incidents of one type over a period.
type TypeCount struct {
	Type  string `json:"type"`
	Total int    `json:"totalOnPeriod"`
}

// MarketMedian is the sector benchmark for a tenant.
type MarketMedian struct {
	Segment        string `json:"market_segment"`
	Median         int    `json:"median"`
	ReferenceMonth string `json:"reference_month,omitempty"`
}
