// Package model holds the records produced by ingestion and consumed by the
// scoring pipelines. Records are built once per analysis run and never mutated
// afterwards.
package model

import (
	"slices"
	"time"
)

// Criticality levels reported by the ticketing API.
const (
	CriticalityLow    = "low"
	CriticalityMedium = "medium"
	CriticalityHigh   = "high"
)

// ResolutionDiscarded marks a ticket closed as a false positive.
const ResolutionDiscarded = "discarded"

// TypeInfostealer is the threat type for credentials exfiltrated by
// stealer malware from an infected device.
const TypeInfostealer = "infostealer-credential"

// Incident is a normalized ticket.
type Incident struct {
	Key            string    `json:"key"`
	Type           string    `json:"type"`
	OpenedAt       time.Time `json:"opened_at"`
	ConfirmedAt    time.Time `json:"confirmed_at,omitempty"`
	Assets         []string  `json:"assets,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
	Criticality    string    `json:"criticality,omitempty"`
	Originator     string    `json:"originator,omitempty"`
	Collector      string    `json:"collector,omitempty"`
	PredictionRisk float64   `json:"prediction_risk"`
}

// Discarded reports whether the incident was closed as a false positive.
func (i Incident) Discarded() bool {
	return i.Resolution == ResolutionDiscarded
}

// AttributedTo reports whether any of the given tags appears in the
// incident's asset list. Empty tags never match.
func (i Incident) AttributedTo(tags ...string) bool {
	for _, t := range tags {
		if t != "" && slices.Contains(i.Assets, t) {
			return true
		}
	}
	return false
}
