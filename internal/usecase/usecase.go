// Package usecase is the static registry of analyses exposed by the CLI,
// the HTTP API and the MCP bridge.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/report"
)

// Params are the inputs shared by every analysis. Fields an analysis does
// not use are ignored.
type Params struct {
	Period kri.Period
	// Limit caps list output; zero means no cap.
	Limit int
	// Origin selects the ticket originator for the origin analysis.
	Origin string
	// Status selects credential detections by status.
	Status string
}

// ErrOriginRequired is returned by the origin analysis without an origin.
var ErrOriginRequired = errors.New("origin analysis needs an origin")

// RunFunc executes an analysis.
type RunFunc func(ctx context.Context, r *report.Runner, p Params) (any, error)

// Analysis is one registered use case.
type Analysis struct {
	Name        string
	Description string
	Run         RunFunc
}

var registry = []Analysis{
	{
		Name:        "score",
		Description: "Tenant risk posture score (0-1000) with grade and factor breakdown",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Score(ctx, p.Period)
		},
	},
	{
		Name:        "brands",
		Description: "Risk posture score of every active brand, best first",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Brands(ctx, p.Period)
		},
	},
	{
		Name:        "posture",
		Description: "Tenant and brand scores from a single incident fetch",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Posture(ctx, p.Period)
		},
	},
	{
		Name:        "severity",
		Description: "Per-incident DREAD severity ranking",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Severity(ctx, p.Period, p.Limit)
		},
	},
	{
		Name:        "categories",
		Description: "STRIDE threat category distribution",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Categories(ctx, p.Period)
		},
	},
	{
		Name:        "origin",
		Description: "Incidents raised by one detection originator (onepixel, platform, api, collector)",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			if p.Origin == "" {
				return nil, ErrOriginRequired
			}
			return r.ByOrigin(ctx, p.Period, p.Origin, p.Limit)
		},
	},
	{
		Name:        "credentials",
		Description: "Exposed credential summary by password type and leak format",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Credentials(ctx, p.Period, p.Status)
		},
	},
	{
		Name:        "volume",
		Description: "Weighted incident volume cross-checked against ticket-type statistics",
		Run: func(ctx context.Context, r *report.Runner, p Params) (any, error) {
			return r.Volume(ctx, p.Period)
		},
	},
	{
		Name:        "assets",
		Description: "Brands and the monitored domains attributed to each",
		Run: func(ctx context.Context, r *report.Runner, _ Params) (any, error) {
			return r.Assets(ctx)
		},
	},
}

// All returns every registered analysis in registration order.
func All() []Analysis {
	return slices.Clone(registry)
}

// Names returns the registered analysis names.
func Names() []string {
	names := make([]string, len(registry))
	for i, a := range registry {
		names[i] = a.Name
	}
	return names
}

// Lookup returns the analysis registered under name.
func Lookup(name string) (Analysis, error) {
	for _, a := range registry {
		if a.Name == name {
			return a, nil
		}
	}
	return Analysis{}, fmt.Errorf("unknown analysis %q (available: %s)", name, strings.Join(Names(), ", "))
}
