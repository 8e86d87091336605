// Package report coordinates analysis runs. A Runner fetches the signals a
// report needs, retries upstream rate limits, hands the data to the scoring
// packages and records the outcome in history, metrics and webhooks.
package report

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/assets"
	"github.com/jmerrifield20/riskposture/internal/history"
	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/model"
	"github.com/jmerrifield20/riskposture/internal/threat"
	"github.com/jmerrifield20/riskposture/internal/webhooks"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// Source is the API surface used by the Runner. *client.Client satisfies it.
type Source interface {
	kri.Signals
	CustomerAssets(ctx context.Context, customerID string) ([]model.Asset, error)
	TicketTypeCounts(ctx context.Context, q client.StatsQuery, types ...string) ([]model.TypeCount, error)
}

// Options configures a Runner. Only CustomerID is required.
type Options struct {
	CustomerID string
	Engine     kri.Config
	Severity   threat.SeverityScorer
	Categories *threat.Classifier
	Retry      RetryPolicy

	// History, when set, records every score and provides trends.
	History history.Ledger
	// Webhooks, when set, is notified of grade changes and score drops.
	Webhooks *webhooks.Dispatcher
	// ScoreDropThreshold triggers score.dropped when a scope loses at least
	// this many points since its previous entry. Zero disables it.
	ScoreDropThreshold int

	Logger *zap.Logger
}

// Runner executes analyses for one tenant. It is safe for concurrent use.
type Runner struct {
	src        Source
	customerID string
	engine     *kri.Engine
	severity   threat.SeverityScorer
	categories *threat.Classifier
	retry      RetryPolicy
	history    history.Ledger
	webhooks   *webhooks.Dispatcher
	dropAlert  int
	logger     *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(src Source, opts Options) (*Runner, error) {
	if src == nil {
		return nil, errors.New("report: source is required")
	}
	if opts.CustomerID == "" {
		return nil, errors.New("report: customer id is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Severity == nil {
		opts.Severity = threat.NewHeuristicScorer()
	}
	if opts.Categories == nil {
		opts.Categories = threat.NewClassifier(threat.DefaultInformationDisclosure)
	}
	return &Runner{
		src:        src,
		customerID: opts.CustomerID,
		engine:     kri.NewEngine(src, opts.Engine, opts.Logger.Named("kri")),
		severity:   opts.Severity,
		categories: opts.Categories,
		retry:      opts.Retry,
		history:    opts.History,
		webhooks:   opts.Webhooks,
		dropAlert:  opts.ScoreDropThreshold,
		logger:     opts.Logger,
	}, nil
}

// CustomerID returns the tenant the Runner reports on.
func (r *Runner) CustomerID() string { return r.customerID }

// Scored is a KRI result together with its trend against history.
type Scored struct {
	*kri.Result
	Trend *Trend `json:"trend,omitempty"`
}

// ScoreReport is the tenant-level posture.
type ScoreReport struct {
	RunID      string     `json:"run_id"`
	CustomerID string     `json:"customer_id"`
	Period     kri.Period `json:"period"`
	Tenant     Scored     `json:"tenant"`
}

// BrandReport is the per-brand posture.
type BrandReport struct {
	RunID      string     `json:"run_id"`
	CustomerID string     `json:"customer_id"`
	Period     kri.Period `json:"period"`
	Brands     []Scored   `json:"brands"`
}

// PostureReport combines tenant and brand posture from one incident fetch.
type PostureReport struct {
	RunID      string     `json:"run_id"`
	CustomerID string     `json:"customer_id"`
	Period     kri.Period `json:"period"`
	Tenant     Scored     `json:"tenant"`
	Brands     []Scored   `json:"brands"`
}

// AssetReport is the reconciled brand and domain inventory.
type AssetReport struct {
	CustomerID string              `json:"customer_id"`
	Brands     []model.Brand       `json:"brands"`
	Domains    map[string][]string `json:"domains"`
	Unmatched  []string            `json:"unmatched"`
}

// Score computes the tenant-level posture.
func (r *Runner) Score(ctx context.Context, p kri.Period) (*ScoreReport, error) {
	runID := uuid.NewString()
	var res *kri.Result
	err := r.withRetry(ctx, "tenant score", func() error {
		var err error
		res, err = r.engine.ScoreTenant(ctx, r.customerID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ScoreReport{
		RunID:      runID,
		CustomerID: r.customerID,
		Period:     p,
		Tenant:     r.record(ctx, runID, res),
	}, nil
}

// Brands computes the posture of every active brand.
func (r *Runner) Brands(ctx context.Context, p kri.Period) (*BrandReport, error) {
	runID := uuid.NewString()
	brands, _, err := r.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	incidents, err := r.fetchIncidents(ctx, p)
	if err != nil {
		return nil, err
	}
	results, err := r.scoreBrands(ctx, p, brands, incidents)
	if err != nil {
		return nil, err
	}
	return &BrandReport{
		RunID:      runID,
		CustomerID: r.customerID,
		Period:     p,
		Brands:     r.recordAll(ctx, runID, results),
	}, nil
}

// Posture computes tenant and brand posture sharing one incident fetch.
func (r *Runner) Posture(ctx context.Context, p kri.Period) (*PostureReport, error) {
	runID := uuid.NewString()
	incidents, err := r.fetchIncidents(ctx, p)
	if err != nil {
		return nil, err
	}

	var tenant *kri.Result
	err = r.withRetry(ctx, "tenant score", func() error {
		var err error
		tenant, err = r.engine.TenantFromIncidents(ctx, r.customerID, p, incidents)
		return err
	})
	if err != nil {
		return nil, err
	}

	brands, _, err := r.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	results, err := r.scoreBrands(ctx, p, brands, incidents)
	if err != nil {
		return nil, err
	}

	return &PostureReport{
		RunID:      runID,
		CustomerID: r.customerID,
		Period:     p,
		Tenant:     r.record(ctx, runID, tenant),
		Brands:     r.recordAll(ctx, runID, results),
	}, nil
}

// Assets returns the tenant's brands and the brand each domain maps to.
func (r *Runner) Assets(ctx context.Context) (*AssetReport, error) {
	brands, mapping, err := r.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	rep := &AssetReport{
		CustomerID: r.customerID,
		Brands:     brands,
		Domains:    make(map[string][]string, len(brands)),
		Unmatched:  assets.DomainsOf(mapping, ""),
	}
	for _, b := range brands {
		rep.Domains[b.Name] = assets.DomainsOf(mapping, b.Name)
	}
	return rep, nil
}

// ErrHistoryDisabled is returned by history queries when no ledger is
// configured.
var ErrHistoryDisabled = errors.New("score history is not configured")

// History returns recorded scores of one scope, newest first.
func (r *Runner) History(ctx context.Context, kind, scope string, limit int) ([]*history.Entry, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	if scope == "" && kind == kri.ScopeTenant {
		scope = r.customerID
	}
	return r.history.List(ctx, r.customerID, kind, scope, limit)
}

// VerifyHistory checks the integrity of the score history chain.
func (r *Runner) VerifyHistory(ctx context.Context) error {
	if r.history == nil {
		return ErrHistoryDisabled
	}
	return r.history.Verify(ctx)
}

func (r *Runner) fetchIncidents(ctx context.Context, p kri.Period) ([]model.Incident, error) {
	var incidents []model.Incident
	err := r.withRetry(ctx, "incidents", func() error {
		var err error
		incidents, err = r.engine.FetchIncidents(ctx, r.customerID, p)
		return err
	})
	return incidents, err
}

func (r *Runner) reconcile(ctx context.Context) ([]model.Brand, map[string]string, error) {
	var raw []model.Asset
	err := r.withRetry(ctx, "assets", func() error {
		var err error
		raw, err = r.src.CustomerAssets(ctx, r.customerID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch assets: %w", err)
	}
	brands, mapping := assets.Reconcile(raw)
	r.logger.Debug("assets reconciled",
		zap.Int("brands", len(brands)),
		zap.Int("domains", len(mapping)),
	)
	return brands, mapping, nil
}

func (r *Runner) scoreBrands(ctx context.Context, p kri.Period, brands []model.Brand, incidents []model.Incident) ([]*kri.Result, error) {
	var results []*kri.Result
	err := r.withRetry(ctx, "brand scores", func() error {
		var err error
		results, err = r.engine.BrandsFromIncidents(ctx, r.customerID, p, brands, incidents)
		return err
	})
	return results, err
}

func (r *Runner) recordAll(ctx context.Context, runID string, results []*kri.Result) []Scored {
	out := make([]Scored, 0, len(results))
	for _, res := range results {
		out = append(out, r.record(ctx, runID, res))
	}
	return out
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
