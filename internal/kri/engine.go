package kri

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/model"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// Signals is everything the engine reads from the API. *client.Client
// satisfies it.
type Signals interface {
	Incidents(ctx context.Context, q client.IncidentQuery) ([]model.Incident, error)
	MarketSegmentMedian(ctx context.Context, customerID string, asOf time.Time) (model.MarketMedian, error)
	TakedownUptime(ctx context.Context, q client.StatsQuery) (model.UptimeHistogram, error)
	WebComplaints(ctx context.Context, from, to time.Time) (int, error)
	Credentials(ctx context.Context, q client.CredentialQuery) ([]client.Credential, error)
}

// Indicator names reported in Result.Defaulted.
const (
	KRIBenchmark    = "benchmark"
	KRIEfficiency   = "efficiency"
	KRIReputational = "reputational"
	KRIStealer      = "stealer"
)

// Scope kinds.
const (
	ScopeTenant = "tenant"
	ScopeBrand  = "brand"
)

// StealerSource selects where the stealer count comes from.
type StealerSource string

const (
	// StealerFromIncidents counts infostealer-credential incidents.
	StealerFromIncidents StealerSource = "incidents"
	// StealerFromExposure counts STEALER LOG credential detections.
	StealerFromExposure StealerSource = "exposure"
)

// ScopeConfig configures scoring for one kind of scope.
type ScopeConfig struct {
	Variant Variant
	// MedianBaseline is the sector median used when the market median is
	// not fetched or not available. Zero yields the neutral ratio 1.0.
	MedianBaseline   int
	MarketMedian     bool
	Complaints       bool
	ExcludeDiscarded bool
	StealerSource    StealerSource
}

// Config holds engine configuration.
type Config struct {
	Tenant     ScopeConfig
	Brand      ScopeConfig
	Weights    Weights
	DateField  client.DateField
	Workers    int
	TopThreats int
}

// DefaultConfig returns the tenant five-factor / brand four-factor setup.
func DefaultConfig() Config {
	return Config{
		Tenant: ScopeConfig{
			Variant:        FiveFactor,
			MedianBaseline: 100,
			MarketMedian:   true,
			Complaints:     true,
			StealerSource:  StealerFromIncidents,
		},
		Brand: ScopeConfig{
			Variant:        FourFactor,
			MedianBaseline: 50,
			StealerSource:  StealerFromIncidents,
		},
		Weights:    DefaultWeights(),
		DateField:  client.DateConfirmed,
		Workers:    4,
		TopThreats: 3,
	}
}

// Period is an inclusive date range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays returns the period ending on now and starting days earlier.
func LastDays(now time.Time, days int) Period {
	return Period{From: now.AddDate(0, 0, -days), To: now}
}

// Validate rejects empty and reversed periods.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return errors.New("period needs both ends")
	}
	if p.To.Before(p.From) {
		return fmt.Errorf("period ends (%s) before it starts (%s)", p.To.Format(time.DateOnly), p.From.Format(time.DateOnly))
	}
	return nil
}

// Threat is one entry of a result's top threats.
type Threat struct {
	Type string `json:"type"`
	TypeScore
}

// Result is the KRI outcome for one scope. It is built once and not
// modified afterwards.
type Result struct {
	Kind     string  `json:"kind"`
	Scope    string  `json:"scope"`
	BrandKey string  `json:"brand_key,omitempty"`
	Variant  Variant `json:"variant"`
	Period   Period  `json:"period"`

	WeightedScore  int                  `json:"weighted_score"`
	TotalIncidents int                  `json:"total_incidents"`
	Breakdown      map[string]TypeScore `json:"breakdown"`

	SectorMedian   int     `json:"sector_median"`
	MarketSegment  string  `json:"market_segment,omitempty"`
	ReferenceMonth string  `json:"reference_month,omitempty"`
	BenchmarkRatio float64 `json:"benchmark_ratio"`

	StealerCount       int     `json:"stealer_count"`
	StealerFactor      float64 `json:"stealer_factor"`
	SlowFactor         float64 `json:"slow_factor"`
	EfficiencyPct      float64 `json:"efficiency_pct"`
	Complaints         int     `json:"complaints"`
	ReputationalFactor float64 `json:"reputational_factor"`

	Base              float64 `json:"base"`
	PenaltyMultiplier float64 `json:"penalty_multiplier"`
	FinalScore        int     `json:"final_score"`
	Grade             Grade   `json:"grade"`
	Status            string  `json:"status"`

	TopThreats []Threat  `json:"top_threats,omitempty"`
	Defaulted  []string  `json:"defaulted,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// Engine computes KRI results from API signals.
type Engine struct {
	src    Signals
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an Engine. Zero-valued Workers, TopThreats, Weights and
// DateField take their defaults.
func NewEngine(src Signals, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.TopThreats <= 0 {
		cfg.TopThreats = def.TopThreats
	}
	if cfg.Weights.Types == nil {
		cfg.Weights = def.Weights
	}
	if cfg.DateField == "" {
		cfg.DateField = def.DateField
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{src: src, cfg: cfg, logger: logger, now: time.Now}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// FetchIncidents runs the primary incident fetch. Its failure is fatal to
// every score.
func (e *Engine) FetchIncidents(ctx context.Context, customerID string, p Period) ([]model.Incident, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	incidents, err := e.src.Incidents(ctx, client.IncidentQuery{
		CustomerID: customerID,
		From:       p.From,
		To:         p.To,
		DateField:  e.cfg.DateField,
	})
	if err != nil {
		return nil, fmt.Errorf("primary incident fetch: %w", err)
	}
	return incidents, nil
}

// ScoreTenant scores the whole tenant over p.
func (e *Engine) ScoreTenant(ctx context.Context, customerID string, p Period) (*Result, error) {
	incidents, err := e.FetchIncidents(ctx, customerID, p)
	if err != nil {
		return nil, err
	}
	return e.TenantFromIncidents(ctx, customerID, p, incidents)
}

// TenantFromIncidents scores the tenant from an already fetched incident set.
func (e *Engine) TenantFromIncidents(ctx context.Context, customerID string, p Period, incidents []model.Incident) (*Result, error) {
	sec, err := e.gather(ctx, e.cfg.Tenant, customerID, p)
	if err != nil {
		return nil, err
	}
	return e.score(ScopeTenant, customerID, "", e.cfg.Tenant, p, incidents, sec), nil
}

// ScoreBrands fetches the tenant's incidents once and scores each brand
// on its own subset.
func (e *Engine) ScoreBrands(ctx context.Context, customerID string, p Period, brands []model.Brand) ([]*Result, error) {
	incidents, err := e.FetchIncidents(ctx, customerID, p)
	if err != nil {
		return nil, err
	}
	return e.BrandsFromIncidents(ctx, customerID, p, brands, incidents)
}

// BrandsFromIncidents scores brands over a shared, read-only incident set
// with bounded concurrency. Results are sorted by score, best first, then
// by brand name.
func (e *Engine) BrandsFromIncidents(ctx context.Context, customerID string, p Period, brands []model.Brand, incidents []model.Incident) ([]*Result, error) {
	sec, err := e.gather(ctx, e.cfg.Brand, customerID, p)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(brands))
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for i, b := range brands {
		wg.Add(1)
		go func(i int, brand model.Brand) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			scoped := FilterBrand(incidents, brand)
			results[i] = e.score(ScopeBrand, brand.Name, brand.Key, e.cfg.Brand, p, scoped, sec)
		}(i, b)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	SortResults(results)
	return results, nil
}

// FilterBrand returns the incidents attributed to brand by name or key.
func FilterBrand(incidents []model.Incident, brand model.Brand) []model.Incident {
	var out []model.Incident
	for _, inc := range incidents {
		if inc.AttributedTo(brand.Name, brand.Key) {
			out = append(out, inc)
		}
	}
	return out
}

// SortResults orders results by final score descending, then scope name.
func SortResults(results []*Result) {
	slices.SortStableFunc(results, func(a, b *Result) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Scope, b.Scope)
	})
}

// secondary holds the optional signals of one scope kind. It is computed
// once per run and shared read-only.
type secondary struct {
	sectorMedian     int
	segment          string
	referenceMonth   string
	slowFactor       float64
	efficiencyPct    float64
	complaints       int
	reputational     float64
	exposureStealers int
	defaulted        []string
}

// gather fetches the optional signals enabled by sc. A failed signal falls
// back to its neutral value and is recorded in defaulted; rate limiting is
// the exception and is returned so the caller can back off.
func (e *Engine) gather(ctx context.Context, sc ScopeConfig, customerID string, p Period) (secondary, error) {
	sec := secondary{
		sectorMedian:     sc.MedianBaseline,
		efficiencyPct:    100,
		exposureStealers: -1,
	}

	if sc.MarketMedian {
		m, err := e.src.MarketSegmentMedian(ctx, customerID, p.To)
		switch {
		case err != nil:
			if client.IsRateLimited(err) {
				return sec, err
			}
			e.degraded(KRIBenchmark, err)
			sec.defaulted = append(sec.defaulted, KRIBenchmark)
		case m.Median <= 0:
			e.logger.Info("kri: empty market median, using baseline",
				zap.String("segment", m.Segment), zap.Int("baseline", sc.MedianBaseline))
			sec.segment = m.Segment
			sec.defaulted = append(sec.defaulted, KRIBenchmark)
		default:
			sec.sectorMedian = m.Median
			sec.segment = m.Segment
			sec.referenceMonth = m.ReferenceMonth
		}
	}

	if sc.Variant == FiveFactor {
		h, err := e.src.TakedownUptime(ctx, client.StatsQuery{CustomerID: customerID, From: p.From, To: p.To})
		switch {
		case err != nil:
			if client.IsRateLimited(err) {
				return sec, err
			}
			e.degraded(KRIEfficiency, err)
			sec.defaulted = append(sec.defaulted, KRIEfficiency)
		case h.Total() == 0:
			sec.defaulted = append(sec.defaulted, KRIEfficiency)
		default:
			sec.slowFactor, sec.efficiencyPct = Efficiency(h)
		}
	}

	if sc.Complaints {
		n, err := e.src.WebComplaints(ctx, p.From, p.To)
		if err != nil {
			if client.IsRateLimited(err) {
				return sec, err
			}
			e.degraded(KRIReputational, err)
			sec.defaulted = append(sec.defaulted, KRIReputational)
		} else {
			sec.complaints = n
			sec.reputational = ReputationalFactor(n)
		}
	}

	if sc.StealerSource == StealerFromExposure {
		creds, err := e.src.Credentials(ctx, client.CredentialQuery{CustomerID: customerID, From: p.From, To: p.To})
		if err != nil {
			if client.IsRateLimited(err) {
				return sec, err
			}
			e.degraded(KRIStealer, err)
			sec.defaulted = append(sec.defaulted, KRIStealer)
		} else {
			n := 0
			for _, c := range creds {
				if c.Stealer() {
					n++
				}
			}
			sec.exposureStealers = n
		}
	}
	return sec, nil
}

func (e *Engine) degraded(kri string, err error) {
	if client.IsNoAccess(err) {
		e.logger.Info("kri: signal not available, using neutral default", zap.String("kri", kri))
		return
	}
	e.logger.Warn("kri: signal failed, using neutral default", zap.String("kri", kri), zap.Error(err))
}

func (e *Engine) score(kind, scope, brandKey string, sc ScopeConfig, p Period, incidents []model.Incident, sec secondary) *Result {
	vol := WeightedIncidents(incidents, e.cfg.Weights, sc.ExcludeDiscarded)

	stealers := sec.exposureStealers
	if stealers < 0 {
		stealers = countStealers(incidents, sc.ExcludeDiscarded)
	}

	in := Inputs{
		WeightedScore:      vol.WeightedScore,
		BenchmarkRatio:     BenchmarkRatio(vol.TotalIncidents, sec.sectorMedian),
		StealerFactor:      StealerFactor(stealers),
		ReputationalFactor: sec.reputational,
	}
	if sc.Variant == FiveFactor {
		in.SlowFactor = sec.slowFactor
	}
	s := Aggregate(in, sc.Variant)
	grade := GradeFor(s.Final)

	r := &Result{
		Kind:               kind,
		Scope:              scope,
		BrandKey:           brandKey,
		Variant:            sc.Variant,
		Period:             p,
		WeightedScore:      vol.WeightedScore,
		TotalIncidents:     vol.TotalIncidents,
		Breakdown:          vol.Breakdown,
		SectorMedian:       sec.sectorMedian,
		MarketSegment:      sec.segment,
		ReferenceMonth:     sec.referenceMonth,
		BenchmarkRatio:     in.BenchmarkRatio,
		StealerCount:       stealers,
		StealerFactor:      in.StealerFactor,
		SlowFactor:         in.SlowFactor,
		EfficiencyPct:      100,
		Complaints:         sec.complaints,
		ReputationalFactor: in.ReputationalFactor,
		Base:               s.Base,
		PenaltyMultiplier:  s.PenaltyMultiplier,
		FinalScore:         s.Final,
		Grade:              grade,
		Status:             grade.Status(),
		TopThreats:         TopThreats(vol.Breakdown, e.cfg.TopThreats),
		Defaulted:          slices.Clone(sec.defaulted),
		ComputedAt:         e.now().UTC(),
	}
	if sc.Variant == FiveFactor {
		r.EfficiencyPct = sec.efficiencyPct
	}
	return r
}

func countStealers(incidents []model.Incident, excludeDiscarded bool) int {
	n := 0
	for _, inc := range incidents {
		if inc.Type != model.TypeInfostealer {
			continue
		}
		if excludeDiscarded && inc.Discarded() {
			continue
		}
		n++
	}
	return n
}

// TopThreats returns the n breakdown rows with the highest subscore, ties
// broken by type name.
func TopThreats(breakdown map[string]TypeScore, n int) []Threat {
	out := make([]Threat, 0, len(breakdown))
	for t, s := range breakdown {
		out = append(out, Threat{Type: t, TypeScore: s})
	}
	slices.SortFunc(out, func(a, b Threat) int {
		if c := cmp.Compare(b.Subscore, a.Subscore); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
