package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/cache"
	"github.com/jmerrifield20/riskposture/internal/config"
	"github.com/jmerrifield20/riskposture/internal/health"
	"github.com/jmerrifield20/riskposture/internal/history"
	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/internal/report"
	"github.com/jmerrifield20/riskposture/internal/threat"
	"github.com/jmerrifield20/riskposture/internal/webhooks"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// app is everything a command needs, built from one Config.
type app struct {
	cfg     config.Config
	runner  *report.Runner
	health  *health.Checker
	logger  *zap.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the API client, the optional cache, history and webhooks
// into a report.Runner.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if cfg.CustomerID == "" {
		return nil, errors.New("customer id is required (set customer_id, RISKCTL_CUSTOMER_ID or --customer)")
	}

	a := &app{
		cfg:    cfg,
		health: health.New(health.Config{}, logger.Named("health")),
		logger: logger,
	}
	a.health.SetMetricsRecord(metrics.RecordHealthCheck)
	a.health.RegisterHTTP("upstream", cfg.API.BaseURL)

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ── API client ───────────────────────────────────────────────────────
	opts := append(cfg.ClientOptions(), client.WithObserver(metrics.ObserveAPICall))
	if cfg.Cache.Driver == config.DriverRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, logger.Named("cache"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.health.Register("redis", rc.Ping)
		opts = append(opts, client.WithCache(rc, cfg.Cache.TTL))
		logger.Info("redis response cache enabled", zap.String("addr", cfg.Cache.RedisAddr))
	}
	api, err := client.New(cfg.API.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	// ── History ──────────────────────────────────────────────────────────
	var ledger history.Ledger
	switch cfg.History.Driver {
	case config.DriverMemory:
		ledger = history.NewMemory()
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.History.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect history database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping history database: %w", err)
		}
		a.health.Register("postgres", pool.Ping)
		ledger = history.NewPostgresLedger(pool, logger.Named("history"))
	}

	// ── Webhooks ─────────────────────────────────────────────────────────
	var dispatcher *webhooks.Dispatcher
	if len(cfg.Webhooks.Subscriptions) > 0 {
		dispatcher = webhooks.NewDispatcher(cfg.Webhooks.Subscriptions, logger.Named("webhooks"))
		dispatcher.SetMetricsRecorder(metrics.RecordWebhookDelivery)
	}

	// ── Scoring ──────────────────────────────────────────────────────────
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	severity, err := threat.NewSeverityScorer(cfg.Severity)
	if err != nil {
		return nil, err
	}
	policy, err := threat.ParseUnknownPolicy(cfg.Categories)
	if err != nil {
		return nil, err
	}

	a.runner, err = report.NewRunner(api, report.Options{
		CustomerID:         cfg.CustomerID,
		Engine:             engineCfg,
		Severity:           severity,
		Categories:         threat.NewClassifier(policy),
		Retry:              cfg.RetryPolicy(),
		History:            ledger,
		Webhooks:           dispatcher,
		ScoreDropThreshold: cfg.Webhooks.ScoreDropThreshold,
		Logger:             logger.Named("report"),
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}
