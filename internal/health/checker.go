// Package health tracks the reachability of the services riskctl depends
// on: the upstream API, the history database and the response cache.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dependency states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency. A nil error means reachable.
type Probe func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(dependency string, success bool)

// Report is the outcome of the latest round of probes.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker runs dependency probes. A dependency is degraded once it fails
// FailThreshold consecutive probes and healthy again after one success.
type Checker struct {
	probes     map[string]Probe
	httpClient *http.Client
	failCounts map[string]int
	last       Report
	mu         sync.Mutex
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker with no probes registered.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		probes:     make(map[string]Probe),
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		last:       Report{Status: StatusHealthy, Checks: map[string]string{}},
		cfg:        cfg,
		logger:     logger,
	}
}

// Register adds a named probe. It must be called before Start.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
	c.last.Checks[name] = StatusHealthy
}

// RegisterHTTP adds a probe that considers url reachable when it answers
// below 500. Authentication failures still prove the service is up.
func (c *Checker) RegisterHTTP(name, url string) {
	c.Register(name, func(ctx context.Context) error {
		return c.probeEndpoint(ctx, url)
	})
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until ctx is done.
func (c *Checker) Start(ctx context.Context) {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Last returns the most recent report.
func (c *Checker) Last() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.last
	r.Checks = maps.Clone(c.last.Checks)
	return r
}

// CheckAll runs every probe concurrently and returns the updated report.
func (c *Checker) CheckAll(ctx context.Context) Report {
	c.mu.Lock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	slices.Sort(names)
	probes := maps.Clone(c.probes)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			err := probe(pctx)
			cancel()

			if c.onMetrics != nil {
				c.onMetrics(name, err == nil)
			}
			c.update(name, err)
		}(name, probes[name])
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last.CheckedAt = time.Now().UTC()
	c.last.Status = StatusHealthy
	for _, s := range c.last.Checks {
		if s == StatusDegraded {
			c.last.Status = StatusDegraded
			break
		}
	}
	r := c.last
	r.Checks = maps.Clone(c.last.Checks)
	return r
}

func (c *Checker) update(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevCount := c.failCounts[name]
	if err == nil {
		c.failCounts[name] = 0
	} else {
		c.failCounts[name]++
	}
	count := c.failCounts[name]

	switch {
	case err == nil && prevCount >= c.cfg.FailThreshold:
		c.last.Checks[name] = StatusHealthy
		c.logger.Info("health: recovered", zap.String("dependency", name))
	case err == nil:
		c.last.Checks[name] = StatusHealthy
	case count == c.cfg.FailThreshold:
		c.last.Checks[name] = StatusDegraded
		c.logger.Warn("health: degraded",
			zap.String("dependency", name),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	default:
		c.logger.Debug("health: probe failed", zap.String("dependency", name), zap.Error(err))
	}
}

// probeEndpoint attempts HEAD then GET.
func (c *Checker) probeEndpoint(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return nil
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &StatusError{URL: endpoint, Code: resp.StatusCode}
	}
	return nil
}

// StatusError reports a 5xx answer from an HTTP probe.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return e.URL + ": " + http.StatusText(e.Code)
}
