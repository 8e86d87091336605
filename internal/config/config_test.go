package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/threat"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Defaults ────────────────────────────────────────────────────────────

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load(New(writeConfig(t, "")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != client.DefaultBaseURL {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.PageSize != client.MaxPageSize || cfg.API.MaxPages != 10_000 {
		t.Errorf("paging = %d/%d", cfg.API.PageSize, cfg.API.MaxPages)
	}
	if cfg.API.Timezone != "-03:00" {
		t.Errorf("timezone = %q", cfg.API.Timezone)
	}
	if cfg.Severity != threat.StrategyHeuristic {
		t.Errorf("severity = %q", cfg.Severity)
	}
	if cfg.History.Driver != DriverMemory || cfg.Cache.Driver != DriverNone {
		t.Errorf("drivers = %q/%q", cfg.History.Driver, cfg.Cache.Driver)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialInterval != 2*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}

	eng, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	def := kri.DefaultConfig()
	if eng.Tenant != def.Tenant || eng.Brand != def.Brand {
		t.Errorf("scopes differ from engine defaults:\n got %+v %+v\nwant %+v %+v", eng.Tenant, eng.Brand, def.Tenant, def.Brand)
	}
	if eng.DateField != client.DateConfirmed || eng.Workers != def.Workers {
		t.Errorf("engine = %+v", eng)
	}
}

// ── File and environment ────────────────────────────────────────────────

func TestLoad_fileOverrides(t *testing.T) {
	path := writeConfig(t, `
customer_id: ACME
api:
  page_size: 50
  timezone: "+00:00"
brand:
  variant: five-factor
  median_baseline: 80
  stealer_source: exposure
severity:
  strategy: table
categories:
  unknown_policy: unknown
webhooks:
  score_drop_threshold: 100
  subscriptions:
    - url: https://hooks.example.com/a
      secret: s3cret
      events: [score.dropped]
`)
	cfg, err := Load(New(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CustomerID != "ACME" || cfg.API.PageSize != 50 || cfg.API.Timezone != "+00:00" {
		t.Errorf("unexpected api/customer: %+v %q", cfg.API, cfg.CustomerID)
	}
	if cfg.Severity != threat.StrategyTable || cfg.Categories != string(threat.UnknownBucket) {
		t.Errorf("threat settings = %q/%q", cfg.Severity, cfg.Categories)
	}
	subs := cfg.Webhooks.Subscriptions
	if len(subs) != 1 || subs[0].URL != "https://hooks.example.com/a" || subs[0].Secret != "s3cret" {
		t.Fatalf("subscriptions = %+v", subs)
	}
	if !subs[0].Wants("score.dropped") || subs[0].Wants("score.grade_changed") {
		t.Errorf("event filter not loaded: %+v", subs[0].Events)
	}
	if cfg.Webhooks.ScoreDropThreshold != 100 {
		t.Errorf("threshold = %d", cfg.Webhooks.ScoreDropThreshold)
	}

	eng, err := cfg.EngineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if eng.Brand.Variant != kri.FiveFactor || eng.Brand.MedianBaseline != 80 || eng.Brand.StealerSource != kri.StealerFromExposure {
		t.Errorf("brand scope = %+v", eng.Brand)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("RISKCTL_CUSTOMER_ID", "GLOBEX")
	t.Setenv("RISKCTL_API_TOKEN", "tok")
	t.Setenv("RISKCTL_RETRY_MAX_RETRIES", "0")
	t.Setenv("RISKCTL_TENANT_COMPLAINTS", "false")

	cfg, err := Load(New(writeConfig(t, "api:\n  token: from-file\n")))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CustomerID != "GLOBEX" || cfg.API.Token != "tok" {
		t.Errorf("env not applied: %q %q", cfg.CustomerID, cfg.API.Token)
	}
	if cfg.RetryPolicy().MaxRetries != 0 {
		t.Errorf("retry = %+v", cfg.RetryPolicy())
	}
	if cfg.Tenant.Complaints {
		t.Error("tenant complaints should be disabled by env")
	}
}

func TestLoad_missingFileIsError(t *testing.T) {
	if _, err := Load(New(filepath.Join(t.TempDir(), "absent.yaml"))); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

// ── Validation ──────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	base, err := Load(New(writeConfig(t, "")))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size", func(c *Config) { c.API.PageSize = 500 }, "api.page_size"},
		{"variant", func(c *Config) { c.Tenant.Variant = "six-factor" }, "tenant.variant"},
		{"stealer source", func(c *Config) { c.Brand.StealerSource = "darkweb" }, "brand.stealer_source"},
		{"date field", func(c *Config) { c.Scoring.DateField = "closed.date" }, "scoring.date_field"},
		{"severity", func(c *Config) { c.Severity = "cvss" }, "severity.strategy"},
		{"policy", func(c *Config) { c.Categories = "drop" }, "categories.unknown_policy"},
		{"history", func(c *Config) { c.History.Driver = "sqlite" }, "history.driver"},
		{"cache", func(c *Config) { c.Cache.Driver = "memcached" }, "cache.driver"},
		{"retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg, err := Load(New(writeConfig(t, "api:\n  token: abc\n  rate_limit_rps: 2\ncache:\n  driver: memory\n")))
	if err != nil {
		t.Fatal(err)
	}
	// timeout, page size, max pages, timezone, token, rate limit, cache
	if got := len(cfg.ClientOptions()); got != 7 {
		t.Errorf("len(ClientOptions) = %d, want 7", got)
	}
	if _, err := client.New(cfg.API.BaseURL, cfg.ClientOptions()...); err != nil {
		t.Errorf("client.New: %v", err)
	}
}
