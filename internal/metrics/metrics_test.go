package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", c.Desc())
	return 0
}

func TestObserveAPICall(t *testing.T) {
	before := value(t, apiCallsTotal.WithLabelValues("/test/path", "error"))
	ObserveAPICall("/test/path", 0, 10*time.Millisecond)
	ObserveAPICall("/test/path", 200, 10*time.Millisecond)

	if got := value(t, apiCallsTotal.WithLabelValues("/test/path", "error")); got != before+1 {
		t.Errorf("error calls = %v, want %v", got, before+1)
	}
	if got := value(t, apiCallsTotal.WithLabelValues("/test/path", "200")); got < 1 {
		t.Errorf("200 calls = %v, want >= 1", got)
	}
}

func TestRecordRun(t *testing.T) {
	RecordRun("unit", nil)
	RecordRun("unit", errors.New("boom"))
	RecordRun("unit", errors.New("boom"))

	if got := value(t, runsTotal.WithLabelValues("unit", "failure")); got != 2 {
		t.Errorf("failures = %v, want 2", got)
	}
	if got := value(t, runsTotal.WithLabelValues("unit", "success")); got != 1 {
		t.Errorf("successes = %v, want 1", got)
	}
}

func TestSetScore(t *testing.T) {
	SetScore("brand", "Acme", 710)
	SetScore("brand", "Acme", 720)
	if got := value(t, scoreGauge.WithLabelValues("brand", "Acme")); got != 720 {
		t.Errorf("score gauge = %v, want 720", got)
	}
}

func TestRecordDefaulted(t *testing.T) {
	RecordDefaulted([]string{"unit-a", "unit-a", "unit-b"})
	if got := value(t, defaultedTotal.WithLabelValues("unit-a")); got != 2 {
		t.Errorf("unit-a = %v, want 2", got)
	}
}

func TestRecordHealthCheck(t *testing.T) {
	RecordHealthCheck("unit-dep", true)
	RecordHealthCheck("unit-dep", false)
	RecordHealthCheck("unit-dep", false)
	if got := value(t, healthChecksTotal.WithLabelValues("unit-dep", "failure")); got != 2 {
		t.Errorf("failures = %v, want 2", got)
	}
}
