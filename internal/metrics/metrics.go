// Package metrics registers the Prometheus collectors shared by the CLI,
// the HTTP server and the API client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_api_calls_total",
		Help: "Upstream API calls by path and response status.",
	}, []string{"path", "status"})

	apiCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskposture_api_call_duration_seconds",
		Help:    "Upstream API call latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_rate_limited_total",
		Help: "Upstream 429 responses by operation.",
	}, []string{"operation"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_runs_total",
		Help: "Analysis runs by analysis name and outcome.",
	}, []string{"analysis", "result"})

	scoreGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riskposture_score",
		Help: "Latest final score by scope kind and scope.",
	}, []string{"kind", "scope"})

	defaultedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_signal_defaulted_total",
		Help: "Optional signals replaced by their neutral default, by indicator.",
	}, []string{"kri"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_requests_total",
		Help: "HTTP requests served by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskposture_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	historyAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskposture_history_entries_total",
		Help: "Score history entries appended.",
	})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_webhook_deliveries_total",
		Help: "Webhook delivery attempts by success status.",
	}, []string{"status"})

	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskposture_health_checks_total",
		Help: "Dependency health probes by dependency and result.",
	}, []string{"dependency", "result"})
)

// ObserveAPICall records one upstream call. Its signature matches
// client.Observer. A zero status means the call failed before a response.
func ObserveAPICall(path string, status int, elapsed time.Duration) {
	apiCallsTotal.WithLabelValues(path, statusLabel(status)).Inc()
	apiCallDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// RecordRateLimited records an upstream 429 seen by the retry loop.
func RecordRateLimited(operation string) {
	rateLimitedTotal.WithLabelValues(operation).Inc()
}

// RecordRun records the outcome of an analysis run.
func RecordRun(analysis string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	runsTotal.WithLabelValues(analysis, result).Inc()
}

// SetScore publishes the latest score of a scope.
func SetScore(kind, scope string, score int) {
	scoreGauge.WithLabelValues(kind, scope).Set(float64(score))
}

// RecordDefaulted counts optional signals that fell back to neutral.
func RecordDefaulted(kris []string) {
	for _, k := range kris {
		defaultedTotal.WithLabelValues(k).Inc()
	}
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordHistoryAppend records a score history append.
func RecordHistoryAppend() {
	historyAppendsTotal.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		webhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		webhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordHealthCheck records one dependency probe. Its signature matches
// health.MetricsRecordFunc.
func RecordHealthCheck(dependency string, success bool) {
	if success {
		healthChecksTotal.WithLabelValues(dependency, "success").Inc()
	} else {
		healthChecksTotal.WithLabelValues(dependency, "failure").Inc()
	}
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
