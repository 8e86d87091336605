// Package api serves the registered analyses over HTTP.
package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/health"
	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/internal/report"
	"github.com/jmerrifield20/riskposture/internal/usecase"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

const defaultHistoryLimit = 20

// Handler exposes analyses and score history over HTTP.
type Handler struct {
	runner *report.Runner
	health *health.Checker
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a Handler. checker may be nil, in which case
// /healthz always reports ok.
func NewHandler(runner *report.Runner, checker *health.Checker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, health: checker, now: time.Now, logger: logger}
}

// Register mounts the analysis routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/analyses", h.ListAnalyses)
	rg.GET("/analyses/:name", h.RunAnalysis)

	for _, name := range []string{"score", "brands", "severity", "categories"} {
		rg.GET("/"+name, h.run(name))
	}

	hist := rg.Group("/history")
	{
		hist.GET("", h.History)
		hist.GET("/verify", h.VerifyHistory)
	}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	rep := h.health.Last()
	status := http.StatusOK
	if rep.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, rep)
}

// ListAnalyses handles GET /analyses.
func (h *Handler) ListAnalyses(c *gin.Context) {
	all := usecase.All()
	out := make([]gin.H, len(all))
	for i, a := range all {
		out[i] = gin.H{"name": a.Name, "description": a.Description}
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": h.runner.CustomerID(), "analyses": out})
}

// RunAnalysis handles GET /analyses/:name.
func (h *Handler) RunAnalysis(c *gin.Context) {
	h.run(c.Param("name"))(c)
}

func (h *Handler) run(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := usecase.Lookup(name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		params, err := h.parseParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		out, err := a.Run(c.Request.Context(), h.runner, params)
		metrics.RecordRun(a.Name, err)
		if err != nil {
			h.fail(c, a.Name, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// History handles GET /history?kind=&scope=&limit=.
func (h *Handler) History(c *gin.Context) {
	kind := c.DefaultQuery("kind", kri.ScopeTenant)
	if kind != kri.ScopeTenant && kind != kri.ScopeBrand {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be tenant or brand"})
		return
	}
	scope := c.Query("scope")
	if kind == kri.ScopeBrand && scope == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "brand history needs a scope"})
		return
	}
	limit, err := intQuery(c, "limit", defaultHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.runner.History(c.Request.Context(), kind, scope, limit)
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "scope": scope, "entries": entries})
}

// VerifyHistory handles GET /history/verify. A broken chain is reported
// in the body, not the status code.
func (h *Handler) VerifyHistory(c *gin.Context) {
	err := h.runner.VerifyHistory(c.Request.Context())
	if errors.Is(err, report.ErrHistoryDisabled) {
		h.fail(c, "history verify", err)
		return
	}
	if err != nil {
		h.logger.Warn("history integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// parseParams reads from/to (YYYY-MM-DD) or days, limit, origin and status.
func (h *Handler) parseParams(c *gin.Context) (usecase.Params, error) {
	var p usecase.Params

	days, err := intQuery(c, "days", 0)
	if err != nil {
		return p, err
	}
	period, err := usecase.ResolvePeriod(c.Query("from"), c.Query("to"), days, h.now())
	if err != nil {
		return p, err
	}
	p.Period = period

	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return p, err
	}
	p.Limit = limit
	p.Origin = c.Query("origin")
	p.Status = c.Query("status")
	return p, nil
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

// fail maps err onto an HTTP status and writes it.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		if d, ok := client.RetryAfter(err); ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("analysis failed", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Warn("analysis rejected", zap.String("op", op), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		apiErr   *client.APIError
		netErr   *client.NetworkError
		parseErr *client.ParseError
	)
	switch {
	case errors.Is(err, usecase.ErrOriginRequired), errors.Is(err, report.ErrUnknownOrigin):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case client.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.As(err, &apiErr), errors.As(err, &netErr), errors.As(err, &parseErr),
		errors.Is(err, client.ErrPageLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
