package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	CORSOrigins []string
	// RateLimitRPS of zero disables per-IP rate limiting.
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter builds the HTTP router: middleware, /healthz, /metrics and
// the /api/v1 analysis routes. ctx bounds the rate limiter's cleanup loop.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Retry-After"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(securityHeaders)
	router.Use(PrometheusMiddleware())

	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS * 2
		}
		router.Use(RateLimiter(ctx, cfg.RateLimitRPS, burst))
	}
	router.Use(requestLogger(logger))

	router.GET("/healthz", h.Healthz)
	router.GET("/metrics", MetricsHandler())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	h.Register(router.Group("/api/v1"))
	return router
}
