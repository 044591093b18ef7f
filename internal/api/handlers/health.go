package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"car-advisor/internal/api/middleware"
	"car-advisor/internal/logging"
	"car-advisor/internal/scraper/workers"
	"car-advisor/pkg/models"
)

// Version is reported by the health endpoints
var Version = "1.0.0"

var startTime = time.Now()

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{"request_id": middleware.RequestID(c)})

	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	})
}

// ReadinessHandler runs every dependency check; any failure makes the service not ready
func ReadinessHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		logger := logging.LogWithRequestID(middleware.RequestID(c))

		results := map[string]string{"api": "ok"}
		status, code := "ready", http.StatusOK
		for name, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				results[name] = err.Error()
				status, code = "not_ready", http.StatusServiceUnavailable
				logger.Warn("Readiness check failed", map[string]interface{}{"check": name, "error": err.Error()})
				continue
			}
			results[name] = "ok"
		}

		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    results,
		})
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
	})
}

// StatusHandler reports the configured platforms and scraping engine
func StatusHandler(platforms []string, engine string) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]string{
			"api":         "operational",
			"page_engine": engine,
		}
		for _, p := range platforms {
			checks["platform_"+p] = "enabled"
		}
		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "operational",
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// LimiterStatsHandler returns rate limiter and circuit breaker state per marketplace domain
func LimiterStatsHandler(limiter *workers.RateLimiter) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := middleware.RequestID(c)

		if domain := c.Param("domain"); domain != "" {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"domain":     domain,
				"stats":      limiter.GetDomainStats(domain),
				"request_id": requestID,
				"timestamp":  time.Now(),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"domains":    limiter.GetAllStats(),
			"request_id": requestID,
			"timestamp":  time.Now(),
		})
	}
}
