package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"car-advisor/internal/api/handlers"
	"car-advisor/internal/api/middleware"
	"car-advisor/internal/config"
	"car-advisor/internal/scraper/workers"
	"car-advisor/pkg/models"
)

// Dependencies are the services the routes are wired to. History and Credits may be
// nil when Redis or the credits database are not configured.
type Dependencies struct {
	Pipeline  handlers.PipelineService
	Meta      handlers.MetaSearcher
	History   handlers.HistoryStore
	Credits   middleware.CreditStore
	Limiter   *workers.RateLimiter
	Platforms []string
	Engine    string
	Checks    map[string]handlers.HealthCheck
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, deps Dependencies) {
	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig(cfg.Server.AllowedOrigins))
	e.Use(middleware.RequestValidation())
	// stage and pipeline endpoints scrape and call the model; everything else is quick
	e.Use(middleware.SelectiveTimeoutConfig(cfg.Server.ReadTimeout, cfg.Server.PipelineTimeout, "/api/v1"))
	e.Use(middleware.Auth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(deps.Checks))
		health.GET("/live", handlers.LivenessHandler)
		health.GET("/limiters", handlers.LimiterStatsHandler(deps.Limiter))
		health.GET("/limiters/:domain", handlers.LimiterStatsHandler(deps.Limiter))
	}

	// Status route
	e.GET("/status", handlers.StatusHandler(deps.Platforms, deps.Engine))

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		// Individual stages
		v1.POST("/interpret", handlers.InterpretHandler(deps.Pipeline))
		v1.POST("/collect", handlers.CollectHandler(deps.Pipeline))
		v1.POST("/details", handlers.DetailsHandler(deps.Pipeline))
		v1.POST("/rank", handlers.RankHandler(deps.Pipeline))
		v1.POST("/filter", handlers.FilterHandler(deps.Pipeline))
		v1.POST("/inspect", handlers.InspectHandler(deps.Pipeline))

		// Full pipelines, charged per run
		charge := middleware.ChargeCredits(deps.Credits, cfg.Credits.Cost)
		v1.POST("/analyze", handlers.AnalyzeHandler(deps.Pipeline, deps.History), charge)
		v1.POST("/analyze/bazos", handlers.AnalyzePlatformHandler(deps.Pipeline, deps.History, models.SourceBazos), charge)
		v1.POST("/analyze/tipcars", handlers.AnalyzePlatformHandler(deps.Pipeline, deps.History, models.SourceTipCars), charge)
		v1.POST("/meta-search", handlers.MetaSearchHandler(deps.Meta, deps.History), charge)
		v1.POST("/ads/analyze", handlers.AdAnalyzeHandler(deps.Pipeline), charge)
		v1.POST("/ads/appraise", handlers.AdAppraiseHandler(deps.Pipeline), charge)

		// Profile
		me := v1.Group("/me", middleware.RequireUser())
		{
			me.GET("/credits", handlers.CreditsHandler(deps.Credits))
			me.GET("/history", handlers.HistoryHandler(deps.History))
		}
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Car Advisor",
			"version": handlers.Version,
			"status":  "running",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
}
