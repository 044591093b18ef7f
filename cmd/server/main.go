package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"car-advisor/internal/api/handlers"
	"car-advisor/internal/api/routes"
	"car-advisor/internal/config"
	"car-advisor/internal/credits"
	"car-advisor/internal/llm"
	"car-advisor/internal/logging"
	"car-advisor/internal/pipeline"
	"car-advisor/internal/scraper"
	"car-advisor/pkg/utils"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting Car Advisor", map[string]interface{}{"version": handlers.Version})

	// Initialize LLM manager
	llmManager := llm.NewManager(cfg)
	if err := llmManager.Start(); err != nil {
		logger.Fatal("Failed to start LLM manager", map[string]interface{}{"error": err.Error()})
	}

	factory, err := scraper.NewFactory(cfg, nil)
	if err != nil {
		logger.Fatal("Failed to create marketplace clients", map[string]interface{}{"error": err.Error()})
	}
	defer factory.Limiter().Stop()

	pipe := pipeline.New(cfg, llmManager, factory)
	deps := routes.Dependencies{
		Pipeline:  pipe,
		Meta:      pipeline.NewMetaSearch(pipe, llmManager, cfg.LLM.Model),
		Limiter:   factory.Limiter(),
		Platforms: factory.GetSupportedPlatforms(),
		Engine:    factory.PageEngine(),
		Checks: map[string]handlers.HealthCheck{
			"llm": llmManager.CheckHealth,
		},
	}

	var history *utils.RedisClient
	if cfg.Redis.Enabled {
		history = utils.NewRedisClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
		if err := history.Ping(ctx); err != nil {
			logger.Warn("Redis unavailable, search history disabled", map[string]interface{}{"error": err.Error()})
			_ = history.Close()
			history = nil
		}
		cancel()
	}
	if history != nil {
		defer history.Close()
		deps.History = history
		deps.Checks["redis"] = history.IsHealthy
	}

	store, err := credits.Open(cfg)
	switch {
	case err == nil:
		defer store.Close()
		deps.Credits = store
		deps.Checks["credits"] = store.Ping
	case cfg.Credits.Enabled:
		logger.Fatal("Failed to open credits store", map[string]interface{}{"error": err.Error()})
	default:
		logger.Info("Credits disabled")
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout
	// pipeline responses are written after the pipeline deadline at the latest
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	if e.Server.WriteTimeout < cfg.Server.PipelineTimeout+10*time.Second {
		e.Server.WriteTimeout = cfg.Server.PipelineTimeout + 10*time.Second
	}

	routes.SetupRoutes(e, cfg, deps)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
		}

		if err := llmManager.Stop(); err != nil {
			logger.Error("Error stopping LLM manager", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{
		"address":   address,
		"platforms": deps.Platforms,
		"engine":    deps.Engine,
	})

	if err := e.Start(address); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
	}
}
