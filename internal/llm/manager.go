package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
)

// Manager manages LLM providers and their lifecycle
type Manager struct {
	config   *config.Config
	factory  *LLMFactory
	provider LLMProvider
	logger   logging.Logger
	mu       sync.RWMutex
	healthy  bool
}

// NewManager creates a new LLM manager instance
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:  cfg,
		factory: NewLLMFactory(cfg),
		logger:  logging.GetGlobalLogger().WithField("component", "llm"),
	}
}

// NewManagerWithProvider wraps an existing provider, skipping the factory
func NewManagerWithProvider(cfg *config.Config, provider LLMProvider) *Manager {
	m := NewManager(cfg)
	m.provider = provider
	m.healthy = true
	return m
}

// Start initializes the LLM manager and creates the provider
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting LLM manager", map[string]interface{}{"provider": m.config.LLM.Provider})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	m.provider = provider

	ctx, cancel := context.WithTimeout(context.Background(), m.config.LLM.Timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		// the server still starts; stage endpoints report the provider error per request
		m.logger.Warn("LLM provider health check failed", map[string]interface{}{"error": err.Error()})
		m.healthy = false
	} else {
		m.healthy = true
		m.logger.Info("LLM manager started successfully", map[string]interface{}{"provider": m.provider.GetProviderName()})
	}

	return nil
}

// Stop shuts down the LLM manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping LLM manager")
	m.provider = nil
	m.healthy = false
	return nil
}

// Complete forwards the prompt to the provider and records the outcome as provider health
func (m *Manager) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return "", fmt.Errorf("LLM manager not started or provider not available")
	}

	start := time.Now()
	text, err := provider.Complete(ctx, req)

	m.mu.Lock()
	m.healthy = err == nil || ctx.Err() != nil
	m.mu.Unlock()

	fields := map[string]interface{}{
		"stage":       req.Stage,
		"duration_ms": time.Since(start).Milliseconds(),
		"prompt_len":  len(req.Prompt),
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.Error("LLM completion failed", fields)
		return "", err
	}
	fields["response_len"] = len(text)
	m.logger.Debug("LLM completion finished", fields)
	return text, nil
}

// IsHealthy checks if the LLM manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current LLM provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the LLM provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
