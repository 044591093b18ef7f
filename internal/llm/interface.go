package llm

import (
	"context"

	"car-advisor/internal/llm/types"
)

type CompletionRequest = types.CompletionRequest

// Completer produces the raw text answer for a prompt
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// LLMProvider defines the interface for LLM providers
type LLMProvider interface {
	Completer

	// IsHealthy checks if the LLM provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the LLM provider
	GetProviderName() string
}
