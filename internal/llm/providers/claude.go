package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"car-advisor/internal/config"
	"car-advisor/internal/llm/types"
)

// ClaudeProvider implements the LLM provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client anthropic.Client
	config *config.Config
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config, opts ...option.RequestOption) *ClaudeProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}, opts...)
	return &ClaudeProvider{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}
}

// Complete sends a single user message and returns the concatenated text blocks
func (cp *ClaudeProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	if cp.config.LLM.APIKey == "" {
		return "", fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	model := req.Model
	if model == "" {
		model = cp.config.LLM.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cp.config.LLM.MaxTokens
	}

	if cp.config.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cp.config.LLM.Timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: req.Prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	response, err := cp.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	var sb strings.Builder
	for _, content := range response.Content {
		if content.Type != "text" {
			continue
		}
		sb.WriteString(content.AsText().Text)
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("no text content in Claude response")
	}
	return sb.String(), nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.config.LLM.Model),
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the LLM provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
