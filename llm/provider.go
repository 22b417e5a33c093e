package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowbase/kb-assistant/config"
)

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Provider generates chat completions.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NewLLMProvider creates a completion provider from configuration.
func NewLLMProvider(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
