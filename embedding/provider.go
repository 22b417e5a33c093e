package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowbase/kb-assistant/config"
)

// Provider converts text into fixed-length embedding vectors.
//
// GetEmbeddings is order-preserving: output[i] is the embedding of input[i].
// A failure embedding any single text aborts the call and propagates the
// failure; partial results are never returned.
type Provider interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbeddingProvider creates an embedding provider from configuration.
func NewEmbeddingProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
