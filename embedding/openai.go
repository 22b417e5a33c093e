package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/config"
)

const (
	defaultBatchSize      = 10
	defaultBatchDelay     = time.Second
	defaultMaxInputTokens = 8000
	truncateEncoding      = "cl100k_base"
)

// OpenAIProvider embeds text through an OpenAI-compatible embeddings API.
// Bulk requests run in fixed-size batches: the texts of one batch are
// embedded concurrently, then the provider pauses before the next batch to
// stay under external rate limits.
type OpenAIProvider struct {
	client         openai.Client
	model          string
	batchSize      int
	batchDelay     time.Duration
	maxInputTokens int
	enc            *tiktoken.Tiktoken
}

func NewOpenAIProvider(cfg config.EmbeddingConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required (set embedding.api_key or OPENAI_API_KEY)")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := defaultBatchDelay
	if cfg.BatchDelayMs > 0 {
		batchDelay = time.Duration(cfg.BatchDelayMs) * time.Millisecond
	}
	maxTokens := cfg.MaxInputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxInputTokens
	}

	enc, err := tiktoken.GetEncoding(truncateEncoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer failed, err: %w", err)
	}

	return &OpenAIProvider{
		client:         openai.NewClient(opts...),
		model:          cfg.Model,
		batchSize:      batchSize,
		batchDelay:     batchDelay,
		maxInputTokens: maxTokens,
		enc:            enc,
	}, nil
}

// GetEmbedding embeds a single text. The input is truncated to the provider's
// maximum input length before submission so oversized payloads are not
// rejected by the service.
func (p *OpenAIProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(p.truncate(text))},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding failed, err: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// GetEmbeddings embeds texts in batches. Output order matches input order.
func (p *OpenAIProvider) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		errs := make([]error, end-start)
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vec, err := p.GetEmbedding(ctx, texts[i])
				if err != nil {
					errs[i-start] = fmt.Errorf("embed text %d failed, err: %w", i, err)
					return
				}
				out[i] = vec
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		if end < len(texts) {
			logger.Debugf("embedding: batch %d-%d done, pausing %v", start, end, p.batchDelay)
			time.Sleep(p.batchDelay)
		}
	}
	return out, nil
}

func (p *OpenAIProvider) truncate(text string) string {
	tokens := p.enc.Encode(text, nil, nil)
	if len(tokens) <= p.maxInputTokens {
		return text
	}
	return p.enc.Decode(tokens[:p.maxInputTokens])
}
