package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := c.validateSplitter(); err != nil {
		errs = append(errs, err...)
	}
	if err := c.validateEmbedding(); err != nil {
		errs = append(errs, err...)
	}
	if err := c.validateVectorDB(); err != nil {
		errs = append(errs, err...)
	}
	if err := c.validateRAG(); err != nil {
		errs = append(errs, err...)
	}
	if err := c.validateIngest(); err != nil {
		errs = append(errs, err...)
	}
	if err := c.validateHistory(); err != nil {
		errs = append(errs, err...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateSplitter enforces the chunking invariants. An overlap that is not
// strictly smaller than the chunk size would make the window stride
// non-positive, so it must be rejected here rather than loop at runtime.
func (c *Config) validateSplitter() ValidationErrors {
	var errs ValidationErrors

	sp := c.RAG.Splitter
	if sp.ChunkSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.splitter.chunk_size",
			Message: fmt.Sprintf("chunk_size must be positive, got %d", sp.ChunkSize),
		})
	}
	if sp.ChunkOverlap < 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.splitter.chunk_overlap",
			Message: fmt.Sprintf("chunk_overlap must be non-negative, got %d", sp.ChunkOverlap),
		})
	}
	if sp.ChunkSize > 0 && sp.ChunkOverlap >= sp.ChunkSize {
		errs = append(errs, ValidationError{
			Field:   "rag.splitter",
			Message: fmt.Sprintf("chunk_overlap (%d) must be less than chunk_size (%d)", sp.ChunkOverlap, sp.ChunkSize),
		})
	}

	return errs
}

// validateEmbedding validates embedding configuration
func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors

	if c.Embedding.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: "embedding provider is required",
		})
	}

	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions),
		})
	}

	if c.Embedding.BatchSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.batch_size",
			Message: fmt.Sprintf("embedding batch_size must be non-negative, got %d", c.Embedding.BatchSize),
		})
	}

	return errs
}

// validateVectorDB validates vector database configuration
func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors

	if c.VectorDB.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: "vectordb provider is required",
		})
	}

	switch strings.ToLower(c.VectorDB.Provider) {
	case "milvus":
		if c.VectorDB.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.host",
				Message: "vectordb host is required for milvus provider",
			})
		}
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "collection name is required for milvus provider",
			})
		}
	}

	return errs
}

// validateRAG validates retrieval configuration
func (c *Config) validateRAG() ValidationErrors {
	var errs ValidationErrors

	if c.RAG.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_k",
			Message: fmt.Sprintf("rag.top_k must be positive, got %d", c.RAG.TopK),
		})
	}

	if c.RAG.TopK > 100 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_k",
			Message: fmt.Sprintf("rag.top_k %d is too large (max recommended: 100)", c.RAG.TopK),
		})
	}

	if c.RAG.Threshold < 0 || c.RAG.Threshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "rag.threshold",
			Message: fmt.Sprintf("rag.threshold must be in [0, 1], got %.2f", c.RAG.Threshold),
		})
	}

	return errs
}

// validateIngest validates ingestion source configuration
func (c *Config) validateIngest() ValidationErrors {
	var errs ValidationErrors

	for i, page := range c.Ingest.Pages {
		if page.URL == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ingest.pages[%d].url", i),
				Message: "page url is required",
			})
		}
		if !strings.HasPrefix(page.URL, "http://") && !strings.HasPrefix(page.URL, "https://") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ingest.pages[%d].url", i),
				Message: fmt.Sprintf("page url must be http(s), got %q", page.URL),
			})
		}
	}

	if c.Ingest.FetchTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "ingest.fetch_timeout_ms",
			Message: fmt.Sprintf("fetch_timeout_ms must be non-negative, got %d", c.Ingest.FetchTimeoutMs),
		})
	}

	return errs
}

// validateHistory validates history store configuration
func (c *Config) validateHistory() ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(c.History.Store) {
	case "", "inmemory":
	case "rest":
		if c.History.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "history.endpoint",
				Message: "history endpoint is required for rest store",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "history.store",
			Message: fmt.Sprintf("unknown history store %q (expected inmemory or rest)", c.History.Store),
		})
	}

	return errs
}
