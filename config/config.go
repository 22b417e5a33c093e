package config

// Config is the root configuration for the knowledge base assistant.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	RAG       RAGConfig       `json:"rag" yaml:"rag"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	VectorDB  VectorDBConfig  `json:"vectordb" yaml:"vectordb"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	Cache     CacheConfig     `json:"cache,omitempty" yaml:"cache,omitempty"`
	// HTTP holds global defaults for outbound HTTP calls (page fetch,
	// history REST backend).
	HTTP *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

// IngestConfig lists the source pages and fetch behavior for ingestion runs.
type IngestConfig struct {
	Pages []PageSource `json:"pages" yaml:"pages"`
	// FetchTimeoutMs bounds a single page fetch. Default 30000.
	FetchTimeoutMs int    `json:"fetch_timeout_ms,omitempty" yaml:"fetch_timeout_ms,omitempty"`
	UserAgent      string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// PageSource identifies one page to fetch and index.
type PageSource struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label" yaml:"label"`
}

// RAGConfig contains retrieval configuration.
type RAGConfig struct {
	Splitter SplitterConfig `json:"splitter" yaml:"splitter"`
	// Threshold filters retrieval matches; only scores strictly above it are
	// used for context assembly. Default 0.7.
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	TopK      int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// SplitterConfig defines document splitter configuration
type SplitterConfig struct {
	Provider     string `json:"provider" yaml:"provider"` // Available options: character, token
	ChunkSize    int    `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" yaml:"chunk_overlap,omitempty"`
}

// LLMConfig defines configuration for the completion model.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey   string `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model    string `json:"model" yaml:"model"`
	// Temperature and MaxTokens apply to the grounded answer path.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// FallbackTemperature and FallbackMaxTokens apply to the context-free
	// fallback path.
	FallbackTemperature float64 `json:"fallback_temperature,omitempty" yaml:"fallback_temperature,omitempty"`
	FallbackMaxTokens   int     `json:"fallback_max_tokens,omitempty" yaml:"fallback_max_tokens,omitempty"`
}

// EmbeddingConfig defines configuration for the embedding model.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimension,omitempty"`
	// BatchSize caps how many texts are embedded concurrently. Default 10.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// BatchDelayMs is the pause between batches to respect rate limits.
	// Default 1000.
	BatchDelayMs int `json:"batch_delay_ms,omitempty" yaml:"batch_delay_ms,omitempty"`
	// MaxInputTokens truncates each text before submission. Default 8000.
	MaxInputTokens int `json:"max_input_tokens,omitempty" yaml:"max_input_tokens,omitempty"`
}

// VectorDBConfig defines configuration for the vector store.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: milvus, memory
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// HistoryConfig controls answer record persistence.
// Store: "inmemory" (default) or "rest".
type HistoryConfig struct {
	Store      string `json:"store,omitempty" yaml:"store,omitempty"`
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	MaxRecords int    `json:"max_records,omitempty" yaml:"max_records,omitempty"`
}

// CacheConfig controls caching of answered questions.
type CacheConfig struct {
	Enable     bool `json:"enable,omitempty" yaml:"enable,omitempty"`
	MaxEntries int  `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	TTLSeconds int  `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// HTTPClientConfig defines common options for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// Default returns a configuration with all tunables at their canonical
// values. Credentials are left empty and must come from the config file or
// environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3001},
		Ingest: IngestConfig{
			FetchTimeoutMs: 30000,
		},
		RAG: RAGConfig{
			Splitter: SplitterConfig{
				Provider:     "character",
				ChunkSize:    1000,
				ChunkOverlap: 100,
			},
			Threshold: 0.7,
			TopK:      5,
		},
		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "gpt-4o-mini",
			Temperature:         0.3,
			MaxTokens:           1000,
			FallbackTemperature: 0.7,
			FallbackMaxTokens:   500,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-ada-002",
			Dimensions:     1536,
			BatchSize:      10,
			BatchDelayMs:   1000,
			MaxInputTokens: 8000,
		},
		VectorDB: VectorDBConfig{
			Provider:   "milvus",
			Collection: "knowledge_base",
		},
		History: HistoryConfig{
			Store:      "inmemory",
			MaxRecords: 50,
		},
		Cache: CacheConfig{
			Enable:     false,
			MaxEntries: 500,
			TTLSeconds: 120,
		},
	}
}
