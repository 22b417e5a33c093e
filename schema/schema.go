package schema

import "time"

// PageContent is the cleaned result of fetching a single source page.
// It is produced per ingestion pass and never persisted as-is.
type PageContent struct {
	URL         string    `json:"url"`
	Label       string    `json:"label"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	ScrapedAt   time.Time `json:"scraped_at"`
	WordCount   int       `json:"word_count"`
}

// Document is one embeddable chunk together with its provenance metadata.
// The ID is derived from the page content hash and the chunk index, so
// re-ingesting unchanged content reproduces identical IDs.
type Document struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Vector      []float32 `json:"vector,omitempty"`
	OriginURL   string    `json:"origin_url"`
	Label       string    `json:"label"`
	ContentHash string    `json:"content_hash"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	ScrapedAt   time.Time `json:"scraped_at"`
	WordCount   int       `json:"word_count"`
}

// SearchResult is a single similarity match returned by the vector store.
// Score is the store's similarity in [0, 1]; raw vector values are not
// carried back to keep payloads minimal.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// SearchOptions tunes a top-K similarity query.
type SearchOptions struct {
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

// UpsertStats reports the outcome of a deduplicating bulk write.
type UpsertStats struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
	// DedupCheckFailures counts existence checks that errored and were
	// treated as "assume not a duplicate".
	DedupCheckFailures int `json:"dedup_check_failures,omitempty"`
}

// StoreStats is a best-effort snapshot of the vector store.
type StoreStats struct {
	TotalVectors int64 `json:"total_vectors"`
	// Degraded is true when the stats call failed and TotalVectors is unknown.
	Degraded bool `json:"degraded,omitempty"`
}

// Source is one cited origin of an answer.
type Source struct {
	URL   string  `json:"url"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ContextResult is the assembled, citation-labeled context for a question.
// Usable=false is the first-class "not enough information" outcome, not an
// error.
type ContextResult struct {
	Context    string   `json:"context"`
	Sources    []Source `json:"sources"`
	Usable     bool     `json:"usable"`
	Confidence float64  `json:"confidence"`
	ChunksUsed int      `json:"chunks_used"`
}

// AnswerRecord is the immutable record of one answered question.
type AnswerRecord struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	Sources          []Source  `json:"sources"`
	Confidence       float64   `json:"confidence"`
	ChunksUsed       int       `json:"chunks_used"`
	IsSimpleResponse bool      `json:"is_simple_response"`
	Timestamp        time.Time `json:"timestamp"`
}

// PageError records a single page that failed during ingestion.
type PageError struct {
	URL   string `json:"url"`
	Label string `json:"label"`
	Error string `json:"error"`
}

// IngestReport aggregates one ingestion run. Per-page failures are recorded,
// never raised; the run only errors when the write phase itself is
// unreachable.
type IngestReport struct {
	RunID          string      `json:"run_id"`
	StartedAt      time.Time   `json:"started_at"`
	TotalAttempted int         `json:"total_attempted"`
	Succeeded      int         `json:"succeeded"`
	Failed         []PageError `json:"failed"`
	TotalChunks    int         `json:"total_chunks"`
	TotalVectors   int         `json:"total_vectors"`
	Upsert         UpsertStats `json:"upsert"`
	Store          StoreStats  `json:"store"`
}
