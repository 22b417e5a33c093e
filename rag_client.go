package rag

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/kb-assistant/cache"
	"github.com/knowbase/kb-assistant/common/httpx"
	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/embedding"
	"github.com/knowbase/kb-assistant/fetcher"
	"github.com/knowbase/kb-assistant/history"
	"github.com/knowbase/kb-assistant/llm"
	"github.com/knowbase/kb-assistant/metrics"
	"github.com/knowbase/kb-assistant/retrieval"
	"github.com/knowbase/kb-assistant/schema"
	"github.com/knowbase/kb-assistant/textsplitter"
	"github.com/knowbase/kb-assistant/vectordb"
)

// RAGClient ties fetching, chunking, embedding, storage, retrieval and
// answer generation together. All collaborators are injected so tests can
// swap any of them for fakes.
type RAGClient struct {
	config            *config.Config
	fetcher           *fetcher.Fetcher
	textSplitter      textsplitter.TextSplitter
	embeddingProvider embedding.Provider
	llmProvider       llm.Provider
	vectordbProvider  vectordb.VectorStoreProvider
	historyStore      history.Store
	answerCache       cache.Cache[schema.AnswerRecord]
	cacheTTL          time.Duration
}

// NewRAGClient creates a fully wired client from configuration.
func NewRAGClient(cfg *config.Config) (*RAGClient, error) {
	client := &RAGClient{config: cfg}

	textSplitter, err := textsplitter.NewTextSplitter(&cfg.RAG.Splitter)
	if err != nil {
		return nil, fmt.Errorf("create text splitter failed, err: %w", err)
	}
	client.textSplitter = textSplitter

	embeddingProvider, err := embedding.NewEmbeddingProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider failed, err: %w", err)
	}
	client.embeddingProvider = embeddingProvider

	llmProvider, err := llm.NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider failed, err: %w", err)
	}
	client.llmProvider = llmProvider

	vectordbProvider, err := vectordb.NewVectorDBProvider(cfg.VectorDB, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("create vector store provider failed, err: %w", err)
	}
	client.vectordbProvider = vectordbProvider

	httpClient := httpx.NewFromConfig(cfg.HTTP)
	client.fetcher = fetcher.New(cfg.Ingest, httpClient)

	historyStore, err := history.NewHistoryStore(cfg.History, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create history store failed, err: %w", err)
	}
	client.historyStore = historyStore

	if cfg.Cache.Enable {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		client.answerCache = cache.NewLRU[schema.AnswerRecord](cfg.Cache.MaxEntries, ttl)
		client.cacheTTL = ttl
	}

	return client, nil
}

// Ingest runs a full ingestion pass over the configured pages. Pages that
// fail to fetch or split are recorded in the report and skipped; only a
// write-phase failure aborts the run.
func (r *RAGClient) Ingest(ctx context.Context) (schema.IngestReport, error) {
	start := time.Now()
	report := schema.IngestReport{
		RunID:          uuid.NewString(),
		StartedAt:      start.UTC(),
		TotalAttempted: len(r.config.Ingest.Pages),
		Failed:         []schema.PageError{},
	}

	var docs []schema.Document
	for _, page := range r.config.Ingest.Pages {
		pageDocs, err := r.preparePage(ctx, page)
		if err != nil {
			logger.Warnf("ingest: page %s failed, err: %v", page.URL, err)
			metrics.ObserveIngestPage(false)
			report.Failed = append(report.Failed, schema.PageError{
				URL:   page.URL,
				Label: page.Label,
				Error: err.Error(),
			})
			continue
		}
		metrics.ObserveIngestPage(true)
		report.Succeeded++
		report.TotalChunks += len(pageDocs)
		docs = append(docs, pageDocs...)
	}

	if len(docs) > 0 {
		// TotalVectors counts what the run produced; Upsert says what the
		// store did with it.
		report.TotalVectors = len(docs)
		stats, err := r.vectordbProvider.AddDocs(ctx, docs)
		if err != nil {
			return report, fmt.Errorf("write vectors failed, err: %w", err)
		}
		report.Upsert = stats
	}

	report.Store = r.vectordbProvider.Stats(ctx)
	metrics.ObserveIngestRun(report.Upsert.Upserted, report.Upsert.Skipped, start)
	logger.Infof("ingest: run %s done, pages %d/%d, chunks %d, upserted %d, skipped %d",
		report.RunID, report.Succeeded, report.TotalAttempted, report.TotalChunks,
		report.Upsert.Upserted, report.Upsert.Skipped)
	return report, nil
}

// preparePage fetches, chunks and embeds one page. Chunk IDs derive from the
// page content hash, so unchanged pages re-ingest to the same IDs.
func (r *RAGClient) preparePage(ctx context.Context, page config.PageSource) ([]schema.Document, error) {
	content, err := r.fetcher.Fetch(ctx, page)
	if err != nil {
		return nil, err
	}

	chunks, err := r.textSplitter.SplitText(content.Content)
	if err != nil {
		return nil, fmt.Errorf("split page failed, err: %w", err)
	}

	vectors, err := r.embeddingProvider.GetEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks failed, err: %w", err)
	}

	docs := make([]schema.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = schema.Document{
			ID:          fmt.Sprintf("%s_chunk_%d", content.ContentHash, i),
			Content:     chunk,
			Vector:      vectors[i],
			OriginURL:   content.URL,
			Label:       content.Label,
			ContentHash: content.ContentHash,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			ScrapedAt:   content.ScrapedAt,
			WordCount:   len(strings.Fields(chunk)),
		}
	}
	return docs, nil
}

// Ask answers a question against the knowledge base. When retrieval yields
// nothing above the threshold, the answer comes from the fallback path and
// is marked IsSimpleResponse with no sources.
func (r *RAGClient) Ask(ctx context.Context, question string) (schema.AnswerRecord, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return schema.AnswerRecord{}, fmt.Errorf("question must not be empty")
	}

	cacheKey := r.buildCacheKey(question)
	if r.answerCache != nil {
		if record, ok := r.answerCache.Get(cacheKey); ok {
			metrics.ObserveAsk("cached", start)
			return record, nil
		}
	}

	vector, err := r.embeddingProvider.GetEmbedding(ctx, question)
	if err != nil {
		metrics.ObserveAsk("error", start)
		return schema.AnswerRecord{}, fmt.Errorf("embed question failed, err: %w", err)
	}

	matches, err := r.vectordbProvider.SearchDocs(ctx, vector, schema.SearchOptions{
		TopK:      r.config.RAG.TopK,
		Threshold: r.config.RAG.Threshold,
	})
	if err != nil {
		metrics.ObserveAsk("error", start)
		return schema.AnswerRecord{}, fmt.Errorf("search knowledge base failed, err: %w", err)
	}

	assembled := retrieval.Assemble(matches, r.config.RAG.Threshold)
	metrics.ObserveRetrieval(assembled.ChunksUsed, assembled.Confidence)

	grounded := assembled.Usable
	var answer string
	outcome := "fallback"
	if grounded {
		system, user := llm.GroundedPrompt(question, assembled.Context)
		answer, err = r.llmProvider.Complete(ctx, llm.CompletionRequest{
			System:      system,
			User:        user,
			Temperature: r.config.LLM.Temperature,
			MaxTokens:   r.config.LLM.MaxTokens,
		})
		if err != nil {
			logger.Warnf("ask: grounded answer failed, falling back, err: %v", err)
			grounded = false
		} else {
			outcome = "grounded"
		}
	}
	if !grounded {
		system, user := llm.FallbackPrompt(question)
		answer, err = r.llmProvider.Complete(ctx, llm.CompletionRequest{
			System:      system,
			User:        user,
			Temperature: r.config.LLM.FallbackTemperature,
			MaxTokens:   r.config.LLM.FallbackMaxTokens,
		})
		if err != nil {
			metrics.ObserveAsk("error", start)
			return schema.AnswerRecord{}, fmt.Errorf("generate answer failed, err: %w", err)
		}
	}

	record := schema.AnswerRecord{
		ID:               uuid.NewString(),
		Question:         question,
		Answer:           answer,
		Sources:          []schema.Source{},
		IsSimpleResponse: !grounded,
		Timestamp:        time.Now().UTC(),
	}
	if grounded {
		record.Sources = assembled.Sources
		record.Confidence = assembled.Confidence
		record.ChunksUsed = assembled.ChunksUsed
	}

	// History is best effort; a broken backend must not fail the answer.
	if err := r.historyStore.Append(ctx, record); err != nil {
		logger.Warnf("ask: append history failed, err: %v", err)
	}

	if r.answerCache != nil {
		r.answerCache.Set(cacheKey, record, r.cacheTTL)
	}

	metrics.ObserveAsk(outcome, start)
	return record, nil
}

// SearchChunks runs a raw similarity query without answer generation.
func (r *RAGClient) SearchChunks(ctx context.Context, query string, topK int, threshold float64) ([]schema.SearchResult, error) {
	vector, err := r.embeddingProvider.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed, err: %w", err)
	}
	if topK <= 0 {
		topK = r.config.RAG.TopK
	}
	matches, err := r.vectordbProvider.SearchDocs(ctx, vector, schema.SearchOptions{TopK: topK, Threshold: threshold})
	if err != nil {
		return nil, fmt.Errorf("search chunks failed, err: %w", err)
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Score > threshold {
			out = append(out, m)
		}
	}
	return out, nil
}

// History returns recent answer records, newest first.
func (r *RAGClient) History(ctx context.Context, limit int) ([]schema.AnswerRecord, error) {
	if limit <= 0 {
		limit = r.config.History.MaxRecords
	}
	records, err := r.historyStore.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history failed, err: %w", err)
	}
	return records, nil
}

// ClearHistory drops all stored answer records.
func (r *RAGClient) ClearHistory(ctx context.Context) error {
	if err := r.historyStore.Clear(ctx); err != nil {
		return fmt.Errorf("clear history failed, err: %w", err)
	}
	return nil
}

// Stats reports a best-effort snapshot of the vector store.
func (r *RAGClient) Stats(ctx context.Context) schema.StoreStats {
	return r.vectordbProvider.Stats(ctx)
}

// Close releases the vector store connection.
func (r *RAGClient) Close() error {
	return r.vectordbProvider.Close()
}

func (r *RAGClient) buildCacheKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	base := fmt.Sprintf("%s|%s|%d|%.2f", normalized, r.config.VectorDB.Collection,
		r.config.RAG.TopK, r.config.RAG.Threshold)
	hash := sha1.Sum([]byte(base))
	return hex.EncodeToString(hash[:])
}
