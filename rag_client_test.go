package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/kb-assistant/cache"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/fetcher"
	"github.com/knowbase/kb-assistant/history"
	"github.com/knowbase/kb-assistant/llm"
	"github.com/knowbase/kb-assistant/schema"
	"github.com/knowbase/kb-assistant/textsplitter"
	"github.com/knowbase/kb-assistant/vectordb"
)

// fakeEmbedder maps every text to the same unit vector, so any stored chunk
// matches any question with similarity 1.
type fakeEmbedder struct {
	calls int64
	fail  bool
}

func (f *fakeEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := f.GetEmbedding(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

type fakeLLM struct {
	calls        int64
	failGrounded bool
	lastSystem   string
	lastUser     string
	answer       string
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	atomic.AddInt64(&f.calls, 1)
	f.lastSystem = req.System
	f.lastUser = req.User
	if f.failGrounded && strings.Contains(req.System, "ONLY the provided context") {
		return "", fmt.Errorf("model overloaded")
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "canned answer [1]", nil
}

type failingHistory struct{}

func (failingHistory) Append(ctx context.Context, record schema.AnswerRecord) error {
	return fmt.Errorf("history backend down")
}
func (failingHistory) List(ctx context.Context, limit int) ([]schema.AnswerRecord, error) {
	return nil, fmt.Errorf("history backend down")
}
func (failingHistory) Clear(ctx context.Context) error { return fmt.Errorf("history backend down") }

func newTestClient(t *testing.T) (*RAGClient, *fakeEmbedder, *fakeLLM) {
	t.Helper()
	cfg := config.Default()
	cfg.VectorDB = config.VectorDBConfig{Provider: "memory"}
	cfg.Embedding.Dimensions = 3

	splitter, err := textsplitter.NewTextSplitter(&cfg.RAG.Splitter)
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	model := &fakeLLM{}
	client := &RAGClient{
		config:            cfg,
		fetcher:           fetcher.New(cfg.Ingest, nil),
		textSplitter:      splitter,
		embeddingProvider: embedder,
		llmProvider:       model,
		vectordbProvider:  vectordb.NewMemoryProvider(3),
		historyStore:      history.NewInMemoryStore(10),
	}
	return client, embedder, model
}

func seedChunk(t *testing.T, client *RAGClient, content string) {
	t.Helper()
	_, err := client.vectordbProvider.AddDocs(context.Background(), []schema.Document{{
		ID:          "seedhash_chunk_0",
		Content:     content,
		Vector:      []float32{1, 0, 0},
		OriginURL:   "https://docs.example.com/guide",
		Label:       "Guide",
		ContentHash: "seedhash",
		ChunkIndex:  0,
		TotalChunks: 1,
	}})
	require.NoError(t, err)
}

func TestIngestChunking(t *testing.T) {
	page := strings.Repeat("abcde", 500) // 2500 chars of continuous text
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><main><p>%s</p></main></body></html>", page)
	}))
	defer srv.Close()

	client, _, _ := newTestClient(t)
	client.config.Ingest.Pages = []config.PageSource{{URL: srv.URL, Label: "Big Page"}}

	report, err := client.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalAttempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, report.Failed)
	// 2500 chars at size 1000 / overlap 100 window into 1000, 1000, 700
	assert.Equal(t, 3, report.TotalChunks)
	assert.Equal(t, 3, report.TotalVectors)
	assert.Equal(t, 3, report.Upsert.Upserted)
	assert.EqualValues(t, 3, report.Store.TotalVectors)
	assert.NotEmpty(t, report.RunID)

	results, err := client.vectordbProvider.SearchDocs(context.Background(), []float32{1, 0, 0}, schema.SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 3)
	sizes := map[int]int{}
	for _, res := range results {
		sizes[len(res.Document.Content)]++
		assert.Equal(t, "Big Page", res.Document.Label)
		assert.Equal(t, 3, res.Document.TotalChunks)
		assert.Contains(t, res.Document.ID, "_chunk_")
	}
	assert.Equal(t, map[int]int{1000: 2, 700: 1}, sizes)
}

func TestIngestPerChunkWordCount(t *testing.T) {
	page := strings.TrimSpace(strings.Repeat("word ", 600)) // 600 words, 2999 chars
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><main><p>%s</p></main></body></html>", page)
	}))
	defer srv.Close()

	client, _, _ := newTestClient(t)
	client.config.Ingest.Pages = []config.PageSource{{URL: srv.URL, Label: "Wordy"}}

	report, err := client.Ingest(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Failed)

	results, err := client.vectordbProvider.SearchDocs(context.Background(), []float32{1, 0, 0}, schema.SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		// each chunk carries its own word count, not the page total
		assert.Equal(t, len(strings.Fields(res.Document.Content)), res.Document.WordCount)
		assert.Less(t, res.Document.WordCount, 600)
	}
}

func TestIngestPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><main>short page text</main></body></html>")
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	client, _, _ := newTestClient(t)
	client.config.Ingest.Pages = []config.PageSource{
		{URL: bad.URL, Label: "Broken"},
		{URL: good.URL, Label: "Working"},
	}

	report, err := client.Ingest(context.Background())
	require.NoError(t, err, "a failed page must not fail the run")
	assert.Equal(t, 2, report.TotalAttempted)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "Broken", report.Failed[0].Label)
	assert.NotEmpty(t, report.Failed[0].Error)
	assert.Equal(t, 1, report.Upsert.Upserted)
}

func TestIngestIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><main>stable content</main></body></html>")
	}))
	defer srv.Close()

	client, _, _ := newTestClient(t)
	client.config.Ingest.Pages = []config.PageSource{{URL: srv.URL, Label: "Stable"}}

	first, err := client.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalVectors)
	assert.Equal(t, 1, first.Upsert.Upserted)

	// An unchanged page still produces its vector; the store just skips it.
	second, err := client.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalVectors)
	assert.Equal(t, 0, second.Upsert.Upserted)
	assert.Equal(t, 1, second.Upsert.Skipped)
	assert.EqualValues(t, 1, second.Store.TotalVectors)
}

func TestAskGrounded(t *testing.T) {
	client, _, model := newTestClient(t)
	seedChunk(t, client, "the setting is configured in the yaml file")

	record, err := client.Ask(context.Background(), "how do I configure the setting?")
	require.NoError(t, err)

	assert.Equal(t, "canned answer [1]", record.Answer)
	assert.False(t, record.IsSimpleResponse)
	require.Len(t, record.Sources, 1)
	assert.Equal(t, "https://docs.example.com/guide", record.Sources[0].URL)
	assert.InDelta(t, 1.0, record.Confidence, 1e-6)
	assert.Equal(t, 1, record.ChunksUsed)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.Timestamp.IsZero())

	assert.Contains(t, model.lastSystem, "ONLY the provided context")
	assert.Contains(t, model.lastUser, "[1] Guide (https://docs.example.com/guide):")

	// answer path stores history
	records, err := client.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}

func TestAskFallbackOnEmptyStore(t *testing.T) {
	client, _, model := newTestClient(t)

	record, err := client.Ask(context.Background(), "anything indexed?")
	require.NoError(t, err)

	assert.True(t, record.IsSimpleResponse)
	assert.NotNil(t, record.Sources)
	assert.Empty(t, record.Sources)
	assert.Zero(t, record.Confidence)
	assert.Zero(t, record.ChunksUsed)
	assert.Contains(t, model.lastSystem, "no relevant content")
}

func TestAskFallsBackWhenGroundedFails(t *testing.T) {
	client, _, model := newTestClient(t)
	model.failGrounded = true
	seedChunk(t, client, "knowledge that will not be used")

	record, err := client.Ask(context.Background(), "a question")
	require.NoError(t, err, "grounded failure must degrade to fallback, not error")
	assert.True(t, record.IsSimpleResponse)
	assert.Empty(t, record.Sources)
	assert.Zero(t, record.Confidence)
	assert.EqualValues(t, 2, atomic.LoadInt64(&model.calls))
}

func TestAskEmptyQuestion(t *testing.T) {
	client, _, _ := newTestClient(t)
	_, err := client.Ask(context.Background(), "   ")
	assert.Error(t, err)
}

func TestAskSwallowsHistoryFailure(t *testing.T) {
	client, _, _ := newTestClient(t)
	client.historyStore = failingHistory{}
	seedChunk(t, client, "some knowledge")

	record, err := client.Ask(context.Background(), "a question")
	require.NoError(t, err, "history failure must not fail the answer")
	assert.NotEmpty(t, record.Answer)
}

func TestAskCaching(t *testing.T) {
	client, _, model := newTestClient(t)
	client.answerCache = cache.NewLRU[schema.AnswerRecord](10, time.Minute)
	client.cacheTTL = time.Minute
	seedChunk(t, client, "cached knowledge")

	first, err := client.Ask(context.Background(), "repeat me")
	require.NoError(t, err)
	second, err := client.Ask(context.Background(), "repeat me")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "second ask must come from cache")
	assert.EqualValues(t, 1, atomic.LoadInt64(&model.calls))

	// a different question misses the cache
	_, err = client.Ask(context.Background(), "something else")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&model.calls))
}

func TestAskPropagatesEmbeddingFailure(t *testing.T) {
	client, embedder, _ := newTestClient(t)
	embedder.fail = true

	_, err := client.Ask(context.Background(), "a question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed question failed")
}

func TestSearchChunksFiltersThreshold(t *testing.T) {
	client, _, _ := newTestClient(t)
	seedChunk(t, client, "exact match")
	_, err := client.vectordbProvider.AddDocs(context.Background(), []schema.Document{{
		ID:          "otherhash_chunk_0",
		Content:     "orthogonal chunk",
		Vector:      []float32{0, 1, 0},
		OriginURL:   "https://docs.example.com/other",
		Label:       "Other",
		ContentHash: "otherhash",
	}})
	require.NoError(t, err)

	results, err := client.SearchChunks(context.Background(), "query", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "seedhash_chunk_0", results[0].Document.ID)
}

func TestClearHistory(t *testing.T) {
	client, _, _ := newTestClient(t)
	seedChunk(t, client, "knowledge")
	_, err := client.Ask(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, client.ClearHistory(context.Background()))
	records, err := client.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBuildCacheKeyNormalizes(t *testing.T) {
	client, _, _ := newTestClient(t)
	assert.Equal(t, client.buildCacheKey("  What Is X? "), client.buildCacheKey("what is x?"))
	assert.NotEqual(t, client.buildCacheKey("what is x?"), client.buildCacheKey("what is y?"))
}
