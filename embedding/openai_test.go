package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/kb-assistant/config"
)

func newFakeEmbeddingServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)

		var body struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Vector derived from the input length so tests can tell inputs apart.
		vec := []float64{float64(len(body.Input)), 1, 2}
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"model": body.Model,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestProvider(t *testing.T, baseURL string) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(config.EmbeddingConfig{
		Provider:     "openai",
		APIKey:       "test-key",
		BaseURL:      baseURL,
		Model:        "text-embedding-ada-002",
		BatchSize:    2,
		BatchDelayMs: 1,
	})
	require.NoError(t, err)
	return p
}

func TestGetEmbedding(t *testing.T) {
	var calls int64
	srv := newFakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	vec, err := p.GetEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 2}, vec)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestGetEmbeddingsPreservesOrder(t *testing.T) {
	var calls int64
	srv := newFakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := p.GetEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vecs[i][0], "vector %d out of order", i)
	}
	assert.EqualValues(t, len(texts), atomic.LoadInt64(&calls))
}

func TestGetEmbeddingsEmpty(t *testing.T) {
	var calls int64
	srv := newFakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	vecs, err := p.GetEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestGetEmbeddingsPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad input"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.GetEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
}

func TestTruncateLongInput(t *testing.T) {
	var calls int64
	srv := newFakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	p.maxInputTokens = 4

	long := "one two three four five six seven eight"
	truncated := p.truncate(long)
	assert.Less(t, len(truncated), len(long))

	short := "one two"
	assert.Equal(t, short, p.truncate(short))
}

func TestNewEmbeddingProvider(t *testing.T) {
	_, err := NewEmbeddingProvider(config.EmbeddingConfig{Provider: "openai", APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewEmbeddingProvider(config.EmbeddingConfig{Provider: "openai"})
	assert.Error(t, err, "missing api key must be rejected")

	_, err = NewEmbeddingProvider(config.EmbeddingConfig{Provider: "unknown"})
	assert.Error(t, err)
}
