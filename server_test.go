package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/kb-assistant/schema"
)

func newTestServer(t *testing.T) (*Server, *RAGClient) {
	t.Helper()
	client, _, _ := newTestClient(t)
	return NewServer(client), client
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	s, client := newTestServer(t)
	seedChunk(t, client, "server answers questions")

	rec := doRequest(t, s, http.MethodPost, "/api/chat", `{"question":"does it answer?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var record schema.AnswerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "does it answer?", record.Question)
	assert.False(t, record.IsSimpleResponse)
	require.Len(t, record.Sources, 1)
}

func TestChatEndpointFallback(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", `{"question":"empty store?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var record schema.AnswerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.True(t, record.IsSimpleResponse)
	assert.Empty(t, record.Sources)
}

func TestChatEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	s, client := newTestServer(t)
	seedChunk(t, client, "findable text")

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=findable&top_k=3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []schema.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "findable text", results[0].Document.Content)

	rec = doRequest(t, s, http.MethodGet, "/api/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointEmptyResult(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHistoryEndpoint(t *testing.T) {
	s, client := newTestServer(t)
	seedChunk(t, client, "knowledge")

	_, err := client.Ask(context.Background(), "first question")
	require.NoError(t, err)
	_, err = client.Ask(context.Background(), "second question")
	require.NoError(t, err)

	rec := doRequest(t, s, http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []schema.AnswerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "second question", records[0].Question)

	rec = doRequest(t, s, http.MethodDelete, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Empty(t, records)
}

func TestHealthEndpoint(t *testing.T) {
	s, client := newTestServer(t)
	seedChunk(t, client, "one vector")

	rec := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, Version, health["version"])
	assert.EqualValues(t, 1, health["total_vectors"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestEndpointMethod(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/ingest", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
