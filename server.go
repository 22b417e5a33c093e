package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/metrics"
	"github.com/knowbase/kb-assistant/schema"
	"github.com/knowbase/kb-assistant/vectordb"
)

const Version = "1.0.0"

// Server exposes the client over HTTP. Error responses carry a generic
// message; details stay in the logs.
type Server struct {
	client *RAGClient
	mux    *http.ServeMux
}

func NewServer(client *RAGClient) *Server {
	s := &Server{client: client, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/ingest", s.handleIngest)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe blocks serving HTTP on the given port.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.Infof("server: listening on %s", addr)
	return http.ListenAndServe(addr, s)
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	record, err := s.client.Ask(r.Context(), req.Question)
	if err != nil {
		logger.Errorf("server: chat failed, err: %v", err)
		writeError(w, statusFor(err), "failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report, err := s.client.Ingest(r.Context())
	if err != nil {
		logger.Errorf("server: ingest failed, err: %v", err)
		writeError(w, statusFor(err), "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			topK = n
		}
	}
	threshold := s.client.config.RAG.Threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			threshold = f
		}
	}

	results, err := s.client.SearchChunks(r.Context(), query, topK, threshold)
	if err != nil {
		logger.Errorf("server: search failed, err: %v", err)
		writeError(w, statusFor(err), "search failed")
		return
	}
	if results == nil {
		results = []schema.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		records, err := s.client.History(r.Context(), limit)
		if err != nil {
			logger.Errorf("server: list history failed, err: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		writeJSON(w, http.StatusOK, records)
	case http.MethodDelete:
		if err := s.client.ClearHistory(r.Context()); err != nil {
			logger.Errorf("server: clear history failed, err: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to clear history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.client.Stats(r.Context())
	status := "ok"
	if stats.Degraded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"version":       Version,
		"total_vectors": stats.TotalVectors,
		"degraded":      stats.Degraded,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("server: encode response failed, err: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps storage faults to 503 so callers can tell an unreachable
// backend from a bad request.
func statusFor(err error) int {
	var storeErr *vectordb.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
