package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/knowbase/kb-assistant/common/httpx"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/schema"
)

// RESTStore persists history rows through a REST endpoint (a PostgREST-style
// table API). The endpoint is the full collection URL; records are POSTed as
// JSON and listed with order and limit query parameters.
type RESTStore struct {
	endpoint string
	apiKey   string
	client   *httpx.Client
}

func NewRESTStore(cfg config.HistoryConfig, client *httpx.Client) (*RESTStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("history rest endpoint is required")
	}
	if client == nil {
		client = httpx.NewFromConfig(nil)
	}
	return &RESTStore{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}, nil
}

func (s *RESTStore) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("history backend returned %d: %s", resp.StatusCode, string(raw))
	}
	return resp, nil
}

func (s *RESTStore) Append(ctx context.Context, record schema.AnswerRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal history record failed, err: %w", err)
	}
	resp, err := s.do(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("append history record failed, err: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (s *RESTStore) List(ctx context.Context, limit int) ([]schema.AnswerRecord, error) {
	if limit <= 0 {
		limit = defaultMaxRecords
	}
	url := fmt.Sprintf("%s?order=timestamp.desc&limit=%d", s.endpoint, limit)
	resp, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("list history failed, err: %w", err)
	}
	defer resp.Body.Close()

	var records []schema.AnswerRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode history response failed, err: %w", err)
	}
	return records, nil
}

func (s *RESTStore) Clear(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodDelete, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("clear history failed, err: %w", err)
	}
	resp.Body.Close()
	return nil
}
