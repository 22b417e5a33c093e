package history

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knowbase/kb-assistant/common/httpx"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/schema"
)

const defaultMaxRecords = 50

// Store persists answered questions. Failures here must never fail the
// answer path; callers log and move on.
type Store interface {
	Append(ctx context.Context, record schema.AnswerRecord) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]schema.AnswerRecord, error)
	Clear(ctx context.Context) error
}

// NewHistoryStore creates an answer history store from configuration.
func NewHistoryStore(cfg config.HistoryConfig, client *httpx.Client) (Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "inmemory":
		return NewInMemoryStore(cfg.MaxRecords), nil
	case "rest":
		return NewRESTStore(cfg, client)
	default:
		return nil, fmt.Errorf("unknown history store: %s", cfg.Store)
	}
}

// InMemoryStore is a bounded, process-local history. When full, the oldest
// record is dropped.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []schema.AnswerRecord
	max     int
}

func NewInMemoryStore(maxRecords int) *InMemoryStore {
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	return &InMemoryStore{max: maxRecords}
}

func (s *InMemoryStore) Append(ctx context.Context, record schema.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if len(s.records) > s.max {
		s.records = s.records[len(s.records)-s.max:]
	}
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, limit int) ([]schema.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]schema.AnswerRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
