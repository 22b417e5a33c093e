package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/schema"
)

// VectorStoreProvider persists and searches embedded documents.
//
// AddDocs deduplicates on content hash: documents whose hash already exists
// in the store are skipped, and the remainder are written in one upsert. A
// failed existence check is counted and the document is written anyway;
// duplicate rows are preferable to dropped ones.
type VectorStoreProvider interface {
	AddDocs(ctx context.Context, docs []schema.Document) (schema.UpsertStats, error)
	SearchDocs(ctx context.Context, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error)
	Stats(ctx context.Context) schema.StoreStats
	Close() error
}

// StoreError wraps failures from the vector store backend so callers can
// distinguish storage faults from retrieval-quality outcomes.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s failed, err: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// dedupByHash partitions docs into those to write and those already stored,
// consulting the existence check once per distinct content hash. A failed
// check counts as a DedupCheckFailure and the document is written anyway;
// duplicate rows are preferable to dropped ones.
func dedupByHash(docs []schema.Document, exists func(hash string) (bool, error)) ([]schema.Document, schema.UpsertStats) {
	var stats schema.UpsertStats
	seen := make(map[string]bool, len(docs))
	failed := make(map[string]bool)
	fresh := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if failed[doc.ContentHash] {
			stats.DedupCheckFailures++
			fresh = append(fresh, doc)
			continue
		}
		dup, ok := seen[doc.ContentHash]
		if !ok {
			var err error
			dup, err = exists(doc.ContentHash)
			if err != nil {
				logger.Warnf("vectordb: dedup check for hash %s failed, writing anyway, err: %v", doc.ContentHash, err)
				failed[doc.ContentHash] = true
				stats.DedupCheckFailures++
				fresh = append(fresh, doc)
				continue
			}
			seen[doc.ContentHash] = dup
		}
		if dup {
			stats.Skipped++
			continue
		}
		fresh = append(fresh, doc)
	}
	return fresh, stats
}

// NewVectorDBProvider creates a vector store provider from configuration.
func NewVectorDBProvider(cfg config.VectorDBConfig, dim int) (VectorStoreProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "milvus":
		return NewMilvusProvider(cfg, dim)
	case "memory":
		return NewMemoryProvider(dim), nil
	default:
		return nil, fmt.Errorf("unknown vectordb provider: %s", cfg.Provider)
	}
}
