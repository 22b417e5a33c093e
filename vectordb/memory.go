package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/knowbase/kb-assistant/schema"
)

// MemoryProvider is an in-process vector store. It backs tests and local
// development where no Milvus deployment is available.
type MemoryProvider struct {
	dim int

	mu   sync.RWMutex
	docs map[string]schema.Document

	// hashCheck overrides the duplicate lookup; tests set it to exercise
	// the degraded write-anyway path.
	hashCheck func(hash string) (bool, error)
}

func NewMemoryProvider(dim int) *MemoryProvider {
	return &MemoryProvider{
		dim:  dim,
		docs: make(map[string]schema.Document),
	}
}

func (p *MemoryProvider) AddDocs(ctx context.Context, docs []schema.Document) (schema.UpsertStats, error) {
	var stats schema.UpsertStats
	if len(docs) == 0 {
		return stats, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[string]bool)
	for _, doc := range p.docs {
		existing[doc.ContentHash] = true
	}
	check := p.hashCheck
	if check == nil {
		check = func(hash string) (bool, error) { return existing[hash], nil }
	}

	fresh, stats := dedupByHash(docs, check)
	for _, doc := range fresh {
		if err := ctx.Err(); err != nil {
			return stats, &StoreError{Op: "upsert", Err: err}
		}
		if p.dim > 0 && len(doc.Vector) != p.dim {
			return stats, &StoreError{Op: "upsert", Err: fmt.Errorf("vector dimension mismatch: want %d, got %d", p.dim, len(doc.Vector))}
		}
		p.docs[doc.ID] = doc
		stats.Upserted++
	}
	return stats, nil
}

func (p *MemoryProvider) SearchDocs(ctx context.Context, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	results := make([]schema.SearchResult, 0, len(p.docs))
	for _, doc := range p.docs {
		score := cosineSimilarity(vector, doc.Vector)
		d := doc
		d.Vector = nil
		results = append(results, schema.SearchResult{Document: d, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (p *MemoryProvider) Stats(ctx context.Context) schema.StoreStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return schema.StoreStats{TotalVectors: int64(len(p.docs))}
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = make(map[string]schema.Document)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
