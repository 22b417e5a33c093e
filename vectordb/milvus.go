package vectordb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/schema"
)

const (
	fieldID          = "id"
	fieldVector      = "vector"
	fieldText        = "chunk_text"
	fieldOriginURL   = "origin_url"
	fieldLabel       = "label"
	fieldContentHash = "content_hash"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
	fieldScrapedAt   = "scraped_at"
	fieldWordCount   = "word_count"
)

var outputFields = []string{
	fieldID, fieldText, fieldOriginURL, fieldLabel, fieldContentHash,
	fieldChunkIndex, fieldTotalChunks, fieldScrapedAt, fieldWordCount,
}

// MilvusProvider stores documents in a Milvus collection with an HNSW inner
// product index. The connection is established lazily on first use and
// reused; a failed connect is cached so every later call reports the same
// error instead of redialing.
type MilvusProvider struct {
	cfg config.VectorDBConfig
	dim int

	once    sync.Once
	client  milvus.Client
	initErr error
}

func NewMilvusProvider(cfg config.VectorDBConfig, dim int) (*MilvusProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("milvus host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("milvus collection is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	return &MilvusProvider{cfg: cfg, dim: dim}, nil
}

func (p *MilvusProvider) connect(ctx context.Context) (milvus.Client, error) {
	p.once.Do(func() {
		port := p.cfg.Port
		if port == 0 {
			port = 19530
		}
		addr := fmt.Sprintf("%s:%d", p.cfg.Host, port)
		c, err := milvus.NewClient(ctx, milvus.Config{
			Address:  addr,
			Username: p.cfg.Username,
			Password: p.cfg.Password,
			DBName:   p.cfg.Database,
		})
		if err != nil {
			p.initErr = fmt.Errorf("connect to milvus at %s failed, err: %w", addr, err)
			return
		}
		if err := p.ensureCollection(ctx, c); err != nil {
			_ = c.Close()
			p.initErr = err
			return
		}
		p.client = c
		logger.Infof("milvus: connected to %s, collection %s ready", addr, p.cfg.Collection)
	})
	return p.client, p.initErr
}

func (p *MilvusProvider) ensureCollection(ctx context.Context, c milvus.Client) error {
	exists, err := c.HasCollection(ctx, p.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection failed, err: %w", err)
	}
	if !exists {
		sch := entity.NewSchema().
			WithName(p.cfg.Collection).
			WithDescription("knowledge base chunks").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(p.dim))).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName(fieldOriginURL).WithDataType(entity.FieldTypeVarChar).WithMaxLength(2048)).
			WithField(entity.NewField().WithName(fieldLabel).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName(fieldContentHash).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldTotalChunks).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldScrapedAt).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldWordCount).WithDataType(entity.FieldTypeInt64))
		if err := c.CreateCollection(ctx, sch, 1); err != nil {
			return fmt.Errorf("create collection failed, err: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.IP, 8, 64)
		if err != nil {
			return fmt.Errorf("build index params failed, err: %w", err)
		}
		if err := c.CreateIndex(ctx, p.cfg.Collection, fieldVector, idx, false); err != nil {
			return fmt.Errorf("create index failed, err: %w", err)
		}
	}
	if err := c.LoadCollection(ctx, p.cfg.Collection, false); err != nil {
		return fmt.Errorf("load collection failed, err: %w", err)
	}
	return nil
}

// hashExists checks whether any vector with the given content hash is
// already stored.
func (p *MilvusProvider) hashExists(ctx context.Context, c milvus.Client, hash string) (bool, error) {
	expr := fmt.Sprintf("%s == \"%s\"", fieldContentHash, strings.ReplaceAll(hash, `"`, ""))
	rs, err := c.Query(ctx, p.cfg.Collection, nil, expr, []string{fieldID}, milvus.WithLimit(1))
	if err != nil {
		return false, err
	}
	for _, col := range rs {
		if col.Name() == fieldID && col.Len() > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (p *MilvusProvider) AddDocs(ctx context.Context, docs []schema.Document) (schema.UpsertStats, error) {
	var stats schema.UpsertStats
	if len(docs) == 0 {
		return stats, nil
	}
	c, err := p.connect(ctx)
	if err != nil {
		return stats, &StoreError{Op: "connect", Err: err}
	}

	fresh, stats := dedupByHash(docs, func(hash string) (bool, error) {
		return p.hashExists(ctx, c, hash)
	})

	if len(fresh) == 0 {
		return stats, nil
	}

	n := len(fresh)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	texts := make([]string, n)
	urls := make([]string, n)
	labels := make([]string, n)
	hashes := make([]string, n)
	chunkIdx := make([]int64, n)
	totalChunks := make([]int64, n)
	scrapedAt := make([]int64, n)
	wordCounts := make([]int64, n)
	for i, doc := range fresh {
		ids[i] = doc.ID
		vectors[i] = doc.Vector
		texts[i] = doc.Content
		urls[i] = doc.OriginURL
		labels[i] = doc.Label
		hashes[i] = doc.ContentHash
		chunkIdx[i] = int64(doc.ChunkIndex)
		totalChunks[i] = int64(doc.TotalChunks)
		scrapedAt[i] = doc.ScrapedAt.Unix()
		wordCounts[i] = int64(doc.WordCount)
	}

	_, err = c.Upsert(ctx, p.cfg.Collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, p.dim, vectors),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldOriginURL, urls),
		entity.NewColumnVarChar(fieldLabel, labels),
		entity.NewColumnVarChar(fieldContentHash, hashes),
		entity.NewColumnInt64(fieldChunkIndex, chunkIdx),
		entity.NewColumnInt64(fieldTotalChunks, totalChunks),
		entity.NewColumnInt64(fieldScrapedAt, scrapedAt),
		entity.NewColumnInt64(fieldWordCount, wordCounts),
	)
	if err != nil {
		return stats, &StoreError{Op: "upsert", Err: err}
	}
	stats.Upserted = n
	return stats, nil
}

func (p *MilvusProvider) SearchDocs(ctx context.Context, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	c, err := p.connect(ctx)
	if err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}
	results, err := c.Search(ctx, p.cfg.Collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, fieldVector, entity.IP, topK, sp)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}

	var out []schema.SearchResult
	for _, rs := range results {
		cols := make(map[string]entity.Column, len(rs.Fields))
		for _, col := range rs.Fields {
			cols[col.Name()] = col
		}
		for i := 0; i < rs.ResultCount; i++ {
			doc := schema.Document{}
			if col, ok := cols[fieldID]; ok {
				doc.ID, _ = col.GetAsString(i)
			}
			if col, ok := cols[fieldText]; ok {
				doc.Content, _ = col.GetAsString(i)
			}
			if col, ok := cols[fieldOriginURL]; ok {
				doc.OriginURL, _ = col.GetAsString(i)
			}
			if col, ok := cols[fieldLabel]; ok {
				doc.Label, _ = col.GetAsString(i)
			}
			if col, ok := cols[fieldContentHash]; ok {
				doc.ContentHash, _ = col.GetAsString(i)
			}
			if col, ok := cols[fieldChunkIndex]; ok {
				v, _ := col.GetAsInt64(i)
				doc.ChunkIndex = int(v)
			}
			if col, ok := cols[fieldTotalChunks]; ok {
				v, _ := col.GetAsInt64(i)
				doc.TotalChunks = int(v)
			}
			if col, ok := cols[fieldScrapedAt]; ok {
				v, _ := col.GetAsInt64(i)
				doc.ScrapedAt = time.Unix(v, 0).UTC()
			}
			if col, ok := cols[fieldWordCount]; ok {
				v, _ := col.GetAsInt64(i)
				doc.WordCount = int(v)
			}
			out = append(out, schema.SearchResult{
				Document: doc,
				Score:    float64(rs.Scores[i]),
			})
		}
	}
	return out, nil
}

// Stats reports the collection row count. Failures degrade the snapshot
// instead of failing the caller.
func (p *MilvusProvider) Stats(ctx context.Context) schema.StoreStats {
	c, err := p.connect(ctx)
	if err != nil {
		logger.Warnf("milvus: stats unavailable, err: %v", err)
		return schema.StoreStats{Degraded: true}
	}
	raw, err := c.GetCollectionStatistics(ctx, p.cfg.Collection)
	if err != nil {
		logger.Warnf("milvus: get collection statistics failed, err: %v", err)
		return schema.StoreStats{Degraded: true}
	}
	var total int64
	if v, ok := raw["row_count"]; ok {
		_, scanErr := fmt.Sscanf(v, "%d", &total)
		if scanErr != nil {
			return schema.StoreStats{Degraded: true}
		}
	}
	return schema.StoreStats{TotalVectors: total}
}

func (p *MilvusProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
