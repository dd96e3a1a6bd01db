package knn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/db"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

const writeBatchSize = 256

// store is the consumer interface for publishing and searching category vectors (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Publication is one category's documents and their vectors, aligned by position.
type Publication struct {
	Category  string
	IndexName string
	Metric    catalogue.Metric
	Entries   []catalogue.Entry
	Vectors   [][]float32
}

// published records the index a category is currently served from.
type published struct {
	Version string `json:"version"`
	Index   string `json:"index"`
	Size    int    `json:"size"`
}

// Repo stores category vectors as hashes under an FT index.
// Every distinct publication gets its own index and key prefix, so live hashes are never rewritten.
type Repo struct {
	store  store
	hnsw   HNSWConfig
	logger *zap.Logger
}

// New creates a KNN repository.
func New(s store, hnsw HNSWConfig, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, hnsw: hnsw, logger: logger}
}

// Publish writes the publication under a content-versioned index and returns a searcher bound to it.
// An identical publication already in place is reused as is. A superseded one is dropped.
func (r *Repo) Publish(ctx context.Context, p Publication) (*Searcher, error) {
	if len(p.Entries) != len(p.Vectors) {
		return nil, fmt.Errorf("publish %s: %d entries but %d vectors", p.Category, len(p.Entries), len(p.Vectors))
	}
	if len(p.Vectors) == 0 {
		return nil, fmt.Errorf("publish %s: no documents", p.Category)
	}
	if p.IndexName == "" {
		p.IndexName = IndexName(p.Category)
	}

	dim := len(p.Vectors[0])
	for i, v := range p.Vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("publish %s: vector %d has dimension %d, want %d", p.Category, i, len(v), dim)
		}
	}

	version := publicationVersion(p, dim, r.hnsw)
	next := published{Version: version, Index: versionedName(p.IndexName, version), Size: len(p.Entries)}

	prev, err := r.current(ctx, p.Category)
	if err != nil {
		return nil, err
	}

	exists, err := r.store.IndexExists(ctx, next.Index)
	if err != nil {
		return nil, fmt.Errorf("check index %s: %w", next.Index, err)
	}
	if !exists || prev == nil || prev.Version != version {
		if err := r.write(ctx, p, next, dim, exists); err != nil {
			return nil, err
		}
		if err := r.setCurrent(ctx, p.Category, next); err != nil {
			return nil, err
		}
	}

	if prev != nil && prev.Version != version {
		r.retire(ctx, p.Category, *prev)
	}

	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.ID
	}
	return NewSearcher(r.store, next.Index, p.Metric, ids), nil
}

func (r *Repo) write(ctx context.Context, p Publication, next published, dim int, exists bool) error {
	if !exists {
		def, err := buildIndex(next.Index, docPrefix(p.Category, next.Version), dim, p.Metric, r.hnsw)
		if err != nil {
			return err
		}
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", next.Index, err)
		}
	}

	items := make([]db.HashSetItem, 0, min(writeBatchSize, len(p.Entries)))
	for pos, e := range p.Entries {
		items = append(items, db.HashSetItem{
			Key: docKey(p.Category, next.Version, pos),
			Fields: map[string]string{
				fieldPos:    strconv.Itoa(pos),
				fieldID:     e.ID,
				fieldVector: db.VectorToBytes(p.Vectors[pos]),
			},
		})
		if len(items) == writeBatchSize {
			if err := r.store.HSetMulti(ctx, items); err != nil {
				return fmt.Errorf("publish %s: %w", p.Category, err)
			}
			items = items[:0]
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("publish %s: %w", p.Category, err)
	}
	return nil
}

func (r *Repo) current(ctx context.Context, category string) (*published, error) {
	data, err := r.store.Get(ctx, currentKey(category))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current publication of %s: %w", category, err)
	}
	var p published
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("Ignoring unreadable publication pointer",
			zap.String("category", category), zap.Error(err))
		return nil, nil
	}
	return &p, nil
}

func (r *Repo) setCurrent(ctx context.Context, category string, p published) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode publication of %s: %w", category, err)
	}
	if err := r.store.Set(ctx, currentKey(category), data); err != nil {
		return fmt.Errorf("record publication of %s: %w", category, err)
	}
	return nil
}

// retire drops a superseded index and its hashes. Failures leave garbage, not broken state.
func (r *Repo) retire(ctx context.Context, category string, old published) {
	log := r.logger.With(zap.String("category", category), zap.String("index", old.Index))
	if err := r.store.DropIndex(ctx, old.Index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		log.Warn("Failed to drop superseded index", zap.Error(err))
		return
	}

	keys := make([]string, 0, min(writeBatchSize, old.Size))
	for pos := range old.Size {
		keys = append(keys, docKey(category, old.Version, pos))
		if len(keys) == writeBatchSize || pos == old.Size-1 {
			if err := r.store.Del(ctx, keys...); err != nil {
				log.Warn("Failed to delete superseded documents", zap.Error(err))
				return
			}
			keys = keys[:0]
		}
	}
	log.Info("Superseded index dropped", zap.Int("documents", old.Size))
}
