// Package catalogue builds the category registry from document directories at boot.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/chunker"
	"github.com/kailas-cloud/suggest/internal/domain"
	domcat "github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/keyword"
	"github.com/kailas-cloud/suggest/internal/metrics"
	"github.com/kailas-cloud/suggest/internal/repository/knn"
	"github.com/kailas-cloud/suggest/internal/vectorindex"
)

const documentExt = ".txt"

// Backend selects where a category's vectors are searched.
type Backend string

const (
	// BackendMemory keeps vectors in a flat in-process index.
	BackendMemory Backend = "memory"
	// BackendRedis publishes vectors to a Valkey/Redis FT index.
	BackendRedis Backend = "redis"
)

// Category describes one category to load.
type Category struct {
	Name           string
	Dir            string
	Backend        Backend
	IndexName      string
	Metric         domcat.Metric
	Stopwords      []string
	ChunkMaxLength int
}

// Publisher stores category vectors remotely and returns a searcher over them.
type Publisher interface {
	Publish(ctx context.Context, p knn.Publication) (*knn.Searcher, error)
}

// ErrNoDocuments signals a category directory without any document.
var ErrNoDocuments = errors.New("category has no documents")

// Loader embeds category documents and assembles the registry.
type Loader struct {
	embed     domain.Embedder
	publisher Publisher
	logger    *zap.Logger
}

// NewLoader creates a loader. publisher may be nil when no category uses the redis backend.
func NewLoader(embed domain.Embedder, publisher Publisher, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{embed: embed, publisher: publisher, logger: logger}
}

// Load builds every category and returns the registry. Any failing category fails the load.
func (l *Loader) Load(ctx context.Context, categories []Category) (*domcat.Registry, error) {
	indices := make([]*domcat.Index, 0, len(categories))
	for _, c := range categories {
		start := time.Now()
		idx, err := l.loadCategory(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("load category %q: %w", c.Name, err)
		}
		metrics.CatalogueDocuments.WithLabelValues(c.Name).Set(float64(idx.Len()))
		l.logger.Info("Category loaded",
			zap.String("category", c.Name),
			zap.String("backend", string(c.Backend)),
			zap.Int("documents", idx.Len()),
			zap.Duration("took", time.Since(start)),
		)
		indices = append(indices, idx)
	}
	reg, err := domcat.NewRegistry(indices...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

func (l *Loader) loadCategory(ctx context.Context, c Category) (*domcat.Index, error) {
	entries, err := ReadDocuments(c.Dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", c.Dir, ErrNoDocuments)
	}

	metric := c.Metric
	if metric == "" {
		metric = domcat.MetricCosine
	}
	maxLen := c.ChunkMaxLength
	if maxLen <= 0 {
		maxLen = chunker.DefaultMaxLength
	}

	vectors, err := l.embedDocuments(ctx, entries, maxLen)
	if err != nil {
		return nil, err
	}

	var searcher domcat.VectorSearcher
	switch c.Backend {
	case BackendMemory, "":
		searcher, err = vectorindex.NewFlat(len(vectors[0]), metric, vectors)
		if err != nil {
			return nil, fmt.Errorf("build flat index: %w", err)
		}
	case BackendRedis:
		if l.publisher == nil {
			return nil, errors.New("redis backend requires a database")
		}
		searcher, err = l.publisher.Publish(ctx, knn.Publication{
			Category:  c.Name,
			IndexName: c.IndexName,
			Metric:    metric,
			Entries:   entries,
			Vectors:   vectors,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped with the category by Load
		}
	default:
		return nil, fmt.Errorf("unsupported backend %q", c.Backend)
	}

	stopwords := c.Stopwords
	if len(stopwords) == 0 {
		stopwords = keyword.DefaultStopwords()
	}

	idx, err := domcat.NewIndex(domcat.Config{
		Name:      c.Name,
		Searcher:  searcher,
		Entries:   entries,
		Extractor: keyword.New(l.embed, keyword.WithChunkMaxLength(maxLen)),
		Stopwords: stopwords,
		Metric:    metric,
	})
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return idx, nil
}

// embedDocuments splits every document into chunks and represents it by the
// renormalised mean of its chunk vectors, embedded in one batch.
func (l *Loader) embedDocuments(ctx context.Context, entries []domcat.Entry, maxLen int) ([][]float32, error) {
	groups := make([][]string, len(entries))
	chunks := 0
	for i, e := range entries {
		parts, err := chunker.Split(e.Text, maxLen)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", e.ID, err)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("document %s is empty", e.ID)
		}
		groups[i] = parts
		chunks += len(parts)
	}

	vectors, tokens, err := domain.EmbedPooled(ctx, l.embed, groups)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	l.logger.Debug("Documents embedded",
		zap.Int("documents", len(entries)),
		zap.Int("chunks", chunks),
		zap.Int("tokens", tokens),
	)
	return vectors, nil
}

// ReadDocuments returns the *.txt documents of dir sorted by file name.
// The file name is the document identifier and the trimmed content its text.
func ReadDocuments(dir string) ([]domcat.Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalogue dir: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), documentExt) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	entries := make([]domcat.Entry, 0, len(names))
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", n, err)
		}
		entries = append(entries, domcat.Entry{ID: n, Text: strings.TrimSpace(string(data))})
	}
	return entries, nil
}
