// Package catalogue holds the per-category search bundles the engine reads at request time.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// Metric is the native score convention of a vector searcher.
type Metric string

const (
	// MetricCosine scores by cosine similarity (higher is better).
	MetricCosine Metric = "cosine"
	// MetricInnerProduct scores by inner product (higher is better).
	MetricInnerProduct Metric = "ip"
	// MetricL2 scores by Euclidean distance (lower is better before conversion).
	MetricL2 Metric = "l2"
)

// IsValid reports whether m is a supported metric.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricInnerProduct, MetricL2:
		return true
	}
	return false
}

// Similarity converts a native metric value into a score where higher is more relevant.
// Cosine and inner product pass through; L2 distance d becomes 1/(1+d).
func (m Metric) Similarity(native float64) float64 {
	if m == MetricL2 {
		if native < 0 {
			native = 0
		}
		return 1 / (1 + native)
	}
	return native
}

// Hit is one neighbour returned by a vector searcher: a position into the entry list and its score.
// Score is already a similarity (higher is better).
type Hit struct {
	Position int
	Score    float64
}

// VectorSearcher finds the k nearest document positions to a query vector.
// Hits come back in descending score order; fewer than k when the index is smaller.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// Keyword is a ranked keyphrase.
type Keyword struct {
	Phrase string
	Score  float64
}

// ExtractOptions parameterizes keyphrase extraction.
type ExtractOptions struct {
	MinNgram  int
	MaxNgram  int
	Stopwords []string
	TopN      int
}

// KeywordExtractor ranks candidate keyphrases of a text by the extractor's native score.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string, opts ExtractOptions) ([]Keyword, error)
}

// Entry is one catalogue document: its summary text and identifier (typically a file name).
type Entry struct {
	Text string
	ID   string
}

// Index is an immutable per-category bundle. Position i of the searcher maps to Entries()[i].
type Index struct {
	name      string
	searcher  VectorSearcher
	entries   []Entry
	extractor KeywordExtractor
	stopwords []string
	metric    Metric
}

// Config describes an index to construct.
type Config struct {
	Name      string
	Searcher  VectorSearcher
	Entries   []Entry
	Extractor KeywordExtractor
	Stopwords []string
	Metric    Metric
}

// NewIndex validates cfg and builds an index. Entries and stopwords are copied.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Name == "" {
		return nil, errors.New("index name is required")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("index %q: searcher is required", cfg.Name)
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("index %q: keyword extractor is required", cfg.Name)
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if !cfg.Metric.IsValid() {
		return nil, fmt.Errorf("index %q: unsupported metric %q", cfg.Name, cfg.Metric)
	}

	return &Index{
		name:      cfg.Name,
		searcher:  cfg.Searcher,
		entries:   append([]Entry(nil), cfg.Entries...),
		extractor: cfg.Extractor,
		stopwords: append([]string(nil), cfg.Stopwords...),
		metric:    cfg.Metric,
	}, nil
}

// Name returns the category name.
func (i *Index) Name() string { return i.name }

// Searcher returns the vector search structure.
func (i *Index) Searcher() VectorSearcher { return i.searcher }

// Extractor returns the category's keyword extractor.
func (i *Index) Extractor() KeywordExtractor { return i.extractor }

// Stopwords returns the category's domain stopwords.
func (i *Index) Stopwords() []string { return i.stopwords }

// Metric returns the configured score convention.
func (i *Index) Metric() Metric { return i.metric }

// Len returns the number of documents.
func (i *Index) Len() int { return len(i.entries) }

// Entry returns the document at position pos.
func (i *Index) Entry(pos int) (Entry, bool) {
	if pos < 0 || pos >= len(i.entries) {
		return Entry{}, false
	}
	return i.entries[pos], true
}

// Registry maps category names to indices. It is never mutated after NewRegistry.
type Registry struct {
	indices map[string]*Index
}

// NewRegistry builds a registry; duplicate names are rejected.
func NewRegistry(indices ...*Index) (*Registry, error) {
	m := make(map[string]*Index, len(indices))
	for _, idx := range indices {
		if _, dup := m[idx.Name()]; dup {
			return nil, fmt.Errorf("duplicate category %q", idx.Name())
		}
		m[idx.Name()] = idx
	}
	return &Registry{indices: m}, nil
}

// Lookup returns the index for category.
func (r *Registry) Lookup(category string) (*Index, bool) {
	idx, ok := r.indices[category]
	return idx, ok
}

// Categories returns the loaded category names in sorted order.
func (r *Registry) Categories() []string {
	names := make([]string, 0, len(r.indices))
	for n := range r.indices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Holder publishes a registry to concurrent readers. Replacement is whole-registry only.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder creates a holder serving r.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.current.Store(r)
	return h
}

// Load returns the registry in effect.
func (h *Holder) Load() *Registry { return h.current.Load() }

// Store replaces the registry. Requests already holding the old one keep using it.
func (h *Holder) Store(r *Registry) { h.current.Store(r) }

// CategoryCount returns the number of categories in the registry in effect.
func (h *Holder) CategoryCount() int {
	r := h.Load()
	if r == nil {
		return 0
	}
	return len(r.indices)
}
