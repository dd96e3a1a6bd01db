// Package vectorindex provides an in-memory brute-force vector search structure.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

// Flat scores every stored vector against the query. It is built once and never mutated,
// so concurrent searches need no locking.
type Flat struct {
	dimension int
	metric    catalogue.Metric
	vectors   [][]float32
}

var _ catalogue.VectorSearcher = (*Flat)(nil)

// NewFlat builds a flat index over vectors. For cosine the vectors are normalized up front.
func NewFlat(dimension int, metric catalogue.Metric, vectors [][]float32) (*Flat, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if !metric.IsValid() {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d: %w: got %d, want %d",
				i, ErrDimensionMismatch, len(v), dimension)
		}
		if metric == catalogue.MetricCosine {
			v = domain.Normalize(v)
		}
		stored[i] = v
	}
	return &Flat{dimension: dimension, metric: metric, vectors: stored}, nil
}

// ErrDimensionMismatch signals a vector whose length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.dimension }

// Search returns up to k hits in descending similarity. Ties keep position order.
func (f *Flat) Search(ctx context.Context, vector []float32, k int) ([]catalogue.Hit, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	if len(vector) != f.dimension {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vector), f.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("flat search: %w", err)
	}

	query := vector
	if f.metric == catalogue.MetricCosine {
		query = domain.Normalize(vector)
	}

	hits := make([]catalogue.Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = catalogue.Hit{Position: i, Score: f.score(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (f *Flat) score(q, v []float32) float64 {
	if f.metric == catalogue.MetricL2 {
		var sum float64
		for i := range q {
			d := float64(q[i]) - float64(v[i])
			sum += d * d
		}
		return f.metric.Similarity(math.Sqrt(sum))
	}
	return domain.Dot(q, v)
}
