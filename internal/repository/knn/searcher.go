package knn

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/suggest/internal/db"
	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

type searchStore interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Searcher implements catalogue.VectorSearcher over an FT index.
type Searcher struct {
	store  searchStore
	index  string
	metric catalogue.Metric
	ids    []string
}

var _ catalogue.VectorSearcher = (*Searcher)(nil)

// NewSearcher binds an FT index whose document at position i carries ids[i].
func NewSearcher(s searchStore, index string, metric catalogue.Metric, ids []string) *Searcher {
	return &Searcher{store: s, index: index, metric: metric, ids: append([]string(nil), ids...)}
}

// Search returns up to k hits by descending similarity.
// A hit whose stored id differs from the bound entry at its position is an engine failure.
func (s *Searcher) Search(ctx context.Context, vector []float32, k int) ([]catalogue.Hit, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}

	res, err := s.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.index,
		VectorField:  fieldVector,
		PreFilter:    fmt.Sprintf("@%s:[0 (%d]", fieldPos, len(s.ids)),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldPos, fieldID, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", s.index, err)
	}

	hits := make([]catalogue.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		pos, err := strconv.Atoi(e.Fields[fieldPos])
		if err != nil || pos < 0 || pos >= len(s.ids) {
			return nil, fmt.Errorf("%w: knn %s: document %s has invalid position %q",
				domain.ErrEngineFailure, s.index, e.Key, e.Fields[fieldPos])
		}
		if id := e.Fields[fieldID]; id != s.ids[pos] {
			return nil, fmt.Errorf("%w: knn %s: position %d holds %q, want %q",
				domain.ErrEngineFailure, s.index, pos, id, s.ids[pos])
		}
		hits = append(hits, catalogue.Hit{Position: pos, Score: s.similarity(e.Distance)})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// similarity converts the server distance: COSINE and IP report 1-sim, L2 the Euclidean distance.
func (s *Searcher) similarity(distance float64) float64 {
	if s.metric == catalogue.MetricL2 {
		return s.metric.Similarity(distance)
	}
	return 1 - distance
}
