package recommend

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

// DefaultTopK is the number of recommendations per request.
const DefaultTopK = 3

// Searcher retrieves the nearest catalogue documents for a query.
type Searcher struct {
	embed Embedder
}

// NewSearcher creates a searcher embedding queries with embed.
func NewSearcher(embed Embedder) *Searcher {
	return &Searcher{embed: embed}
}

// Search embeds query and returns at most k candidates from idx by descending score.
// An index with fewer than k documents yields what it holds.
func (s *Searcher) Search(ctx context.Context, idx *catalogue.Index, query string, k int) ([]recommendation.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", domain.ErrEngineFailure, k)
	}

	if idx.Len() == 0 {
		return nil, nil
	}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.EngineFailure("vectorize query", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	hits, err := idx.Searcher().Search(ctx, emb.Embedding, min(k, idx.Len()))
	if err != nil {
		return nil, domain.EngineFailure("search "+idx.Name(), err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]recommendation.Candidate, 0, len(hits))
	for _, h := range hits {
		entry, ok := idx.Entry(h.Position)
		if !ok {
			return nil, fmt.Errorf("%w: index %q returned position %d outside %d documents",
				domain.ErrEngineFailure, idx.Name(), h.Position, idx.Len())
		}
		out = append(out, recommendation.Candidate{
			Text:     entry.Text,
			ID:       entry.ID,
			Position: h.Position,
			Score:    h.Score,
		})
	}
	return out, nil
}
