package recommend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/domain/profile"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
	"github.com/kailas-cloud/suggest/internal/keyword"
	"github.com/kailas-cloud/suggest/internal/vectorindex"
)

const testDim = 64

// bagEmbedder gives every distinct word its own dimension, so texts sharing words
// are similar and identical phrases score exactly 1.
type bagEmbedder struct {
	mu    sync.Mutex
	words map[string]int
	err   error
	calls int
}

func newBagEmbedder() *bagEmbedder {
	return &bagEmbedder{words: make(map[string]int)}
}

func (b *bagEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return domain.EmbeddingResult{}, b.err
	}
	return domain.EmbeddingResult{Embedding: b.vector(text), TotalTokens: 1}, nil
}

func (b *bagEmbedder) vector(text string) []float32 {
	v := make([]float32, testDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		i, ok := b.words[w]
		if !ok {
			i = len(b.words) % testDim
			b.words[w] = i
		}
		v[i]++
	}
	return domain.Normalize(v)
}

// buildIndex embeds docs with emb and wraps them in a flat cosine index.
func buildIndex(t *testing.T, emb *bagEmbedder, name string, entries ...catalogue.Entry) *catalogue.Index {
	t.Helper()
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		res, err := emb.Embed(context.Background(), e.Text)
		if err != nil {
			t.Fatalf("embed %q: %v", e.ID, err)
		}
		vectors[i] = res.Embedding
	}
	flat, err := vectorindex.NewFlat(testDim, catalogue.MetricCosine, vectors)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	idx, err := catalogue.NewIndex(catalogue.Config{
		Name:      name,
		Searcher:  flat,
		Entries:   entries,
		Extractor: keyword.New(emb),
		Stopwords: keyword.DefaultStopwords(),
		Metric:    catalogue.MetricCosine,
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func holderOf(t *testing.T, indices ...*catalogue.Index) *catalogue.Holder {
	t.Helper()
	reg, err := catalogue.NewRegistry(indices...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return catalogue.NewHolder(reg)
}

func profileOf(fields ...string) *profile.Profile {
	g := profile.Group{Name: "purpose"}
	for i := 0; i+1 < len(fields); i += 2 {
		g.Fields = append(g.Fields, profile.NewField(fields[i], fields[i+1]))
	}
	return &profile.Profile{Groups: []profile.Group{g}}
}

type stubBuilder struct {
	query string
	err   error
}

func (s stubBuilder) Build(*profile.Profile) (string, error) { return s.query, s.err }

type stubAudit struct {
	mu      sync.Mutex
	err     error
	batches [][]recommendation.Record
}

func (s *stubAudit) Write(_ context.Context, records []recommendation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]recommendation.Record(nil), records...))
	return s.err
}

func (s *stubAudit) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type stubSearcher struct {
	hits []catalogue.Hit
	err  error
}

func (s stubSearcher) Search(context.Context, []float32, int) ([]catalogue.Hit, error) {
	return s.hits, s.err
}

type stubExtractor struct {
	byText map[string][]catalogue.Keyword
}

func (s stubExtractor) Extract(_ context.Context, text string, opts catalogue.ExtractOptions) ([]catalogue.Keyword, error) {
	kws := s.byText[text]
	if opts.TopN > 0 && len(kws) > opts.TopN {
		kws = kws[:opts.TopN]
	}
	return kws, nil
}

var errProvider = errors.New("provider down")
