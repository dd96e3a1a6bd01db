package recommend

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/suggest/internal/chunker"
	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/keyword"
	"github.com/kailas-cloud/suggest/internal/vectorindex"
)

func TestSharedKeywords(t *testing.T) {
	doc := []string{"insurance", "hospital", "care"}
	tests := []struct {
		name      string
		matrix    [][]float64
		threshold float64
		want      []string
	}{
		{
			name:      "argmax per row",
			matrix:    [][]float64{{0.9, 0.1, 0.2}, {0.1, 0.2, 0.8}},
			threshold: 0.7,
			want:      []string{"insurance", "care"},
		},
		{
			name:      "threshold is strict",
			matrix:    [][]float64{{0.7, 0.1, 0.2}},
			threshold: 0.7,
			want:      nil,
		},
		{
			name:      "first maximum wins ties",
			matrix:    [][]float64{{0.2, 0.95, 0.95}},
			threshold: 0.7,
			want:      []string{"hospital"},
		},
		{
			name:      "deduplicated in first seen order",
			matrix:    [][]float64{{0.1, 0.9, 0.1}, {0.9, 0.1, 0.1}, {0.1, 0.8, 0.1}},
			threshold: 0.7,
			want:      []string{"hospital", "insurance"},
		},
		{
			name:      "row below threshold contributes nothing",
			matrix:    [][]float64{{0.3, 0.2, 0.1}, {0.1, 0.1, 0.75}},
			threshold: 0.7,
			want:      []string{"care"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SharedKeywords(tt.matrix, doc, tt.threshold)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	got := Reason([]string{"insurance", "hospital care"}, 0.8765)
	want := "The user's input and the key content are related via ('insurance', 'hospital care')." +
		" The similarity score with the user is 0.88."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}

	got = Reason(nil, 0.5)
	want = "There are no directly related keywords between the user's input and the key content, " +
		"but the contextual similarity is high. The similarity score with the user is 0.50."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestSimilarityMatrix(t *testing.T) {
	a := [][]float32{{1, 0}, {0, 1}}
	b := [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}
	m := SimilarityMatrix(a, b)
	if len(m) != 2 || len(m[0]) != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", len(m), len(m[0]))
	}
	if m[0][0] != 1 || m[0][1] != 0 || m[1][1] != 1 {
		t.Errorf("unexpected matrix %v", m)
	}
}

func TestExplain_UsesConfiguredTopN(t *testing.T) {
	var seen []int
	ext := recordingExtractor{seen: &seen}
	idx, err := catalogue.NewIndex(catalogue.Config{
		Name: "x", Searcher: stubSearcher{}, Extractor: ext,
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	e := NewExplainer(newBagEmbedder(), ExplainConfig{QueryTopN: 4, DocumentTopN: 9})
	if _, err := e.Explain(context.Background(), idx, "query", "doc", 0.5); err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !reflect.DeepEqual(seen, []int{4, 9}) {
		t.Errorf("topN = %v, want [4 9]", seen)
	}
}

func TestNewExplainer_Defaults(t *testing.T) {
	e := NewExplainer(newBagEmbedder(), ExplainConfig{Threshold: 0.7})
	if e.cfg != DefaultExplainConfig() {
		t.Errorf("cfg = %+v, want defaults", e.cfg)
	}
}

func TestExplain_ZeroThresholdCountsAnyPositiveSimilarity(t *testing.T) {
	emb := newBagEmbedder()
	idx := buildIndex(t, emb, "health", catalogue.Entry{ID: "care.txt", Text: "cancer coverage"})

	// Bigrams only: the two phrases share one of two words, similarity 0.5.
	cfg := DefaultExplainConfig()
	cfg.MinNgram, cfg.MaxNgram = 2, 2

	strict, err := NewExplainer(emb, cfg).
		Explain(context.Background(), idx, "cancer treatment", "cancer coverage", 0.6)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(strict.Shared) != 0 {
		t.Fatalf("default threshold should reject partial overlaps, got %v", strict.Shared)
	}

	cfg.Threshold = 0
	loose, err := NewExplainer(emb, cfg).
		Explain(context.Background(), idx, "cancer treatment", "cancer coverage", 0.6)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !reflect.DeepEqual(loose.Shared, []string{"cancer coverage"}) {
		t.Errorf("zero threshold should keep the partial overlap, got %v", loose.Shared)
	}
}

type recordingExtractor struct {
	seen *[]int
}

func (r recordingExtractor) Extract(_ context.Context, _ string, opts catalogue.ExtractOptions) ([]catalogue.Keyword, error) {
	*r.seen = append(*r.seen, opts.TopN)
	return nil, nil
}

// contextLimitEmbedder rejects inputs longer than limit bytes.
type contextLimitEmbedder struct {
	*bagEmbedder
	limit int
}

func (c *contextLimitEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if len(text) > c.limit {
		return domain.EmbeddingResult{}, errors.New("input exceeds model context")
	}
	return c.bagEmbedder.Embed(ctx, text)
}

func TestExplain_LongDocumentWithinProviderLimit(t *testing.T) {
	bag := newBagEmbedder()
	emb := &contextLimitEmbedder{bagEmbedder: bag, limit: chunker.DefaultMaxLength}
	doc := strings.Repeat("Senior health plan covers hospital care and cancer treatment. ", 25)
	if len(doc) <= emb.limit {
		t.Fatalf("document must exceed the provider limit, got %d bytes", len(doc))
	}

	flat, err := vectorindex.NewFlat(testDim, catalogue.MetricCosine, [][]float32{bag.vector(doc)})
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	idx, err := catalogue.NewIndex(catalogue.Config{
		Name:      "health",
		Searcher:  flat,
		Entries:   []catalogue.Entry{{ID: "plan.txt", Text: doc}},
		Extractor: keyword.New(emb),
		Stopwords: keyword.DefaultStopwords(),
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	exp, err := NewExplainer(emb, DefaultExplainConfig()).
		Explain(context.Background(), idx, "hospital care for seniors", doc, 0.8)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(exp.Shared) == 0 {
		t.Errorf("expected shared keywords, got reason %q", exp.Reason)
	}
}
