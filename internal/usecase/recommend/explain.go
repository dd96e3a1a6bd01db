package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

// ExplainConfig parameterizes reason generation.
type ExplainConfig struct {
	// Threshold is the similarity a keyword pair must exceed to count as shared.
	Threshold    float64
	QueryTopN    int
	DocumentTopN int
	MinNgram     int
	MaxNgram     int
}

// DefaultExplainConfig returns the production parameters.
func DefaultExplainConfig() ExplainConfig {
	return ExplainConfig{
		Threshold:    0.7,
		QueryTopN:    10,
		DocumentTopN: 30,
		MinNgram:     1,
		MaxNgram:     2,
	}
}

const (
	reasonShared     = "The user's input and the key content are related via (%s)."
	reasonContextual = "There are no directly related keywords between the user's input and the key content, but the contextual similarity is high."
	reasonScore      = " The similarity score with the user is %.2f."
)

// Explanation is the reason for one candidate and the keywords it cites.
type Explanation struct {
	Reason string
	Shared []string
}

// Explainer justifies a candidate by the keyphrases it shares with the query.
type Explainer struct {
	embed Embedder
	cfg   ExplainConfig
}

// NewExplainer creates an explainer. Non-positive top-n and n-gram fields take defaults;
// Threshold is used as given, so zero counts every positive similarity.
func NewExplainer(embed Embedder, cfg ExplainConfig) *Explainer {
	def := DefaultExplainConfig()
	if cfg.QueryTopN <= 0 {
		cfg.QueryTopN = def.QueryTopN
	}
	if cfg.DocumentTopN <= 0 {
		cfg.DocumentTopN = def.DocumentTopN
	}
	if cfg.MinNgram <= 0 {
		cfg.MinNgram = def.MinNgram
	}
	if cfg.MaxNgram <= 0 {
		cfg.MaxNgram = def.MaxNgram
	}
	return &Explainer{embed: embed, cfg: cfg}
}

// Explain extracts keyphrases from query and document with the category extractor,
// matches every query keyphrase to its most similar document keyphrase and renders the reason.
func (e *Explainer) Explain(
	ctx context.Context, idx *catalogue.Index, query, document string, score float64,
) (Explanation, error) {
	opts := catalogue.ExtractOptions{
		MinNgram:  e.cfg.MinNgram,
		MaxNgram:  e.cfg.MaxNgram,
		Stopwords: idx.Stopwords(),
	}

	opts.TopN = e.cfg.QueryTopN
	queryKW, err := idx.Extractor().Extract(ctx, query, opts)
	if err != nil {
		return Explanation{}, domain.EngineFailure("extract query keywords", err)
	}
	opts.TopN = e.cfg.DocumentTopN
	docKW, err := idx.Extractor().Extract(ctx, document, opts)
	if err != nil {
		return Explanation{}, domain.EngineFailure("extract document keywords", err)
	}

	shared, err := e.sharedKeywords(ctx, phrases(queryKW), phrases(docKW))
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{Reason: Reason(shared, score), Shared: shared}, nil
}

func (e *Explainer) sharedKeywords(ctx context.Context, query, doc []string) ([]string, error) {
	if len(query) == 0 || len(doc) == 0 {
		return nil, nil
	}

	res, err := domain.EmbedAll(ctx, e.embed, append(append([]string(nil), query...), doc...))
	if err != nil {
		return nil, domain.EngineFailure("embed keywords", err)
	}
	if len(res.Embeddings) != len(query)+len(doc) {
		return nil, fmt.Errorf("%w: embed keywords: got %d vectors for %d keywords",
			domain.ErrEngineFailure, len(res.Embeddings), len(query)+len(doc))
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	qv := normalizeAll(res.Embeddings[:len(query)])
	dv := normalizeAll(res.Embeddings[len(query):])
	return SharedKeywords(SimilarityMatrix(qv, dv), doc, e.cfg.Threshold), nil
}

// SimilarityMatrix returns m[i][j] = cosine(a[i], b[j]) for unit vectors.
func SimilarityMatrix(a, b [][]float32) [][]float64 {
	m := make([][]float64, len(a))
	for i := range a {
		m[i] = make([]float64, len(b))
		for j := range b {
			m[i][j] = domain.Dot(a[i], b[j])
		}
	}
	return m
}

// SharedKeywords picks, for each row, the first column with the maximum similarity and keeps its
// document keyword when that maximum exceeds threshold. Keywords are deduplicated in first-seen order.
func SharedKeywords(matrix [][]float64, docKeywords []string, threshold float64) []string {
	var shared []string
	seen := make(map[string]bool)
	for _, row := range matrix {
		if len(row) == 0 {
			continue
		}
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if row[best] <= threshold {
			continue
		}
		kw := docKeywords[best]
		if !seen[kw] {
			seen[kw] = true
			shared = append(shared, kw)
		}
	}
	return shared
}

// Reason renders the explanation sentence followed by the similarity score.
func Reason(shared []string, score float64) string {
	var b strings.Builder
	if len(shared) > 0 {
		quoted := make([]string, len(shared))
		for i, kw := range shared {
			quoted[i] = "'" + kw + "'"
		}
		fmt.Fprintf(&b, reasonShared, strings.Join(quoted, ", "))
	} else {
		b.WriteString(reasonContextual)
	}
	fmt.Fprintf(&b, reasonScore, score)
	return b.String()
}

func phrases(kws []catalogue.Keyword) []string {
	out := make([]string, len(kws))
	for i, k := range kws {
		out[i] = k.Phrase
	}
	return out
}

func normalizeAll(vs [][]float32) [][]float32 {
	out := make([][]float32, len(vs))
	for i, v := range vs {
		out[i] = domain.Normalize(v)
	}
	return out
}
