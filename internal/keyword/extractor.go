// Package keyword extracts ranked keyphrases by embedding similarity between
// candidate n-grams and the whole text.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/suggest/internal/chunker"
	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

// Default extraction parameters.
const (
	DefaultMinNgram = 1
	DefaultMaxNgram = 2
)

// Extractor scores every 1..n-word candidate phrase by the cosine similarity of its
// embedding to the embedding of the full text. The full text is embedded as the
// renormalised mean of its chunks, as catalogue documents are at load time.
type Extractor struct {
	embedder       domain.Embedder
	tokenPattern   *regexp.Regexp
	chunkMaxLength int
}

var _ catalogue.KeywordExtractor = (*Extractor)(nil)

// Option configures an Extractor.
type Option func(*Extractor)

// WithChunkMaxLength bounds the passages the full text is split into before embedding.
func WithChunkMaxLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.chunkMaxLength = n
		}
	}
}

// New creates an extractor backed by embedder.
func New(embedder domain.Embedder, opts ...Option) *Extractor {
	e := &Extractor{
		embedder:       embedder,
		tokenPattern:   regexp.MustCompile(`[\p{L}\p{N}_]{2,}`),
		chunkMaxLength: chunker.DefaultMaxLength,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns up to opts.TopN keyphrases in descending score order.
// Text without any candidate phrase yields an empty result, not an error.
func (e *Extractor) Extract(
	ctx context.Context, text string, opts catalogue.ExtractOptions,
) ([]catalogue.Keyword, error) {
	opts = withDefaults(opts)
	if opts.MinNgram > opts.MaxNgram {
		return nil, errors.New("min ngram exceeds max ngram")
	}

	candidates := e.candidates(text, opts)
	if len(candidates) == 0 {
		return nil, nil
	}

	chunks, err := chunker.Split(text, e.chunkMaxLength)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}
	if len(chunks) == 0 {
		chunks = []string{text}
	}

	groups := make([][]string, 0, len(candidates)+1)
	groups = append(groups, chunks)
	for _, c := range candidates {
		groups = append(groups, []string{c})
	}

	vectors, tokens, err := domain.EmbedPooled(ctx, e.embedder, groups)
	if err != nil {
		return nil, fmt.Errorf("embed keyphrase candidates: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(tokens)

	doc := vectors[0]
	keywords := make([]catalogue.Keyword, len(candidates))
	for i, c := range candidates {
		keywords[i] = catalogue.Keyword{
			Phrase: c,
			Score:  domain.Dot(doc, vectors[i+1]),
		}
	}
	sort.SliceStable(keywords, func(a, b int) bool { return keywords[a].Score > keywords[b].Score })

	if opts.TopN > 0 && len(keywords) > opts.TopN {
		keywords = keywords[:opts.TopN]
	}
	return keywords, nil
}

// candidates lowercases and tokenizes text, drops stopwords, then collects distinct
// n-grams over the remaining tokens in order of first appearance.
func (e *Extractor) candidates(text string, opts catalogue.ExtractOptions) []string {
	stop := make(map[string]struct{}, len(opts.Stopwords))
	for _, w := range opts.Stopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}

	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, isStop := stop[t]; isStop {
			continue
		}
		tokens = append(tokens, t)
	}

	seen := make(map[string]struct{})
	var out []string
	for n := opts.MinNgram; n <= opts.MaxNgram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			phrase := strings.Join(tokens[i:i+n], " ")
			if _, dup := seen[phrase]; dup {
				continue
			}
			seen[phrase] = struct{}{}
			out = append(out, phrase)
		}
	}
	return out
}

func withDefaults(opts catalogue.ExtractOptions) catalogue.ExtractOptions {
	if opts.MinNgram <= 0 {
		opts.MinNgram = DefaultMinNgram
	}
	if opts.MaxNgram <= 0 {
		opts.MaxNgram = DefaultMaxNgram
	}
	return opts
}
