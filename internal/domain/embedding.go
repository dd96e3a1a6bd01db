package domain

import (
	"context"
	"fmt"
	"math"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Embed once per text for providers without a native batch endpoint.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// EmbedAll vectorizes texts through BatchEmbed when e supports it, one by one otherwise.
// An empty input yields an empty result without calling the provider.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers wrap with their own op
	}
	return BatchFallback(ctx, e, texts)
}

// EmbedPooled embeds every part of every group in one batch and represents each group
// by the renormalised mean of its part vectors. Groups must be non-empty.
func EmbedPooled(ctx context.Context, e Embedder, groups [][]string) ([][]float32, int, error) {
	var (
		parts []string
		owner []int
	)
	for i, g := range groups {
		if len(g) == 0 {
			return nil, 0, fmt.Errorf("group %d is empty", i)
		}
		for _, p := range g {
			parts = append(parts, p)
			owner = append(owner, i)
		}
	}
	if len(parts) == 0 {
		return nil, 0, nil
	}

	res, err := EmbedAll(ctx, e, parts)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck // callers wrap with their own op
	}
	if len(res.Embeddings) != len(parts) {
		return nil, 0, fmt.Errorf("got %d vectors for %d inputs", len(res.Embeddings), len(parts))
	}

	dim := len(res.Embeddings[0])
	sums := make([][]float64, len(groups))
	for i, v := range res.Embeddings {
		if len(v) != dim {
			return nil, 0, fmt.Errorf("input %d has dimension %d, want %d", i, len(v), dim)
		}
		g := owner[i]
		if sums[g] == nil {
			sums[g] = make([]float64, dim)
		}
		for j, f := range v {
			sums[g][j] += float64(f)
		}
	}

	vectors := make([][]float32, len(groups))
	for i, s := range sums {
		v := make([]float32, dim)
		for j, f := range s {
			v[j] = float32(f)
		}
		vectors[i] = Normalize(v)
	}
	return vectors, res.TotalTokens, nil
}

// NormalizingEmbedder is a domain decorator that scales every vector to unit length,
// so cosine similarity reduces to a dot product.
type NormalizingEmbedder struct {
	inner Embedder
}

// NewNormalizingEmbedder creates a decorator that L2-normalizes embeddings.
func NewNormalizingEmbedder(inner Embedder) *NormalizingEmbedder {
	return &NormalizingEmbedder{inner: inner}
}

// Embed delegates to inner embedder and normalizes the vector.
func (e *NormalizingEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("normalized embed: %w", err)
	}
	result.Embedding = Normalize(result.Embedding)
	return result, nil
}

// BatchEmbed normalizes each vector returned by the inner embedder.
// Falls back to per-text Embed when inner has no batch support.
func (e *NormalizingEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	res, err := EmbedAll(ctx, e.inner, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("normalized batch embed: %w", err)
	}
	for i, v := range res.Embeddings {
		res.Embeddings[i] = Normalize(v)
	}
	return res, nil
}

// HealthCheck proxies the provider health check when inner supports it.
func (e *NormalizingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

// Dot returns the dot product over the common prefix of a and b.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := range n {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
