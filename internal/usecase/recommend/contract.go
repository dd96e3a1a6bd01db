package recommend

import (
	"context"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/domain/profile"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

// Embedder vectorizes text into unit-length embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// AuditWriter persists the full records of one request as a single artifact.
type AuditWriter interface {
	Write(ctx context.Context, records []recommendation.Record) error
}

// RegistryReader returns the category registry in effect.
type RegistryReader interface {
	Load() *catalogue.Registry
}

// QueryBuilder renders a profile as the canonical query text.
type QueryBuilder interface {
	Build(p *profile.Profile) (string, error)
}
