// Package recommend matches a user profile against a category catalogue and explains each match.
package recommend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/profile"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
	"github.com/kailas-cloud/suggest/internal/logger"
	"github.com/kailas-cloud/suggest/internal/metrics"
)

// unknownCategoryLabel keeps metric cardinality bounded for rejected categories.
const unknownCategoryLabel = "unknown"

// Service runs the recommendation pipeline: category, query, search, explain, assemble, audit.
type Service struct {
	registry      RegistryReader
	builder       QueryBuilder
	searcher      *Searcher
	explainer     *Explainer
	audit         AuditWriter
	auditRequired bool
	topK          int
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets the number of recommendations per request.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithAudit sets the audit writer. When required, a failed write fails the request;
// otherwise it is logged and the recommendations are still returned.
func WithAudit(w AuditWriter, required bool) Option {
	return func(s *Service) {
		s.audit = w
		s.auditRequired = required
	}
}

// WithExplainConfig overrides the explanation parameters.
func WithExplainConfig(cfg ExplainConfig) Option {
	return func(s *Service) {
		s.explainer = NewExplainer(s.explainer.embed, cfg)
	}
}

// New creates a recommendation service. embed must return unit-length vectors.
func New(registry RegistryReader, builder QueryBuilder, embed Embedder, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		builder:   builder,
		searcher:  NewSearcher(embed),
		explainer: NewExplainer(embed, DefaultExplainConfig()),
		topK:      DefaultTopK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CategoryInfo describes one loaded category.
type CategoryInfo struct {
	Name      string
	Documents int
}

// Categories lists the loaded categories in name order.
func (s *Service) Categories() []CategoryInfo {
	reg := s.registry.Load()
	if reg == nil {
		return nil
	}
	names := reg.Categories()
	out := make([]CategoryInfo, 0, len(names))
	for _, n := range names {
		idx, _ := reg.Lookup(n)
		out = append(out, CategoryInfo{Name: n, Documents: idx.Len()})
	}
	return out
}

// Recommend returns the slim recommendations for p.
// Fails with domain.ErrUnknownCategory, domain.ErrMalformedProfile or domain.ErrEngineFailure;
// there are no partial results.
func (s *Service) Recommend(ctx context.Context, p *profile.Profile) ([]recommendation.Slim, error) {
	start := time.Now()
	label := unknownCategoryLabel

	out, category, err := s.recommend(ctx, p)
	if category != "" {
		label = category
	}

	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrUnknownCategory):
		outcome = "unknown_category"
	case errors.Is(err, domain.ErrMalformedProfile):
		outcome = "malformed_profile"
	case err != nil:
		outcome = "engine_failure"
	}
	metrics.RecommendationsTotal.WithLabelValues(label, outcome).Inc()
	if err == nil {
		metrics.RecommendationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	return out, err
}

// recommend returns the resolved category once it is known to be loaded.
func (s *Service) recommend(ctx context.Context, p *profile.Profile) ([]recommendation.Slim, string, error) {
	category, err := p.Category()
	if err != nil {
		return nil, "", err
	}
	reg := s.registry.Load()
	if reg == nil {
		return nil, "", domain.NewUnknownCategory(category)
	}
	idx, ok := reg.Lookup(category)
	if !ok {
		return nil, "", domain.NewUnknownCategory(category)
	}
	ctx = logger.With(ctx, zap.String("category", category))
	log := logger.FromContext(ctx)

	query, err := s.builder.Build(p)
	if err != nil {
		return nil, category, err
	}
	log.Debug("Canonical query built", zap.String("query", query))

	candidates, err := s.searcher.Search(ctx, idx, query, s.topK)
	if err != nil {
		return nil, category, err
	}

	reasons := make([]string, len(candidates))
	for i, c := range candidates {
		exp, err := s.explainer.Explain(ctx, idx, query, c.Text, c.Score)
		if err != nil {
			return nil, category, err
		}
		kind := "contextual"
		if len(exp.Shared) > 0 {
			kind = "keywords"
		}
		metrics.ExplanationsTotal.WithLabelValues(kind).Inc()

		log.Debug("Recommendation",
			zap.String("product", c.ID),
			zap.Float64("score", c.Score),
			zap.String("metric", string(idx.Metric())),
			zap.Strings("shared_keywords", exp.Shared),
		)
		reasons[i] = exp.Reason
	}

	records, slim, err := Assemble(candidates, reasons)
	if err != nil {
		return nil, category, err
	}
	if err := s.writeAudit(ctx, records); err != nil {
		return nil, category, err
	}
	return slim, category, nil
}

func (s *Service) writeAudit(ctx context.Context, records []recommendation.Record) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Write(ctx, records); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		if s.auditRequired {
			return domain.EngineFailure("write audit", err)
		}
		logger.FromContext(ctx).Warn("Audit write failed, returning recommendations", zap.Error(err))
		return nil
	}
	metrics.AuditWritesTotal.WithLabelValues("success").Inc()
	return nil
}
