package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

var keyPrefix = domain.KeyPrefix + "audit:"

// store is the consumer interface for the Redis audit writer (ISP).
type store interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisWriter stores each request's records under suggest:audit:<id> with a TTL.
type RedisWriter struct {
	store store
	ttl   time.Duration
}

// NewRedisWriter creates a Redis-backed audit writer.
func NewRedisWriter(s store, ttl time.Duration) *RedisWriter {
	return &RedisWriter{store: s, ttl: ttl}
}

// Write stores records as a JSON array.
func (w *RedisWriter) Write(ctx context.Context, records []recommendation.Record) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	key := keyPrefix + artifactID(ctx)
	if err := w.store.SetWithTTL(ctx, key, data, w.ttl); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrAuditWrite, key, err)
	}
	return nil
}
