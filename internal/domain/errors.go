package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory signals a profile category that has no loaded index.
	ErrUnknownCategory = errors.New("unsupported category")
	// ErrMalformedProfile signals a missing or unparseable profile field.
	ErrMalformedProfile = errors.New("malformed profile")
	// ErrEngineFailure signals an unexpected failure in embedding, search, or extraction.
	ErrEngineFailure = errors.New("engine failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAuditWrite signals that the audit artifact could not be persisted.
	ErrAuditWrite = errors.New("audit write failed")
)

// CategoryError carries the rejected category value.
type CategoryError struct {
	Category string
}

func (e *CategoryError) Error() string {
	if e.Category == "" {
		return ErrUnknownCategory.Error() + ": category field is missing"
	}
	return fmt.Sprintf("%s: %s", ErrUnknownCategory.Error(), e.Category)
}

func (e *CategoryError) Unwrap() error { return ErrUnknownCategory }

// NewUnknownCategory creates an unknown category error.
func NewUnknownCategory(category string) error {
	return &CategoryError{Category: category}
}

// MalformedField wraps ErrMalformedProfile with the offending field name.
func MalformedField(field, reason string) error {
	return fmt.Errorf("%w: field %q %s", ErrMalformedProfile, field, reason)
}

// EngineFailure wraps err as ErrEngineFailure unless it already carries a request-level kind.
func EngineFailure(op string, err error) error {
	if errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrMalformedProfile) || errors.Is(err, ErrEngineFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrEngineFailure, op, err)
}
