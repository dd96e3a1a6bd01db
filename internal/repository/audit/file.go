// Package audit persists the full recommendation records of each request.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

// FileWriter writes records as an indented JSON array.
// In shared mode every request replaces one file; in per-request mode each request gets its own file.
type FileWriter struct {
	mu         sync.Mutex
	path       string
	perRequest bool
}

// NewFileWriter creates a writer. For per-request mode path is a directory, otherwise a file path.
func NewFileWriter(path string, perRequest bool) *FileWriter {
	return &FileWriter{path: path, perRequest: perRequest}
}

// Write persists records. The target file is replaced atomically via a temp file and rename.
func (w *FileWriter) Write(ctx context.Context, records []recommendation.Record) error {
	data, err := encode(records)
	if err != nil {
		return err
	}

	target := w.path
	if w.perRequest {
		target = filepath.Join(w.path, "recommendations-"+artifactID(ctx)+".json")
	} else {
		w.mu.Lock()
		defer w.mu.Unlock()
	}

	if err := writeAtomic(target, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuditWrite, err)
	}
	return nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".audit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", target, err)
	}
	return nil
}

func encode(records []recommendation.Record) ([]byte, error) {
	if records == nil {
		records = []recommendation.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal records: %w", domain.ErrAuditWrite, err)
	}
	return data, nil
}

// artifactID names an audit artifact after the request id, or a fresh uuid without one.
func artifactID(ctx context.Context) string {
	if id := domain.RequestIDFromContext(ctx); id != "" {
		return sanitize(id)
	}
	return uuid.NewString()
}

// sanitize keeps request ids usable as file names and keys.
func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
