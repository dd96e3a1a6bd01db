// Package chunker splits long text into bounded passages on sentence boundaries.
package chunker

import (
	"errors"
	"strings"
)

const (
	// DefaultMaxLength is the chunk length used when callers have no preference.
	DefaultMaxLength = 512

	sentenceDelimiter = ". "
)

// ErrInvalidMaxLength is returned for a non-positive maximum chunk length.
var ErrInvalidMaxLength = errors.New("chunker: max length must be positive")

// Split accumulates ". "-delimited sentences into chunks shorter than maxLength bytes.
// A sentence that alone reaches maxLength becomes its own oversized chunk.
// Every sentence but the last keeps the period its delimiter consumed, so
// strings.Join(chunks, " ") reproduces the trimmed sentence sequence.
// Chunks are trimmed and never empty.
func Split(text string, maxLength int) ([]string, error) {
	if maxLength <= 0 {
		return nil, ErrInvalidMaxLength
	}

	sentences := strings.Split(text, sentenceDelimiter)

	var (
		chunks  []string
		pending []string
		size    int // length of pending with one delimiter per sentence
	)
	flush := func() {
		if c := strings.TrimSpace(strings.Join(pending, " ")); c != "" {
			chunks = append(chunks, c)
		}
		pending = pending[:0]
		size = 0
	}

	for i, sentence := range sentences {
		if size+len(sentence)+1 >= maxLength {
			flush()
		}
		size += len(sentence) + len(sentenceDelimiter)
		if i < len(sentences)-1 {
			sentence += "."
		}
		pending = append(pending, sentence)
	}
	flush()

	return chunks, nil
}
