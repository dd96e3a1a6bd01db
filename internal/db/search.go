package db

import (
	"encoding/binary"
	"math"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	PreFilter    string // FT query restricting candidates, e.g. "@pos:[0 (10]"
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance is the raw __vector_score reported by the server for the index metric.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// VectorToBytes encodes v as little-endian FLOAT32, the blob format of VECTOR fields.
func VectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
