package knn

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/suggest/internal/db"
	"github.com/kailas-cloud/suggest/internal/domain/catalogue"
)

const (
	fieldPos    = "pos"
	fieldID     = "id"
	fieldVector = "vector"
)

// HNSWConfig holds HNSW index parameters. Zero values use server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

func distanceFor(m catalogue.Metric) (db.DistanceMetric, error) {
	switch m {
	case catalogue.MetricCosine:
		return db.DistanceCosine, nil
	case catalogue.MetricInnerProduct:
		return db.DistanceIP, nil
	case catalogue.MetricL2:
		return db.DistanceL2, nil
	}
	return "", fmt.Errorf("unsupported metric %q", m)
}

// buildIndex defines the category schema: numeric position, tag id and the document vector.
func buildIndex(name, prefix string, dim int, metric catalogue.Metric, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	distance, err := distanceFor(metric)
	if err != nil {
		return nil, err
	}
	def, err := db.NewIndex(name).
		Prefix(prefix).
		Numeric(fieldPos).
		Tag(fieldID).
		VectorHNSW(fieldVector, dim, distance, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	return def, nil
}

// versionSpace namespaces publication versions.
var versionSpace = uuid.MustParse("5b0d3c1e-8f2a-4c6b-9e7d-2a1f4b8c6d3e")

// publicationVersion derives a name-based UUID from everything that shapes the index:
// its base name, schema parameters, document ids in position order and their vectors.
func publicationVersion(p Publication, dim int, hnsw HNSWConfig) string {
	buf := make([]byte, 0, 64+len(p.Entries)*(dim*4+16))
	buf = append(buf, p.IndexName...)
	buf = append(buf, 0)
	buf = append(buf, p.Metric...)
	buf = append(buf, 0)
	for _, n := range []int{dim, hnsw.M, hnsw.EFConstruct} {
		buf = strconv.AppendInt(buf, int64(n), 10)
		buf = append(buf, 0)
	}
	for i, e := range p.Entries {
		buf = append(buf, e.ID...)
		buf = append(buf, 0)
		buf = append(buf, db.VectorToBytes(p.Vectors[i])...)
	}
	return uuid.NewSHA1(versionSpace, buf).String()
}
