package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "suggest"

// Recommendation engine Prometheus metrics.
var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Total number of recommendation requests by outcome",
		},
		[]string{"category", "outcome"},
	)

	RecommendationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_duration_seconds",
			Help:      "End-to-end recommendation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"category"},
	)

	ExplanationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Generated explanations by kind",
		},
		[]string{"kind"}, // "keywords" / "contextual"
	)

	AuditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Audit artifact writes by status",
		},
		[]string{"status"},
	)

	CatalogueDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalogue_documents",
			Help:      "Documents loaded per category",
		},
		[]string{"category"},
	)
)

var recMetricsRegistered bool

// RegisterRecommendationMetrics registers the engine metrics. Must be called once from main.
func RegisterRecommendationMetrics() {
	if recMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(RecommendationDuration)
	prometheus.MustRegister(ExplanationsTotal)
	prometheus.MustRegister(AuditWritesTotal)
	prometheus.MustRegister(CatalogueDocuments)
	recMetricsRegistered = true
}
