package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and search cache metrics.
var (
	RetrievalSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_searches_total",
			Help:      "Searches by outcome",
		},
		[]string{"outcome"}, // "ok" / "empty_query" / "error"
	)

	RetrievalFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_fallback_total",
			Help:      "Unfiltered fallback queries by reason",
		},
		[]string{"reason"}, // "empty" / "error"
	)

	RetrievalEmbedRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_embed_retries_total",
			Help:      "Query embedding attempts that failed and were retried",
		},
	)

	RetrievalSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_search_duration_seconds",
			Help:      "Duration of uncached searches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	FilterFieldsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_fields_dropped_total",
			Help:      "Raw filter fields discarded during normalization",
		},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalSearchesTotal)
	prometheus.MustRegister(RetrievalFallbackTotal)
	prometheus.MustRegister(RetrievalEmbedRetriesTotal)
	prometheus.MustRegister(RetrievalSearchDuration)
	prometheus.MustRegister(FilterFieldsDroppedTotal)
	prometheus.MustRegister(SearchCacheTotal)
	retrievalMetricsRegistered = true
}
