package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unimate_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unimate_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"outcome"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unimate_confidence_score",
			Help:    "Retrieval confidence signal per query",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RetrievalCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unimate_retrieval_candidates",
			Help:    "Number of merged candidates per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CollectionsSearched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unimate_collections_searched",
			Help:    "Number of collections searched per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	CollectionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_collection_failures_total",
			Help: "Collections skipped because of load or search failures",
		},
	)

	GenerationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_generation_retries_total",
			Help: "Generic retries after an unusable grounded answer",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_generation_failures_total",
			Help: "Generation calls that returned the failure sentinel",
		},
	)

	EmbeddingCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	EmbeddingCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_documents_processed_total",
			Help: "Documents run through ingestion",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unimate_chunks_indexed_total",
			Help: "Chunks embedded and persisted",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "unimate_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(RetrievalCandidates)
	prometheus.MustRegister(CollectionsSearched)
	prometheus.MustRegister(CollectionFailures)
	prometheus.MustRegister(GenerationRetries)
	prometheus.MustRegister(GenerationFailures)
	prometheus.MustRegister(EmbeddingCacheHits)
	prometheus.MustRegister(EmbeddingCacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(ActiveSessions)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
