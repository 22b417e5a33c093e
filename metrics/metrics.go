package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	askTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_ask_total",
		Help: "Answered questions by outcome (grounded/fallback/cached/error)",
	}, []string{"outcome"})

	askLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_ask_latency_ms",
		Help:    "End to end latency of one question in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
	})

	retrievalMatches = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_retrieval_matches",
		Help:    "Matches above the similarity threshold per question",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	retrievalTopScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_retrieval_top_score",
		Help:    "Similarity score of the best match per question",
		Buckets: []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1.0},
	})

	ingestPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_ingest_pages_total",
		Help: "Ingested pages by result (ok/failed)",
	}, []string{"result"})

	ingestVectors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_ingest_vectors_total",
		Help: "Vectors handled during ingestion (upserted/skipped)",
	}, []string{"action"})

	ingestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_ingest_run_latency_ms",
		Help:    "Latency of a full ingestion run in milliseconds",
		Buckets: []float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 180000},
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(askTotal, askLatency, retrievalMatches, retrievalTopScore,
			ingestPages, ingestVectors, ingestLatency)
	})
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}

// ObserveAsk records one answered question.
func ObserveAsk(outcome string, start time.Time) {
	ensureRegistered()
	askTotal.WithLabelValues(outcome).Inc()
	askLatency.Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveRetrieval records match count and best score for one question.
func ObserveRetrieval(matches int, topScore float64) {
	ensureRegistered()
	retrievalMatches.Observe(float64(matches))
	if topScore > 0 {
		retrievalTopScore.Observe(topScore)
	}
}

// ObserveIngestPage records the outcome of one page fetch.
func ObserveIngestPage(ok bool) {
	ensureRegistered()
	result := "ok"
	if !ok {
		result = "failed"
	}
	ingestPages.WithLabelValues(result).Inc()
}

// ObserveIngestRun records vector counts and duration of one ingestion run.
func ObserveIngestRun(upserted, skipped int, start time.Time) {
	ensureRegistered()
	ingestVectors.WithLabelValues("upserted").Add(float64(upserted))
	ingestVectors.WithLabelValues("skipped").Add(float64(skipped))
	ingestLatency.Observe(float64(time.Since(start).Milliseconds()))
}
