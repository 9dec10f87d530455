package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manual_hunter_resolution_duration_seconds",
			Help:    "End-to-end resolution duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 90},
		},
		[]string{"status"},
	)

	ResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manual_hunter_resolution_total",
			Help: "Total resolutions by terminal status",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manual_hunter_cache_hits_total",
			Help: "Total cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manual_hunter_cache_misses_total",
			Help: "Total cache misses",
		},
	)

	TierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manual_hunter_tier_attempts_total",
			Help: "Search tier invocations by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	TierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manual_hunter_tier_duration_seconds",
			Help:    "Search-plus-validation duration per tier",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"tier"},
	)

	Escalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manual_hunter_escalations_total",
			Help: "Resolutions routed to human review",
		},
	)

	JudgeParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manual_hunter_judge_parse_failures_total",
			Help: "Judge responses that failed the strict parse contract",
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "manual_hunter_confidence_score",
			Help:    "Combined confidence of accepted and rejected candidates",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	CacheWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manual_hunter_cache_write_failures_total",
			Help: "Cache upserts that failed after a successful resolution",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manual_hunter_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model"},
	)
)

func Init() {
	prometheus.MustRegister(ResolutionDuration)
	prometheus.MustRegister(ResolutionTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(TierAttempts)
	prometheus.MustRegister(TierDuration)
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(JudgeParseFailures)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheWriteFailures)
	prometheus.MustRegister(LLMTokensUsed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
