package observability

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of upstream generation requests by provider, model and outcome",
		},
		[]string{"provider", "model", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Upstream generation request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)
	ModelRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_model_rotations_total",
			Help: "Total number of times the router advanced to the next model",
		},
		[]string{"provider", "from_model"},
	)
	ResponseCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
	PromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_tokens",
			Help:    "Estimated prompt size in tokens",
			Buckets: prometheus.ExponentialBuckets(128, 2, 8),
		},
		[]string{"operation"},
	)
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_operations_total",
			Help: "Public operations by name and status",
		},
		[]string{"operation", "status"},
	)
	ItemsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_items_returned",
			Help:    "Number of items returned per operation after filtering",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"operation"},
	)
)

var initOnce sync.Once

// InitMetrics registers the collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(ModelRotationsTotal)
		prometheus.MustRegister(ResponseCacheLookupsTotal)
		prometheus.MustRegister(PromptTokens)
		prometheus.MustRegister(OperationsTotal)
		prometheus.MustRegister(ItemsReturned)
	})
}

// RecordAIRequest counts one upstream call and its latency.
func RecordAIRequest(provider, model, outcome string, seconds float64) {
	AIRequestsTotal.WithLabelValues(provider, model, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider, model).Observe(seconds)
}

// RecordRotation counts the router leaving fromModel.
func RecordRotation(provider, fromModel string) {
	ModelRotationsTotal.WithLabelValues(provider, fromModel).Inc()
}

// RecordCacheLookup counts a response cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ResponseCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObservePromptTokens records the estimated token size of a prompt.
func ObservePromptTokens(operation string, tokens int) {
	if tokens > 0 {
		PromptTokens.WithLabelValues(operation).Observe(float64(tokens))
	}
}

// RecordOperation counts a finished public operation.
func RecordOperation(operation string, err error, items int) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	if err == nil && items >= 0 {
		ItemsReturned.WithLabelValues(operation).Observe(float64(items))
	}
}

// WriteMetrics dumps the gathered metrics of g in text exposition format.
func WriteMetrics(w io.Writer, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("op=observability.WriteMetrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("op=observability.WriteMetrics: %w", err)
		}
	}
	return nil
}
