package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Fallback reasons recorded in metrics and logs.
const (
	reasonEmptyQuery      = "empty_query"
	reasonNoCandidates    = "no_candidates"
	reasonNotConfigured   = "not_configured"
	reasonProviderError   = "provider_error"
	reasonInvalidReply    = "invalid_reply"
	reasonPromptRendering = "prompt_error"
)

// Metrics holds the recommendation engine's Prometheus collectors. A nil
// *Metrics records nothing.
type Metrics struct {
	results      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	llmLatency   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapi",
			Subsystem: "recommend",
			Name:      "results_total",
			Help:      "Recommendation results by the path that produced them.",
		}, []string{"source"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapi",
			Subsystem: "recommend",
			Name:      "fallbacks_total",
			Help:      "Keyword fallbacks by reason.",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapi",
			Subsystem: "recommend",
			Name:      "cache_lookups_total",
			Help:      "Recommendation cache lookups by outcome.",
		}, []string{"result"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mcpapi",
			Subsystem: "recommend",
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of upstream LLM calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.results, m.fallbacks, m.cacheLookups, m.llmLatency)
	}
	return m
}

func (m *Metrics) observeResult(source models.RecommendationSource) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) observeFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observeLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(d.Seconds())
}
