// Package metrics exposes pipeline counters and histograms to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperjump/copilot/internal/models"
)

const namespace = "copilot"

// OutcomeFailed labels requests that ended in an error.
const OutcomeFailed = "failed"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	citationsDropped prometheus.Counter
	bestScore        prometheus.Histogram
	generation       prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Answer pipeline requests by terminal outcome.",
		}, []string{"outcome"}),
		citationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_dropped_total",
			Help:      "Model citations dropped because the source was not retrieved.",
		}),
		bestScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_best_score",
			Help:      "Best relevance score per gated request, when scores are present.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		generation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "Latency of generation backend calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 180},
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.citationsDropped, m.bestScore, m.generation} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOutcome counts a completed request.
func (m *Metrics) ObserveOutcome(o models.Outcome) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(o)).Inc()
}

// ObserveFailure counts a request that returned an error.
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(OutcomeFailed).Inc()
}

// ObserveBestScore records the gate's best score when it is present.
func (m *Metrics) ObserveBestScore(s models.Score) {
	if m == nil {
		return
	}
	if v, ok := s.Value(); ok {
		m.bestScore.Observe(v)
	}
}

// ObserveDropped adds n dropped citations.
func (m *Metrics) ObserveDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.citationsDropped.Add(float64(n))
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.generation.Observe(d.Seconds())
}
