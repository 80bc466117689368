// Package metrics holds the Prometheus instruments for the clip pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline counters and histograms. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	events        *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	refreshes     *prometheus.CounterVec
}

// New registers the pipeline instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clipflow_events_total",
			Help: "Inbound events by terminal outcome (ignored, succeeded, failed).",
		}, []string{"outcome"}),
		stageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clipflow_stage_failures_total",
			Help: "Pipeline failures by stage and reason.",
		}, []string{"stage", "reason"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clipflow_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clipflow_token_refreshes_total",
			Help: "Backend credential refresh attempts by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Event(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StageFailure(stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
