package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration *prom.HistogramVec
	pageResults   *prom.CounterVec
	batchOutcome  *prom.CounterVec
	linkWarnings  prom.Counter
	inFlight      prom.Gauge
	pending       prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Build duration by mode",
			Buckets:   prom.DefBuckets,
		}, []string{"mode"}),
		pageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "page_results_total",
			Help:      "Page generation results",
		}, []string{"result"}),
		batchOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_outcomes_total",
			Help:      "Batch outcomes by final status",
		}, []string{"outcome"}),
		linkWarnings: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "link_warnings_total",
			Help:      "Broken link warnings reported by link validation",
		}),
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Page generation tasks currently running",
		}),
		pending: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_pending",
			Help:      "Pages waiting for an on-demand or background build",
		}),
	}
	reg.MustRegister(pr.buildDuration, pr.pageResults, pr.batchOutcome, pr.linkWarnings, pr.inFlight, pr.pending)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(mode string, d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPageResult(result ResultLabel) {
	if p == nil {
		return
	}
	p.pageResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncBatchOutcome(outcome BatchOutcome) {
	if p == nil {
		return
	}
	p.batchOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddLinkWarnings(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.linkWarnings.Add(float64(n))
}

func (p *PrometheusRecorder) SetInFlight(n int) {
	if p == nil {
		return
	}
	p.inFlight.Set(float64(n))
}

func (p *PrometheusRecorder) SetPending(n int) {
	if p == nil {
		return
	}
	p.pending.Set(float64(n))
}
