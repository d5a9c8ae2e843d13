package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "localpublish"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	publishDuration   prom.Histogram
	publishOutcome    *prom.CounterVec
	stageDuration     *prom.HistogramVec
	stageResults      *prom.CounterVec
	layoutResolutions *prom.CounterVec
	bytesInstalled    prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		publishDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Total publish duration",
			Buckets:   prom.DefBuckets,
		}),
		publishOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish outcomes by final status",
		}, []string{"outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual publish stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		layoutResolutions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "layout_resolutions_total",
			Help:      "Repository layout lookups by layout and result",
		}, []string{"layout", "result"}),
		bytesInstalled: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "installed_bytes_total",
			Help:      "Bytes written into local repositories",
		}),
	}
	reg.MustRegister(pr.publishDuration, pr.publishOutcome, pr.stageDuration, pr.stageResults, pr.layoutResolutions, pr.bytesInstalled)
	return pr
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.publishOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncLayoutResolution(layout string, success bool) {
	if p == nil {
		return
	}
	res := string(ResultFailed)
	if success {
		res = string(ResultSuccess)
	}
	p.layoutResolutions.WithLabelValues(layout, res).Inc()
}

func (p *PrometheusRecorder) AddBytesInstalled(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.bytesInstalled.Add(float64(n))
}
