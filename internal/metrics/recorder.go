package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel is the final status of a publish.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for publish and stage metrics.
type Recorder interface {
	ObservePublishDuration(d time.Duration)
	IncPublishOutcome(outcome OutcomeLabel)
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncLayoutResolution(layout string, success bool)
	AddBytesInstalled(n int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePublishDuration(time.Duration)       {}
func (NoopRecorder) IncPublishOutcome(OutcomeLabel)             {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncLayoutResolution(string, bool)           {}
func (NoopRecorder) AddBytesInstalled(int64)                    {}
