package metrics

import "time"

// ResultLabel enumerates page generation outcomes for counters.
type ResultLabel string

const (
	ResultGenerated ResultLabel = "generated"
	ResultUnchanged ResultLabel = "unchanged"
	ResultSkipped   ResultLabel = "skipped"
	ResultFailed    ResultLabel = "failed"
)

// BatchOutcome enumerates batch outcomes.
type BatchOutcome string

const (
	BatchSuccess  BatchOutcome = "success"
	BatchFailed   BatchOutcome = "failed"
	BatchCanceled BatchOutcome = "canceled"
)

// Recorder defines observability hooks for the build scheduler. Implementations
// may forward to Prometheus or any other backend. NoopRecorder is the default.
type Recorder interface {
	ObserveBuildDuration(mode string, d time.Duration)
	IncPageResult(result ResultLabel)
	IncBatchOutcome(outcome BatchOutcome)
	AddLinkWarnings(n int)
	SetInFlight(n int)
	SetPending(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncPageResult(ResultLabel)                  {}
func (NoopRecorder) IncBatchOutcome(BatchOutcome)               {}
func (NoopRecorder) AddLinkWarnings(int)                        {}
func (NoopRecorder) SetInFlight(int)                            {}
func (NoopRecorder) SetPending(int)                             {}
