package metrics

import (
	"sync"
	"time"
)

// testRecorder counts calls; used by tests that assert on recorder wiring.
type testRecorder struct {
	mu            sync.Mutex
	buildModes    map[string]int
	pageResults   map[ResultLabel]int
	batchOutcomes map[BatchOutcome]int
	linkWarnings  int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		buildModes:    map[string]int{},
		pageResults:   map[ResultLabel]int{},
		batchOutcomes: map[BatchOutcome]int{},
	}
}

func (t *testRecorder) ObserveBuildDuration(mode string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildModes[mode]++
}

func (t *testRecorder) IncPageResult(result ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageResults[result]++
}

func (t *testRecorder) IncBatchOutcome(outcome BatchOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batchOutcomes[outcome]++
}

func (t *testRecorder) AddLinkWarnings(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.linkWarnings += n
}

func (t *testRecorder) SetInFlight(int) {}
func (t *testRecorder) SetPending(int)  {}

var (
	_ Recorder = (*testRecorder)(nil)
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
