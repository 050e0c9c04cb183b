package build

import (
	"sync/atomic"
	"time"
)

// StopThreshold is a monotonically increasing timestamp. A batch stamps its
// start with the current threshold; once the threshold is raised past that
// stamp the batch is stale.
type StopThreshold struct {
	at  atomic.Int64
	now func() time.Time
}

func newStopThreshold(now func() time.Time) *StopThreshold {
	return &StopThreshold{now: now}
}

// Raise moves the threshold to the current time, or one tick past its
// previous value if the clock did not advance. It returns the new threshold.
func (s *StopThreshold) Raise() int64 {
	for {
		prev := s.at.Load()
		next := max(s.now().UnixNano(), prev+1)
		if s.at.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Stamp returns the start stamp for a batch beginning now.
func (s *StopThreshold) Stamp() int64 { return s.at.Load() }

// Stale reports whether the threshold was raised after stamp was taken.
func (s *StopThreshold) Stale(stamp int64) bool {
	return stamp < s.at.Load()
}
