package build

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopThresholdRaiseIsMonotonic(t *testing.T) {
	st := newStopThreshold(fixedClock())

	first := st.Raise()
	second := st.Raise()
	assert.Greater(t, second, first, "a frozen clock still advances the threshold")

	stamp := st.Stamp()
	assert.Equal(t, second, stamp)
	assert.False(t, st.Stale(stamp))

	st.Raise()
	assert.True(t, st.Stale(stamp))
	assert.False(t, st.Stale(st.Stamp()))
}

func TestStopThresholdFollowsClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	st := newStopThreshold(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	got := st.Raise()
	assert.Equal(t, now.UnixNano(), got)

	mu.Lock()
	now = now.Add(-time.Hour)
	mu.Unlock()
	assert.Equal(t, got+1, st.Raise(), "a clock going backwards never lowers the threshold")
}

func TestStopThresholdConcurrentRaise(t *testing.T) {
	st := newStopThreshold(fixedClock())
	var wg sync.WaitGroup
	seen := make(chan int64, 64)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- st.Raise()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		assert.False(t, unique[v], "raise returned %d twice", v)
		unique[v] = true
	}
	assert.Len(t, unique, 64)
}
