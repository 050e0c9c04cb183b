package build

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunThrottledBoundsInFlight(t *testing.T) {
	tests := []struct {
		name  string
		width int
		items int
		limit int32
	}{
		{"sequential", 1, 8, 1},
		{"pool of four", 4, 20, 4},
		{"zero width runs one at a time", 0, 5, 1},
		{"wider than work", 16, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.items)
			var inFlight, peak, calls atomic.Int32
			err := runThrottled(context.Background(), tt.width, items, func(context.Context, int) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				calls.Add(1)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, int32(tt.items), calls.Load())
			assert.LessOrEqual(t, peak.Load(), tt.limit)
		})
	}
}

func TestRunThrottledStopsQueuedWorkAfterError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	err := runThrottled(context.Background(), 1, []int{1, 2, 3, 4}, func(_ context.Context, i int) error {
		calls.Add(1)
		if i == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunThrottledCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := runThrottled(ctx, 2, []int{1, 2, 3}, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
}
