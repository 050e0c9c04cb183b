package artifact

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocksSerializeSameName(t *testing.T) {
	l := NewLocks()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "plantuml")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, l.Held())
}

func TestLocksIndependentNames(t *testing.T) {
	l := NewLocks()
	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Held())
	r1()
	r2()
	assert.Equal(t, 0, l.Held())
}

func TestWaitAllReleased(t *testing.T) {
	l := NewLocks()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.WaitAllReleased(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitAllReleased returned while a lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	require.NoError(t, <-done)
}

func TestAcquireHonoursContext(t *testing.T) {
	l := NewLocks()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, l.WaitAllReleased(ctx), context.DeadlineExceeded)
}
