package build

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

type flushLog struct {
	mu      sync.Mutex
	batches [][]string
	calls   chan []string
	block   chan struct{}
}

func newFlushLog() *flushLog {
	return &flushLog{calls: make(chan []string, 16)}
}

func (f *flushLog) flush(_ context.Context, paths []string) error {
	f.mu.Lock()
	f.batches = append(f.batches, paths)
	block := f.block
	f.mu.Unlock()
	f.calls <- paths
	if block != nil {
		<-block
	}
	return nil
}

func (f *flushLog) next(t *testing.T) []string {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for flush")
		return nil
	}
}

func TestNewDebouncerValidation(t *testing.T) {
	noop := func(context.Context, []string) error { return nil }
	tests := []struct {
		name string
		cfg  DebouncerConfig
	}{
		{"missing quiet window", DebouncerConfig{Flush: noop}},
		{"negative max delay", DebouncerConfig{QuietWindow: time.Millisecond, MaxDelay: -1, Flush: noop}},
		{"missing flush", DebouncerConfig{QuietWindow: time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDebouncer(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, derrors.HasCategory(err, derrors.CategoryValidation))
		})
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	f := newFlushLog()
	d, err := NewDebouncer(context.Background(), DebouncerConfig{QuietWindow: 50 * time.Millisecond, Flush: f.flush})
	require.NoError(t, err)
	defer d.Stop()

	d.Request("b.md", "a.md")
	d.Request("a.md", "c.md")
	assert.Equal(t, 3, d.Pending())

	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, f.next(t))
	assert.Zero(t, d.Pending())

	select {
	case extra := <-f.calls:
		t.Fatalf("unexpected second flush: %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerRequestDuringFlushFollowsUp(t *testing.T) {
	f := newFlushLog()
	f.block = make(chan struct{})
	d, err := NewDebouncer(context.Background(), DebouncerConfig{QuietWindow: 20 * time.Millisecond, Flush: f.flush})
	require.NoError(t, err)
	defer d.Stop()

	d.Request("first.md")
	assert.Equal(t, []string{"first.md"}, f.next(t))

	d.Request("second.md")
	assert.Equal(t, 1, d.Pending(), "held back while the flush runs")

	f.mu.Lock()
	block := f.block
	f.block = nil
	f.mu.Unlock()
	close(block)

	assert.Equal(t, []string{"second.md"}, f.next(t))
}

func TestDebouncerMaxDelay(t *testing.T) {
	f := newFlushLog()
	d, err := NewDebouncer(context.Background(), DebouncerConfig{
		QuietWindow: time.Hour,
		MaxDelay:    30 * time.Millisecond,
		Flush:       f.flush,
	})
	require.NoError(t, err)
	defer d.Stop()

	d.Request("x.md")
	assert.Equal(t, []string{"x.md"}, f.next(t))
}

func TestDebouncerFlushAndStop(t *testing.T) {
	f := newFlushLog()
	d, err := NewDebouncer(context.Background(), DebouncerConfig{QuietWindow: time.Hour, Flush: f.flush})
	require.NoError(t, err)

	d.Request("now.md")
	d.Flush()
	assert.Equal(t, []string{"now.md"}, f.next(t))

	d.Stop()
	d.Request("late.md")
	assert.Zero(t, d.Pending())
}
