package artifact

import (
	"context"
	"sync"
)

// Locks is a registry of named locks used to serialize access to external,
// non-reentrant generator processes.
type Locks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocks returns an empty registry.
func NewLocks() *Locks { return &Locks{held: make(map[string]chan struct{})} }

// Acquire blocks until name is free, then holds it. The returned release
// function is idempotent.
func (l *Locks) Acquire(ctx context.Context, name string) (func(), error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[name]
		if !busy {
			ch = make(chan struct{})
			l.held[name] = ch
			l.mu.Unlock()
			return sync.OnceFunc(func() { l.release(name, ch) }), nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Locks) release(name string, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == ch {
		delete(l.held, name)
	}
	close(ch)
}

// Held returns the number of locks currently held.
func (l *Locks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// WaitAllReleased blocks until no lock is held.
func (l *Locks) WaitAllReleased(ctx context.Context) error {
	for {
		l.mu.Lock()
		var wait chan struct{}
		for _, ch := range l.held {
			wait = ch
			break
		}
		l.mu.Unlock()
		if wait == nil {
			return nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
