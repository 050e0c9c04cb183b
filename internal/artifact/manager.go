// Package artifact memoizes generation of separately rendered include
// artifacts so each output path is produced at most once per build.
package artifact

import (
	"context"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// Request identifies one artifact generation.
type Request struct {
	// Source is the file rendered into the artifact.
	Source string
	// AsIfAt is the file the content is rendered as if it were included from.
	AsIfAt string
	// Output is the absolute artifact path and the memoization key.
	Output string
}

// Result is what a generation produced.
type Result struct {
	Deps *page.DependencySet
}

// Generator renders one artifact.
type Generator func(ctx context.Context, req Request) (Result, error)

// Handle is a pending or completed generation shared by every requester of
// the same output path.
type Handle struct {
	req  Request
	done chan struct{}
	res  Result
	err  error
}

// Request returns the request that started the generation.
func (h *Handle) Request() Request { return h.req }

// Wait blocks until the generation finished or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.res, h.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Manager owns the memoization table of one build session.
type Manager struct {
	gen Generator

	mu      sync.Mutex
	handles map[string]*Handle

	generations atomic.Int64
}

// NewManager returns a manager that generates artifacts with gen.
func NewManager(gen Generator) *Manager {
	return &Manager{gen: gen, handles: make(map[string]*Handle)}
}

// Ensure returns the handle for req.Output, starting a generation only when
// none exists yet. Lookup and insertion happen under one lock.
func (m *Manager) Ensure(ctx context.Context, req Request) *Handle {
	m.mu.Lock()
	if h, ok := m.handles[req.Output]; ok {
		m.mu.Unlock()
		return h
	}
	h := &Handle{req: req, done: make(chan struct{})}
	m.handles[req.Output] = h
	m.mu.Unlock()

	m.generations.Add(1)
	// One requester giving up must not cancel the generation for the others.
	genCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(h.done)
		h.res, h.err = m.gen(genCtx, req)
	}()
	return h
}

// Reset forgets every handle. Only call between builds.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = make(map[string]*Handle)
}

// Generations returns how many generations were started since creation.
func (m *Manager) Generations() int64 { return m.generations.Load() }

// Len returns the number of memoized outputs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// WaitAll waits for every known generation to finish.
func (m *Manager) WaitAll(ctx context.Context) error {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()
	for _, h := range handles {
		if _, err := h.Wait(ctx); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return nil
}
