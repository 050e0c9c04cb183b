// Package variables holds per-site variable scopes and renders content
// through text/template against them.
package variables

import (
	"maps"
	"slices"
	"sync"
	"text/template"
)

// Scope is the variable map and compiled template cache of one site root.
type Scope struct {
	Root string

	mu    sync.RWMutex
	vars  map[string]string
	order []string
	cache map[uint64]*template.Template
}

func newScope(root string) *Scope {
	return &Scope{
		Root:  root,
		vars:  make(map[string]string),
		cache: make(map[uint64]*template.Template),
	}
}

func (s *Scope) set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vars[name]; !exists {
		s.order = append(s.order, name)
	}
	s.vars[name] = value
}

// Get returns a defined variable.
func (s *Scope) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Names returns variable names in definition order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Scope) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.vars)
}

func (s *Scope) clearVars() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]string)
	s.order = nil
}

func (s *Scope) cached(key uint64) (*template.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cache[key]
	return t, ok
}

func (s *Scope) store(key uint64, t *template.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = t
}

func (s *Scope) dropCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[uint64]*template.Template)
}

// CacheSize returns the number of compiled templates held by the scope.
func (s *Scope) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func sortedKeys(m map[string]string) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}
