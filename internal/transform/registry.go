package transform

import (
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/dom"
)

// Hook is a plugin-contributed handler for one tag.
type Hook struct {
	Pre  func(t *dom.Tree, id dom.NodeID)
	Post func(t *dom.Tree, id dom.NodeID)
}

// Registry maps tag names to hooks. It is populated before builds start and
// read concurrently afterwards.
type Registry struct {
	hooks map[string][]Hook
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{hooks: map[string][]Hook{}} }

// Register adds h for tag. Multiple hooks per tag run in registration order.
func (r *Registry) Register(tag string, h Hook) {
	tag = strings.ToLower(tag)
	r.hooks[tag] = append(r.hooks[tag], h)
}

func (r *Registry) lookup(tag string) []Hook {
	if r == nil {
		return nil
	}
	return r.hooks[tag]
}
