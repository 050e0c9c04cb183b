package resolve

import (
	"maps"
	"slices"
)

// MaxDepth is the deepest call stack an inclusion chain may build.
const MaxDepth = 100

// reportedFrames is how many trailing frames a cyclic reference error names.
const reportedFrames = 5

// Options are per-render flags carried down an inclusion chain.
type Options struct {
	// KeepFrontmatter leaves frontmatter blocks of included files in place.
	KeepFrontmatter bool
}

// CallContext is the resolver's cursor. It is never mutated after
// construction; descending into an inclusion produces a new context.
type CallContext struct {
	currentFile string
	callStack   []string
	variables   map[string]string
	options     Options
}

// NewCallContext starts a context for a page rooted at file.
func NewCallContext(file string, vars map[string]string, opts Options) *CallContext {
	return &CallContext{currentFile: file, variables: maps.Clone(vars), options: opts}
}

// CurrentFile is the file whose content is being resolved.
func (c *CallContext) CurrentFile() string { return c.currentFile }

// Variables returns a copy of the active variable bindings.
func (c *CallContext) Variables() map[string]string { return maps.Clone(c.variables) }

// Options returns the render options.
func (c *CallContext) Options() Options { return c.options }

// Depth is the call stack length.
func (c *CallContext) Depth() int { return len(c.callStack) }

// Exceeded reports a call stack deeper than MaxDepth.
func (c *CallContext) Exceeded() bool { return c.Depth() > MaxDepth }

// Clone returns an independent copy.
func (c *CallContext) Clone() *CallContext {
	return &CallContext{
		currentFile: c.currentFile,
		callStack:   slices.Clone(c.callStack),
		variables:   maps.Clone(c.variables),
		options:     c.options,
	}
}

// Descend pushes the current file onto a cloned stack and moves to file with vars.
func (c *CallContext) Descend(file string, vars map[string]string) *CallContext {
	next := c.Clone()
	next.callStack = append(next.callStack, c.currentFile)
	next.currentFile = file
	next.variables = maps.Clone(vars)
	return next
}

// LastFrames returns up to n trailing call stack entries, oldest first.
func (c *CallContext) LastFrames(n int) []string {
	if n >= len(c.callStack) {
		return slices.Clone(c.callStack)
	}
	return slices.Clone(c.callStack[len(c.callStack)-n:])
}
