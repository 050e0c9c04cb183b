package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallContextDescendDoesNotMutateParent(t *testing.T) {
	root := NewCallContext("/site/index.md", map[string]string{"a": "1"}, Options{})
	child := root.Descend("/site/a.md", map[string]string{"b": "2"})
	sibling := root.Descend("/site/b.md", nil)

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, child.Depth())
	assert.Equal(t, 1, sibling.Depth())
	assert.Equal(t, "/site/a.md", child.CurrentFile())
	assert.Equal(t, map[string]string{"a": "1"}, root.Variables())
	assert.Equal(t, map[string]string{"b": "2"}, child.Variables())

	grandchild := child.Descend("/site/c.md", nil)
	assert.Equal(t, []string{"/site/index.md", "/site/a.md"}, grandchild.LastFrames(5))
	assert.Equal(t, []string{"/site/a.md"}, grandchild.LastFrames(1))
	assert.Equal(t, 1, child.Depth())
}

func TestCallContextCloneIsIndependent(t *testing.T) {
	c := NewCallContext("/a.md", map[string]string{"x": "1"}, Options{KeepFrontmatter: true})
	clone := c.Clone()
	clone.variables["x"] = "2"
	assert.Equal(t, "1", c.Variables()["x"])
	assert.True(t, clone.Options().KeepFrontmatter)

	vars := c.Variables()
	vars["x"] = "3"
	assert.Equal(t, "1", c.Variables()["x"])
}

func TestCallContextExceeded(t *testing.T) {
	c := NewCallContext("/f0", nil, Options{})
	for i := range MaxDepth {
		c = c.Descend("/f", nil)
		assert.False(t, c.Exceeded(), "depth %d", i+1)
	}
	c = c.Descend("/f", nil)
	assert.True(t, c.Exceeded())
}
