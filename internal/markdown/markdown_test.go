package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBlockKeepsCustomElements(t *testing.T) {
	r := New(Options{})
	out, err := r.Render("# Title\n\n<include src=\"a.md\"></include>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", false)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, `<include src="a.md"></include>`)
	assert.Contains(t, out, "<table>")
}

func TestRenderExplicitHeadingID(t *testing.T) {
	r := New(Options{})
	out, err := r.Render("## Setup {#install}\n", false)
	require.NoError(t, err)
	assert.Contains(t, out, `<h2 id="install">Setup</h2>`)
}

func TestRenderInlineUnwrapsParagraph(t *testing.T) {
	r := New(Options{})
	out, err := r.Render("some **bold** text", true)
	require.NoError(t, err)
	assert.Equal(t, "some <strong>bold</strong> text", out)

	out, err = r.Render("one\n\ntwo", true)
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>\n<p>two</p>", out, "multiple paragraphs stay wrapped")
}
