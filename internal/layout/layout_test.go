package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func writeLayout(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "_site", "layouts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".html"), []byte(body), 0o644))
}

func TestBuiltinDefault(t *testing.T) {
	r := NewRenderer("_site/layouts")
	out, err := r.Render(t.TempDir(), "", Data{
		Title:        "Guide",
		SiteTitle:    "Docs",
		Content:      "<h1>Guide</h1>",
		HeadBottom:   `<link rel="stylesheet" href="/a.css">`,
		ScriptBottom: "<script>x()</script>",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Guide - Docs</title>")
	assert.Contains(t, out, "<h1>Guide</h1>")
	assert.Contains(t, out, `<link rel="stylesheet" href="/a.css">`)
	assert.Contains(t, out, "<script>x()</script>")
}

func TestNamedLayoutAndCache(t *testing.T) {
	root := t.TempDir()
	writeLayout(t, root, "main", `<main data-x="{{index .Frontmatter "x"}}">{{.Content}}</main>`)
	r := NewRenderer("_site/layouts")

	out, err := r.Render(root, "main", Data{Content: "<p>hi</p>", Frontmatter: map[string]string{"x": "3"}})
	require.NoError(t, err)
	assert.Equal(t, `<main data-x="3"><p>hi</p></main>`, out)

	writeLayout(t, root, "main", `<article>{{.Content}}</article>`)
	out, err = r.Render(root, "main", Data{Content: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Contains(t, out, "<main", "cached until reset")

	r.Reset()
	out, err = r.Render(root, "main", Data{Content: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "<article><p>hi</p></article>", out)
}

func TestSiteDefaultOverridesBuiltin(t *testing.T) {
	root := t.TempDir()
	writeLayout(t, root, DefaultName, `<div>{{.Content}}</div>`)
	out, err := NewRenderer("_site/layouts").Render(root, "", Data{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "<div>x</div>", out)
}

func TestMissingNamedLayout(t *testing.T) {
	_, err := NewRenderer("_site/layouts").Render(t.TempDir(), "nope", Data{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}
