package variables

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

type recorder struct {
	mu    sync.Mutex
	files []string
}

func (r *recorder) AddStatic(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, p)
}

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestResolveScopeNearestAncestor(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	deeper := filepath.Join(root, "sub", "deeper")
	r := NewRegistry(root, []string{sub, deeper})

	tests := []struct {
		file string
		want string
	}{
		{filepath.Join(root, "index.md"), root},
		{filepath.Join(sub, "page.md"), sub},
		{filepath.Join(sub, "x", "page.md"), sub},
		{filepath.Join(deeper, "page.md"), deeper},
		{filepath.Join(root, "subsite.md"), root},
	}
	for _, tt := range tests {
		got, err := r.ResolveScope(tt.file)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.file)
	}

	_, err := r.ResolveScope(filepath.Join(filepath.Dir(root), "elsewhere.md"))
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))

	assert.Equal(t, sub, r.ParentScope(deeper))
	assert.Equal(t, root, r.ParentScope(sub))
	assert.Equal(t, root, r.ParentScope(root))
}

func TestRenderPrecedence(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root, nil)
	r.Define(root, "x", "1")
	file := filepath.Join(root, "index.md")

	out, err := r.Render("{{ .x }}/{{ .y }}", file, map[string]string{"x": "caller", "y": "caller"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1/caller", out, "scope variables override extra")

	out, err = r.RenderPage("{{ .x }}", file, map[string]string{"x": "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out, "overrides win over scope variables")

	out, err = r.RenderPage("[{{ .missing }}]", file, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestDefineRenderedUsesEarlierDeclarations(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root, nil)
	require.NoError(t, r.DefineRendered(root, "name", "World"))
	require.NoError(t, r.DefineRendered(root, "greeting", "Hello {{ .name }}"))
	require.NoError(t, r.DefineRendered(root, "", "ignored"))

	s, _ := r.Scope(root)
	v, ok := s.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "Hello World", v)
	assert.Equal(t, []string{"name", "greeting"}, s.Names())
}

func TestIncludeRecordsDependency(t *testing.T) {
	root := t.TempDir()
	snippet := write(t, root, "snippets/a.txt", "snippet body")
	r := NewRegistry(root, nil)
	deps := &recorder{}

	out, err := r.Render(`before {{ include "snippets/a.txt" }} after`, filepath.Join(root, "index.md"), nil, deps)
	require.NoError(t, err)
	assert.Equal(t, "before snippet body after", out)
	assert.Equal(t, []string{snippet}, deps.files)

	_, err = r.Render(`{{ include "../outside.txt" }}`, filepath.Join(root, "index.md"), nil, deps)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryRender))
}

func TestTemplateCacheInvalidation(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root, nil)
	file := filepath.Join(root, "index.md")

	_, err := r.Render("{{ .a }}", file, nil, nil)
	require.NoError(t, err)
	_, err = r.Render("{{ .a }}", file, nil, nil)
	require.NoError(t, err)
	s, _ := r.Scope(root)
	assert.Equal(t, 1, s.CacheSize())

	r.InvalidateCache()
	assert.Equal(t, 0, s.CacheSize())
}

func TestRenderParseError(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root, nil)
	_, err := r.Render("{{ unknownFunc }}", filepath.Join(root, "index.md"), nil, nil)
	require.Error(t, err)
	assert.Equal(t, filepath.Join(root, "index.md"), derrors.ContextString(err, "file"))
}

func TestConcurrentRenders(t *testing.T) {
	root := t.TempDir()
	write(t, root, "inc.txt", "inc")
	r := NewRegistry(root, nil)
	r.Define(root, "v", "value")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deps := &recorder{}
			out, err := r.Render(`{{ .v }}-{{ include "inc.txt" }}`, filepath.Join(root, "p.md"), nil, deps)
			assert.NoError(t, err)
			assert.Equal(t, "value-inc", out)
			assert.Len(t, deps.files, 1)
		}()
	}
	wg.Wait()
}

func TestLoadVariablesFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, "_site/variables.md", `
<variable name="product">Widget</variable>
<variable name="tagline">The {{ .product }} for "{{ .siteTitle }}"</variable>
<variable>no name</variable>
<variable name="html"><b>bold</b></variable>
`)
	r := NewRegistry(root, nil)
	require.NoError(t, r.Load(root, "_site/variables.md", map[string]string{"siteTitle": "Docs"}))

	s, _ := r.Scope(root)
	v, _ := s.Get("tagline")
	assert.Equal(t, `The Widget for "Docs"`, v)
	v, _ = s.Get("html")
	assert.Equal(t, "<b>bold</b>", v)
	assert.Equal(t, []string{"siteTitle", "product", "tagline", "html"}, s.Names())

	// Reloading starts from a clean scope.
	require.NoError(t, r.Load(root, "_site/missing.md", nil))
	assert.Empty(t, s.Names())
}

func TestVariablePrecedenceAcrossLayers(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root, nil)
	r.Define(root, "x", "1")
	file := filepath.Join(root, "index.md")

	// frontmatter x=2 layered under global override x=3.
	withGlobal := map[string]string{"x": "3"}
	out, err := r.RenderPage("{{ .x }}", file, withGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	withoutGlobal := map[string]string{"x": "2"}
	out, err = r.RenderPage("{{ .x }}", file, withoutGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}
