package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/dom"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/variables"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newResolver(root string, subsites ...string) *Resolver {
	return &Resolver{
		ProjectRoot:     root,
		BaseURL:         "/docs",
		BoilerplatesDir: "_site/boilerplates",
		Vars:            variables.NewRegistry(root, subsites),
		Markup:          markdown.New(markdown.Options{}),
	}
}

type resolved struct {
	tree *dom.Tree
	deps *page.DependencySet
	errs []error
}

func (r resolved) html() string { return r.tree.InnerHTML(r.tree.Root()) }

func resolvePage(t *testing.T, r *Resolver, file, content string, vars map[string]string) resolved {
	t.Helper()
	html, err := r.Markup.Render(content, false)
	require.NoError(t, err)
	tree := dom.New()
	require.NoError(t, tree.ParseInto(tree.Root(), html, file))
	deps := page.NewDependencySet()
	errs := r.ResolveTree(tree, tree.Root(), NewCallContext(file, vars, Options{}), deps)
	return resolved{tree: tree, deps: deps, errs: errs}
}

func writeChain(t *testing.T, root string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		body := "end of chain"
		if i < n {
			body = fmt.Sprintf(`<include src="c%d.md"></include>`, i+1)
		}
		write(t, root, fmt.Sprintf("c%d.md", i), body)
	}
}

func TestInclusionDepthLimit(t *testing.T) {
	t.Run("depth 100 resolves", func(t *testing.T) {
		root := t.TempDir()
		writeChain(t, root, MaxDepth)
		r := newResolver(root)
		res := resolvePage(t, r, filepath.Join(root, "index.md"), `<include src="c1.md"></include>`, nil)
		require.Empty(t, res.errs)
		assert.Contains(t, res.html(), "end of chain")
		assert.Len(t, res.deps.Static(), MaxDepth)
	})

	t.Run("depth 101 fails naming the last five frames", func(t *testing.T) {
		root := t.TempDir()
		writeChain(t, root, MaxDepth+1)
		r := newResolver(root)
		res := resolvePage(t, r, filepath.Join(root, "index.md"), `<include src="c1.md"></include>`, nil)
		require.Len(t, res.errs, 1)
		err := res.errs[0]
		assert.True(t, derrors.HasCategory(err, derrors.CategoryCyclicReference))
		assert.Contains(t, err.Error(), "c96.md -> c97.md -> c98.md -> c99.md -> c100.md")
		assert.NotContains(t, err.Error(), "c95.md")
		assert.NotContains(t, res.html(), "end of chain")
		assert.Contains(t, res.html(), `class="sitebuilder-error"`)
	})
}

func TestSelfInclusionIsLocalFailure(t *testing.T) {
	root := t.TempDir()
	write(t, root, "loop.md", `<include src="loop.md"></include>`)
	write(t, root, "ok.md", "still here")
	r := newResolver(root)
	res := resolvePage(t, r, filepath.Join(root, "index.md"),
		"<include src=\"loop.md\"></include>\n\n<include src=\"ok.md\"></include>\n", nil)

	require.Len(t, res.errs, 1)
	assert.True(t, derrors.HasCategory(res.errs[0], derrors.CategoryCyclicReference))
	assert.Contains(t, res.html(), "still here")
}

func TestMissingReferences(t *testing.T) {
	root := t.TempDir()
	r := newResolver(root)
	file := filepath.Join(root, "index.md")

	res := resolvePage(t, r, file, `<include src="nope.md"></include>`, nil)
	require.Len(t, res.errs, 1)
	assert.True(t, derrors.HasCategory(res.errs[0], derrors.CategoryMissingReference))
	assert.Equal(t, []string{filepath.Join(root, "nope.md")}, res.deps.Missing())
	assert.Contains(t, res.html(), `<div class="sitebuilder-error">`)

	res = resolvePage(t, r, file, `before <include src="nope.md" optional></include> after`, nil)
	assert.Empty(t, res.errs)
	assert.Empty(t, res.deps.Missing())
	assert.NotContains(t, res.html(), "include")

	res = resolvePage(t, r, file, `<include></include>`, nil)
	require.Len(t, res.errs, 1)
}

func TestFragments(t *testing.T) {
	root := t.TempDir()
	write(t, root, "parts.md", "<div id=\"intro\">Intro text</div>\n\n<div id=\"other\">Other text</div>\n")
	r := newResolver(root)
	file := filepath.Join(root, "index.md")

	res := resolvePage(t, r, file, `<include src="parts.md#intro"></include>`, nil)
	require.Empty(t, res.errs)
	assert.Contains(t, res.html(), "Intro text")
	assert.NotContains(t, res.html(), "Other text")

	res = resolvePage(t, r, file, `<include src="parts.md#absent"></include>`, nil)
	require.Len(t, res.errs, 1)
	assert.True(t, derrors.HasCategory(res.errs[0], derrors.CategoryMissingFragment))

	res = resolvePage(t, r, file, `<include src="parts.md#absent" optional></include>`, nil)
	assert.Empty(t, res.errs)
	assert.NotContains(t, res.html(), "Intro text")
}

func TestInclusionVariablePrecedence(t *testing.T) {
	root := t.TempDir()
	write(t, root, "v.md", "value={{ .a }}")
	r := newResolver(root)
	file := filepath.Join(root, "index.md")
	parent := map[string]string{"a": "parent"}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"inline attribute wins", `<include src="v.md" var-a="attr"><variable name="a">child</variable></include>`, "value=attr"},
		{"variable child beats parent", `<include src="v.md"><variable name="a">child</variable></include>`, "value=child"},
		{"parent inherited", `<include src="v.md"></include>`, "value=parent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolvePage(t, r, file, tt.content, parent)
			require.Empty(t, res.errs)
			assert.Contains(t, res.html(), tt.want)
			assert.NotContains(t, res.html(), "<variable")
		})
	}
}

func TestIncludeRecordsNestedDependencies(t *testing.T) {
	root := t.TempDir()
	a := write(t, root, "a.md", `A <include src="sub/b.md" inline></include>`)
	b := write(t, root, "sub/b.md", `B {{ include "snippet.txt" }}`)
	snippet := write(t, root, "snippet.txt", "snippet")
	r := newResolver(root)

	res := resolvePage(t, r, filepath.Join(root, "index.md"), `<include src="a.md"></include>`, nil)
	require.Empty(t, res.errs)
	assert.Equal(t, []string{a, snippet, b}, res.deps.Static())
	assert.Contains(t, res.html(), "<span>B snippet</span>")
}

func TestBlockIncludeUnwrapsParagraph(t *testing.T) {
	root := t.TempDir()
	write(t, root, "block.md", "# Heading\n")
	r := newResolver(root)
	res := resolvePage(t, r, filepath.Join(root, "index.md"), `<include src="block.md"></include>`, nil)
	require.Empty(t, res.errs)
	out := res.html()
	assert.NotContains(t, out, "<p>")
	assert.Contains(t, out, "<div><h1>Heading</h1>")
}

func TestTrimAndFrontmatter(t *testing.T) {
	root := t.TempDir()
	write(t, root, "fm.html", "---\ntitle: x\n---\n  padded  \n")
	r := newResolver(root)
	res := resolvePage(t, r, filepath.Join(root, "index.md"), `<include src="fm.html" inline trim></include>`, nil)
	require.Empty(t, res.errs)
	assert.Contains(t, res.html(), "<span>padded</span>")
	assert.NotContains(t, res.html(), "title: x")
}

func TestDynamicPanel(t *testing.T) {
	root := t.TempDir()
	target := write(t, root, "guide/panel.md", "panel body")
	r := newResolver(root)
	file := filepath.Join(root, "guide", "index.md")

	res := resolvePage(t, r, file, `<panel src="panel.md#part" header="Title"></panel>`, nil)
	require.Empty(t, res.errs)
	assert.Equal(t, []page.DynamicInclude{{From: file, To: target, AsIfAt: file}}, res.deps.Dynamic())
	assert.Contains(t, res.html(), `src="/docs/guide/panel._include_.html#part"`)
	assert.NotContains(t, res.html(), "panel body")
	assert.Empty(t, res.deps.Static())

	res = resolvePage(t, r, file, `<panel src="panel.md" preload></panel>`, nil)
	require.Empty(t, res.errs)
	assert.Contains(t, res.html(), "panel body")
	assert.Empty(t, res.deps.Dynamic())
	assert.Equal(t, []string{target}, res.deps.Static())

	res = resolvePage(t, r, file, `<panel src="missing.md"></panel>`, nil)
	require.Len(t, res.errs, 1)
	assert.True(t, derrors.HasCategory(res.errs[0], derrors.CategoryMissingReference))
}

func TestPopoverSourceBecomesContentSlot(t *testing.T) {
	root := t.TempDir()
	write(t, root, "tip.md", "tip body")
	r := newResolver(root)
	res := resolvePage(t, r, filepath.Join(root, "index.md"), `<popover src="tip.md">hover me</popover>`, nil)
	require.Empty(t, res.errs)
	out := res.html()
	assert.Contains(t, out, "<template #content=\"\">")
	assert.Contains(t, out, "tip body")
	assert.Contains(t, out, "hover me")
	assert.NotContains(t, out, `src="tip.md"`)
}

func TestBoilerplateResolvesFromParentSite(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	write(t, sub, "site.yaml", "")
	bp := write(t, root, "_site/boilerplates/greeting.md", "Hello {{ .who }}")
	r := newResolver(root, sub)

	res := resolvePage(t, r, filepath.Join(sub, "index.md"),
		`<include src="greeting.md" boilerplate var-who="subsite"></include>`, nil)
	require.Empty(t, res.errs)
	assert.Contains(t, res.html(), "Hello subsite")
	assert.Equal(t, []string{bp}, res.deps.Static())
}

func TestSiblingIncludesDoNotShareStack(t *testing.T) {
	root := t.TempDir()
	writeChain(t, root, MaxDepth)
	r := newResolver(root)
	content := strings.Repeat("<include src=\"c1.md\"></include>\n\n", 3)
	res := resolvePage(t, r, filepath.Join(root, "index.md"), content, nil)
	assert.Empty(t, res.errs)
	assert.Equal(t, 3, strings.Count(res.html(), "end of chain"))
}
