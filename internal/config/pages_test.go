package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func siteWith(t *testing.T, yaml string, files ...string) *Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, FileName, yaml)
	for _, f := range files {
		writeFile(t, root, f, "# "+f+"\n")
	}
	cfg, err := Load(root)
	require.NoError(t, err)
	return cfg
}

func layouts(pages []AddressablePage) map[string]string {
	out := map[string]string{}
	for _, p := range pages {
		out[p.Src] = p.Layout
	}
	return out
}

func TestResolvePagesPrecedence(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "latest glob wins",
			yaml: "pages:\n  - glob: '*.md'\n    layout: L1\n  - glob: '*.md'\n    layout: L2\n",
			want: "L2",
		},
		{
			name: "explicit after globs",
			yaml: "pages:\n  - glob: '*.md'\n    layout: L1\n  - glob: '*.md'\n    layout: L2\n  - src: index.md\n    layout: L3\n",
			want: "L3",
		},
		{
			name: "explicit before globs",
			yaml: "pages:\n  - src: index.md\n    layout: L3\n  - glob: '*.md'\n    layout: L1\n  - glob: '*.md'\n    layout: L2\n",
			want: "L3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := siteWith(t, tt.yaml, "index.md")
			pages, err := cfg.ResolvePages()
			require.NoError(t, err)
			require.Len(t, pages, 1)
			assert.Equal(t, "index.md", pages[0].Src)
			assert.Equal(t, tt.want, pages[0].Layout)
		})
	}
}

func TestResolvePagesLaterGlobReplacesWholesale(t *testing.T) {
	cfg := siteWith(t, "pages:\n  - glob: '*.md'\n    title: First\n    layout: L1\n  - glob: 'index.md'\n",
		"index.md")
	pages, err := cfg.ResolvePages()
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].Layout)
	assert.Empty(t, pages[0].Title)
}

func TestResolvePagesDuplicateSrc(t *testing.T) {
	cfg := siteWith(t, "pages:\n  - src: index.md\n  - glob: '*.md'\n  - src: index.md\n", "index.md")
	_, err := cfg.ResolvePages()
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryDuplicatePage))
	assert.Contains(t, err.Error(), "duplicate page entries")
	assert.Contains(t, err.Error(), "index.md")
	ce, ok := derrors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, ce.IsFatal())
}

func TestResolvePagesMissingSrc(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		files []string
	}{
		{"missing file", "pages:\n  - glob: '*.md'\n  - src: gone.md\n", []string{"index.md"}},
		{"directory", "pages:\n  - src: guide\n", []string{"guide/index.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := siteWith(t, tt.yaml, tt.files...)
			_, err := cfg.ResolvePages()
			require.Error(t, err)
			assert.True(t, derrors.HasCategory(err, derrors.CategoryMissingReference))
			assert.False(t, derrors.HasCategory(err, derrors.CategoryFileSystem))
			ce, ok := derrors.AsClassified(err)
			require.True(t, ok)
			assert.False(t, ce.IsFatal())
		})
	}
}

func TestResolvePagesExclusions(t *testing.T) {
	cfg := siteWith(t,
		"pages:\n  - glob: '**/*.md'\n    globExclude: ['drafts/**']\npagesExclude: ['README.md']\n",
		"index.md", "README.md", "guide/setup.md", "drafts/wip.md",
		"_site/variables.md", "_site_out/index.md", ".hidden/x.md", "sub/_site/layouts/x.md")
	pages, err := cfg.ResolvePages()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"guide/setup.md": "", "index.md": ""}, layouts(pages))
}

func TestResolvePagesSortedAndSearchable(t *testing.T) {
	cfg := siteWith(t, "pages:\n  - glob: '*.md'\n  - src: b.md\n    searchable: false\n    frontmatter: {x: 2}\n",
		"c.md", "b.md", "a.md")
	pages, err := cfg.ResolvePages()
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, []string{pages[0].Src, pages[1].Src, pages[2].Src})
	assert.True(t, pages[0].Searchable)
	assert.False(t, pages[1].Searchable)
	assert.True(t, pages[1].Explicit)
	assert.Equal(t, 2, pages[1].Frontmatter["x"])
}

func TestMatchesPageConfig(t *testing.T) {
	cfg := siteWith(t, "pages:\n  - glob: 'guide/*.md'\n    globExclude: ['guide/wip.md']\n  - src: about.md\n")
	assert.True(t, cfg.MatchesPageConfig("guide/new.md"))
	assert.True(t, cfg.MatchesPageConfig("about.md"))
	assert.False(t, cfg.MatchesPageConfig("guide/wip.md"))
	assert.False(t, cfg.MatchesPageConfig("other.md"))
	assert.False(t, cfg.MatchesPageConfig(filepath.Join("_site", "variables.md")))
}

func TestDiscoverSiteRoots(t *testing.T) {
	cfg := siteWith(t, "title: root\n", "index.md")
	writeFile(t, cfg.Root, "sub/site.yaml", "title: sub\n")
	writeFile(t, cfg.Root, "_site_out/copy/site.yaml", "title: ignored\n")
	writeFile(t, cfg.Root, ".git/site.yaml", "")

	roots, err := cfg.DiscoverSiteRoots()
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.Root, filepath.Join(cfg.Root, "sub")}, roots)
}
