// Package page holds the addressable page model shared by the resolver, the
// transform pipeline and the build scheduler.
package page

import (
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Page is one addressable output unit.
type Page struct {
	// Src is the source path relative to the site root, slash separated.
	Src string
	// SourcePath is the absolute source file path.
	SourcePath string
	// OutputPath is the absolute path of the rendered document.
	OutputPath string
	// URL is the root-relative address of the rendered document, including the base URL.
	URL string

	Title       string
	Layout      string
	Frontmatter map[string]any
	Assets      []string
	Searchable  bool

	mu     sync.RWMutex
	deps   *DependencySet
	search SearchData
}

// SearchData is the per-page search metadata persisted after builds.
type SearchData struct {
	Src             string              `json:"src"`
	Title           string              `json:"title"`
	Headings        map[string]string   `json:"headings"`
	HeadingKeywords map[string][]string `json:"headingKeywords"`
	Keywords        []string            `json:"keywords,omitempty"`
}

// SetResult replaces the page's dependency set and search data after a generation pass.
func (p *Page) SetResult(deps *DependencySet, search SearchData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deps = deps
	p.search = search
}

// Inherit copies the last generation result of old, used when a page is
// re-created by a structural reload but its source did not change.
func (p *Page) Inherit(old *Page) {
	if old == nil || old == p {
		return
	}
	old.mu.RLock()
	deps, search := old.deps, old.search
	old.mu.RUnlock()
	p.SetResult(deps, search)
}

// DependsOn reports whether the page's last generation depended on any changed file.
// The page's own source always counts.
func (p *Page) DependsOn(changed sets.Set[string]) bool {
	if changed.Has(p.SourcePath) {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.deps != nil && p.deps.Intersects(changed)
}

// Dependencies returns the files recorded during the last generation.
func (p *Page) Dependencies() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.deps == nil {
		return nil
	}
	return p.deps.Files()
}

// Search returns the search metadata from the last generation, if any.
func (p *Page) Search() (SearchData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.search, p.search.Src != ""
}
