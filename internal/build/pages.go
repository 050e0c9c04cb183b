package build

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// reset reloads site scopes and their variables, drops template and layout
// caches and re-creates every addressable page.
func (s *Scheduler) reset() error {
	cfg := s.config()
	roots, err := cfg.DiscoverSiteRoots()
	if err != nil {
		return err
	}
	s.vars.Reload(roots)
	s.vars.InvalidateCache()
	s.layouts.Reset()

	builtins := map[string]string{
		"baseUrl":   cfg.BaseURL,
		"siteTitle": cfg.Title,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	for _, root := range s.vars.Roots() {
		if err := s.vars.Load(root, config.VariablesFile, builtins); err != nil {
			return err
		}
	}

	_, removed, err := s.loadPages(cfg, false)
	if err != nil {
		return err
	}
	s.dropPages(removed)
	return nil
}

// loadPages resolves the page configuration and replaces the page table.
// With inherit, re-created pages keep the dependencies of their predecessor.
func (s *Scheduler) loadPages(cfg *config.Config, inherit bool) (added, removed []*page.Page, err error) {
	entries, err := cfg.ResolvePages()
	if err != nil {
		return nil, nil, err
	}

	next := make(map[string]*page.Page, len(entries))
	s.mu.Lock()
	prev := s.pages
	for _, e := range entries {
		p := newPage(cfg, e)
		if old, ok := prev[e.Src]; ok {
			if inherit {
				p.Inherit(old)
			}
		} else {
			added = append(added, p)
		}
		next[e.Src] = p
	}
	for src, old := range prev {
		if _, ok := next[src]; !ok {
			removed = append(removed, old)
		}
	}
	s.pages = next
	s.mu.Unlock()

	slices.SortFunc(removed, func(a, b *page.Page) int { return strings.Compare(a.Src, b.Src) })
	return added, removed, nil
}

func newPage(cfg *config.Config, e config.AddressablePage) *page.Page {
	out := page.OutputRel(e.Src)
	return &page.Page{
		Src:         e.Src,
		SourcePath:  filepath.Join(cfg.Root, filepath.FromSlash(e.Src)),
		OutputPath:  filepath.Join(cfg.OutputPath(), filepath.FromSlash(out)),
		URL:         page.JoinURL(cfg.BaseURL, out),
		Title:       e.Title,
		Layout:      e.Layout,
		Frontmatter: e.Frontmatter,
		Searchable:  e.Searchable,
	}
}

// dropPages removes the output of pages that are no longer addressable.
func (s *Scheduler) dropPages(removed []*page.Page) {
	for _, p := range removed {
		if err := os.Remove(p.OutputPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove output of dropped page", logfields.Page(p.Src), logfields.Error(err))
		}
		s.writer.forget(p.OutputPath)
		s.takePending(p.Src)
		s.mu.Lock()
		delete(s.ids, p.Src)
		s.mu.Unlock()
		s.logger.Info("Dropped page", logfields.Page(p.Src))
	}
}

// touchesGlobal reports whether any changed path is a site configuration or
// a site variables file.
func (s *Scheduler) touchesGlobal(changed sets.Set[string]) bool {
	roots := s.vars.Roots()
	for p := range changed {
		if filepath.Base(p) == config.FileName {
			return true
		}
		for _, root := range roots {
			rel, err := filepath.Rel(root, p)
			if err == nil && filepath.ToSlash(rel) == config.VariablesFile {
				return true
			}
		}
	}
	return false
}

// structuralChange reports whether a page source was removed or a new file
// matching the page configuration appeared.
func (s *Scheduler) structuralChange(cfg *config.Config, changed sets.Set[string]) bool {
	s.mu.RLock()
	known := sets.New[string]()
	for _, p := range s.pages {
		known.Add(p.SourcePath)
	}
	s.mu.RUnlock()

	for p := range changed {
		rel, ok := relTo(cfg.Root, p)
		if !ok {
			continue
		}
		exists := fileExists(p)
		if known.Has(p) && !exists {
			return true
		}
		if !known.Has(p) && exists && cfg.MatchesPageConfig(rel) {
			return true
		}
	}
	return false
}

// findPage matches ref against page sources. ref may be a source path relative
// to the site root, an absolute source path, or a URL path with or without the
// base URL and with any extension.
func (s *Scheduler) findPage(ref string) (*page.Page, bool) {
	cfg := s.config()
	key := filepath.ToSlash(ref)
	if rel, ok := relTo(cfg.Root, ref); ok && filepath.IsAbs(ref) {
		key = rel
	} else if cfg.BaseURL != "" && (key == cfg.BaseURL || strings.HasPrefix(key, cfg.BaseURL+"/")) {
		key = strings.TrimPrefix(key, cfg.BaseURL)
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		key += "index"
	}
	key = page.StripExt(key)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pages {
		if page.StripExt(p.Src) == key {
			return p, true
		}
	}
	return nil, false
}

func relTo(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
