package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// AddressablePage is a page declaration after glob expansion and merging.
type AddressablePage struct {
	// Src is relative to the site root, slash separated.
	Src         string
	Title       string
	Layout      string
	Searchable  bool
	Frontmatter map[string]any
	// Explicit is set when the page came from a src entry rather than a glob.
	Explicit bool
}

func pageFromEntry(src string, e PageEntry, explicit bool) AddressablePage {
	return AddressablePage{
		Src:         src,
		Title:       e.Title,
		Layout:      e.Layout,
		Searchable:  e.Searchable == nil || *e.Searchable,
		Frontmatter: maps.Clone(e.Frontmatter),
		Explicit:    explicit,
	}
}

// ResolvePages expands the page configuration against the files under the
// site root. A later glob replaces an earlier glob's match wholesale, and an
// explicit src entry replaces any glob match regardless of declaration order.
// Two src entries naming the same path are a fatal configuration error, and
// a src entry naming a file that does not exist is a missing reference.
func (c *Config) ResolvePages() ([]AddressablePage, error) {
	fsys := os.DirFS(c.Root)
	globbed := make(map[string]AddressablePage)
	explicit := make(map[string]AddressablePage)

	for _, e := range c.Pages {
		if e.Src != "" {
			if _, dup := explicit[e.Src]; dup {
				return nil, derrors.NewError(derrors.CategoryDuplicatePage,
					fmt.Sprintf("duplicate page entries for %s", e.Src)).
					WithContext("path", e.Src).Fatal().Build()
			}
			if info, err := fs.Stat(fsys, e.Src); err != nil || info.IsDir() {
				return nil, derrors.NewError(derrors.CategoryMissingReference,
					fmt.Sprintf("page source %s does not exist", e.Src)).
					WithContext("path", e.Src).Build()
			}
			explicit[e.Src] = pageFromEntry(e.Src, e, true)
			continue
		}

		matches, err := doublestar.Glob(fsys, e.Glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to expand page glob").
				WithContext("glob", e.Glob).Fatal().Build()
		}
		for _, m := range matches {
			if c.isInternalPath(m) || matchesAny(e.GlobExclude, m) || matchesAny(c.PagesExclude, m) {
				continue
			}
			globbed[m] = pageFromEntry(m, e, false)
		}
	}

	maps.Copy(globbed, explicit)
	out := make([]AddressablePage, 0, len(globbed))
	for _, src := range slices.Sorted(maps.Keys(globbed)) {
		out = append(out, globbed[src])
	}
	return out, nil
}

// MatchesPageConfig reports whether a root-relative path would be selected by
// the page configuration. Used to recognise newly created pages.
func (c *Config) MatchesPageConfig(rel string) bool {
	rel = filepath.ToSlash(rel)
	if c.isInternalPath(rel) {
		return false
	}
	for _, e := range c.Pages {
		if e.Src == rel {
			return true
		}
		if e.Glob == "" || matchesAny(e.GlobExclude, rel) || matchesAny(c.PagesExclude, rel) {
			continue
		}
		if ok, _ := doublestar.Match(e.Glob, rel); ok {
			return true
		}
	}
	return false
}

// isInternalPath reports paths that are never pages: site-internal
// directories, the output directory and dot directories.
func (c *Config) isInternalPath(rel string) bool {
	out := filepath.ToSlash(c.Build.OutputDir)
	if !filepath.IsAbs(c.Build.OutputDir) && (rel == out || strings.HasPrefix(rel, out+"/")) {
		return true
	}
	for _, seg := range strings.Split(path.Dir(rel), "/") {
		if seg == SiteDir || (strings.HasPrefix(seg, ".") && seg != ".") {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// DiscoverSiteRoots returns every directory under root (root included) that
// holds its own site.yaml, skipping internal and output directories.
func (c *Config) DiscoverSiteRoots() ([]string, error) {
	roots := []string{c.Root}
	outAbs := c.OutputPath()
	err := filepath.WalkDir(c.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == c.Root {
			return nil
		}
		name := d.Name()
		if p == outAbs || name == SiteDir || strings.HasPrefix(name, ".") || name == "node_modules" {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(p, FileName)); err == nil {
			roots = append(roots, p)
		}
		return nil
	})
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to discover site roots").Build()
	}
	return roots, nil
}
