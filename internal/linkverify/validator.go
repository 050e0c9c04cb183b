// Package linkverify validates intra-site references after generation.
//
// References are collected while pages are transformed and checked in one
// deferred pass, so the result does not depend on the order pages finished in.
package linkverify

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Options configure link target resolution.
type Options struct {
	BaseURL     string
	ProjectRoot string
	// Pages are the declared page sources, relative to the project root.
	Pages []string
	// Ignore globs exempt assets from existence checks.
	Ignore []string
	Logger *slog.Logger
}

// Warning is one failed check.
type Warning struct {
	Source string
	Target string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Source, w.Target, w.Reason)
}

// Validator collects references and validates them on demand.
type Validator struct {
	opts  Options
	pages sets.Set[string]

	mu    sync.Mutex
	links map[string]sets.Set[string]
	ids   map[string]sets.Set[string]
}

// New returns an empty validator.
func New(opts Options) *Validator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	pages := sets.New[string]()
	for _, p := range opts.Pages {
		pages.Add(page.StripExt(filepath.ToSlash(p)))
	}
	return &Validator{
		opts:  opts,
		pages: pages,
		links: make(map[string]sets.Set[string]),
		ids:   make(map[string]sets.Set[string]),
	}
}

// Collect records that source references target. Repeated pairs are kept once.
func (v *Validator) Collect(target, source string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	targets, ok := v.links[source]
	if !ok {
		targets = sets.New[string]()
		v.links[source] = targets
	}
	targets.Add(target)
}

// RecordIDs registers the element ids present in the rendered page src.
func (v *Validator) RecordIDs(src string, ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids[page.StripExt(filepath.ToSlash(src))] = sets.New(ids...)
}

// Len returns the number of collected (source, target) pairs.
func (v *Validator) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, t := range v.links {
		n += len(t)
	}
	return n
}

// ValidateAll checks every collected reference in sorted order, logs each
// failure as a warning and returns them. It never mutates collected state.
func (v *Validator) ValidateAll() []Warning {
	v.mu.Lock()
	sources := slices.Sorted(maps.Keys(v.links))
	pairs := make([][2]string, 0)
	for _, s := range sources {
		for _, t := range sets.Sorted(v.links[s]) {
			pairs = append(pairs, [2]string{s, t})
		}
	}
	v.mu.Unlock()

	var warnings []Warning
	for _, p := range pairs {
		if reason := v.check(p[1]); reason != "" {
			w := Warning{Source: v.rel(p[0]), Target: p[1], Reason: reason}
			warnings = append(warnings, w)
			v.opts.Logger.Warn("Broken link",
				logfields.Source(w.Source), logfields.Target(w.Target), slog.String("reason", w.Reason))
		}
	}
	return warnings
}

// check returns a failure reason, or "" when target is valid or cannot be judged.
func (v *Validator) check(target string) string {
	rest, ok := v.stripBase(target)
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	p, fragment, _ := strings.Cut(rest, "#")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.TrimPrefix(p, "/")

	if v.ignored(p) {
		return ""
	}

	pageKey, found := "", false
	switch ext := path.Ext(p); {
	case p == "" || strings.HasSuffix(p, "/") || ext == "":
		idx := path.Join(strings.TrimSuffix(p, "/"), "index")
		switch {
		case v.pages.Has(idx):
			pageKey, found = idx, true
		case p != "" && v.pages.Has(strings.TrimSuffix(p, "/")):
			pageKey, found = strings.TrimSuffix(p, "/"), true
		case v.assetExists(p):
			found = true
		}
	case ext == ".html" || ext == ".md":
		if key := page.StripExt(p); v.pages.Has(key) {
			pageKey, found = key, true
		} else if v.assetExists(p) {
			found = true
		}
	default:
		found = v.assetExists(p)
	}
	if !found {
		return "target not found"
	}

	if fragment == "" || pageKey == "" {
		return ""
	}
	v.mu.Lock()
	ids, recorded := v.ids[pageKey]
	v.mu.Unlock()
	if !recorded {
		// The target's ids were never recorded: inconclusive, not invalid.
		return ""
	}
	if !ids.Has(fragment) {
		return fmt.Sprintf("fragment #%s not found", fragment)
	}
	return ""
}

func (v *Validator) stripBase(target string) (string, bool) {
	if v.opts.BaseURL == "" {
		return target, true
	}
	if target == v.opts.BaseURL {
		return "/", true
	}
	rest, ok := strings.CutPrefix(target, v.opts.BaseURL)
	if !ok || !(strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "#")) {
		return "", false
	}
	return rest, true
}

func (v *Validator) ignored(p string) bool {
	for _, g := range v.opts.Ignore {
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
	}
	return false
}

func (v *Validator) assetExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(v.opts.ProjectRoot, filepath.FromSlash(p)))
	return err == nil
}

func (v *Validator) rel(source string) string {
	if rel, err := filepath.Rel(v.opts.ProjectRoot, source); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return source
}
