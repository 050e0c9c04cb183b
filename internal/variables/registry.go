package variables

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/zeebo/xxh3"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DependencyRecorder receives every file the template engine reads during a render.
type DependencyRecorder interface {
	AddStatic(path string)
}

// Registry maps site roots to their scopes. Scopes are created up front; the
// set of roots only changes through Reload.
type Registry struct {
	projectRoot string

	mu     sync.RWMutex
	scopes map[string]*Scope
	// roots sorted longest first so the nearest ancestor matches first.
	roots []string
}

// NewRegistry registers projectRoot and every nested site root.
func NewRegistry(projectRoot string, siteRoots []string) *Registry {
	r := &Registry{projectRoot: filepath.Clean(projectRoot), scopes: make(map[string]*Scope)}
	r.Reload(siteRoots)
	return r
}

// Reload replaces the set of registered site roots. Existing scopes for
// roots that remain are kept.
func (r *Registry) Reload(siteRoots []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := map[string]*Scope{r.projectRoot: r.scopeOrNew(r.projectRoot)}
	for _, root := range siteRoots {
		root = filepath.Clean(root)
		next[root] = r.scopeOrNew(root)
	}
	r.scopes = next
	r.roots = slices.Collect(maps.Keys(next))
	slices.SortFunc(r.roots, func(a, b string) int { return len(b) - len(a) })
}

func (r *Registry) scopeOrNew(root string) *Scope {
	if s, ok := r.scopes[root]; ok {
		return s
	}
	return newScope(root)
}

// Roots returns every registered site root, the project root first.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.roots)
	slices.SortFunc(out, func(a, b string) int { return len(a) - len(b) })
	return out
}

// Scope returns the scope registered for root.
func (r *Registry) Scope(root string) (*Scope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scopes[filepath.Clean(root)]
	return s, ok
}

// ResolveScope returns the nearest registered site root enclosing file.
func (r *Registry) ResolveScope(file string) (string, error) {
	file = filepath.Clean(file)
	if !within(r.projectRoot, file) {
		return "", derrors.NewError(derrors.CategoryNotFound, "file is outside the site root").
			WithContext("file", file).Build()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, root := range r.roots {
		if within(root, file) {
			return root, nil
		}
	}
	return r.projectRoot, nil
}

// ParentScope returns the site root enclosing scopeRoot's parent directory,
// or scopeRoot itself for the project root.
func (r *Registry) ParentScope(scopeRoot string) string {
	if filepath.Clean(scopeRoot) == r.projectRoot {
		return r.projectRoot
	}
	parent, err := r.ResolveScope(filepath.Dir(scopeRoot))
	if err != nil {
		return r.projectRoot
	}
	return parent
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Registry) scopeFor(file string) (*Scope, error) {
	root, err := r.ResolveScope(file)
	if err != nil {
		return nil, err
	}
	s, ok := r.Scope(root)
	if !ok {
		return nil, derrors.NewError(derrors.CategoryNotFound, "unknown site scope").WithContext("scope", root).Build()
	}
	return s, nil
}

// Define stores an unrendered value.
func (r *Registry) Define(scopeRoot, name, raw string) {
	if s, ok := r.Scope(scopeRoot); ok {
		s.set(name, raw)
	}
}

// DefineRendered renders raw against the variables already defined in the
// same scope, then stores it. Entries without a name are logged and ignored.
func (r *Registry) DefineRendered(scopeRoot, name, raw string) error {
	if strings.TrimSpace(name) == "" {
		slog.Warn("Ignoring variable without a name", logfields.Scope(scopeRoot))
		return nil
	}
	s, ok := r.Scope(scopeRoot)
	if !ok {
		return derrors.NewError(derrors.CategoryNotFound, "unknown site scope").WithContext("scope", scopeRoot).Build()
	}
	out, err := r.execute(s, raw, s.snapshot(), nil)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryRender, "failed to render variable").
			WithContext("variable", name).WithContext("scope", scopeRoot).Build()
	}
	s.set(name, out)
	return nil
}

// Render renders content for file. extra has the lowest priority and is
// overridden by the file's scope variables.
func (r *Registry) Render(content, file string, extra map[string]string, deps DependencyRecorder) (string, error) {
	s, err := r.scopeFor(file)
	if err != nil {
		return "", err
	}
	data := maps.Clone(extra)
	if data == nil {
		data = map[string]string{}
	}
	maps.Copy(data, s.snapshot())
	return r.renderWrapped(s, content, file, data, deps)
}

// RenderPage renders a page source. overrides (the page's effective
// frontmatter) take priority over scope variables.
func (r *Registry) RenderPage(content, file string, overrides map[string]string, deps DependencyRecorder) (string, error) {
	s, err := r.scopeFor(file)
	if err != nil {
		return "", err
	}
	data := s.snapshot()
	maps.Copy(data, overrides)
	return r.renderWrapped(s, content, file, data, deps)
}

func (r *Registry) renderWrapped(s *Scope, content, file string, data map[string]string, deps DependencyRecorder) (string, error) {
	out, err := r.execute(s, content, data, deps)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryRender, "template render failed").
			WithContext("file", file).Build()
	}
	return out, nil
}

// InvalidateCache drops every scope's compiled templates.
func (r *Registry) InvalidateCache() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scopes {
		s.dropCache()
	}
}

func (r *Registry) execute(s *Scope, content string, data map[string]string, deps DependencyRecorder) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	key := xxh3.HashString(content)
	base, ok := s.cached(key)
	if !ok {
		var err error
		base, err = template.New("content").
			Option("missingkey=zero").
			Funcs(template.FuncMap{"include": unboundInclude}).
			Parse(content)
		if err != nil {
			return "", err
		}
		s.store(key, base)
	}

	tmpl, err := base.Clone()
	if err != nil {
		return "", err
	}
	tmpl.Funcs(template.FuncMap{"include": r.includeFunc(s.Root, deps)})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func unboundInclude(string) (string, error) {
	return "", fmt.Errorf("include is not available here")
}

// includeFunc reads a file relative to the scope root and attributes it to deps.
func (r *Registry) includeFunc(scopeRoot string, deps DependencyRecorder) func(string) (string, error) {
	return func(rel string) (string, error) {
		p := filepath.Join(scopeRoot, filepath.FromSlash(rel))
		if !within(r.projectRoot, p) {
			return "", fmt.Errorf("include %q escapes the site root", rel)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		if deps != nil {
			deps.AddStatic(p)
		}
		return string(data), nil
	}
}
