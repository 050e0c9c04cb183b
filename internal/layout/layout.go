// Package layout wraps rendered page content in the site's HTML layouts.
package layout

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// DefaultName is used when a page names no layout.
const DefaultName = "default"

// Data is what a layout template sees.
type Data struct {
	Title        string
	SiteTitle    string
	BaseURL      string
	Content      template.HTML
	HeadTop      template.HTML
	HeadBottom   template.HTML
	ScriptBottom template.HTML
	Frontmatter  map[string]string
}

const builtin = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{.HeadTop}}<title>{{.Title}}{{if .SiteTitle}} - {{.SiteTitle}}{{end}}</title>
{{.HeadBottom}}</head>
<body>
{{.Content}}
{{.ScriptBottom}}</body>
</html>
`

// Renderer loads layouts from <siteRoot>/<dir>/<name>.html and caches the
// parsed templates until Reset.
type Renderer struct {
	dir string

	mu    sync.Mutex
	cache map[string]*template.Template
	def   *template.Template
}

// NewRenderer returns a renderer looking for layouts in dir below each site root.
func NewRenderer(dir string) *Renderer {
	return &Renderer{
		dir:   dir,
		cache: make(map[string]*template.Template),
		def:   template.Must(template.New(DefaultName).Parse(builtin)),
	}
}

// Path returns the file a named layout is loaded from.
func (r *Renderer) Path(siteRoot, name string) string {
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(siteRoot, filepath.FromSlash(r.dir), name+".html")
}

// Render executes the named layout. A missing default layout falls back to the
// built-in shell; a missing named layout is an error.
func (r *Renderer) Render(siteRoot, name string, data Data) (string, error) {
	tmpl, err := r.lookup(siteRoot, name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", derrors.WrapError(err, derrors.CategoryRender, "failed to execute layout").
			WithContext("layout", name).
			Build()
	}
	return buf.String(), nil
}

func (r *Renderer) lookup(siteRoot, name string) (*template.Template, error) {
	p := r.Path(siteRoot, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[p]; ok {
		return t, nil
	}
	data, err := os.ReadFile(p)
	switch {
	case os.IsNotExist(err) && (name == "" || name == DefaultName):
		return r.def, nil
	case os.IsNotExist(err):
		return nil, derrors.NewError(derrors.CategoryNotFound, "layout not found").
			WithContext("layout", name).
			WithContext("path", p).
			Build()
	case err != nil:
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read layout").
			WithContext("path", p).
			Build()
	}
	t, err := template.New(strings.TrimSuffix(filepath.Base(p), ".html")).Parse(string(data))
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryRender, "failed to parse layout").
			WithContext("path", p).
			Build()
	}
	r.cache[p] = t
	return t, nil
}

// Reset drops every parsed layout.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*template.Template)
}
