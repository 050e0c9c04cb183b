// Package transform runs the single post-resolution walk over a page tree:
// attribute normalization, slot promotion, link rewriting, heading ids and
// layout insertion collection.
package transform

import (
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/dom"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
)

// LinkCollector receives every intra-site reference seen during the walk.
type LinkCollector interface {
	Collect(target, source string)
}

// Options configure a pipeline.
type Options struct {
	ProjectRoot string
	BaseURL     string
	// HeadingIndexingLevel is the deepest heading level reported for search.
	HeadingIndexingLevel int
	// Markup renders promoted slot attributes inline. Optional.
	Markup markdown.Renderer
	Hooks  *Registry
	Logger *slog.Logger
}

// Heading is an indexed heading of the page.
type Heading struct {
	ID       string
	Text     string
	Level    int
	Keywords []string
}

// Result is what the walk collected from one tree.
type Result struct {
	HeadTop      []string
	HeadBottom   []string
	ScriptBottom []string
	Headings     []Heading
	// Keywords are keyword spans that precede every indexed heading.
	Keywords []string
	// IDs are every element id present after the walk.
	IDs      []string
	Warnings []string
}

// Pipeline is configured once and run per page tree.
type Pipeline struct {
	opts  Options
	links LinkCollector
}

// New returns a pipeline. links may be nil to skip link collection.
func New(opts Options, links LinkCollector) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HeadingIndexingLevel <= 0 {
		opts.HeadingIndexingLevel = 3
	}
	return &Pipeline{opts: opts, links: links}
}

// slotHosts are tags whose header attribute is promoted to a named slot.
var slotHosts = map[string]bool{"panel": true, "popover": true, "box": true}

// deprecatedAttrs maps tag -> old attribute -> canonical attribute.
var deprecatedAttrs = map[string]map[string]string{
	"panel":   {"heading": "header"},
	"popover": {"title": "header"},
}

// referenceAttr names the attribute holding a reference for each link-bearing kind.
var referenceAttr = map[dom.Kind]string{
	dom.KindAnchor: "href",
	dom.KindLink:   "href",
	dom.KindImage:  "src",
	dom.KindScript: "src",
	dom.KindIframe: "src",
}

type run struct {
	*Pipeline
	t       *dom.Tree
	source  string
	slugs   *slugger
	res     Result
	current int // index into res.Headings, -1 before the first indexed heading
}

// Run walks the tree below root. source is the page (or artifact) file the
// tree belongs to; collected links are attributed to it.
func (p *Pipeline) Run(t *dom.Tree, root dom.NodeID, source string) Result {
	r := &run{Pipeline: p, t: t, source: source, slugs: newSlugger(), current: -1}
	t.Walk(root, func(id dom.NodeID) dom.WalkAction {
		if v, ok := t.Attr(id, "id"); ok && t.Type(id) == dom.ElementNode && v != "" {
			r.slugs.reserve(v)
		}
		return dom.Continue
	}, nil)

	t.Walk(root, r.pre, r.post)

	t.Walk(root, func(id dom.NodeID) dom.WalkAction {
		if v, ok := t.Attr(id, "id"); ok && t.Type(id) == dom.ElementNode && v != "" {
			r.res.IDs = append(r.res.IDs, v)
		}
		return dom.Continue
	}, nil)
	return r.res
}

func (r *run) pre(id dom.NodeID) dom.WalkAction {
	t := r.t
	if t.Type(id) != dom.ElementNode {
		return dom.Continue
	}
	tag := t.Tag(id)
	for from, to := range deprecatedAttrs[tag] {
		if t.RenameAttr(id, from, to) {
			r.opts.Logger.Debug("Normalized deprecated attribute", logfields.File(t.Origin(id)),
				slog.String("tag", tag), slog.String("attribute", from))
		}
	}
	if slotHosts[tag] {
		r.promoteSlot(id, "header")
	}
	if attr, ok := referenceAttr[t.Kind(id)]; ok {
		r.rewriteLink(id, attr)
	}
	if t.IsElement(id, "span") && hasClass(t, id, "keyword") {
		r.addKeyword(strings.TrimSpace(t.TextContent(id)))
	}
	for _, h := range r.opts.Hooks.lookup(tag) {
		if h.Pre != nil {
			h.Pre(t, id)
		}
	}
	return dom.Continue
}

func (r *run) post(id dom.NodeID) {
	t := r.t
	if t.Type(id) != dom.ElementNode {
		return
	}
	switch t.Kind(id) {
	case dom.KindHeading:
		r.assignHeadingID(id)
	case dom.KindHeadTop:
		r.res.HeadTop = append(r.res.HeadTop, r.hoist(id))
	case dom.KindHeadBottom:
		r.res.HeadBottom = append(r.res.HeadBottom, r.hoist(id))
	case dom.KindScriptBottom:
		r.res.ScriptBottom = append(r.res.ScriptBottom, r.hoist(id))
	}
	for _, h := range r.opts.Hooks.lookup(t.Tag(id)) {
		if h.Post != nil {
			h.Post(t, id)
		}
	}
}

func (r *run) warn(msg string, id dom.NodeID) {
	r.res.Warnings = append(r.res.Warnings, msg)
	r.opts.Logger.Warn(msg, logfields.File(r.t.Origin(id)), logfields.Page(r.source))
}

// promoteSlot turns name="..." into a <template #name> child. An explicit
// slot of the same name wins and the attribute is dropped.
func (r *run) promoteSlot(id dom.NodeID, name string) {
	t := r.t
	val, ok := t.Attr(id, name)
	if !ok {
		return
	}
	t.RemoveAttr(id, name)
	for _, c := range t.Children(id) {
		if t.Kind(c) == dom.KindTemplate && t.HasAttr(c, "#"+name) {
			r.warn("explicit "+name+" slot overrides the "+name+" attribute of <"+t.Tag(id)+">", id)
			return
		}
	}

	content := val
	if r.opts.Markup != nil {
		if rendered, err := r.opts.Markup.Render(val, true); err == nil {
			content = rendered
		}
	}
	slot := t.NewElement("template", []dom.Attr{{Key: "#" + name}}, t.Origin(id))
	if err := t.ParseInto(slot, content, t.Origin(id)); err != nil {
		t.AppendChild(slot, t.NewText(val, t.Origin(id)))
	}
	t.PrependChild(id, slot)
}

// rewriteLink makes a relative reference root-relative using the directory
// of the file the element came from, then reports intra-site references.
func (r *run) rewriteLink(id dom.NodeID, attr string) {
	t := r.t
	val, ok := t.Attr(id, attr)
	if !ok || val == "" {
		return
	}
	if isRelative(val) {
		origin := t.Origin(id)
		if origin == "" {
			origin = r.source
		}
		val = r.rootRelative(origin, val)
		t.SetAttr(id, attr, val)
	}
	if r.links != nil && isIntraSite(val) {
		r.links.Collect(val, r.source)
	}
}

func (r *run) rootRelative(origin, ref string) string {
	pathPart, suffix := ref, ""
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		pathPart, suffix = ref[:i], ref[i:]
	}
	dir, err := filepath.Rel(r.opts.ProjectRoot, filepath.Dir(origin))
	if err != nil {
		dir = "."
	}
	joined := path.Join(filepath.ToSlash(dir), pathPart)
	if strings.HasSuffix(pathPart, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	if ext := path.Ext(joined); ext == ".md" || ext == ".markdown" {
		joined = strings.TrimSuffix(joined, ext) + ".html"
	}
	if joined == "." {
		joined = ""
	}
	return r.opts.BaseURL + "/" + strings.TrimPrefix(joined, "./") + suffix
}

func isRelative(ref string) bool {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "{{") {
		return false
	}
	u, err := url.Parse(ref)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func isIntraSite(ref string) bool {
	return strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//")
}

func (r *run) assignHeadingID(id dom.NodeID) {
	t := r.t
	hid, ok := t.Attr(id, "id")
	if !ok || hid == "" {
		hid = r.slugs.next(Slug(t.TextContent(id)))
		t.SetAttr(id, "id", hid)
	}
	level := dom.HeadingLevel(t.Tag(id))
	if level > r.opts.HeadingIndexingLevel {
		return
	}
	r.res.Headings = append(r.res.Headings, Heading{
		ID:    hid,
		Text:  strings.TrimSpace(t.TextContent(id)),
		Level: level,
	})
	r.current = len(r.res.Headings) - 1
}

func (r *run) addKeyword(kw string) {
	if kw == "" {
		return
	}
	if r.current < 0 {
		r.res.Keywords = append(r.res.Keywords, kw)
		return
	}
	h := &r.res.Headings[r.current]
	h.Keywords = append(h.Keywords, kw)
}

// hoist detaches a layout insertion element and returns its content.
func (r *run) hoist(id dom.NodeID) string {
	html := strings.TrimSpace(r.t.InnerHTML(id))
	r.t.Detach(id)
	return html
}

func hasClass(t *dom.Tree, id dom.NodeID, class string) bool {
	v, _ := t.Attr(id, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
