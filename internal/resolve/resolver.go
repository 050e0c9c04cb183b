// Package resolve expands inclusion directives in a page's element tree,
// recording every file the page depends on.
package resolve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/dom"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/variables"
)

// VarPrefix marks caller variables declared as include attributes.
const VarPrefix = "var-"

// ErrorClass is the class of inline error markers.
const ErrorClass = "sitebuilder-error"

// Resolver resolves inclusion directives. It is safe for concurrent use by
// independent page generations.
type Resolver struct {
	ProjectRoot     string
	BaseURL         string
	BoilerplatesDir string
	Vars            *variables.Registry
	Markup          markdown.Renderer
	Logger          *slog.Logger
}

// include describes a parsed inclusion directive.
type include struct {
	ref      string
	fragment string
	// file is read from disk; renderAs is the location the content is rendered as.
	file     string
	renderAs string
	optional bool
	inline   bool
	trim     bool
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// ResolveTree resolves every directive below root depth first. Failures are
// replaced by inline error markers and returned; they never stop the walk.
func (r *Resolver) ResolveTree(t *dom.Tree, root dom.NodeID, ctx *CallContext, deps *page.DependencySet) []error {
	var errs []error
	for _, c := range t.Children(root) {
		r.resolveNode(t, c, ctx, deps, &errs)
	}
	return errs
}

func (r *Resolver) resolveNode(t *dom.Tree, id dom.NodeID, ctx *CallContext, deps *page.DependencySet, errs *[]error) {
	if t.Type(id) != dom.ElementNode {
		return
	}

	next := ctx
	var err error
	switch t.Kind(id) {
	case dom.KindInclude:
		next, err = r.ResolveInclude(t, id, ctx, deps)
	case dom.KindPopover:
		if t.HasAttr(id, "src") {
			next, err = r.ResolveInclude(t, id, ctx, deps)
		}
	case dom.KindPanel:
		if !t.HasAttr(id, "src") {
			break
		}
		if t.HasAttr(id, "preload") {
			next, err = r.ResolveInclude(t, id, ctx, deps)
		} else {
			next, err = r.ResolveDynamicReference(t, id, ctx, deps)
		}
	case dom.KindVariable:
		// Declarations produce no output of their own.
		t.Detach(id)
		return
	}
	if err != nil {
		r.fail(t, id, ctx, err, errs)
		return
	}
	if next == nil {
		return
	}

	for _, c := range t.Children(id) {
		if t.Parent(c) == id {
			r.resolveNode(t, c, next, deps, errs)
		}
	}
}

// ResolveInclude splices the referenced file into the tree at id and returns
// the context its content must be resolved with. A nil context with a nil
// error means the directive was optional and has been removed.
func (r *Resolver) ResolveInclude(t *dom.Tree, id dom.NodeID, ctx *CallContext, deps *page.DependencySet) (*CallContext, error) {
	inc, err := r.parseInclude(t, id, ctx)
	if err != nil {
		return nil, err
	}

	if !fileExists(inc.file) {
		if inc.optional {
			r.dropOptional(t, id)
			return nil, nil
		}
		deps.AddMissing(inc.file)
		return nil, derrors.ResolutionError(derrors.CategoryMissingReference,
			fmt.Sprintf("cannot resolve include %s", inc.ref)).
			WithContext("file", ctx.CurrentFile()).WithContext("target", inc.file).Build()
	}

	next := ctx.Descend(inc.renderAs, r.inclusionVariables(t, id, ctx))
	if next.Exceeded() {
		return nil, r.cyclicError(next, inc)
	}
	deps.AddStatic(inc.file)

	nodes, err := r.renderFile(t, inc, next, deps)
	if err != nil {
		return nil, err
	}
	if inc.fragment != "" {
		nodes, err = extractFragment(t, nodes, inc.fragment)
		if err != nil {
			if inc.optional {
				r.dropOptional(t, id)
				return nil, nil
			}
			return nil, derrors.ResolutionError(derrors.CategoryMissingFragment, err.Error()).
				WithContext("file", ctx.CurrentFile()).WithContext("target", inc.file).
				WithContext("fragment", inc.fragment).Build()
		}
	}
	if inc.trim {
		trimWhitespace(t, nodes)
	}
	r.place(t, id, inc, nodes)
	return next, nil
}

// ResolveDynamicReference records a by-path reference to a separately
// generated artifact and points the element at the artifact's URL.
func (r *Resolver) ResolveDynamicReference(t *dom.Tree, id dom.NodeID, ctx *CallContext, deps *page.DependencySet) (*CallContext, error) {
	ref, _ := t.Attr(id, "src")
	path, fragment := splitFragment(ref)
	target := r.resolvePath(ctx.CurrentFile(), path)
	if !fileExists(target) {
		if t.HasAttr(id, "optional") {
			r.dropOptional(t, id)
			return nil, nil
		}
		deps.AddMissing(target)
		return nil, derrors.ResolutionError(derrors.CategoryMissingReference,
			fmt.Sprintf("cannot resolve panel source %s", ref)).
			WithContext("file", ctx.CurrentFile()).WithContext("target", target).Build()
	}

	deps.AddDynamic(page.DynamicInclude{From: ctx.CurrentFile(), To: target, AsIfAt: ctx.CurrentFile()})
	url := page.JoinURL(r.BaseURL, page.ArtifactRel(r.rel(target)))
	if fragment != "" {
		url += "#" + fragment
	}
	t.SetAttr(id, "src", url)
	return ctx, nil
}

func (r *Resolver) parseInclude(t *dom.Tree, id dom.NodeID, ctx *CallContext) (include, error) {
	ref, _ := t.Attr(id, "src")
	inc := include{
		ref:      ref,
		optional: t.HasAttr(id, "optional"),
		inline:   t.HasAttr(id, "inline"),
		trim:     t.HasAttr(id, "trim"),
	}
	if strings.TrimSpace(ref) == "" {
		return inc, derrors.ResolutionError(derrors.CategoryMissingReference, "include without src").
			WithContext("file", ctx.CurrentFile()).Build()
	}
	path, fragment := splitFragment(ref)
	inc.fragment = fragment
	inc.renderAs = r.resolvePath(ctx.CurrentFile(), path)
	inc.file = inc.renderAs

	if name, ok := t.Attr(id, "boilerplate"); ok {
		if name == "" {
			name = filepath.Base(filepath.FromSlash(path))
		}
		if p, found := r.boilerplatePath(ctx.CurrentFile(), name); found {
			inc.file = p
		} else {
			inc.file = filepath.Join(r.ProjectRoot, filepath.FromSlash(r.BoilerplatesDir), filepath.FromSlash(name))
		}
	}
	return inc, nil
}

// inclusionVariables merges parent bindings, <variable> children and var-
// attributes, later sources overriding earlier ones.
func (r *Resolver) inclusionVariables(t *dom.Tree, id dom.NodeID, ctx *CallContext) map[string]string {
	vars := ctx.Variables()
	if vars == nil {
		vars = map[string]string{}
	}
	for _, c := range t.Children(id) {
		if t.Kind(c) != dom.KindVariable {
			continue
		}
		if name, ok := t.Attr(c, "name"); ok && name != "" {
			vars[name] = strings.TrimSpace(t.InnerHTML(c))
		}
	}
	for _, a := range t.Attrs(id) {
		if name, ok := strings.CutPrefix(a.Key, VarPrefix); ok && name != "" {
			vars[name] = a.Val
		}
	}
	return vars
}

// renderFile reads, renders and parses inc.file into detached nodes.
func (r *Resolver) renderFile(t *dom.Tree, inc include, ctx *CallContext, deps *page.DependencySet) ([]dom.NodeID, error) {
	raw, err := os.ReadFile(inc.file)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read include").
			WithContext("target", inc.file).Build()
	}
	content := raw
	if !ctx.Options().KeepFrontmatter {
		if _, body, had, splitErr := frontmatter.Split(raw); splitErr == nil && had {
			content = body
		}
	}

	rendered, err := r.Vars.Render(string(content), inc.renderAs, ctx.Variables(), deps)
	if err != nil {
		return nil, err
	}
	if isMarkup(inc.file) && r.Markup != nil {
		rendered, err = r.Markup.Render(rendered, inc.inline)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryRender, "markup render failed").
				WithContext("target", inc.file).Build()
		}
	}
	nodes, err := t.ParseFragment(rendered, inc.renderAs)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryRender, "failed to parse included content").
			WithContext("target", inc.file).Build()
	}
	return nodes, nil
}

func isMarkup(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// place attaches the resolved nodes according to the directive's kind.
func (r *Resolver) place(t *dom.Tree, id dom.NodeID, inc include, nodes []dom.NodeID) {
	switch t.Kind(id) {
	case dom.KindPopover:
		slot := t.NewElement("template", []dom.Attr{{Key: "#content"}}, inc.renderAs)
		for _, n := range nodes {
			t.AppendChild(slot, n)
		}
		for _, c := range t.Children(id) {
			if t.Kind(c) == dom.KindTemplate && t.HasAttr(c, "#content") {
				t.Detach(c)
			}
		}
		t.AppendChild(id, slot)
		t.RemoveAttr(id, "src")
	case dom.KindPanel:
		t.SetChildren(id, append(nonVariableChildren(t, id), nodes...))
		t.RemoveAttr(id, "src")
		t.RemoveAttr(id, "preload")
	default:
		if !inc.inline {
			unwrapLoneParagraph(t, id)
		}
		tag := "div"
		if inc.inline {
			tag = "span"
		}
		t.SetTag(id, tag)
		for _, a := range t.Attrs(id) {
			if a.Key != "id" && a.Key != "class" {
				t.RemoveAttr(id, a.Key)
			}
		}
		t.SetChildren(id, nodes)
	}
}

func nonVariableChildren(t *dom.Tree, id dom.NodeID) []dom.NodeID {
	var out []dom.NodeID
	for _, c := range t.Children(id) {
		if t.Kind(c) != dom.KindVariable {
			out = append(out, c)
		}
	}
	return out
}

// unwrapLoneParagraph removes a <p> whose only content is the block directive id.
func unwrapLoneParagraph(t *dom.Tree, id dom.NodeID) {
	p := t.Parent(id)
	if p == dom.None || !t.IsElement(p, "p") {
		return
	}
	for _, c := range t.Children(p) {
		if c == id {
			continue
		}
		if t.Type(c) != dom.TextNode || strings.TrimSpace(t.Data(c)) != "" {
			return
		}
	}
	t.Unwrap(p)
}

func (r *Resolver) dropOptional(t *dom.Tree, id dom.NodeID) {
	if t.Kind(id) == dom.KindInclude {
		t.Detach(id)
		return
	}
	t.RemoveAttr(id, "src")
}

func (r *Resolver) cyclicError(ctx *CallContext, inc include) error {
	frames := ctx.LastFrames(reportedFrames)
	rel := make([]string, len(frames))
	for i, f := range frames {
		rel[i] = r.rel(f)
	}
	return derrors.NewError(derrors.CategoryCyclicReference,
		fmt.Sprintf("cyclic reference detected: call stack exceeded %d levels (last frames: %s)",
			MaxDepth, strings.Join(rel, " -> "))).
		WithContext("frames", rel).WithContext("target", inc.file).Build()
}

// fail replaces id with an error marker and records err.
func (r *Resolver) fail(t *dom.Tree, id dom.NodeID, ctx *CallContext, err error, errs *[]error) {
	*errs = append(*errs, err)
	r.logger().Warn("Content resolution failed",
		logfields.File(ctx.CurrentFile()),
		slog.String("category", string(derrors.GetCategory(err))),
		logfields.Error(err))
	marker := ErrorMarker(t, err.Error(), t.Origin(id))
	if t.Parent(id) == dom.None {
		return
	}
	t.Replace(id, marker)
}

// ErrorMarker builds the inline element shown in place of a failed directive.
func ErrorMarker(t *dom.Tree, msg, origin string) dom.NodeID {
	div := t.NewElement("div", []dom.Attr{{Key: "class", Val: ErrorClass}}, origin)
	t.AppendChild(div, t.NewText(msg, origin))
	return div
}
