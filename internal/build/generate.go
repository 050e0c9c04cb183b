package build

import (
	"context"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/artifact"
	"git.home.luguber.info/inful/sitebuilder/internal/dom"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/layout"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/resolve"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// pageOutput is a generated page that has not been written yet.
type pageOutput struct {
	html        string
	fingerprint string
	deps        *page.DependencySet
	search      page.SearchData
	ids         []string
}

// rendered is the shared result of turning one source file into a tree.
type rendered struct {
	fields map[string]any
	tree   *dom.Tree
	result transform.Result
}

// generatePage renders p through variables, markdown, include resolution,
// the transform pipeline and its layout.
func (s *Scheduler) generatePage(ctx context.Context, sess *Session, p *page.Page) (pageOutput, error) {
	deps := page.NewDependencySet()
	r, err := s.render(sess, p.SourcePath, p.SourcePath, deps, func(fields map[string]any) map[string]any {
		return frontmatter.Merge(fields, p.Frontmatter, sess.cfg.GlobalOverride)
	})
	if err != nil {
		return pageOutput{}, err
	}
	s.ensureArtifacts(ctx, sess, deps, true)

	scope, err := s.vars.ResolveScope(p.SourcePath)
	if err != nil {
		return pageOutput{}, err
	}
	layoutName := frontmatter.String(r.fields, "layout")
	if layoutName == "" {
		layoutName = p.Layout
	}
	if lp := s.layouts.Path(scope, layoutName); fileExists(lp) {
		deps.AddStatic(lp)
	} else {
		deps.AddMissing(lp)
	}

	title := pageTitle(r.fields, p, r.result)
	strs := frontmatter.Strings(r.fields)
	html, err := s.layouts.Render(scope, layoutName, layout.Data{
		Title:        title,
		SiteTitle:    sess.cfg.Title,
		BaseURL:      sess.cfg.BaseURL,
		Content:      template.HTML(r.tree.InnerHTML(r.tree.Root())),
		HeadTop:      template.HTML(strings.Join(r.result.HeadTop, "\n")),
		HeadBottom:   template.HTML(strings.Join(r.result.HeadBottom, "\n")),
		ScriptBottom: template.HTML(strings.Join(r.result.ScriptBottom, "\n")),
		Frontmatter:  strs,
	})
	if err != nil {
		return pageOutput{}, err
	}

	canonical, err := frontmatter.Canonical(r.fields)
	if err != nil {
		s.logger.Debug("Frontmatter excluded from fingerprint", logfields.Page(p.Src), logfields.Error(err))
		canonical = ""
	}

	return pageOutput{
		html:        html,
		fingerprint: mdfp.CalculateFingerprintFromParts(canonical, html),
		deps:        deps,
		search:      searchData(p, title, r),
		ids:         r.result.IDs,
	}, nil
}

// generateArtifact renders a dynamically referenced file on its own, as if it
// were included from req.AsIfAt, and writes it to req.Output. It has its own
// heading id namespace. Nested dynamic references are requested but not
// awaited so mutually referencing artifacts cannot wait on each other.
func (s *Scheduler) generateArtifact(ctx context.Context, sess *Session, req artifact.Request) (artifact.Result, error) {
	deps := page.NewDependencySet()
	deps.AddStatic(req.Source)
	r, err := s.render(sess, req.Source, req.AsIfAt, deps, nil)
	if err != nil {
		return artifact.Result{Deps: deps}, err
	}
	s.ensureArtifacts(ctx, sess, deps, false)

	body := r.tree.InnerHTML(r.tree.Root())
	if _, err := s.writer.write(ctx, sess, req.Output, body, mdfp.CalculateFingerprintFromParts("", body)); err != nil {
		return artifact.Result{Deps: deps}, err
	}
	s.logger.Debug("Generated artifact", logfields.Source(req.Source), logfields.Output(req.Output))
	return artifact.Result{Deps: deps}, nil
}

// render reads file and produces its transformed tree. Variables resolve in
// the scope of renderAs. With effective set the file is a page: frontmatter
// layers are merged and override scope variables.
func (s *Scheduler) render(sess *Session, file, renderAs string, deps *page.DependencySet, effective func(map[string]any) map[string]any) (rendered, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return rendered{}, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read source").
			WithContext("file", file).
			Build()
	}
	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return rendered{}, derrors.WrapError(err, derrors.CategoryValidation, "invalid frontmatter").
			WithContext("file", file).
			Build()
	}

	fields := doc.Fields
	var body string
	if effective != nil {
		fields = effective(fields)
		body, err = s.vars.RenderPage(string(doc.Body), renderAs, frontmatter.Strings(fields), deps)
	} else {
		body, err = s.vars.Render(string(doc.Body), renderAs, nil, deps)
	}
	if err != nil {
		return rendered{}, err
	}

	markup, err := s.markup.Render(body, false)
	if err != nil {
		return rendered{}, derrors.WrapError(err, derrors.CategoryRender, "failed to render markdown").
			WithContext("file", file).
			Build()
	}
	tree := dom.New()
	if err := tree.ParseInto(tree.Root(), markup, file); err != nil {
		return rendered{}, derrors.WrapError(err, derrors.CategoryRender, "failed to parse rendered html").
			WithContext("file", file).
			Build()
	}

	for _, rerr := range sess.resolver.ResolveTree(tree, tree.Root(), resolve.NewCallContext(file, nil, resolve.Options{}), deps) {
		s.logger.Debug("Resolution error kept inline", logfields.File(file), logfields.Error(rerr))
	}

	pipe := transform.New(transform.Options{
		ProjectRoot:          sess.cfg.Root,
		BaseURL:              sess.cfg.BaseURL,
		HeadingIndexingLevel: sess.cfg.HeadingIndexingLevel,
		Markup:               s.markup,
		Hooks:                s.opts.Hooks,
		Logger:               s.logger,
	}, sess.Links)
	return rendered{fields: fields, tree: tree, result: pipe.Run(tree, tree.Root(), file)}, nil
}

// ensureArtifacts requests every dynamic reference recorded in deps. With
// wait the artifacts' dependencies are folded into deps; a failed artifact is
// logged and does not fail the caller.
func (s *Scheduler) ensureArtifacts(ctx context.Context, sess *Session, deps *page.DependencySet, wait bool) {
	dyn := deps.Dynamic()
	handles := make([]*artifact.Handle, 0, len(dyn))
	for _, inc := range dyn {
		rel, ok := relTo(sess.cfg.Root, inc.To)
		if !ok {
			continue
		}
		handles = append(handles, sess.Artifacts.Ensure(ctx, artifact.Request{
			Source: inc.To,
			AsIfAt: inc.AsIfAt,
			Output: filepath.Join(sess.cfg.OutputPath(), filepath.FromSlash(page.ArtifactRel(rel))),
		}))
	}
	if !wait {
		return
	}
	for _, h := range handles {
		res, err := h.Wait(ctx)
		if err != nil {
			s.logger.Warn("Artifact generation failed",
				logfields.Source(h.Request().Source),
				logfields.Output(h.Request().Output),
				logfields.Error(err))
		}
		deps.Merge(res.Deps)
	}
}

// pageTitle picks the frontmatter title, then the configured title, then the
// first h1, then the file name.
func pageTitle(fields map[string]any, p *page.Page, res transform.Result) string {
	if t := frontmatter.String(fields, "title"); t != "" {
		return t
	}
	if p.Title != "" {
		return p.Title
	}
	for _, h := range res.Headings {
		if h.Level == 1 && h.Text != "" {
			return h.Text
		}
	}
	name := page.StripExt(path.Base(p.Src))
	if name == "index" && path.Dir(p.Src) != "." {
		name = path.Base(path.Dir(p.Src))
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}

func searchData(p *page.Page, title string, r rendered) page.SearchData {
	sd := page.SearchData{
		Src:             p.Src,
		Title:           title,
		Headings:        make(map[string]string, len(r.result.Headings)),
		HeadingKeywords: make(map[string][]string),
	}
	for _, h := range r.result.Headings {
		sd.Headings[h.ID] = h.Text
		if len(h.Keywords) > 0 {
			sd.HeadingKeywords[h.ID] = h.Keywords
		}
	}
	sd.Keywords = append(frontmatter.Keywords(r.fields), r.result.Keywords...)
	return sd
}
