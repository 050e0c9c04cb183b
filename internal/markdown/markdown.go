// Package markdown is the default markup renderer: Markdown source in, HTML
// fragment out. Raw HTML passes through untouched so custom elements survive
// for the resolver.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Options controls how Markdown is rendered.
type Options struct {
	// HardWraps renders soft line breaks as <br>.
	HardWraps bool
}

// Renderer turns markup text into an HTML fragment.
type Renderer interface {
	Render(src string, inline bool) (string, error)
}

// Goldmark renders CommonMark + GFM using goldmark.
type Goldmark struct {
	md goldmark.Markdown
}

// New builds a goldmark renderer. The returned value is safe for concurrent use.
func New(opts Options) *Goldmark {
	ropts := []renderer.Option{gmhtml.WithUnsafe()}
	if opts.HardWraps {
		ropts = append(ropts, gmhtml.WithHardWraps())
	}
	return &Goldmark{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAttribute()),
		goldmark.WithRendererOptions(ropts...),
	)}
}

// Render converts src. With inline set, a single wrapping paragraph is removed
// so the result can sit inside running text.
func (g *Goldmark) Render(src string, inline bool) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	out := buf.String()
	if inline {
		out = unwrapParagraph(out)
	}
	return out, nil
}

func unwrapParagraph(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "<p>") || !strings.HasSuffix(trimmed, "</p>") {
		return trimmed
	}
	inner := trimmed[len("<p>") : len(trimmed)-len("</p>")]
	if strings.Contains(inner, "<p>") {
		return trimmed
	}
	return inner
}
