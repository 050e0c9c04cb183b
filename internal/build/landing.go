package build

import (
	"bytes"
	"html/template"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// landingRefresh is the reload interval of placeholder pages, in seconds.
const landingRefresh = 2

var landingTmpl = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>{{.Title}}</title>
</head>
<body>
<p>{{.Title}} is being built. This page reloads automatically.</p>
</body>
</html>
`))

// writeLanding writes a placeholder at p's output path unless output already exists.
func writeLanding(sess *Session, p *page.Page) error {
	if fileExists(p.OutputPath) {
		return nil
	}
	title := p.Title
	if title == "" {
		title = p.Src
	}
	var buf bytes.Buffer
	if err := landingTmpl.Execute(&buf, struct {
		Title   string
		Refresh int
	}{title, landingRefresh}); err != nil {
		return err
	}
	return writeFileAtomic(sess, p.OutputPath, buf.Bytes())
}
