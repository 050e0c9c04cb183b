package variables

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Declaration is one <variable name="..."> entry of a variables file.
type Declaration struct {
	Name  string
	Value string
}

// ParseDeclarations extracts top-level <variable> elements, keeping each
// value's raw source text so template actions survive untouched.
func ParseDeclarations(src []byte) ([]Declaration, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var (
		out   []Declaration
		cur   *Declaration
		buf   strings.Builder
		depth int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return out, nil
			}
			return nil, z.Err()
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "variable" {
				if depth == 0 {
					cur = &Declaration{}
					if hasAttr {
						cur.Name = attrValue(z, "name")
					}
					buf.Reset()
					depth++
					continue
				}
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "variable" && depth > 0 {
				depth--
				if depth == 0 {
					cur.Value = strings.TrimSpace(buf.String())
					out = append(out, *cur)
					cur = nil
					continue
				}
			}
		}
		if depth > 0 {
			buf.Write(z.Raw())
		}
	}
}

func attrValue(z *html.Tokenizer, key string) string {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v)
		}
		if !more {
			return ""
		}
	}
}

// Load resets the scope at scopeRoot, defines builtins, then defines every
// declaration of the scope's variables file in order. A missing file is not an error.
func (r *Registry) Load(scopeRoot, variablesFile string, builtins map[string]string) error {
	s, ok := r.Scope(scopeRoot)
	if !ok {
		return derrors.NewError(derrors.CategoryNotFound, "unknown site scope").WithContext("scope", scopeRoot).Build()
	}
	s.clearVars()
	for _, k := range sortedKeys(builtins) {
		s.set(k, builtins[k])
	}

	p := filepath.Join(scopeRoot, filepath.FromSlash(variablesFile))
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read variables file").
			WithContext("file", p).Build()
	}
	decls, err := ParseDeclarations(data)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryConfig, "failed to parse variables file").
			WithContext("file", p).Build()
	}
	for _, d := range decls {
		if err := r.DefineRendered(scopeRoot, d.Name, d.Value); err != nil {
			return err
		}
	}
	return nil
}
