package resolve

import (
	"os"
	"path/filepath"
	"strings"
)

// splitFragment separates "path#fragment".
func splitFragment(ref string) (string, string) {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// resolvePath resolves ref against the directory of from. Refs starting with
// a slash are relative to the project root.
func (r *Resolver) resolvePath(from, ref string) string {
	ref = filepath.FromSlash(ref)
	if strings.HasPrefix(ref, string(filepath.Separator)) {
		return filepath.Join(r.ProjectRoot, ref)
	}
	return filepath.Join(filepath.Dir(from), ref)
}

// boilerplatePath finds a boilerplate file named name, starting at the
// parent site of the including file's scope and walking toward the project root.
func (r *Resolver) boilerplatePath(from, name string) (string, bool) {
	scope, err := r.Vars.ResolveScope(from)
	if err != nil {
		return "", false
	}
	site := r.Vars.ParentScope(scope)
	for {
		p := filepath.Join(site, filepath.FromSlash(r.BoilerplatesDir), filepath.FromSlash(name))
		if fileExists(p) {
			return p, true
		}
		parent := r.Vars.ParentScope(site)
		if parent == site {
			return "", false
		}
		site = parent
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func (r *Resolver) rel(abs string) string {
	rel, err := filepath.Rel(r.ProjectRoot, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
