package page

import (
	"path"
	"strings"
)

// ArtifactSuffix marks separately generated include artifacts.
const ArtifactSuffix = "._include_.html"

// StripExt removes the final extension of a slash separated path.
func StripExt(rel string) string {
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// OutputRel is the output path of a page source relative to the output directory.
func OutputRel(src string) string { return StripExt(src) + ".html" }

// ArtifactRel is the output path of a dynamic include artifact relative to the output directory.
func ArtifactRel(src string) string { return StripExt(src) + ArtifactSuffix }

// JoinURL joins a normalized base URL and a slash separated relative path.
func JoinURL(baseURL, rel string) string {
	return baseURL + "/" + strings.TrimPrefix(rel, "/")
}
