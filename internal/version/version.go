// Package version carries build metadata set through -ldflags, for example
// -X git.home.luguber.info/inful/sitebuilder/internal/version.Version=v1.2.0.
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String formats the metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
