// Package gitinfo reads revision information from the repository holding a site.
package gitinfo

import (
	"errors"

	ggit "github.com/go-git/go-git/v5"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Revision returns the HEAD commit hash of the repository containing dir.
// A directory outside any repository, or a repository without commits,
// yields an empty revision and no error.
func Revision(dir string) (string, error) {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, ggit.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "failed to open git repository").
			WithContext("path", dir).
			Build()
	}
	ref, err := repo.Head()
	if err != nil {
		// Fresh repository without commits.
		return "", nil
	}
	return ref.Hash().String(), nil
}
