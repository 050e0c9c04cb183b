package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// validate checks a normalized, defaulted configuration.
func validate(c *Config) error {
	for i, p := range c.Pages {
		if err := validatePageEntry(i, p); err != nil {
			return err
		}
	}
	for _, g := range append(append([]string{}, c.PagesExclude...), c.Ignore...) {
		if !doublestar.ValidatePattern(g) {
			return derrors.ValidationError(fmt.Sprintf("invalid glob pattern: %s", g)).Build()
		}
	}
	if c.Build.Workers < 1 {
		return derrors.ValidationError("build.workers must be at least 1").Build()
	}
	if c.HeadingIndexingLevel < 1 || c.HeadingIndexingLevel > 6 {
		return derrors.ValidationError("headingIndexingLevel must be between 1 and 6").Build()
	}
	return nil
}

func validatePageEntry(i int, p PageEntry) error {
	switch {
	case p.Src == "" && p.Glob == "":
		return derrors.ValidationError(fmt.Sprintf("pages[%d]: one of src or glob is required", i)).Build()
	case p.Src != "" && p.Glob != "":
		return derrors.ValidationError(fmt.Sprintf("pages[%d]: src and glob are mutually exclusive", i)).Build()
	case p.Src == ".." || len(p.Src) > 2 && p.Src[:3] == "../":
		return derrors.ValidationError(fmt.Sprintf("pages[%d]: src %s is outside the site root", i, p.Src)).Build()
	}
	if p.Glob != "" && !doublestar.ValidatePattern(p.Glob) {
		return derrors.ValidationError(fmt.Sprintf("pages[%d]: invalid glob pattern: %s", i, p.Glob)).Build()
	}
	for _, g := range p.GlobExclude {
		if !doublestar.ValidatePattern(g) {
			return derrors.ValidationError(fmt.Sprintf("pages[%d]: invalid globExclude pattern: %s", i, g)).Build()
		}
	}
	return nil
}
