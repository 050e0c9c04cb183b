package config

import (
	"fmt"
	"path"
	"strings"
)

// NormalizationResult captures adjustments and warnings from the normalization pass.
type NormalizationResult struct{ Warnings []string }

// normalize canonicalizes paths and lists before defaults are applied.
func normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}

	if base := normalizeBaseURL(c.BaseURL); base != c.BaseURL {
		res.Warnings = append(res.Warnings, fmt.Sprintf("baseUrl %q normalized to %q", c.BaseURL, base))
		c.BaseURL = base
	}
	c.PagesExclude = normalizeStringSlice("pagesExclude", c.PagesExclude, res)
	c.Ignore = normalizeStringSlice("ignore", c.Ignore, res)

	for i := range c.Pages {
		p := &c.Pages[i]
		p.Src = strings.TrimSpace(p.Src)
		if p.Src != "" {
			p.Src = path.Clean(strings.TrimPrefix(strings.ReplaceAll(p.Src, "\\", "/"), "/"))
		}
		p.Glob = strings.TrimSpace(p.Glob)
		p.GlobExclude = normalizeStringSlice(fmt.Sprintf("pages[%d].globExclude", i), p.GlobExclude, res)
		p.Layout = strings.TrimSpace(p.Layout)
	}
	if c.HeadingIndexingLevel < 0 || c.HeadingIndexingLevel > 6 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("headingIndexingLevel %d out of range, using %d", c.HeadingIndexingLevel, DefaultHeadingIndexingLevel))
		c.HeadingIndexingLevel = DefaultHeadingIndexingLevel
	}
	return res
}

// normalizeBaseURL returns "" or a path with a leading and no trailing slash.
func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	if strings.Contains(base, "://") || strings.HasPrefix(base, "/") {
		return base
	}
	return "/" + base
}

// normalizeStringSlice trims and dedupes a list, keeping declaration order.
func normalizeStringSlice(label string, in []string, res *NormalizationResult) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) != len(in) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("normalized %s list (%d -> %d entries)", label, len(in), len(out)))
	}
	return out
}
