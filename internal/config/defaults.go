package config

import "time"

const (
	DefaultOutputDir            = "_site_out"
	DefaultWorkers              = 4
	DefaultDebounce             = 300 * time.Millisecond
	DefaultBackgroundInterval   = 2 * time.Second
	DefaultHeadingIndexingLevel = 3
	DefaultLinkSubject          = "sitebuilder.links.broken"
)

// defaultPages is used when site.yaml declares no pages at all.
var defaultPages = []PageEntry{{Glob: "**/index.md"}}

func applyDefaults(cfg *Config) {
	if len(cfg.Pages) == 0 {
		cfg.Pages = append([]PageEntry(nil), defaultPages...)
	}
	if cfg.HeadingIndexingLevel == 0 {
		cfg.HeadingIndexingLevel = DefaultHeadingIndexingLevel
	}
	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = DefaultOutputDir
	}
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = DefaultWorkers
	}
	if cfg.Build.Debounce <= 0 {
		cfg.Build.Debounce = DefaultDebounce
	}
	if cfg.Build.BackgroundInterval <= 0 {
		cfg.Build.BackgroundInterval = DefaultBackgroundInterval
	}
	if cfg.LinkCheck.Subject == "" {
		cfg.LinkCheck.Subject = DefaultLinkSubject
	}
}
