package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// FileName is the configuration file that marks a directory as a site root.
const FileName = "site.yaml"

// Fixed paths relative to every site root.
const (
	SiteDir         = "_site"
	VariablesFile   = "_site/variables.md"
	LayoutsDir      = "_site/layouts"
	BoilerplatesDir = "_site/boilerplates"
)

// Config is the parsed site.yaml of the root site.
type Config struct {
	BaseURL              string         `yaml:"baseUrl"`
	Title                string         `yaml:"title"`
	Pages                []PageEntry    `yaml:"pages"`
	PagesExclude         []string       `yaml:"pagesExclude,omitempty"`
	Ignore               []string       `yaml:"ignore,omitempty"`
	GlobalOverride       map[string]any `yaml:"globalOverride,omitempty"`
	HeadingIndexingLevel int            `yaml:"headingIndexingLevel"`
	Build                BuildConfig    `yaml:"build"`
	LinkCheck            LinkCheck      `yaml:"linkCheck"`
	History              HistoryConfig  `yaml:"history"`

	// Root is the absolute directory holding the configuration file.
	Root string `yaml:"-"`
}

// PageEntry declares one page (src) or a set of pages (glob).
type PageEntry struct {
	Src         string         `yaml:"src,omitempty"`
	Glob        string         `yaml:"glob,omitempty"`
	GlobExclude []string       `yaml:"globExclude,omitempty"`
	Title       string         `yaml:"title,omitempty"`
	Layout      string         `yaml:"layout,omitempty"`
	Searchable  *bool          `yaml:"searchable,omitempty"`
	Frontmatter map[string]any `yaml:"frontmatter,omitempty"`
}

// BuildConfig controls the scheduler.
type BuildConfig struct {
	OutputDir          string        `yaml:"outputDir"`
	Workers            int           `yaml:"workers"`
	BackgroundBuild    bool          `yaml:"backgroundBuild"`
	Debounce           time.Duration `yaml:"debounce"`
	BackgroundInterval time.Duration `yaml:"backgroundInterval"`
}

// LinkCheck controls deferred link validation.
type LinkCheck struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	NatsURL string `yaml:"natsUrl,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// IsEnabled reports whether link validation runs. Omitted means enabled.
func (l LinkCheck) IsEnabled() bool { return l.Enabled == nil || *l.Enabled }

// HistoryConfig points at the optional build history database.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// OutputPath returns the absolute output directory.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Build.OutputDir) {
		return c.Build.OutputDir
	}
	return filepath.Join(c.Root, c.Build.OutputDir)
}

// Load reads site.yaml from path (a file or the directory holding it),
// expands environment variables, then normalizes, defaults and validates it.
func Load(path string) (*Config, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid configuration path").Fatal().Build()
	}

	if loaded := loadEnvFiles(filepath.Dir(abs)); len(loaded) > 0 {
		slog.Debug("Loaded environment files", "files", loaded)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ConfigError(fmt.Sprintf("configuration file not found: %s", abs)).Build()
		}
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to read config file").Fatal().Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.Root = filepath.Dir(abs)
	return cfg, nil
}

// Parse decodes and prepares a configuration document. Root is left empty.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to unmarshal site config").Fatal().Build()
	}

	res := normalize(&cfg)
	for _, w := range res.Warnings {
		slog.Warn("config normalization", "detail", w)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
