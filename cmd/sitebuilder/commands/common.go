// Package commands implements the sitebuilder command line.
package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/linkverify"
	"git.home.luguber.info/inful/sitebuilder/internal/livereload"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Global carries state shared by all commands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the command line definition.
type CLI struct {
	Config  string           `short:"c" help:"Site root or path to site.yaml" default:"."`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build every page of the site once"`
	Serve   ServeCmd   `cmd:"" help:"Build, watch for changes and serve the output"`
	History HistoryCmd `cmd:"" help:"List recent builds recorded in the history database"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	return nil
}

// BuildFlags are shared by commands that run the scheduler.
type BuildFlags struct {
	Output  string `short:"o" help:"Output directory (overrides build.outputDir)"`
	Workers int    `short:"w" help:"Worker pool width (overrides build.workers)"`
}

// loadConfig reads the site configuration and applies flag overrides.
func loadConfig(path string, f BuildFlags) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.Output != "" {
		cfg.Build.OutputDir = f.Output
	}
	if f.Workers > 0 {
		cfg.Build.Workers = f.Workers
	}
	return cfg, nil
}

// runtime holds the optional collaborators of a scheduler and closes them.
type runtime struct {
	history  *eventstore.History
	sink     linkverify.Sink
	registry *prometheus.Registry
	reload   *livereload.Hub
}

// newRuntime opens the build history and the broken link sink when the
// configuration asks for them.
func newRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{registry: prometheus.NewRegistry(), reload: livereload.NewHub(logger)}
	if cfg.History.Path != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		rt.history = eventstore.NewHistory(store, logger)
	}
	if cfg.LinkCheck.NatsURL != "" {
		sink, err := linkverify.NewNATSSink(cfg.LinkCheck.NatsURL, cfg.LinkCheck.Subject)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.sink = sink
	}
	return rt, nil
}

func (rt *runtime) options(logger *slog.Logger) build.Options {
	return build.Options{
		Recorder: metrics.NewPrometheusRecorder(rt.registry),
		History:  rt.history,
		LinkSink: rt.sink,
		OnBuilt:  rt.reload.Broadcast,
		Logger:   logger,
	}
}

func (rt *runtime) Close() error {
	rt.reload.Shutdown()
	var errs []error
	if rt.sink != nil {
		errs = append(errs, rt.sink.Close())
	}
	errs = append(errs, rt.history.Close())
	return errors.Join(errs...)
}

