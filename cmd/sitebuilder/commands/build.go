package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root.Config, b.BuildFlags)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			g.Logger.Warn("Failed to close build runtime", logfields.Error(err))
		}
	}()

	s := build.New(cfg, rt.options(g.Logger))
	if err := s.FullBuild(ctx); err != nil {
		return err
	}
	g.Logger.Info("Site written", logfields.Output(cfg.OutputPath()), logfields.Count(len(s.Pages())))
	return nil
}
