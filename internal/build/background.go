package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DefaultBackgroundInterval is how often the background runner looks for pending pages.
const DefaultBackgroundInterval = 2 * time.Second

// BackgroundRunner periodically drains the scheduler's pending pages while no
// foreground work runs.
type BackgroundRunner struct {
	s         *Scheduler
	scheduler gocron.Scheduler
	logger    *slog.Logger
	ctx       context.Context
}

// NewBackgroundRunner registers a duration job that drains s every interval.
func NewBackgroundRunner(ctx context.Context, s *Scheduler, interval time.Duration) (*BackgroundRunner, error) {
	if interval <= 0 {
		interval = DefaultBackgroundInterval
	}
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "failed to create background scheduler").Build()
	}
	r := &BackgroundRunner{s: s, scheduler: gs, logger: s.logger, ctx: ctx}
	if _, err := gs.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.Tick() }),
		gocron.WithName("background-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = gs.Shutdown()
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "failed to create background build job").Build()
	}
	return r, nil
}

// Start begins scheduling.
func (r *BackgroundRunner) Start() {
	r.logger.Info("Starting background builds")
	r.scheduler.Start()
}

// Stop shuts the job down and waits for a running drain.
func (r *BackgroundRunner) Stop() error {
	r.logger.Info("Stopping background builds")
	return r.scheduler.Shutdown()
}

// Tick drains pending pages when the scheduler is idle. It reports whether a
// drain ran.
func (r *BackgroundRunner) Tick() bool {
	if !r.s.Idle() || len(r.s.Pending()) == 0 {
		return false
	}
	if err := r.s.DrainPending(r.ctx); err != nil {
		r.logger.Warn("Background build failed", logfields.Error(err))
	}
	return true
}
