package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/layout"
	"git.home.luguber.info/inful/sitebuilder/internal/linkverify"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
	"git.home.luguber.info/inful/sitebuilder/internal/variables"
)

// DefaultWorkers is the width of the throttled worker pool.
const DefaultWorkers = 4

// Options configure a Scheduler. Zero values select defaults.
type Options struct {
	// Workers overrides build.workers from the configuration.
	Workers int
	// Background defers non-viewed rebuilds to DrainPending.
	Background bool
	Markup     markdown.Renderer
	Hooks      *transform.Registry
	Recorder   metrics.Recorder
	History    *eventstore.History
	LinkSink   linkverify.Sink
	Logger     *slog.Logger
	Now        func() time.Time
	// OnBuilt is called with the session ID after each successful build.
	OnBuilt func(buildID string)
}

type generateFunc func(ctx context.Context, sess *Session, p *page.Page) (pageOutput, error)

// Scheduler orchestrates full, lazy and incremental builds of one site.
type Scheduler struct {
	opts   Options
	logger *slog.Logger
	rec    metrics.Recorder
	now    func() time.Time
	width  int

	vars     *variables.Registry
	layouts  *layout.Renderer
	markup   markdown.Renderer
	writer   *writer
	stop     *StopThreshold
	generate generateFunc

	// runMu serializes foreground entry points.
	runMu  sync.Mutex
	metaMu sync.Mutex

	mu     sync.RWMutex
	cfg    *config.Config
	pages  map[string]*page.Page
	ids    map[string][]string
	viewed string
	lazy   bool

	pendMu  sync.Mutex
	pending sets.Set[string]

	async    sync.WaitGroup
	busy     atomic.Int32
	inFlight atomic.Int32
}

// New returns an idle scheduler for cfg. No page is resolved until the first build.
func New(cfg *config.Config, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Markup == nil {
		opts.Markup = markdown.New(markdown.Options{})
	}
	width := opts.Workers
	if width <= 0 {
		width = cfg.Build.Workers
	}
	if width <= 0 {
		width = DefaultWorkers
	}
	if cfg.Build.BackgroundBuild {
		opts.Background = true
	}

	s := &Scheduler{
		opts:    opts,
		logger:  opts.Logger,
		rec:     opts.Recorder,
		now:     opts.Now,
		width:   width,
		vars:    variables.NewRegistry(cfg.Root, nil),
		layouts: layout.NewRenderer(config.LayoutsDir),
		markup:  opts.Markup,
		writer:  newWriter(),
		stop:    newStopThreshold(opts.Now),
		cfg:     cfg,
		pages:   make(map[string]*page.Page),
		ids:     make(map[string][]string),
		pending: sets.New[string](),
	}
	s.generate = s.generatePage
	return s
}

func (s *Scheduler) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Pages returns the addressable pages sorted by source path.
func (s *Scheduler) Pages() []*page.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*page.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *page.Page) int { return strings.Compare(a.Src, b.Src) })
	return out
}

// Page returns the page declared for src.
func (s *Scheduler) Page(src string) (*page.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[src]
	return p, ok
}

// Viewed returns the source path of the page currently being viewed.
func (s *Scheduler) Viewed() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewed
}

// Pending returns the pages waiting for an on-demand or background build.
func (s *Scheduler) Pending() []string {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	return sets.Sorted(s.pending)
}

// Idle reports whether no build work is running.
func (s *Scheduler) Idle() bool { return s.busy.Load() == 0 }

// Wait blocks until asynchronous batches started by Rebuild have finished.
func (s *Scheduler) Wait() { s.async.Wait() }

// StopThreshold exposes the scheduler's cancellation threshold.
func (s *Scheduler) StopThreshold() *StopThreshold { return s.stop }

func (s *Scheduler) enter() func() {
	s.busy.Add(1)
	return func() { s.busy.Add(-1) }
}

// FullBuild resets every cache, resolves all pages and builds them as one
// throttled batch, then validates links and writes the site metadata.
func (s *Scheduler) FullBuild(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.enter()()
	return s.fullBuild(ctx)
}

func (s *Scheduler) fullBuild(ctx context.Context) error {
	start := s.now()
	s.stop.Raise()
	if err := s.reset(); err != nil {
		return err
	}
	s.setLazy(false)
	s.clearPending()

	pages := s.Pages()
	sess := s.NewSession()
	s.started(ctx, sess, modeFull, len(pages), "")
	res, err := s.RunBatch(ctx, sess, Task{Mode: Throttled, Pages: pages})
	// Superseded batches may have returned pages this build just wrote.
	s.dropPending(res.Built)
	return s.complete(ctx, sess, modeFull, start, err)
}

// LazyBuild builds only the page matching entry, marks every other page as
// pending and writes a placeholder for pending pages without output.
func (s *Scheduler) LazyBuild(ctx context.Context, entry string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.enter()()
	return s.lazyBuild(ctx, entry)
}

func (s *Scheduler) lazyBuild(ctx context.Context, entry string) error {
	start := s.now()
	s.stop.Raise()
	if err := s.reset(); err != nil {
		return err
	}
	target, ok := s.findPage(entry)
	if !ok {
		return derrors.NewError(derrors.CategoryNotFound, "no page matches the entry path").
			WithContext("page", entry).
			Build()
	}
	s.setLazy(true)
	s.setViewed(target.Src)

	sess := s.NewSession()
	s.clearPending()
	for _, p := range s.Pages() {
		if p == target {
			continue
		}
		s.addPending(p.Src)
		if err := writeLanding(sess, p); err != nil {
			s.logger.Warn("Failed to write landing placeholder", logfields.Page(p.Src), logfields.Error(err))
		}
	}

	s.started(ctx, sess, modeLazy, 1, target.Src)
	_, err := s.RunBatch(ctx, sess, Task{Mode: Sequential, Pages: []*page.Page{target}})
	return s.complete(ctx, sess, modeLazy, start, err)
}

// Rebuild regenerates the pages affected by changed. A change to a global
// setting file forces a full (or, in lazy mode, lazy) rebuild. Pages that are
// not being viewed are built asynchronously, or deferred to DrainPending in
// background and lazy mode.
func (s *Scheduler) Rebuild(ctx context.Context, changed []string) error {
	if len(changed) == 0 {
		return nil
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.enter()()

	cfg := s.config()
	set := sets.New[string]()
	for _, c := range changed {
		if abs, err := filepath.Abs(c); err == nil {
			set.Add(abs)
		}
	}

	if s.touchesGlobal(set) {
		s.logger.Info("Global settings changed", logfields.Count(len(set)))
		if set.Has(filepath.Join(cfg.Root, config.FileName)) {
			next, err := config.Load(cfg.Root)
			if err != nil {
				return err
			}
			s.setConfig(next)
		}
		if s.isLazy() && s.Viewed() != "" {
			return s.lazyBuild(ctx, s.Viewed())
		}
		return s.fullBuild(ctx)
	}

	start := s.now()
	added := sets.New[string]()
	if s.structuralChange(cfg, set) {
		s.stop.Raise()
		newPages, removed, err := s.loadPages(cfg, true)
		if err != nil {
			return err
		}
		s.dropPages(removed)
		for _, p := range newPages {
			added.Add(p.Src)
		}
		s.logger.Info("Reloaded site structure",
			slog.Int("added", len(newPages)),
			slog.Int("removed", len(removed)))
	}

	var affected []*page.Page
	for _, p := range s.Pages() {
		if added.Has(p.Src) || p.DependsOn(set) {
			affected = append(affected, p)
		}
	}
	if len(affected) == 0 {
		s.logger.Debug("No pages affected by change", logfields.Count(len(set)))
		return nil
	}
	s.supersede()

	viewed := s.Viewed()
	var now, later []*page.Page
	for _, p := range affected {
		if p.Src == viewed {
			now = append(now, p)
		} else {
			later = append(later, p)
		}
	}

	var err error
	if len(now) > 0 {
		sess := s.NewSession()
		s.started(ctx, sess, modeIncremental, len(now), viewed)
		_, batchErr := s.RunBatch(ctx, sess, Task{Mode: Sequential, Pages: now})
		err = s.complete(ctx, sess, modeIncremental, start, batchErr)
	}

	switch {
	case len(later) == 0:
	case s.opts.Background || s.isLazy():
		for _, p := range later {
			s.addPending(p.Src)
		}
		s.rec.SetPending(len(s.Pending()))
	default:
		s.runAsync(ctx, append(later, s.takePendingPages(sets.New(srcs(later)...))...))
	}
	return err
}

// ChangeViewedPage records ref as the viewed page and builds it right away if
// it is pending.
func (s *Scheduler) ChangeViewedPage(ctx context.Context, ref string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.enter()()

	p, ok := s.findPage(ref)
	if !ok {
		return derrors.NewError(derrors.CategoryNotFound, "no page matches the viewed path").
			WithContext("page", ref).
			Build()
	}
	s.setViewed(p.Src)
	if !s.takePending(p.Src) {
		return nil
	}
	start := s.now()
	sess := s.NewSession()
	s.started(ctx, sess, modeViewed, 1, p.Src)
	_, err := s.RunBatch(ctx, sess, Task{Mode: Sequential, Pages: []*page.Page{p}})
	return s.complete(ctx, sess, modeViewed, start, err)
}

// supersede makes every batch in flight stale, then drops the template and
// layout caches. Both happen under runMu, where batch stamps are taken, so a
// batch whose output is kept never observes the invalidation.
func (s *Scheduler) supersede() {
	s.stop.Raise()
	s.vars.InvalidateCache()
	s.layouts.Reset()
}

// DrainPending builds every pending page as one throttled batch. It does not
// block foreground entry points; a later Rebuild supersedes it through the
// stop threshold and skipped pages return to the pending set.
func (s *Scheduler) DrainPending(ctx context.Context) error {
	pages, stamp := s.claimPending()
	if len(pages) == 0 {
		return nil
	}
	defer s.enter()()
	return s.runStamped(ctx, modeBackground, pages, stamp)
}

// claimPending empties the pending set and stamps the batch that will build it.
func (s *Scheduler) claimPending() ([]*page.Page, int64) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.takePendingPages(nil), s.stop.Stamp()
}

func (s *Scheduler) runStamped(ctx context.Context, mode string, pages []*page.Page, stamp int64) error {
	start := s.now()
	sess := s.NewSession()
	s.started(ctx, sess, mode, len(pages), "")
	_, err := s.runBatch(ctx, sess, Task{Mode: Throttled, Pages: pages}, stamp)
	return s.complete(ctx, sess, mode, start, err)
}

// runAsync builds pages in the background. Without a background runner
// nothing else drains the pending set, so pages a later Rebuild made stale
// are claimed and built again until none are left.
func (s *Scheduler) runAsync(ctx context.Context, pages []*page.Page) {
	ctx = context.WithoutCancel(ctx)
	stamp := s.stop.Stamp()
	s.async.Add(1)
	s.busy.Add(1)
	go func() {
		defer s.async.Done()
		defer s.busy.Add(-1)
		for len(pages) > 0 {
			_ = s.runStamped(ctx, modeIncremental, pages, stamp)
			if s.opts.Background || s.isLazy() {
				return
			}
			pages, stamp = s.claimPending()
		}
	}()
}

// RunBatch executes task within sess. The batch is stamped when it starts;
// a task whose stamp predates the stop threshold skips generation and returns
// its page to the pending set. The first page failure fails the batch, wrapped
// with the page's identity, and temp files of the session are removed.
func (s *Scheduler) RunBatch(ctx context.Context, sess *Session, task Task) (BatchResult, error) {
	return s.runBatch(ctx, sess, task, s.stop.Stamp())
}

func (s *Scheduler) runBatch(ctx context.Context, sess *Session, task Task, stamp int64) (BatchResult, error) {
	res := BatchResult{ID: uuid.NewString()[:8]}
	log := s.logger.With(logfields.BuildID(sess.ID), logfields.Batch(res.ID))
	width := 1
	if task.Mode == Throttled {
		width = s.width
	}

	var generated, unchanged, skipped atomic.Int32
	var builtMu sync.Mutex
	built := sets.New[string]()
	err := runThrottled(ctx, width, task.Pages, func(ctx context.Context, p *page.Page) error {
		if s.skipStale(stamp, p, log) {
			skipped.Add(1)
			return nil
		}
		s.rec.SetInFlight(int(s.inFlight.Add(1)))
		out, err := s.generate(ctx, sess, p)
		s.rec.SetInFlight(int(s.inFlight.Add(-1)))
		if err != nil {
			s.rec.IncPageResult(metrics.ResultFailed)
			return pageError(err, p)
		}
		if s.skipStale(stamp, p, log) {
			skipped.Add(1)
			return nil
		}
		changed, err := s.commit(ctx, sess, p, out)
		if err != nil {
			s.rec.IncPageResult(metrics.ResultFailed)
			return pageError(err, p)
		}
		builtMu.Lock()
		built.Add(p.Src)
		builtMu.Unlock()
		if changed {
			generated.Add(1)
			s.rec.IncPageResult(metrics.ResultGenerated)
		} else {
			unchanged.Add(1)
			s.rec.IncPageResult(metrics.ResultUnchanged)
		}
		return nil
	})
	res.Generated = int(generated.Load())
	res.Unchanged = int(unchanged.Load())
	res.Skipped = int(skipped.Load())
	res.Built = sets.Sorted(built)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	hctx := context.WithoutCancel(ctx)
	if err != nil {
		removed := sess.cleanup()
		outcome := metrics.BatchFailed
		if ctx.Err() != nil {
			outcome = metrics.BatchCanceled
		}
		s.rec.IncBatchOutcome(outcome)
		s.opts.History.Record(hctx, sess.ID, eventstore.TypeBatchFailed, eventstore.BatchFailed{
			Batch: res.ID,
			Page:  derrors.ContextString(err, "page"),
			Error: err.Error(),
		})
		log.Error("Batch failed", logfields.Mode(task.Mode.String()), logfields.Error(err), slog.Int("temp_removed", len(removed)))
		return res, err
	}

	s.rec.IncBatchOutcome(metrics.BatchSuccess)
	s.opts.History.Record(hctx, sess.ID, eventstore.TypeBatchCompleted, eventstore.BatchCompleted{
		Batch:   res.ID,
		Pages:   len(task.Pages),
		Skipped: res.Skipped,
	})
	log.Info("Batch completed",
		logfields.Mode(task.Mode.String()),
		logfields.Count(len(task.Pages)),
		slog.Int("generated", res.Generated),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func pageError(err error, p *page.Page) error {
	return derrors.WrapError(err, derrors.CategoryBuild, "page generation failed").
		WithContext("page", p.Src).
		Build()
}

func (s *Scheduler) skipStale(stamp int64, p *page.Page, log *slog.Logger) bool {
	if !s.stop.Stale(stamp) {
		return false
	}
	log.Info("Skipping stale task", logfields.Page(p.Src))
	s.rec.IncPageResult(metrics.ResultSkipped)
	s.addPending(p.Src)
	return true
}

// commit writes a generated page and publishes its result.
func (s *Scheduler) commit(ctx context.Context, sess *Session, p *page.Page, out pageOutput) (bool, error) {
	changed, err := s.writer.write(ctx, sess, p.OutputPath, out.html, out.fingerprint)
	if err != nil {
		return false, err
	}
	p.SetResult(out.deps, out.search)
	sess.Links.RecordIDs(p.Src, out.ids)
	s.mu.Lock()
	s.ids[p.Src] = out.ids
	s.mu.Unlock()
	return changed, nil
}

func (s *Scheduler) started(ctx context.Context, sess *Session, mode string, pages int, entry string) {
	s.opts.History.Record(ctx, sess.ID, eventstore.TypeBuildStarted, eventstore.BuildStarted{Mode: mode, Pages: pages, Entry: entry})
	s.logger.Info("Starting build", logfields.BuildID(sess.ID), logfields.Mode(mode), logfields.Count(pages))
}

// complete finalizes the session once its batch has returned: it waits for
// artifacts and locks, validates links and writes the site metadata.
func (s *Scheduler) complete(ctx context.Context, sess *Session, mode string, start time.Time, batchErr error) error {
	hctx := context.WithoutCancel(ctx)
	if batchErr == nil {
		batchErr = sess.finalize(ctx)
	}
	warnings := 0
	status := "completed"
	if batchErr == nil {
		warnings = s.validateLinks(hctx, sess)
		if err := s.writeMetadata(sess); err != nil {
			s.logger.Warn("Failed to write site metadata", logfields.BuildID(sess.ID), logfields.Error(err))
		}
	} else {
		status = "failed"
	}

	d := s.now().Sub(start)
	s.rec.ObserveBuildDuration(mode, d)
	s.rec.SetPending(len(s.Pending()))
	s.opts.History.Record(hctx, sess.ID, eventstore.TypeBuildCompleted, eventstore.BuildCompleted{
		Mode:         mode,
		Status:       status,
		LinkWarnings: warnings,
		DurationMS:   d.Milliseconds(),
	})
	if batchErr != nil {
		s.logger.Error("Build failed", logfields.BuildID(sess.ID), logfields.Mode(mode), logfields.Error(batchErr))
		return batchErr
	}
	s.logger.Info("Build completed",
		logfields.BuildID(sess.ID),
		logfields.Mode(mode),
		logfields.Duration(d),
		slog.Int("link_warnings", warnings))
	if s.opts.OnBuilt != nil {
		s.opts.OnBuilt(sess.ID)
	}
	return nil
}

func (s *Scheduler) validateLinks(ctx context.Context, sess *Session) int {
	if !sess.cfg.LinkCheck.IsEnabled() {
		return 0
	}
	warnings := sess.Links.ValidateAll()
	s.rec.AddLinkWarnings(len(warnings))
	if s.opts.LinkSink != nil && len(warnings) > 0 {
		if err := s.opts.LinkSink.Publish(ctx, linkverify.Events(warnings, sess.ID, s.now())); err != nil {
			s.logger.Warn("Failed to publish broken link events", logfields.BuildID(sess.ID), logfields.Error(err))
		}
	}
	return len(warnings)
}

func (s *Scheduler) setConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Scheduler) setViewed(src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewed = src
}

func (s *Scheduler) setLazy(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazy = v
}

func (s *Scheduler) isLazy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lazy
}

func (s *Scheduler) addPending(src string) {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	s.pending.Add(src)
}

func (s *Scheduler) takePending(src string) bool {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	if !s.pending.Has(src) {
		return false
	}
	s.pending.Delete(src)
	return true
}

func (s *Scheduler) dropPending(list []string) {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	for _, src := range list {
		s.pending.Delete(src)
	}
}

func (s *Scheduler) clearPending() {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	s.pending = sets.New[string]()
}

// takePendingPages empties the pending set and returns its pages, leaving
// out sources in exclude.
func (s *Scheduler) takePendingPages(exclude sets.Set[string]) []*page.Page {
	s.pendMu.Lock()
	srcList := sets.Sorted(s.pending)
	s.pending = sets.New[string]()
	s.pendMu.Unlock()

	var out []*page.Page
	for _, src := range srcList {
		if exclude.Has(src) {
			continue
		}
		if p, ok := s.Page(src); ok {
			out = append(out, p)
		}
	}
	return out
}

func srcs(pages []*page.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Src
	}
	return out
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
