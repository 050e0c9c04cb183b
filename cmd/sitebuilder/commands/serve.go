package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/livereload"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// ServeCmd builds the site, rebuilds it on change and serves the output.
type ServeCmd struct {
	BuildFlags
	Addr       string `name:"addr" default:"localhost:8080" help:"Listen address."`
	Lazy       string `name:"lazy" placeholder:"PAGE" help:"Build only PAGE up front; other pages are built when viewed or in the background."`
	Background bool   `name:"background" help:"Defer rebuilds of pages that are not being viewed to background batches."`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root.Config, c.BuildFlags)
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

	opts := rt.options(g.Logger)
	opts.Background = c.Background
	s := build.New(cfg, opts)

	if c.Lazy != "" {
		err = s.LazyBuild(ctx, c.Lazy)
	} else {
		err = s.FullBuild(ctx)
	}
	if err != nil {
		// A broken page must not keep the server from starting.
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}

	deb, err := build.NewDebouncer(ctx, build.DebouncerConfig{
		QuietWindow: cfg.Build.Debounce,
		MaxDelay:    4 * cfg.Build.Debounce,
		Flush:       s.Rebuild,
		Logger:      g.Logger,
	})
	if err != nil {
		return err
	}
	defer deb.Stop()

	w, err := watch.New(watch.Options{
		Root:   cfg.Root,
		Skip:   []string{cfg.OutputPath()},
		Notify: deb.Request,
		Logger: g.Logger,
	})
	if err != nil {
		return err
	}
	w.Start(ctx)
	defer func() { _ = w.Close() }()

	if c.Lazy != "" || c.Background || cfg.Build.BackgroundBuild {
		bg, err := build.NewBackgroundRunner(ctx, s, cfg.Build.BackgroundInterval)
		if err != nil {
			return err
		}
		bg.Start()
		defer func() { _ = bg.Stop() }()
	}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           newServeMux(cfg, s, rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	g.Logger.Info("Serving site", "addr", c.Addr, logfields.Output(cfg.OutputPath()))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return derrors.WrapError(err, derrors.CategoryInternal, "http server failed").Build()
		}
	}

	g.Logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.Logger.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	s.Wait()
	return nil
}

// viewedPath receives the path of the page a reader opened. The live reload
// script injected into served pages calls it once connected.
const viewedPath = "/__viewed"

func newServeMux(cfg *config.Config, s *build.Scheduler, rt *runtime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(rt.registry))
	mux.HandleFunc(viewedPath, viewedHandler(s))
	mux.Handle(livereload.EventsPath, rt.reload)
	mux.HandleFunc(livereload.ScriptPath, livereload.ScriptHandler(viewedPath))

	files := livereload.Inject(http.FileServer(http.Dir(cfg.OutputPath())))
	if base := strings.TrimSuffix(cfg.BaseURL, "/"); base != "" {
		mux.Handle(base+"/", http.StripPrefix(base, files))
	} else {
		mux.Handle("/", files)
	}
	return mux
}

func viewedHandler(s *build.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := r.URL.Query().Get("page")
		if ref == "" {
			http.Error(w, "missing page parameter", http.StatusBadRequest)
			return
		}
		if err := s.ChangeViewedPage(r.Context(), ref); err != nil {
			if derrors.HasCategory(err, derrors.CategoryNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
