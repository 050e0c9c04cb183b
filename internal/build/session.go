package build

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/artifact"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/linkverify"
	"git.home.luguber.info/inful/sitebuilder/internal/resolve"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Session is the state of one build invocation. Nothing in it outlives the
// invocation, so concurrent sessions never share memoized artifacts or locks.
type Session struct {
	ID      string
	Started time.Time

	Artifacts *artifact.Manager
	Locks     *artifact.Locks
	Links     *linkverify.Validator

	cfg      *config.Config
	resolver *resolve.Resolver

	mu    sync.Mutex
	temps sets.Set[string]
}

// NewSession snapshots the current configuration into a fresh session.
func (s *Scheduler) NewSession() *Session {
	cfg := s.config()
	sess := &Session{
		ID:      uuid.NewString(),
		Started: s.now(),
		Locks:   artifact.NewLocks(),
		Links:   s.newValidator(cfg),
		cfg:     cfg,
		resolver: &resolve.Resolver{
			ProjectRoot:     cfg.Root,
			BaseURL:         cfg.BaseURL,
			BoilerplatesDir: config.BoilerplatesDir,
			Vars:            s.vars,
			Markup:          s.markup,
			Logger:          s.logger,
		},
		temps: sets.New[string](),
	}
	sess.Artifacts = artifact.NewManager(func(ctx context.Context, req artifact.Request) (artifact.Result, error) {
		return s.generateArtifact(ctx, sess, req)
	})
	return sess
}

func (s *Scheduler) newValidator(cfg *config.Config) *linkverify.Validator {
	s.mu.RLock()
	pages := make([]string, 0, len(s.pages))
	for src := range s.pages {
		pages = append(pages, src)
	}
	ids := make(map[string][]string, len(s.ids))
	for src, v := range s.ids {
		ids[src] = v
	}
	s.mu.RUnlock()

	v := linkverify.New(linkverify.Options{
		BaseURL:     cfg.BaseURL,
		ProjectRoot: cfg.Root,
		Pages:       pages,
		Ignore:      cfg.Ignore,
		Logger:      s.logger,
	})
	for src, list := range ids {
		v.RecordIDs(src, list)
	}
	return v
}

func (sess *Session) trackTemp(p string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.temps.Add(p)
}

func (sess *Session) untrackTemp(p string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.temps.Delete(p)
}

// cleanup removes temp files left behind by interrupted writes.
func (sess *Session) cleanup() []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	removed := sets.Sorted(sess.temps)
	for _, p := range removed {
		_ = os.Remove(p)
	}
	sess.temps = sets.New[string]()
	return removed
}

// finalize waits for outstanding artifact generations and held locks.
func (sess *Session) finalize(ctx context.Context) error {
	if err := sess.Artifacts.WaitAll(ctx); err != nil {
		return err
	}
	return sess.Locks.WaitAllReleased(ctx)
}
