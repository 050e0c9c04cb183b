package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/linkverify"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func newSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	return root
}

func newScheduler(t *testing.T, root string, opts Options) *Scheduler {
	t.Helper()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := New(cfg, opts)
	t.Cleanup(s.Wait)
	return s
}

func readOutput(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, config.DefaultOutputDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func outputExists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, config.DefaultOutputDir, filepath.FromSlash(rel)))
	return err == nil
}

// captureHandler keeps every record, including attributes added through With.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
	attrs   []slog.Attr
}

func newCapture() (*slog.Logger, *captureHandler) {
	h := &captureHandler{mu: &sync.Mutex{}, records: &[]slog.Record{}}
	return slog.New(h), h
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{mu: h.mu, records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// pagesLogged counts records with message msg per page attribute.
func (h *captureHandler) pagesLogged(msg string) map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[string]int{}
	for _, r := range *h.records {
		if r.Message != msg {
			continue
		}
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "page" {
				out[a.Value.String()]++
			}
			return true
		})
	}
	return out
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu           sync.Mutex
	linkWarnings int
	batches      map[metrics.BatchOutcome]int
}

func (c *countingRecorder) AddLinkWarnings(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkWarnings += n
}

func (c *countingRecorder) IncBatchOutcome(o metrics.BatchOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.batches == nil {
		c.batches = map[metrics.BatchOutcome]int{}
	}
	c.batches[o]++
}

type memorySink struct {
	mu     sync.Mutex
	events []linkverify.BrokenLinkEvent
}

func (m *memorySink) Publish(_ context.Context, events []linkverify.BrokenLinkEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memorySink) Close() error { return nil }

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}
