package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

func TestBackgroundRunnerTick(t *testing.T) {
	root := newSite(t, map[string]string{
		"site.yaml": allMarkdown,
		"index.md":  "Home\n",
		"a.md":      "A page\n",
		"b.md":      "B page\n",
	})
	s := newScheduler(t, root, Options{})
	ctx := context.Background()
	require.NoError(t, s.LazyBuild(ctx, "index.md"))
	require.Len(t, s.Pending(), 2)

	r, err := NewBackgroundRunner(ctx, s, time.Hour)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Stop()) }()

	assert.True(t, r.Tick())
	assert.Empty(t, s.Pending())
	assert.Contains(t, readOutput(t, root, "a.html"), "A page")
	assert.Contains(t, readOutput(t, root, "b.html"), "B page")

	assert.False(t, r.Tick(), "nothing pending")
}

func TestBackgroundRunnerWaitsForIdle(t *testing.T) {
	root := newSite(t, map[string]string{
		"site.yaml": allMarkdown,
		"index.md":  "Home\n",
		"a.md":      "A page\n",
	})
	s := newScheduler(t, root, Options{})
	ctx := context.Background()
	require.NoError(t, s.LazyBuild(ctx, "index.md"))

	r, err := NewBackgroundRunner(ctx, s, time.Hour)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Stop()) }()

	release := s.enter()
	assert.False(t, r.Tick(), "busy scheduler is left alone")
	assert.Equal(t, []string{"a.md"}, s.Pending())
	release()

	assert.True(t, r.Tick())
	assert.Empty(t, s.Pending())
}

func TestBackgroundRunnerSchedules(t *testing.T) {
	root := newSite(t, map[string]string{
		"site.yaml": allMarkdown + "build:\n  backgroundBuild: true\n",
		"index.md":  "Home\n",
		"a.md":      "A page\n",
	})
	s := newScheduler(t, root, Options{})
	ctx := context.Background()
	require.NoError(t, s.LazyBuild(ctx, "index.md"))

	r, err := NewBackgroundRunner(ctx, s, 20*time.Millisecond)
	require.NoError(t, err)
	r.Start()
	defer func() { assert.NoError(t, r.Stop()) }()

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(root, config.DefaultOutputDir, "a.html"))
		return err == nil && strings.Contains(string(data), "A page")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.Pending())
}
