package build

import "git.home.luguber.info/inful/sitebuilder/internal/page"

// Mode selects how a task's pages are executed.
type Mode int

const (
	// Sequential runs pages one after another.
	Sequential Mode = iota
	// Throttled runs pages on the bounded worker pool.
	Throttled
)

func (m Mode) String() string {
	if m == Sequential {
		return "sequential"
	}
	return "throttled"
}

// Build mode labels used in logs, metrics and history.
const (
	modeFull        = "full"
	modeLazy        = "lazy"
	modeIncremental = "incremental"
	modeViewed      = "viewed"
	modeBackground  = "background"
)

// Task is one batch of pages.
type Task struct {
	Mode  Mode
	Pages []*page.Page
}

// BatchResult counts what happened to the pages of a batch.
type BatchResult struct {
	ID        string
	Generated int
	Unchanged int
	Skipped   int
	// Built lists the sources whose output was committed, sorted.
	Built []string
}
