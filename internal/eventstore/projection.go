package eventstore

import (
	"slices"
	"time"
)

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// BuildSummary is the folded view of one build's events.
type BuildSummary struct {
	BuildID      string
	Mode         string
	Status       string
	StartedAt    time.Time
	CompletedAt  time.Time
	Pages        int
	Batches      int
	FailedPages  []string
	LinkWarnings int
}

// Summarize folds events into one summary per build, newest first.
// Undecodable payloads are ignored.
func Summarize(events []Event) []BuildSummary {
	byID := make(map[string]*BuildSummary)
	var order []string
	for _, ev := range events {
		s, ok := byID[ev.BuildID]
		if !ok {
			s = &BuildSummary{BuildID: ev.BuildID, Status: statusRunning, StartedAt: ev.Timestamp}
			byID[ev.BuildID] = s
			order = append(order, ev.BuildID)
		}
		switch ev.Type {
		case TypeBuildStarted:
			var p BuildStarted
			if ev.Decode(&p) == nil {
				s.Mode = p.Mode
				s.StartedAt = ev.Timestamp
			}
		case TypeBatchCompleted:
			var p BatchCompleted
			if ev.Decode(&p) == nil {
				s.Batches++
				s.Pages += p.Pages - p.Skipped
			}
		case TypeBatchFailed:
			var p BatchFailed
			if ev.Decode(&p) == nil {
				s.Batches++
				s.Status = statusFailed
				if p.Page != "" {
					s.FailedPages = append(s.FailedPages, p.Page)
				}
			}
		case TypeBuildCompleted:
			var p BuildCompleted
			if ev.Decode(&p) == nil {
				s.CompletedAt = ev.Timestamp
				s.LinkWarnings = p.LinkWarnings
				if s.Status != statusFailed {
					s.Status = statusCompleted
				}
				if p.Status != "" {
					s.Status = p.Status
				}
			}
		}
	}

	out := make([]BuildSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	slices.SortStableFunc(out, func(a, b BuildSummary) int { return b.StartedAt.Compare(a.StartedAt) })
	return out
}
