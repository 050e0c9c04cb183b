package linkverify

import (
	"strings"
	"time"
)

// BrokenLinkEvent is published for each failed reference when a sink is configured.
type BrokenLinkEvent struct {
	Target   string `json:"target"`
	Reason   string `json:"reason"`
	Fragment string `json:"fragment,omitempty"`

	// SourceRelativePath is the referencing page relative to the site root.
	SourceRelativePath string `json:"source_relative_path"`

	BuildID   string    `json:"build_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Events converts warnings into events stamped with buildID and now.
func Events(warnings []Warning, buildID string, now time.Time) []BrokenLinkEvent {
	out := make([]BrokenLinkEvent, 0, len(warnings))
	for _, w := range warnings {
		ev := BrokenLinkEvent{
			Target:             w.Target,
			Reason:             w.Reason,
			SourceRelativePath: w.Source,
			BuildID:            buildID,
			Timestamp:          now,
		}
		if _, frag, ok := strings.Cut(w.Target, "#"); ok {
			ev.Fragment = frag
		}
		out = append(out, ev)
	}
	return out
}
