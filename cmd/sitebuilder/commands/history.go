package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// HistoryCmd prints the most recent builds from the history database.
type HistoryCmd struct {
	Since time.Duration `name:"since" default:"168h" help:"How far back to look."`
	Limit int           `name:"limit" default:"20" help:"Maximum number of builds to list."`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return derrors.ConfigError("history.path is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	now := time.Now()
	events, err := store.GetRange(context.Background(), now.Add(-h.Since), now)
	if err != nil {
		return err
	}
	return printSummaries(os.Stdout, eventstore.Summarize(events), h.Limit)
}

func printSummaries(out io.Writer, summaries []eventstore.BuildSummary, limit int) error {
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tMODE\tSTATUS\tSTARTED\tDURATION\tPAGES\tBATCHES\tLINK WARNINGS\tFAILED")
	for _, s := range summaries {
		duration := "-"
		if !s.CompletedAt.IsZero() {
			duration = s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		id := s.BuildID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			id, s.Mode, s.Status, s.StartedAt.Local().Format(time.DateTime), duration,
			s.Pages, s.Batches, s.LinkWarnings, strings.Join(s.FailedPages, ","))
	}
	return tw.Flush()
}
