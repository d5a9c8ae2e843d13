package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Maximum number of publishes to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.IsEnabled() {
		return perrors.ConfigurationError("history.enabled", "publish history is disabled")
	}

	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewPublishHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return perrors.HistoryError("rebuild", err)
	}

	history := projection.GetHistory()
	if len(history) == 0 {
		_, _ = fmt.Fprintln(g.Out, "No publishes recorded")
		return nil
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tSTATUS\tDESCRIPTOR\tLOCATION\tLAYOUT\tFILES\tDURATION\tERROR")
	for _, s := range history {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.StartedAt.Local().Format(time.DateTime),
			s.Status,
			s.Descriptor,
			s.Location,
			s.Layout,
			s.FileCount,
			s.Duration.Round(time.Millisecond),
			s.ErrorCategory)
	}
	return tw.Flush()
}
