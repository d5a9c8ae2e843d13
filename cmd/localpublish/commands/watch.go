package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/localpublish/internal/publisher"
	"git.home.luguber.info/inful/localpublish/internal/watch"
	"git.home.luguber.info/inful/localpublish/internal/workspace"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	TargetFlags `embed:""`
	Debounce    time.Duration `help:"Quiet period before reinstalling (default: watch.debounce from config)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	req, err := w.Request(cfg)
	if err != nil {
		return err
	}
	debounce := cfg.Watch.Debounce
	if w.Debounce > 0 {
		debounce = w.Debounce
	}

	// Republishes share one staging directory so unchanged files are not
	// restaged on every change.
	provider := workspace.NewPersistentProvider(cfg.Workspace.BaseDir, "localpublish-watch")
	pub := NewPublisher(g, cfg, provider)

	watcher, err := watch.New(pub, req, debounce)
	if err != nil {
		return err
	}
	watcher.WithNotify(func(res *publisher.Result, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(g.Out, "Install failed: %v\n", err)
			return
		}
		printResult(g.Out, res)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return watcher.Run(ctx)
}
