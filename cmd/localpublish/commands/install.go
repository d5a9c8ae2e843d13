package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/localpublish/internal/publisher"
)

// InstallCmd implements the 'install' command.
type InstallCmd struct {
	TargetFlags `embed:""`
}

func (i *InstallCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	req, err := i.Request(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := NewPublisher(g, cfg, nil).PublishArtifacts(ctx, req)
	if err != nil {
		return err
	}
	printResult(g.Out, res)
	return nil
}

func printResult(out io.Writer, res *publisher.Result) {
	_, _ = fmt.Fprintf(out, "Installed into %s (%s layout)\n", res.Handle.Location, res.Handle.LayoutID())
	for _, f := range res.Files {
		_, _ = fmt.Fprintf(out, "  %s\n", f.Destination)
	}
	if res.MetadataPath != "" {
		_, _ = fmt.Fprintf(out, "  %s\n", res.MetadataPath)
	}
}
