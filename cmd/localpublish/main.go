package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/localpublish/cmd/localpublish/commands"
	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
	"git.home.luguber.info/inful/localpublish/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("localpublish"),
		kong.Description("Install build descriptors and artifacts into a local artifact repository."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal(os.Stdout)
	defer global.Close()

	if err := parser.Run(global, cli); err != nil {
		adapter := perrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		global.Close()
		os.Exit(adapter.Report(err))
	}
}
