package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/localpublish/internal/config"
	"git.home.luguber.info/inful/localpublish/internal/eventstore"
	"git.home.luguber.info/inful/localpublish/internal/install"
	"git.home.luguber.info/inful/localpublish/internal/layout"
	"git.home.luguber.info/inful/localpublish/internal/logfields"
	"git.home.luguber.info/inful/localpublish/internal/metrics"
	"git.home.luguber.info/inful/localpublish/internal/publisher"
	"git.home.luguber.info/inful/localpublish/internal/workspace"
)

// Global is shared state handed to every subcommand.
type Global struct {
	Out    io.Writer
	Layout *layout.Registry

	closers []func()
}

// NewGlobal returns state writing user-facing output to out.
func NewGlobal(out io.Writer) *Global {
	return &Global{Out: out, Layout: layout.DefaultRegistry()}
}

// Close runs deferred cleanups (metrics export, history store) once.
func (g *Global) Close() {
	closers := g.closers
	g.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func (g *Global) onClose(fn func()) {
	g.closers = append(g.closers, fn)
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"localpublish.yaml" env:"LOCALPUBLISH_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Install InstallCmd `cmd:"" help:"Install a descriptor and its artifacts into a repository"`
	Watch   WatchCmd   `cmd:"" help:"Install, then reinstall whenever the descriptor or artifacts change"`
	Layouts LayoutsCmd `cmd:"" help:"List the registered repository layouts"`
	History HistoryCmd `cmd:"" help:"Show recent publishes"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; sets up a default logger until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig loads the configuration (defaults when the file is absent) and
// applies its logging settings. --verbose always wins over the configured level.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	configureLogging(cfg.Logging, c.Verbose)
	return cfg, nil
}

func configureLogging(lc config.LoggingConfig, verbose bool) {
	level := lc.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// NewPublisher assembles a publisher from cfg. Metrics export and the
// history store are closed through g.Close.
func NewPublisher(g *Global, cfg *config.Config, provider workspace.Provider) *publisher.Publisher {
	if provider == nil {
		provider = workspace.NewTempProvider(cfg.Workspace.BaseDir)
	}
	pub := publisher.New(publisher.NewLocalStrategy(g.Layout, install.NewEngine())).
		WithProvider(provider)

	if cfg.Metrics.Textfile != "" {
		reg := prom.NewRegistry()
		pub.WithRecorder(metrics.NewPrometheusRecorder(reg))
		path := cfg.Metrics.Textfile
		g.onClose(func() {
			if err := metrics.WriteTextfile(path, reg); err != nil {
				slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
			}
		})
	}

	if cfg.History.IsEnabled() {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			slog.Warn("Publish history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			pub.WithEventStore(store)
			g.onClose(func() { _ = store.Close() })
		}
	}
	return pub
}
