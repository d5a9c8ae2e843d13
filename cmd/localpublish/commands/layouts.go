package commands

import "fmt"

// LayoutsCmd implements the 'layouts' command.
type LayoutsCmd struct{}

func (l *LayoutsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	for _, name := range g.Layout.Names() {
		marker := " "
		if name == cfg.LocalRepository.Layout {
			marker = "*"
		}
		_, _ = fmt.Fprintf(g.Out, "%s %s\n", marker, name)
	}
	return nil
}
