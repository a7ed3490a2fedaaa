package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/shgo/resolve"
)

// Deps prints the dependency graph of a script.
type Deps struct {
	Pipeline `embed:""`

	Format string `default:"text" enum:"text,yaml" help:"Output format (${enum})." short:"F"`

	Script string `arg:"" help:"Shell script to inspect." name:"script" type:"path"`
}

// graphDump is the YAML form of a resolution.
type graphDump struct {
	Root     string            `yaml:"root"`
	Units    []string          `yaml:"units"`
	Terminal resolve.Terminal  `yaml:"terminal"`
	Nodes    []*resolve.Node   `yaml:"nodes"`
	Requests []resolve.Request `yaml:"requests,omitempty"`
}

// Run executes the deps command.
func (d *Deps) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	res, err := d.resolve(ctx, d.Script)
	if err != nil {
		return err
	}

	out := stdioFrom(ctx).out

	if d.Format == "yaml" {
		b, err := yaml.Marshal(graphDump{
			Root:     res.Root,
			Units:    res.Order,
			Terminal: res.Terminal,
			Nodes:    res.Graph.Nodes(),
			Requests: res.Requests,
		})
		if err != nil {
			return ErrOutput.Wrap(err)
		}

		_, err = out.Write(b)

		return err
	}

	return writeGraph(out, res)
}

// writeGraph lists one node per line followed by where it is referenced.
func writeGraph(w io.Writer, res *resolve.Result) error {
	if _, err := fmt.Fprintf(w, "%s (terminal: %s)\n", res.Root, res.Terminal.Requirement); err != nil {
		return err
	}

	for _, n := range res.Graph.Nodes() {
		line := fmt.Sprintf("%-16s %-7s %s", n.Kind, n.Choice, n.Path)
		if n.Expr != "" && n.Expr != n.Path {
			line += fmt.Sprintf(" [%s]", n.Expr)
		}

		if n.Kind == resolve.LocalFile {
			line += fmt.Sprintf(" %s", n.Usage.Pattern())
		}

		if n.Rule != "" {
			line += fmt.Sprintf(" (%s)", n.Rule)
		}

		if n.Bundle {
			line += " bundled from " + n.BundlePath
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		for _, e := range n.Edges {
			if e.From == "" {
				continue
			}

			if _, err := fmt.Fprintf(w, "    %s:%d:%d\n", e.From, e.Line, e.Column); err != nil {
				return err
			}
		}
	}

	for _, r := range res.Requests {
		if _, err := fmt.Fprintf(w, "? %s %s: %s (default %s)\n", r.Kind, r.Subject, r.Reason, r.Default); err != nil {
			return err
		}
	}

	return nil
}
