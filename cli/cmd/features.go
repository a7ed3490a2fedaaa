package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ardnew/shgo/syntax"
)

// Features prints which shell features each dialect supports.
type Features struct {
	Dialects []string `arg:"" help:"Dialects to show (default: all)." name:"dialect" optional:""`
}

// Run executes the features command.
func (f *Features) Run(ctx context.Context) error {
	names := f.Dialects
	if len(names) == 0 {
		names = syntax.Dialects()
	}

	dialects := make([]syntax.Dialect, len(names))

	for i, name := range names {
		d, err := syntax.ParseDialect(name)
		if err != nil {
			return ErrDialect.Wrap(err).With(slog.String("dialect", name))
		}

		dialects[i] = d
	}

	w := stdioFrom(ctx).out
	r := lipgloss.NewRenderer(w)

	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	yes := cell.Foreground(lipgloss.Color("2"))
	no := cell.Faint(true)

	headers := []string{"feature"}
	for _, d := range dialects {
		headers = append(headers, d.String())
	}

	feats := syntax.Features()
	rows := make([][]string, len(feats))

	for i, ft := range feats {
		row := []string{ft.String()}

		for _, d := range dialects {
			mark := "no"
			if d.Supports(ft) {
				mark = "yes"
			}

			row = append(row, mark)
		}

		rows[i] = row
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Faint(true)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 0:
				return cell
			case row >= 0 && row < len(rows) && rows[row][col] == "yes":
				return yes
			default:
				return no
			}
		})

	_, err := fmt.Fprintln(w, t.String())

	return err
}
