package diag

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Render writes each diagnostic in l to w on its own line, styled when w is
// a terminal that supports color.
func Render(w io.Writer, l List) error {
	r := lipgloss.NewRenderer(w)

	pos := r.NewStyle().Bold(true)
	hint := r.NewStyle().Faint(true)
	sev := map[Severity]lipgloss.Style{
		SeverityInfo:    r.NewStyle().Foreground(lipgloss.Color("6")),
		SeverityWarning: r.NewStyle().Foreground(lipgloss.Color("3")),
		SeverityError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}

	var sb strings.Builder

	for _, d := range l {
		if p := d.Position(); p != "" {
			sb.WriteString(pos.Render(p + ":"))
			sb.WriteByte(' ')
		}

		sb.WriteString(sev[d.Severity].Render(d.Severity.String()))
		sb.WriteString(" [" + d.Kind.String() + "] ")
		sb.WriteString(d.Message)

		if d.Hint != "" {
			sb.WriteByte(' ')
			sb.WriteString(hint.Render("(" + d.Hint + ")"))
		}

		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())

	return err
}
