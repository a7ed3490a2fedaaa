package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the styles used by the pretty handlers. They come from a
// renderer bound to the destination writer, so output to a pipe or buffer is
// left uncolored.
type styles struct {
	key, str, num, yes, no, dur, null lipgloss.Style
	levels                            [4]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	fg := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }

	return styles{
		key:  fg("8"),
		str:  fg("6"),
		num:  fg("3"),
		yes:  fg("2"),
		no:   fg("1"),
		dur:  fg("5"),
		null: fg("8"),
		levels: [4]lipgloss.Style{
			fg("4"),            // trace, debug
			fg("2"),            // info
			fg("3"),            // warn
			fg("1").Bold(true), // error
		},
	}
}

func (s styles) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return s.levels[3]
	case l >= slog.LevelWarn:
		return s.levels[2]
	case l >= slog.LevelInfo:
		return s.levels[1]
	default:
		return s.levels[0]
	}
}

// prettyTextHandler renders records as a single colorized key=value line.
type prettyTextHandler struct {
	opts       slog.HandlerOptions
	formatTime FormatTime
	style      styles
	mu         *sync.Mutex
	w          io.Writer
	attrs      []slog.Attr
	prefix     string
}

func newPrettyTextHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
) *prettyTextHandler {
	return &prettyTextHandler{
		opts:       *opts,
		formatTime: formatTime,
		style:      newStyles(w),
		mu:         &sync.Mutex{},
		w:          w,
	}
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	if !r.Time.IsZero() {
		if ts := h.formatTime(r.Time); ts != "" {
			buf.WriteString(h.style.key.Render(ts))
		}
	}

	h.space(buf)
	buf.WriteString(h.style.level(r.Level).Render(
		fmt.Sprintf("%-5s", strings.ToUpper(Level(r.Level).String())),
	))

	if h.opts.AddSource {
		if src := r.Source(); src != nil {
			h.space(buf)
			buf.WriteString(h.style.key.Render(src.File + ":" + strconv.Itoa(src.Line)))
		}
	}

	h.space(buf)
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(buf, "", a)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(buf, h.prefix, a)

		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)

	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}

	return &c
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

func (h *prettyTextHandler) space(buf *bytes.Buffer) {
	if buf.Len() > 0 {
		buf.WriteByte(' ')
	}
}

func (h *prettyTextHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}

		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, p, ga)
		}

		return
	}

	h.space(buf)
	buf.WriteString(h.style.key.Render(prefix + a.Key + "="))
	buf.WriteString(h.renderValue(a.Value))
}

func (h *prettyTextHandler) renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.style.num.Render(v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.style.yes.Render("true")
		}

		return h.style.no.Render("false")
	case slog.KindDuration:
		return h.style.dur.Render(v.Duration().String())
	case slog.KindAny:
		if v.Any() == nil {
			return h.style.null.Render("<nil>")
		}
	}

	s := v.String()
	if strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}

	return h.style.str.Render(s)
}

// prettyJSONHandler renders records as indented, colorized JSON objects.
type prettyJSONHandler struct {
	opts       slog.HandlerOptions
	formatTime FormatTime
	style      styles
	mu         *sync.Mutex
	w          io.Writer
	attrs      []slog.Attr
}

func newPrettyJSONHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	formatTime FormatTime,
) *prettyJSONHandler {
	return &prettyJSONHandler{
		opts:       *opts,
		formatTime: formatTime,
		style:      newStyles(w),
		mu:         &sync.Mutex{},
		w:          w,
	}
}

func (h *prettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *prettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs)+4)

	if !r.Time.IsZero() {
		if ts := h.formatTime(r.Time); ts != "" {
			fields = append(fields, slog.String(slog.TimeKey, ts))
		}
	}

	fields = append(fields,
		slog.String(slog.LevelKey, strings.ToUpper(Level(r.Level).String())))

	if h.opts.AddSource {
		if src := r.Source(); src != nil {
			fields = append(fields,
				slog.String(slog.SourceKey, src.File+":"+strconv.Itoa(src.Line)))
		}
	}

	fields = append(fields, slog.String(slog.MessageKey, r.Message))
	fields = append(fields, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, a)

		return true
	})

	buf := new(bytes.Buffer)
	h.writeObject(buf, fields, 1)
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &c
}

func (h *prettyJSONHandler) WithGroup(string) slog.Handler { return h }

func (h *prettyJSONHandler) writeObject(buf *bytes.Buffer, attrs []slog.Attr, depth int) {
	indent := strings.Repeat("  ", depth)

	buf.WriteString("{")

	first := true

	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			continue
		}

		if !first {
			buf.WriteByte(',')
		}

		first = false

		buf.WriteString("\n" + indent)
		buf.WriteString(h.style.key.Render(strconv.Quote(a.Key)))
		buf.WriteString(": ")

		if a.Value.Kind() == slog.KindGroup {
			h.writeObject(buf, a.Value.Group(), depth+1)

			continue
		}

		buf.WriteString(h.renderValue(a.Value))
	}

	buf.WriteString("\n" + strings.Repeat("  ", depth-1) + "}")
}

func (h *prettyJSONHandler) renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.style.num.Render(v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.style.yes.Render("true")
		}

		return h.style.no.Render("false")
	case slog.KindDuration:
		return h.style.dur.Render(strconv.Quote(v.Duration().String()))
	case slog.KindAny:
		if v.Any() == nil {
			return h.style.null.Render("null")
		}

		if err, ok := v.Any().(error); ok {
			return h.style.str.Render(strconv.Quote(err.Error()))
		}

		if b, err := json.Marshal(v.Any()); err == nil {
			return h.style.str.Render(string(b))
		}
	}

	return h.style.str.Render(strconv.Quote(v.String()))
}
