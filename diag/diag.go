package diag

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// Severity orders diagnostics by their effect on the pipeline.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

var severityName = [...]string{
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityError:   "error",
}

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityName) {
		return severityName[s]
	}

	return "severity(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText encodes s by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, n := range severityName {
		if strings.EqualFold(n, string(b)) {
			*s = Severity(i)

			return nil
		}
	}

	return fmt.Errorf("unknown severity %q", b)
}

// Kind classifies a diagnostic.
type Kind int

const (
	LexicalError Kind = iota
	ParseError
	UnsupportedFeature
	DependencyCycle
	DepthExceeded
	MissingReference
	ClassificationAmbiguity
	GenerationError
	Notice
)

var kindName = [...]string{
	LexicalError:            "LexicalError",
	ParseError:              "ParseError",
	UnsupportedFeature:      "UnsupportedFeature",
	DependencyCycle:         "DependencyCycle",
	DepthExceeded:           "DepthExceeded",
	MissingReference:        "MissingReference",
	ClassificationAmbiguity: "ClassificationAmbiguity",
	GenerationError:         "GenerationError",
	Notice:                  "Notice",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindName) {
		return kindName[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindName {
		if strings.EqualFold(n, string(b)) {
			*k = Kind(i)

			return nil
		}
	}

	return fmt.Errorf("unknown diagnostic kind %q", b)
}

// DefaultSeverity returns the severity a diagnostic of kind k carries unless
// stated otherwise.
func (k Kind) DefaultSeverity() Severity {
	switch k {
	case MissingReference, ClassificationAmbiguity:
		return SeverityWarning
	case Notice:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Diagnostic is one error, warning, or note attached to a source position.
// Line and Column are 1-based; zero means unknown.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Kind     Kind     `json:"kind"     yaml:"kind"`
	Message  string   `json:"message"  yaml:"message"`
	File     string   `json:"file"     yaml:"file,omitempty"`
	Line     int      `json:"line"     yaml:"line,omitempty"`
	Column   int      `json:"column"   yaml:"column,omitempty"`
	Hint     string   `json:"hint"     yaml:"hint,omitempty"`
}

// New returns a diagnostic of kind k with its default severity.
func New(k Kind, file string, line, col int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: k.DefaultSeverity(),
		Kind:     k,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
		Column:   col,
	}
}

// Fatal reports whether d blocks downstream processing.
func (d Diagnostic) Fatal() bool { return d.Severity >= SeverityError }

// Position returns "file:line:col", omitting unknown parts.
func (d Diagnostic) Position() string {
	var sb strings.Builder

	sb.WriteString(d.File)

	if d.Line > 0 {
		if sb.Len() > 0 {
			sb.WriteByte(':')
		}

		sb.WriteString(strconv.Itoa(d.Line))

		if d.Column > 0 {
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(d.Column))
		}
	}

	return sb.String()
}

func (d Diagnostic) Error() string {
	var sb strings.Builder

	if pos := d.Position(); pos != "" {
		sb.WriteString(pos)
		sb.WriteString(": ")
	}

	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")
	sb.WriteString(d.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(d.Message)

	if d.Hint != "" {
		sb.WriteString(" (")
		sb.WriteString(d.Hint)
		sb.WriteByte(')')
	}

	return sb.String()
}

// LogValue implements [slog.LogValuer].
func (d Diagnostic) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("severity", d.Severity.String()),
		slog.String("kind", d.Kind.String()),
		slog.String("message", d.Message),
	}

	if pos := d.Position(); pos != "" {
		attrs = append(attrs, slog.String("pos", pos))
	}

	if d.Hint != "" {
		attrs = append(attrs, slog.String("hint", d.Hint))
	}

	return slog.GroupValue(attrs...)
}

// List accumulates diagnostics in the order they were reported.
type List []Diagnostic

// Add appends d.
func (l *List) Add(d ...Diagnostic) { *l = append(*l, d...) }

// Addf appends a diagnostic of kind k with its default severity.
func (l *List) Addf(k Kind, file string, line, col int, format string, args ...any) {
	l.Add(New(k, file, line, col, format, args...))
}

// HasFatal reports whether any diagnostic in l is fatal.
func (l List) HasFatal() bool {
	return slices.ContainsFunc(l, Diagnostic.Fatal)
}

// Count returns the number of diagnostics of kind k.
func (l List) Count(k Kind) int {
	n := 0

	for _, d := range l {
		if d.Kind == k {
			n++
		}
	}

	return n
}

// Filter returns the diagnostics with at least severity s.
func (l List) Filter(s Severity) List {
	var out List

	for _, d := range l {
		if d.Severity >= s {
			out = append(out, d)
		}
	}

	return out
}

// Sort orders l by file, line, column, then severity descending. The sort is
// stable so equal positions keep their reported order.
func (l List) Sort() {
	slices.SortStableFunc(l, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(b.Severity, a.Severity),
		)
	})
}

// Err returns l as an error when it contains a fatal diagnostic, or nil.
func (l List) Err() error {
	if !l.HasFatal() {
		return nil
	}

	return l
}

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}

	var sb strings.Builder

	for i, d := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(d.Error())
	}

	return sb.String()
}

// Unwrap exposes each diagnostic to [errors.Is] and [errors.As].
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}

	return errs
}
