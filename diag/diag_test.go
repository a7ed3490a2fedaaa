package diag

import (
	"bytes"
	"errors"
	"testing"
)

func TestKind_DefaultSeverity(t *testing.T) {
	tests := []struct {
		kind Kind
		want Severity
	}{
		{LexicalError, SeverityError},
		{ParseError, SeverityError},
		{DependencyCycle, SeverityError},
		{MissingReference, SeverityWarning},
		{ClassificationAmbiguity, SeverityWarning},
		{Notice, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.DefaultSeverity(); got != tt.want {
				t.Errorf("DefaultSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_Text(t *testing.T) {
	for k := LexicalError; k <= Notice; k++ {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatal(err)
		}

		var got Kind
		if err := got.UnmarshalText(b); err != nil || got != k {
			t.Errorf("round trip of %v gave %v, %v", k, got, err)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDiagnostic_Error(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{
			name: "full position",
			d:    New(ParseError, "a.sh", 3, 1, "unterminated %s", "if"),
			want: "a.sh:3:1: error: ParseError: unterminated if",
		},
		{
			name: "no column",
			d:    Diagnostic{Severity: SeverityWarning, Kind: MissingReference, Message: "m", File: "b.sh", Line: 2},
			want: "b.sh:2: warning: MissingReference: m",
		},
		{
			name: "no position with hint",
			d:    Diagnostic{Kind: UnsupportedFeature, Severity: SeverityError, Message: "x", Hint: "did you mean y?"},
			want: "error: UnsupportedFeature: x (did you mean y?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestList(t *testing.T) {
	var l List

	if l.Err() != nil {
		t.Fatal("empty list reported an error")
	}

	l.Addf(MissingReference, "b.sh", 4, 2, "missing")
	l.Addf(ParseError, "a.sh", 9, 1, "late")
	l.Addf(ParseError, "a.sh", 2, 5, "early")

	if !l.HasFatal() {
		t.Error("expected fatal")
	}

	if got := l.Count(ParseError); got != 2 {
		t.Errorf("Count(ParseError) = %d, want 2", got)
	}

	if got := len(l.Filter(SeverityError)); got != 2 {
		t.Errorf("Filter(error) = %d entries, want 2", got)
	}

	l.Sort()

	want := []string{"early", "late", "missing"}
	for i, w := range want {
		if l[i].Message != w {
			t.Errorf("l[%d] = %q, want %q", i, l[i].Message, w)
		}
	}

	err := l.Err()
	if err == nil {
		t.Fatal("expected error")
	}

	var d Diagnostic
	if !errors.As(err, &d) || d.Message != "early" {
		t.Errorf("errors.As gave %+v", d)
	}
}

func TestRender_Plain(t *testing.T) {
	var buf bytes.Buffer

	l := List{
		New(ParseError, "s.sh", 1, 1, "bad"),
		{Severity: SeverityWarning, Kind: MissingReference, Message: "gone", Hint: "runtime"},
	}

	if err := Render(&buf, l); err != nil {
		t.Fatal(err)
	}

	want := "s.sh:1:1: error [ParseError] bad\nwarning [MissingReference] gone (runtime)\n"
	if buf.String() != want {
		t.Errorf("Render() = %q, want %q", buf.String(), want)
	}
}
