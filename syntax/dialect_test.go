package syntax

import (
	"errors"
	"testing"

	"github.com/ardnew/shgo/diag"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		src     string
		want    Dialect
		ok      bool
		wantErr bool
	}{
		{"bash shebang", "x", "#!/bin/bash\n", Bash, true, false},
		{"sh shebang", "x.bash", "#!/bin/sh\n", POSIX, true, false},
		{"env indirection", "x", "#!/usr/bin/env -S zsh -f\n", Zsh, true, false},
		{"env assignment", "x", "#!/usr/bin/env FOO=1 dash\n", Dash, true, false},
		{"extension", "deploy.ksh", "echo\n", Ksh, true, false},
		{"unknown", "script", "echo\n", DefaultDialect, false, false},
		{"fish shebang", "x.sh", "#!/usr/bin/fish\n", DefaultDialect, false, true},
		{"powershell extension", "x.ps1", "", DefaultDialect, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok, err := DetectDialect(tt.file, []byte(tt.src))

			var ude *UnsupportedDialectError
			if tt.wantErr != errors.As(err, &ude) {
				t.Fatalf("unexpected error %v", err)
			}

			if d != tt.want || ok != tt.ok {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.want, tt.ok, d, ok)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in         string
		want       Dialect
		suggestion string
		wantErr    bool
	}{
		{"bash", Bash, "", false},
		{" SH ", POSIX, "", false},
		{"mksh", Ksh, "", false},
		{"bsh", DefaultDialect, "bash", true},
		{"fish", DefaultDialect, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDialect(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}

			if d != tt.want {
				t.Errorf("expected %v, got %v", tt.want, d)
			}

			var ude *UnsupportedDialectError
			if errors.As(err, &ude) && ude.Suggestion != tt.suggestion {
				t.Errorf("expected suggestion %q, got %q", tt.suggestion, ude.Suggestion)
			}
		})
	}
}

func TestDialect_Supports(t *testing.T) {
	for _, f := range Features() {
		if !Bash.Supports(f) {
			t.Errorf("bash should support %v", f)
		}

		if POSIX.Supports(f) {
			t.Errorf("posix should not support %v", f)
		}
	}

	if !Dash.Supports(LocalKeyword) || Dash.Supports(Arrays) {
		t.Error("dash supports local only")
	}

	if Ksh.Supports(PipeAll) || !Ksh.Supports(ExtendedTest) {
		t.Error("unexpected ksh feature set")
	}
}

func TestDialect_TextRoundTrip(t *testing.T) {
	for _, name := range Dialects() {
		var d Dialect
		if err := d.UnmarshalText([]byte(name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		b, _ := d.MarshalText()
		if string(b) != name {
			t.Errorf("expected %q, got %q", name, b)
		}
	}
}

func TestLex_ProcessSubstitutionFeature(t *testing.T) {
	_, diags := Lex([]byte("diff <(echo a) b\n"), POSIX)
	if diags.Count(diag.UnsupportedFeature) != 1 {
		t.Fatalf("expected one unsupported-feature diagnostic, got %v", diags)
	}

	if msg := diags[0].Message; msg != "process-substitution is not part of the "+POSIX.String()+" dialect" {
		t.Errorf("unexpected message %q", msg)
	}

	if _, diags := Lex([]byte("diff <(echo a) b\n"), Bash); len(diags) != 0 {
		t.Errorf("bash reported %v", diags)
	}
}
