package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
)

func TestFmt(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "fmt", "functions.sh"))
	if err != nil {
		t.Fatal(err)
	}

	fs := memFs(t, map[string]string{"/functions.sh": string(src)})

	out, _, err := execute(t, fs, "", &Fmt{Sources: []string{"/functions.sh"}})
	if err != nil {
		t.Fatalf("Fmt.Run() error = %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "functions", []byte(out))
}

func TestFmt_Stdin(t *testing.T) {
	out, _, err := execute(t, afero.NewMemMapFs(), "if true ; then echo a ; fi", &Fmt{Sources: []string{"-"}})
	if err != nil {
		t.Fatalf("Fmt.Run() error = %v", err)
	}

	if want := "if true; then\n\techo a\nfi\n"; out != want {
		t.Errorf("Fmt.Run() = %q, want %q", out, want)
	}
}

func TestFmt_Write(t *testing.T) {
	fs := memFs(t, map[string]string{"/x.sh": "for i in 1 2 ; do echo $i ; done\n"})

	out, _, err := execute(t, fs, "", &Fmt{Sources: []string{"/x.sh"}, Write: true})
	if err != nil {
		t.Fatalf("Fmt.Run() error = %v", err)
	}

	if out != "" {
		t.Errorf("Fmt.Run() wrote %q to stdout", out)
	}

	b, _ := afero.ReadFile(fs, "/x.sh")
	if want := "for i in 1 2; do\n\techo $i\ndone\n"; string(b) != want {
		t.Errorf("file = %q, want %q", b, want)
	}
}

func TestFmt_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fmt     *Fmt
		in      string
		wantErr error
	}{
		{"syntax", &Fmt{Sources: []string{"-"}}, "case x in", ErrDiagnostics},
		{"missing", &Fmt{Sources: []string{"/none.sh"}}, "", ErrOutput},
		{"dialect", &Fmt{Sources: []string{"-"}, Dialect: "fish"}, "echo", ErrDialect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(t, afero.NewMemMapFs(), tt.in, tt.fmt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fmt.Run() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == ErrDiagnostics && stderr == "" {
				t.Errorf("diagnostics not reported:\n%s", stderr)
			}
		})
	}
}

func TestFmt_Dump(t *testing.T) {
	out, _, err := execute(t, afero.NewMemMapFs(), "echo hi", &Fmt{Sources: []string{"-"}, Dump: true})
	if err != nil {
		t.Fatalf("Fmt.Run() error = %v", err)
	}

	if !strings.Contains(out, "SimpleCommand") {
		t.Errorf("dump missing command node:\n%s", out)
	}
}
