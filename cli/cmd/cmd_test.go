package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ardnew/shgo/resolve"
)

type runner interface {
	Run(ctx context.Context) error
}

// execute runs c against fs with stdin in and returns what it wrote.
func execute(t *testing.T, fs afero.Fs, in string, c runner) (stdout, stderr string, err error) {
	t.Helper()

	var out, errb bytes.Buffer

	ctx := WithFs(context.Background(), fs)
	ctx = WithStdio(ctx, strings.NewReader(in), &out, &errb)

	err = c.Run(ctx)

	return out.String(), errb.String(), err
}

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, s := range files {
		if err := afero.WriteFile(fs, p, []byte(s), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return fs
}

func TestConvert_DryRun(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/hello.sh":    "#!/bin/bash -e\necho hi\ncat config.yaml\n",
		"/proj/config.yaml": "a: 1\n",
	})

	out, _, err := execute(t, fs, "", &Convert{Script: "/proj/hello.sh", DryRun: true})
	if err != nil {
		t.Fatalf("Convert.Run() error = %v", err)
	}

	for _, want := range []string{"name: hello", "dialect: bash", "errexit: true", "/proj/config.yaml: 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("manifest missing %q:\n%s", want, out)
		}
	}

	if ok, _ := afero.DirExists(fs, "build"); ok {
		t.Error("dry run wrote output")
	}
}

func TestConvert_Write(t *testing.T) {
	fs := memFs(t, map[string]string{"/proj/hello.sh": "echo hi\n"})

	c := &Convert{Script: "/proj/hello.sh", Output: "/out"}

	if _, _, err := execute(t, fs, "", c); err != nil {
		t.Fatalf("Convert.Run() error = %v", err)
	}

	for _, name := range []string{"main.go", "program.bin", "manifest.yaml", "go.mod"} {
		if ok, _ := afero.Exists(fs, "/out/"+name); !ok {
			t.Errorf("missing /out/%s", name)
		}
	}

	_, _, err := execute(t, fs, "", c)
	if !errors.Is(err, ErrFileExists) {
		t.Errorf("second Convert.Run() error = %v, want ErrFileExists", err)
	}

	c.Force = true
	if _, _, err := execute(t, fs, "", c); err != nil {
		t.Errorf("forced Convert.Run() error = %v", err)
	}
}

func TestConvert_Requests(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/script.sh": "cat data.bin\n",
		"/proj/data.bin":  "\x00\x01",
	})

	c := &Convert{Script: "/proj/script.sh", DryRun: true, Requests: "/proj/requests.yaml"}

	_, stderr, err := execute(t, fs, "", c)
	if err != nil {
		t.Fatalf("Convert.Run() error = %v", err)
	}

	if !strings.Contains(stderr, "ClassificationAmbiguity") {
		t.Errorf("ambiguity not reported:\n%s", stderr)
	}

	b, err := afero.ReadFile(fs, "/proj/requests.yaml")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"kind: classify", "subject: /proj/data.bin", "choice: runtime", "one of: embed, runtime"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("requests missing %q:\n%s", want, b)
		}
	}

	decisions, err := LoadDecisions(fs, "/proj/requests.yaml")
	if err != nil {
		t.Fatalf("LoadDecisions() error = %v", err)
	}

	// cat itself is asked about too; only the classification matters here.
	var classify []resolve.Decision

	for _, d := range decisions {
		if d.Kind == resolve.RequestClassify {
			classify = append(classify, d)
		}
	}

	if len(classify) != 1 || classify[0].Subject != "/proj/data.bin" || classify[0].Choice != "runtime" {
		t.Errorf("LoadDecisions() = %+v", decisions)
	}
}

func TestConvert_Decisions(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/script.sh": "cat data.bin\n",
		"/proj/data.bin":  "\x00\x01",
		"/proj/answers.yaml": "decisions:\n" +
			"  - kind: classify\n    subject: /proj/data.bin\n    choice: embed\n",
	})

	c := &Convert{Script: "/proj/script.sh", DryRun: true}
	c.Decisions = "/proj/answers.yaml"

	out, _, err := execute(t, fs, "", c)
	if err != nil {
		t.Fatalf("Convert.Run() error = %v", err)
	}

	if !strings.Contains(out, "/proj/data.bin: 2") {
		t.Errorf("decision not applied:\n%s", out)
	}
}

func TestLoadDecisions_Invalid(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/bad.yaml": "decisions:\n  - kind: guess\n    subject: x\n    choice: embed\n",
	})

	if _, err := LoadDecisions(fs, "/bad.yaml"); !errors.Is(err, ErrDecisions) {
		t.Errorf("LoadDecisions() error = %v, want ErrDecisions", err)
	}
}

func TestCheck(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/good.sh":  "echo ok\n",
		"/proj/warn.sh":  "exit abc\n",
		"/proj/bad.sh":   "if true; then\n",
		"/proj/cycle.sh": "source cycle.sh\n",
	})

	tests := []struct {
		name    string
		scripts []string
		strict  bool
		wantErr bool
	}{
		{"good", []string{"/proj/good.sh"}, false, false},
		{"warning", []string{"/proj/warn.sh"}, false, false},
		{"strict warning", []string{"/proj/warn.sh"}, true, true},
		{"syntax error", []string{"/proj/good.sh", "/proj/bad.sh"}, false, true},
		{"cycle", []string{"/proj/cycle.sh"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, fs, "", &Check{Scripts: tt.scripts, Strict: tt.strict})
			if (err != nil) != tt.wantErr {
				t.Errorf("Check.Run() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err != nil && !errors.Is(err, ErrDiagnostics) {
				t.Errorf("Check.Run() error = %v, want ErrDiagnostics", err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/greet.sh": "source lib.sh\ngreet \"$@\"\nexit 3\n",
		"/proj/lib.sh":   "greet() { echo \"hello $*\"; }\n",
	})

	out, _, err := execute(t, fs, "", &Run{Script: "/proj/greet.sh", Args: []string{"a", "b"}})

	var st ExitStatus
	if !errors.As(err, &st) || st != 3 {
		t.Fatalf("Run.Run() error = %v, want exit status 3", err)
	}

	if out != "hello a b\n" {
		t.Errorf("Run.Run() output = %q", out)
	}
}

func TestDeps(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/script.sh":   "source lib.sh\ncat config.yaml\ncurl https://example.com/x\n",
		"/proj/lib.sh":      "true\n",
		"/proj/config.yaml": "a: 1\n",
	})

	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"/proj/lib.sh", "/proj/config.yaml", "curl", "https://example.com/x", "/proj/script.sh:2:"}},
		{"yaml", []string{"root: /proj/script.sh", "path: /proj/config.yaml", "kind: local-file", "rule: local-config"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _, err := execute(t, fs, "", &Deps{Script: "/proj/script.sh", Format: tt.format})
			if err != nil {
				t.Fatalf("Deps.Run() error = %v", err)
			}

			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestFeatures(t *testing.T) {
	out, _, err := execute(t, afero.NewMemMapFs(), "", &Features{Dialects: []string{"bash", "sh"}})
	if err != nil {
		t.Fatalf("Features.Run() error = %v", err)
	}

	for _, want := range []string{"feature", "bash", "posix", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, _, err = execute(t, afero.NewMemMapFs(), "", &Features{Dialects: []string{"fish"}})
	if !errors.Is(err, ErrDialect) {
		t.Errorf("Features.Run() error = %v, want ErrDialect", err)
	}
}

func TestPipeline_Dialect(t *testing.T) {
	fs := memFs(t, map[string]string{"/proj/x.sh": "echo hi\n"})

	c := &Check{Scripts: []string{"/proj/x.sh"}}
	c.Dialect = "bsh"

	_, _, err := execute(t, fs, "", c)
	if !errors.Is(err, ErrDiagnostics) || !strings.Contains(err.Error(), "bash") {
		t.Errorf("Check.Run() error = %v, want a suggestion", err)
	}
}
