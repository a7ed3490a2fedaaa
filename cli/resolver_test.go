package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
)

type resolverCLI struct {
	LogLevel string   `default:"info"`
	Pretty   bool     `default:"true"`
	Jobs     int      `default:"1"`
	Tags     []string `default:""`

	Convert struct {
		Output string `default:"build"`
	} `cmd:""`
	Watch struct {
		Output   string        `default:"build"`
		Debounce time.Duration `default:"250ms"`
	} `cmd:""`
}

func parseWith(t *testing.T, config string, args ...string) *resolverCLI {
	t.Helper()

	resolver, err := loadYAML(strings.NewReader(config))
	if err != nil {
		t.Fatalf("loadYAML() error = %v", err)
	}

	var cli resolverCLI

	parser, err := kong.New(&cli,
		kong.Resolvers(resolver),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return &cli
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	const config = `
log_level: debug
pretty: false
jobs: 8
tags: [a, b]
resolve:
  max_depth: 3
convert:
  output: dist
`

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cli *resolverCLI)
	}{
		{
			name: "top_level_defaults",
			args: []string{"watch"},
			check: func(t *testing.T, cli *resolverCLI) {
				if cli.LogLevel != "debug" {
					t.Errorf("LogLevel = %q, want debug", cli.LogLevel)
				}

				if cli.Pretty {
					t.Error("Pretty = true, want false")
				}

				if cli.Jobs != 8 {
					t.Errorf("Jobs = %d, want 8", cli.Jobs)
				}

				if strings.Join(cli.Tags, " ") != "a b" {
					t.Errorf("Tags = %v, want [a b]", cli.Tags)
				}

				if cli.Watch.Output != "build" {
					t.Errorf("Watch.Output = %q, want build", cli.Watch.Output)
				}
			},
		},
		{
			name: "command_section",
			args: []string{"convert"},
			check: func(t *testing.T, cli *resolverCLI) {
				if cli.Convert.Output != "dist" {
					t.Errorf("Convert.Output = %q, want dist", cli.Convert.Output)
				}
			},
		},
		{
			name: "flags_override",
			args: []string{"--log-level=warn", "convert", "--output=out"},
			check: func(t *testing.T, cli *resolverCLI) {
				if cli.LogLevel != "warn" {
					t.Errorf("LogLevel = %q, want warn", cli.LogLevel)
				}

				if cli.Convert.Output != "out" {
					t.Errorf("Convert.Output = %q, want out", cli.Convert.Output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tt.check(t, parseWith(t, config, tt.args...))
		})
	}
}

func TestLoadYAML_Empty(t *testing.T) {
	t.Parallel()

	cli := parseWith(t, "", "convert")
	if cli.LogLevel != "info" || cli.Convert.Output != "build" {
		t.Errorf("defaults not kept: %+v", cli)
	}
}

func TestLoadYAML_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := loadYAML(strings.NewReader("log_level: [\n")); err == nil {
		t.Error("loadYAML() error = nil, want parse error")
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want any
	}{
		{"x", "x"},
		{true, true},
		{uint64(3), "3"},
		{int64(-2), "-2"},
		{1.5, "1.5"},
		{[]any{"a", uint64(1)}, "a,1"},
	}

	for _, tt := range tests {
		if got := scalar(tt.in); got != tt.want {
			t.Errorf("scalar(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
