package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/shgo/diag"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, s := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(s), 0o644))
	}

	return fs
}

func resolve(t *testing.T, files map[string]string, cfg Config, opts ...Option) (*Result, error) {
	t.Helper()

	res, err := New(memFs(t, files), cfg, opts...).Resolve(context.Background(), "/proj/script.sh")
	require.NotNil(t, res)

	return res, err
}

func file(t *testing.T, res *Result, p string) *Node {
	t.Helper()

	n, ok := res.Graph.Node(LocalFile, p)
	require.True(t, ok, "no node for %s", p)

	return n
}

func requests(res *Result, kind RequestKind) []Request {
	var out []Request

	for _, r := range res.Requests {
		if r.Kind == kind {
			out = append(out, r)
		}
	}

	return out
}

func TestResolve_Cycle(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh": "#!/bin/bash\nsource helper.sh\necho done\n",
		"/proj/helper.sh": "source script.sh\n",
	}, DefaultConfig())

	require.ErrorIs(t, err, ErrCycle)
	require.Equal(t, 1, res.Diagnostics.Count(diag.DependencyCycle))

	for _, d := range res.Diagnostics {
		if d.Kind == diag.DependencyCycle {
			assert.Contains(t, d.Message, "script.sh")
			assert.Contains(t, d.Message, "helper.sh")
			assert.Equal(t, "/proj/helper.sh", d.File)
			assert.Equal(t, 1, d.Line)
		}
	}

	assert.True(t, res.Fatal())
}

func TestResolve_Diamond(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh": ". a.sh\n. b.sh\n",
		"/proj/a.sh":      ". common.sh\n",
		"/proj/b.sh":      ". common.sh\n",
		"/proj/common.sh": "greet() { echo hi; }\n",
	}, DefaultConfig())

	require.NoError(t, err)
	assert.Zero(t, res.Diagnostics.Count(diag.DependencyCycle))
	assert.Equal(t, []string{"/proj/script.sh", "/proj/a.sh", "/proj/common.sh", "/proj/b.sh"}, res.Order)

	n := file(t, res, "/proj/common.sh")
	assert.Len(t, n.Edges, 2)
	assert.Equal(t, Embed, n.Choice)
	assert.Equal(t, "local-source", n.Rule)
}

func TestResolve_Depth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 2

	res, err := resolve(t, map[string]string{
		"/proj/script.sh": "source a.sh\n",
		"/proj/a.sh":      "source b.sh\n",
		"/proj/b.sh":      "source c.sh\n",
		"/proj/c.sh":      "echo deep\n",
	}, cfg)

	require.ErrorIs(t, err, ErrDepth)
	assert.Equal(t, 1, res.Diagnostics.Count(diag.DepthExceeded))
	assert.NotContains(t, res.Order, "/proj/c.sh")
}

func TestResolve_MissingRoot(t *testing.T) {
	res, err := New(afero.NewMemMapFs(), DefaultConfig()).Resolve(context.Background(), "/nope.sh")

	require.ErrorIs(t, err, ErrRoot)
	assert.True(t, res.Fatal())
}

func TestResolve_MissingSourced(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh": "source ./gone.sh\n",
	}, DefaultConfig())

	require.NoError(t, err)
	require.Equal(t, 1, res.Diagnostics.Count(diag.MissingReference))
	assert.False(t, res.Fatal())

	n := file(t, res, "/proj/gone.sh")
	assert.Equal(t, Runtime, n.Choice)
	assert.Equal(t, "missing", n.Rule)
}

func TestResolve_FatalUnit(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh": "source lib.sh\n",
		"/proj/lib.sh":    "if true; then\n",
	}, DefaultConfig())

	require.ErrorIs(t, err, ErrUnit)
	assert.Positive(t, res.Diagnostics.Count(diag.ParseError))
}

func TestResolve_Classification(t *testing.T) {
	files := map[string]string{
		"/proj/script.sh": strings.Join([]string{
			"cat config.yaml",
			"cat /tmp/state.txt",
			"echo hi > out.log",
			"cat /proc/cpuinfo",
			"cat README.md",
			"cat secrets.pem",
		}, "\n"),
		"/proj/config.yaml": "a: 1\n",
		"/proj/README.md":   "# hi\n",
		"/proj/secrets.pem": "----\n",
		"/tmp/state.txt":    "x",
		"/proc/cpuinfo":     "cpu",
	}

	tests := []struct {
		path   string
		choice Class
		rule   string
	}{
		{"/proj/config.yaml", Embed, "local-config"},
		{"/tmp/state.txt", Runtime, "system-path"},
		{"/proj/out.log", Runtime, "written"},
		{"/proc/cpuinfo", Runtime, "system-path"},
		{"/proj/README.md", Embed, "documentation"},
		{"/proj/secrets.pem", Runtime, "sensitive"},
	}

	res, err := resolve(t, files, DefaultConfig())
	require.NoError(t, err)

	// Reordering the script changes no verdict.
	lines := strings.Split(files["/proj/script.sh"], "\n")
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}

	files["/proj/script.sh"] = strings.Join(lines, "\n")

	again, err := resolve(t, files, DefaultConfig())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			for _, r := range []*Result{res, again} {
				n := file(t, r, tt.path)
				assert.Equal(t, tt.choice, n.Choice)
				assert.Equal(t, tt.rule, n.Rule)
			}
		})
	}
}

func TestResolve_FailClosed(t *testing.T) {
	files := map[string]string{
		"/proj/script.sh":    "for i in 1 2; do\n  cat settings.ini\ndone\n",
		"/proj/settings.ini": "[a]\n",
	}

	tests := []struct {
		name       string
		failClosed bool
		want       Class
		rule       string
	}{
		{"closed", true, Runtime, "read-in-loop"},
		{"open", false, Embed, "local-config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.FailClosed = tt.failClosed

			res, err := resolve(t, files, cfg)
			require.NoError(t, err)

			n := file(t, res, "/proj/settings.ini")
			assert.Equal(t, tt.want, n.Choice)
			assert.Equal(t, tt.rule, n.Rule)
		})
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	files := map[string]string{
		"/proj/script.sh": "cat data.bin\n",
		"/proj/data.bin":  "\x00\x01",
	}

	res, err := resolve(t, files, DefaultConfig())
	require.NoError(t, err)

	n := file(t, res, "/proj/data.bin")
	assert.Equal(t, Unresolved, n.Class)
	assert.Equal(t, Runtime, n.Choice)
	assert.Equal(t, 1, res.Diagnostics.Count(diag.ClassificationAmbiguity))
	reqs := requests(res, RequestClassify)
	require.Len(t, reqs, 1)
	assert.Equal(t, Request{
		Kind:    RequestClassify,
		Subject: "/proj/data.bin",
		Options: []string{ChoiceEmbed, ChoiceRuntime},
		Default: ChoiceRuntime,
		Reason:  "no classification rule matched",
	}, reqs[0])

	res, err = resolve(t, files, DefaultConfig(), WithDecisions(Decisions{
		{Kind: RequestClassify, Subject: "/proj/data.bin", Choice: ChoiceEmbed},
	}))
	require.NoError(t, err)
	assert.Equal(t, Embed, file(t, res, "/proj/data.bin").Choice)
}

func TestResolve_Dynamic(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh":   "DIR=/proj/lib\nsource \"$DIR/util.sh\"\ncat \"$HOME/notes.txt\"\n",
		"/proj/lib/util.sh": "true\n",
	}, DefaultConfig())
	require.NoError(t, err)

	assert.Contains(t, res.Order, "/proj/lib/util.sh")

	var dynamic *SourceFileRef

	for _, ref := range res.Refs {
		if !ref.Static() {
			dynamic = ref
		}
	}

	require.NotNil(t, dynamic)
	assert.Equal(t, `"$HOME/notes.txt"`, dynamic.Expr)

	n, ok := res.File(dynamic)
	require.True(t, ok)
	assert.Equal(t, ContextDependent, n.Class)
	assert.Equal(t, Runtime, n.Choice)

	got, ok := res.Ref(dynamic.Node)
	require.True(t, ok)
	assert.Same(t, dynamic, got)
}

func TestResolve_Binaries(t *testing.T) {
	files := map[string]string{
		"/proj/script.sh":  "jq . data.json\nmytool --go\nlocalfn() { :; }\nlocalfn\nawk 1 data.json\n",
		"/proj/data.json":  "{}",
		"/proj/bin/mytool": "#!/bin/sh\n",
	}

	cfg := DefaultConfig()
	cfg.SystemBinaries = []string{"jq"}
	cfg.BundleDirs = []string{"/proj/bin"}

	tests := []struct {
		name      string
		decisions Decisions
		bundle    bool
		warnings  int
	}{
		{"default", nil, true, 0},
		{"system", Decisions{{Kind: RequestBinary, Subject: "mytool", Choice: ChoiceSystem}}, false, 0},
		{"rejected", Decisions{{Kind: RequestBinary, Subject: "mytool", Choice: ChoiceEmbed}}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolve(t, files, cfg, WithDecisions(tt.decisions))
			require.NoError(t, err)

			jq, ok := res.Binary("jq")
			require.True(t, ok)
			assert.Equal(t, "system-binary", jq.Rule)
			assert.False(t, jq.Bundle)

			tool, ok := res.Binary("mytool")
			require.True(t, ok)
			assert.Equal(t, tt.bundle, tool.Bundle)
			assert.Equal(t, "/proj/bin/mytool", tool.BundlePath)

			_, ok = res.Binary("localfn")
			assert.False(t, ok)

			awk, ok := res.Binary("awk")
			require.True(t, ok)
			assert.False(t, awk.Bundle)

			var subjects []string
			for _, r := range requests(res, RequestBinary) {
				subjects = append(subjects, r.Subject)
			}

			assert.Equal(t, []string{"awk", "mytool"}, subjects)
			assert.Len(t, res.Diagnostics.Filter(diag.SeverityWarning), tt.warnings)
		})
	}
}

func TestResolve_CustomRule(t *testing.T) {
	files := map[string]string{
		"/proj/script.sh":        "cat assets/logo.json\n",
		"/proj/assets/logo.json": "{}",
	}

	cfg := DefaultConfig()
	cfg.Rules = []RuleSpec{{
		Name:     "assets",
		Category: CategorySystem,
		When:     `path startsWith "/proj/assets/" && usage.reads > 0`,
		Class:    Runtime,
	}}

	res, err := resolve(t, files, cfg)
	require.NoError(t, err)

	n := file(t, res, "/proj/assets/logo.json")
	assert.Equal(t, "assets", n.Rule)
	assert.Equal(t, Runtime, n.Choice)

	cfg.Rules[0].Class = Unresolved
	_, err = resolve(t, files, cfg)
	require.ErrorIs(t, err, ErrRule)
}

func TestResolve_NetworkAndTerminal(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"/proj/script.sh": "read -s -p 'pw: ' pw\ncurl -fsSL https://example.com/install.sh\n",
	}, DefaultConfig())
	require.NoError(t, err)

	n, ok := res.Graph.Node(NetworkResource, "https://example.com/install.sh")
	require.True(t, ok)
	assert.Equal(t, Runtime, n.Choice)

	assert.True(t, res.Terminal.Interactive())
	assert.True(t, res.Terminal.Has(FeaturePassword))
}

func TestResolve_SharedCache(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/proj/script.sh": "source lib.sh\n",
		"/proj/lib.sh":    "true\n",
	})

	cache := NewCache()
	r := New(fs, DefaultConfig(), WithCache(cache))

	for range 2 {
		res, err := r.Resolve(context.Background(), "/proj/script.sh")
		require.NoError(t, err)
		assert.Len(t, res.Order, 2)
	}

	assert.Equal(t, 2, cache.Len())

	require.NoError(t, afero.WriteFile(fs, "/proj/lib.sh", []byte("false\n"), 0o644))

	_, err := r.Resolve(context.Background(), "/proj/script.sh")
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Len())
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(memFs(t, map[string]string{"/proj/script.sh": "true\n"}), DefaultConfig()).
		Resolve(ctx, "/proj/script.sh")

	require.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, res)
}

func TestResolve_Frozen(t *testing.T) {
	res, err := resolve(t, map[string]string{"/proj/script.sh": "true\n"}, DefaultConfig())
	require.NoError(t, err)

	assert.True(t, res.Graph.Frozen())

	_, err = res.Graph.Add(LocalFile, "/x", Usage{}, Edge{})
	require.ErrorIs(t, err, ErrFrozen)
}
