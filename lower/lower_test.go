package lower

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

const root = "/proj/script.sh"

func generate(t *testing.T, files map[string]string, opts ...Option) (*shell.Program, diag.List, error) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, s := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(s), 0o644))
	}

	res, err := resolve.New(fs, resolve.DefaultConfig()).Resolve(context.Background(), root)
	require.NotNil(t, res)

	if err != nil {
		return New(res, WithFs(fs)).Generate(context.Background())
	}

	return New(res, append([]Option{WithFs(fs)}, opts...)...).Generate(context.Background())
}

func TestGenerate_References(t *testing.T) {
	prog, diags, err := generate(t, map[string]string{
		root: strings.Join([]string{
			"#!/bin/bash -eu",
			"# @Description: greets",
			"source lib.sh",
			"greet world",
			"cat config.yaml",
			`cat "$HOME/notes.txt"`,
		}, "\n") + "\n",
		"/proj/lib.sh":      "greet() { echo \"hello $1\"; }\n",
		"/proj/config.yaml": "a: 1\n",
	})
	require.NoError(t, err)
	assert.False(t, diags.HasFatal())

	assert.Equal(t, "script", prog.Name)
	assert.Equal(t, "bash", prog.Dialect)
	assert.True(t, prog.Options.Errexit)
	assert.True(t, prog.Options.Nounset)
	assert.False(t, prog.Options.Pipefail)
	assert.Equal(t, "greets", prog.Meta.Description)

	require.Contains(t, prog.Units, "/proj/lib.sh")
	assert.Equal(t, []byte("a: 1\n"), prog.Embeds["/proj/config.yaml"])

	stmts := prog.Main.Stmts
	require.Len(t, stmts, 4)

	src, ok := stmts[0].(*shell.Source)
	require.True(t, ok, "got %T", stmts[0])
	assert.Equal(t, "/proj/lib.sh", src.Unit)

	greet, ok := stmts[1].(*shell.Call)
	require.True(t, ok)
	assert.Equal(t, shell.NotBuiltin, greet.Builtin)
	assert.Equal(t, -1, greet.External)

	cat, ok := stmts[2].(*shell.Call)
	require.True(t, ok)
	require.GreaterOrEqual(t, cat.External, 0)
	assert.Equal(t, "cat", prog.Externals[cat.External].Name)
	assert.Equal(t, &shell.EmbedPath{Key: "/proj/config.yaml"}, cat.Args[1].Parts[0])

	dyn, ok := stmts[3].(*shell.Call)
	require.True(t, ok)

	rp, ok := dyn.Args[1].Parts[0].(*shell.RuntimePath)
	require.True(t, ok, "got %T", dyn.Args[1].Parts[0])
	assert.Equal(t, `"$HOME/notes.txt"`, rp.Expr)
}

func TestGenerate_Run(t *testing.T) {
	prog, _, err := generate(t, map[string]string{
		root:           "source lib.sh\ngreet world\nfor i in 1 2; do greet \"$i\"; done\n",
		"/proj/lib.sh": "greet() { echo \"hello $1\"; }\n",
	})
	require.NoError(t, err)

	var out bytes.Buffer

	code := shell.New(prog,
		shell.WithStdio(strings.NewReader(""), &out, &out),
		shell.WithEnv(nil),
		shell.WithFs(afero.NewMemMapFs()),
		shell.WithDir("/"),
		shell.WithCompiler(Compile),
	).Run(context.Background(), []string{"script"})

	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world\nhello 1\nhello 2\n", out.String())
}

func TestGenerate_Unsupported(t *testing.T) {
	prog, diags, err := generate(t, map[string]string{
		root: "#!/bin/bash\ndiff <(echo a) <(echo b)\n",
	})

	require.ErrorIs(t, err, ErrGenerate)
	assert.Nil(t, prog)
	assert.Equal(t, 2, diags.Count(diag.UnsupportedFeature))

	for _, d := range diags {
		if d.Kind == diag.UnsupportedFeature {
			assert.Equal(t, root, d.File)
			assert.Equal(t, 2, d.Line)
			assert.Contains(t, d.Message, "process substitution")
		}
	}
}

func TestGenerate_FatalResolution(t *testing.T) {
	_, _, err := generate(t, map[string]string{
		root:           "source lib.sh\n",
		"/proj/lib.sh": "source script.sh\n",
	})

	require.ErrorIs(t, err, ErrGenerate)
}

func TestGenerate_Canceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, root, []byte("echo hi\n"), 0o644))

	res, err := resolve.New(fs, resolve.DefaultConfig()).Resolve(context.Background(), root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = New(res, WithFs(fs)).Generate(ctx)
	require.ErrorIs(t, err, ErrGenerate)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_Warnings(t *testing.T) {
	prog, diags, err := generate(t, map[string]string{
		root: "exit abc\nwhile true; do break 0; done\n[ -n x\nalias ll='ls -l'\neval 'if then'\n",
	})
	require.NoError(t, err)
	require.NotNil(t, prog)

	var msgs []string
	for _, d := range diags {
		msgs = append(msgs, d.Message)
	}

	joined := strings.Join(msgs, "\n")
	assert.Contains(t, joined, "numeric argument required")
	assert.Contains(t, joined, "loop count out of range")
	assert.Contains(t, joined, "missing `]'")
	assert.Contains(t, joined, "aliases are recorded")
	assert.Contains(t, joined, "eval: code does not parse")
}

func TestShebangOptions(t *testing.T) {
	tests := []struct {
		shebang string
		want    shell.Options
	}{
		{"#!/bin/bash", shell.Options{}},
		{"#!/bin/bash -e", shell.Options{Errexit: true}},
		{"#!/bin/sh -eux", shell.Options{Errexit: true, Nounset: true, Xtrace: true}},
		{"#!/bin/bash -o pipefail -f", shell.Options{Pipefail: true, Noglob: true}},
		{"#!/usr/bin/env -S bash -e", shell.Options{Errexit: true}},
		{"", shell.Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.shebang, func(t *testing.T) {
			assert.Equal(t, tt.want, ShebangOptions(tt.shebang, shell.Options{}))
		})
	}
}

func TestLitParts(t *testing.T) {
	tests := []struct {
		in   string
		want []shell.Part
	}{
		{"plain", []shell.Part{&shell.Lit{Text: "plain"}}},
		{`a\*b`, []shell.Part{&shell.Lit{Text: "a"}, &shell.Lit{Text: "*", Quoted: true}, &shell.Lit{Text: "b"}}},
		{"a\\\nb", []shell.Part{&shell.Lit{Text: "ab"}}},
		{`end\`, []shell.Part{&shell.Lit{Text: `end\`}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, litParts(tt.in))
		})
	}
}

func TestTilde(t *testing.T) {
	tests := []struct {
		in, user, rest string
	}{
		{"~", "", ""},
		{"~/bin", "", "/bin"},
		{"~root/x", "root", "/x"},
		{"~+x", "", "~+x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			user, rest := tilde(tt.in)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestBuiltinLowering_Complete(t *testing.T) {
	for _, name := range shell.Builtins() {
		b, ok := shell.LookupBuiltin(name)
		require.True(t, ok)

		_, ok = builtinLowering[b]
		assert.True(t, ok, "no lowering for %s", name)
	}
}

func TestCompile(t *testing.T) {
	b, err := Compile(context.Background(), "eval", []byte("x=$((1 + 2)); echo ${x}"))
	require.NoError(t, err)
	require.Len(t, b.Stmts, 2)

	set, ok := b.Stmts[0].(*shell.Call)
	require.True(t, ok)
	require.Len(t, set.Assigns, 1)
	assert.Equal(t, "x", set.Assigns[0].Name)
	assert.Equal(t, &shell.Arith{X: &shell.ArithBinary{
		Op: syntax.ArithAdd,
		X:  &shell.ArithNum{Text: "1"},
		Y:  &shell.ArithNum{Text: "2"},
	}}, set.Assigns[0].Value.Parts[0])

	echo, ok := b.Stmts[1].(*shell.Call)
	require.True(t, ok)
	assert.Equal(t, shell.BuiltinEcho, echo.Builtin)

	_, err = Compile(context.Background(), "eval", []byte("if then"))
	require.ErrorIs(t, err, ErrCompile)
}

func TestCompile_ArrayElement(t *testing.T) {
	b, err := Compile(context.Background(), "arith", []byte("((a[i+1] = 2 * x))"))
	require.NoError(t, err)
	require.Len(t, b.Stmts, 1)

	cmd, ok := b.Stmts[0].(*shell.ArithCmd)
	require.True(t, ok)

	assert.Equal(t, &shell.ArithBinary{
		Op: syntax.ArithAssgn,
		X: &shell.ArithVar{Name: "a", Index: &shell.ArithBinary{
			Op: syntax.ArithAdd,
			X:  &shell.ArithVar{Name: "i"},
			Y:  &shell.ArithNum{Text: "1"},
		}},
		Y: &shell.ArithBinary{
			Op: syntax.ArithMul,
			X:  &shell.ArithNum{Text: "2"},
			Y:  &shell.ArithVar{Name: "x"},
		},
	}, cmd.X)
}

func TestCompile_Heredoc(t *testing.T) {
	b, err := Compile(context.Background(), "eval", []byte("cat <<'EOF'\n$x \\$y\nEOF\n"))
	require.NoError(t, err)
	require.Len(t, b.Stmts, 1)

	c, ok := b.Stmts[0].(*shell.Call)
	require.True(t, ok)
	require.Len(t, c.Redirs, 1)
	assert.Equal(t, shell.RedirHeredoc, c.Redirs[0].Op)
	require.Len(t, c.Redirs[0].Word.Parts, 1)

	body, ok := c.Redirs[0].Word.Parts[0].(*shell.Lit)
	require.True(t, ok)
	assert.True(t, body.Quoted)
	assert.Equal(t, "$x \\$y", strings.TrimSuffix(body.Text, "\n"))
}
