package shell

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/shgo/syntax"
)

func lit(text string) *Word { return &Word{Parts: []Part{&Lit{Text: text}}} }

func dq(parts ...Part) *Word { return &Word{Parts: []Part{&Quoted{Parts: parts}}} }

func param(name string) *Param { return &Param{Name: name} }

func call(args ...string) *Call {
	ws := make([]*Word, len(args))
	for i, a := range args {
		ws[i] = lit(a)
	}

	return callWords(ws...)
}

func callWords(args ...*Word) *Call {
	b, _ := LookupBuiltin(wordText(args[0]))

	return &Call{Args: args, Builtin: b, External: -1}
}

func setVar(name, value string) *Call {
	return &Call{Assigns: []*Assign{{Name: name, Value: lit(value)}}, External: -1}
}

func block(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

func run(t *testing.T, prog *Program, opts ...Option) (int, string, string) {
	t.Helper()

	var out, errb bytes.Buffer

	opts = append([]Option{
		WithStdio(strings.NewReader(""), &out, &errb),
		WithEnv([]string{"HOME=/home/user"}),
		WithFs(afero.NewMemMapFs()),
		WithDir("/"),
	}, opts...)

	code := New(prog, opts...).Run(context.Background(), []string{"test"})

	return code, out.String(), errb.String()
}

func TestShell_ForBraceSequence(t *testing.T) {
	prog := &Program{Main: block(
		setVar("sum", "0"),
		&For{
			Name:  "i",
			Items: []*Word{{Parts: []Part{&Brace{Seq: true, Elems: []*Word{lit("1"), lit("5")}}}}},
			Body: block(&ArithCmd{X: &ArithBinary{
				Op: syntax.ArithAddAssgn,
				X:  &ArithVar{Name: "sum"},
				Y:  &ArithVar{Name: "i"},
			}}),
		},
		callWords(lit("echo"), dq(param("sum"))),
	)}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, "15\n", out)
}

func TestShell_Pipefail(t *testing.T) {
	tests := []struct {
		name     string
		pipefail bool
		stages   []string
		want     int
	}{
		{"last stage decides", false, []string{"false", "true"}, 0},
		{"failure propagates", true, []string{"false", "true"}, 1},
		{"all succeed", true, []string{"true", "true"}, 0},
		{"last fails", false, []string{"true", "false"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := make([]Stmt, len(tt.stages))
			for i, name := range tt.stages {
				stages[i] = call(name)
			}

			prog := &Program{
				Main:    block(&Pipeline{Stages: stages}),
				Options: Options{Pipefail: tt.pipefail},
			}

			code, _, _ := run(t, prog)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestPipeStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   []int
		pipefail bool
		want     int
	}{
		{"last", []int{3, 0}, false, 0},
		{"first failure", []int{0, 2, 3}, true, 2},
		{"success", []int{0, 0}, true, 0},
		{"single", []int{4}, false, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pipeStatus(tt.status, tt.pipefail))
		})
	}
}

func TestShell_PipeStatusArray(t *testing.T) {
	s := New(&Program{Main: block(&Pipeline{Stages: []Stmt{call("true"), call("false")}})},
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
		WithEnv(nil),
		WithFs(afero.NewMemMapFs()),
		WithDir("/"))

	assert.Equal(t, 1, s.Run(context.Background(), nil))

	v, ok := s.Env().Get("PIPESTATUS")
	require.True(t, ok)
	assert.Equal(t, []string{"0", "1"}, v.Values())
}

func TestShell_PipelineData(t *testing.T) {
	prog := &Program{Main: block(&Pipeline{Stages: []Stmt{
		call("echo", "through the pipe"),
		call("read", "a", "b"),
	}}, call("echo", "after"))}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, "after\n", out)
}

func TestShell_FunctionLocal(t *testing.T) {
	prog := &Program{Main: block(
		&FuncDef{Name: "f", Body: &Group{Body: block(
			&Decl{Variant: BuiltinLocal, Assigns: []*Assign{{Name: "x", Value: lit("inner")}}},
			callWords(lit("echo"), dq(param("x")), dq(param("1"))),
		)}},
		setVar("x", "outer"),
		call("f", "arg"),
		callWords(lit("echo"), dq(param("x"))),
	)}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, "inner arg\nouter\n", out)
}

func TestShell_LocalOutsideFunction(t *testing.T) {
	prog := &Program{Main: block(
		&Decl{Variant: BuiltinLocal, Assigns: []*Assign{{Name: "x", Value: lit("v")}}},
	)}

	code, _, errs := run(t, prog)

	assert.Equal(t, 1, code)
	assert.Contains(t, errs, "can only be used in a function")
}

func TestShell_DefaultPath(t *testing.T) {
	prog := &Program{Main: block(callWords(lit("echo"), dq(param("PATH"))))}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, defaultPath+"\n", out)

	_, out, _ = run(t, prog, WithEnv([]string{"PATH=/opt/bin"}))
	assert.Equal(t, "/opt/bin\n", out)
}

func TestShell_Errexit(t *testing.T) {
	tests := []struct {
		name string
		main *Block
		code int
		out  string
	}{
		{
			name: "failure exits",
			main: block(call("false"), call("echo", "unreachable")),
			code: 1,
		},
		{
			name: "condition suspends",
			main: block(
				&AndOr{Or: true, X: call("false"), Y: call("true")},
				call("echo", "reached"),
			),
			out: "reached\n",
		},
		{
			name: "if condition",
			main: block(
				&If{Cond: block(call("false")), Then: block(call("echo", "then")), Else: block(call("echo", "else"))},
			),
			out: "else\n",
		},
		{
			name: "negated pipeline",
			main: block(&Pipeline{Negated: true, Stages: []Stmt{call("true")}}, call("echo", "ok")),
			out:  "ok\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := run(t, &Program{Main: tt.main, Options: Options{Errexit: true}})

			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestShell_Case(t *testing.T) {
	arms := []*CaseArm{
		{Patterns: []*Word{lit("*.sh")}, Body: block(call("echo", "shell"))},
		{Patterns: []*Word{lit("*.go"), lit("*.mod")}, Body: block(call("echo", "go")), Term: CaseFallthrough},
		{Patterns: []*Word{lit("never")}, Body: block(call("echo", "fell"))},
		{Patterns: []*Word{lit("*")}, Body: block(call("echo", "default"))},
	}

	tests := []struct {
		word string
		want string
	}{
		{"run.sh", "shell\n"},
		{"main.go", "go\nfell\n"},
		{"README", "default\n"},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			_, out, _ := run(t, &Program{Main: block(&Case{Word: lit(tt.word), Arms: arms})})
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestShell_ParamOps(t *testing.T) {
	word := func(p *Param) *Word { return dq(p) }

	prog := &Program{Main: block(
		setVar("x", "path/to/file.txt"),
		callWords(
			lit("echo"),
			word(&Param{Name: "x", Op: syntax.OpRemLargePrefix, Arg: lit("*/")}),
			word(&Param{Name: "x", Op: syntax.OpRemSmallSuffix, Arg: lit(".*")}),
			word(&Param{Name: "y", Op: syntax.OpDefault, Arg: lit("def")}),
			word(&Param{Name: "x", Length: true}),
			word(&Param{Name: "x", Op: syntax.OpReplaceAll, Arg: lit("/"), Repl: lit("-")}),
			word(&Param{Name: "x", Op: syntax.OpUpperFirst}),
		),
	)}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, "file.txt path/to/file def 16 path-to-file.txt Path/to/file.txt\n", out)
}

func TestShell_Nounset(t *testing.T) {
	prog := &Program{
		Main:    block(callWords(lit("echo"), dq(param("missing"))), call("echo", "unreachable")),
		Options: Options{Nounset: true},
	}

	code, out, errs := run(t, prog)

	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errs, "missing")
}

func TestShell_FieldSplitting(t *testing.T) {
	prog := &Program{Main: block(
		setVar("x", " a b  c "),
		&For{
			Name:  "w",
			Items: []*Word{{Parts: []Part{param("x")}}},
			Body: block(callWords(lit("echo"),
				&Word{Parts: []Part{&Quoted{Parts: []Part{&Lit{Text: "["}, param("w"), &Lit{Text: "]"}}}}})),
		},
	)}

	_, out, _ := run(t, prog)

	assert.Equal(t, "[a]\n[b]\n[c]\n", out)
}

func TestShell_Read(t *testing.T) {
	prog := &Program{Main: block(
		call("read", "a", "b"),
		callWords(lit("echo"), dq(param("b")), dq(param("a"))),
	)}

	_, out, _ := run(t, prog, WithStdio(strings.NewReader("one two  three\nnext\n"), nil, nil))

	assert.Equal(t, "two  three one\n", out)
}

func TestShell_Printf(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"padding", []string{"%s=%03d\\n", "a", "7"}, "a=007\n"},
		{"reuse", []string{"%s,", "a", "b", "c"}, "a,b,c,"},
		{"hex", []string{"%x %X %o", "255", "255", "8"}, "ff FF 10"},
		{"char code", []string{"%d", "'A"}, "65"},
		{"escapes", []string{"%b", "tab\\there"}, "tab\there"},
		{"width", []string{"[%-4s|%4s]", "ab", "cd"}, "[ab  |  cd]"},
		{"quote", []string{"%q", "a b"}, "'a b'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, _ := run(t, &Program{Main: block(call(append([]string{"printf"}, tt.args...)...))})
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestShell_Subshell(t *testing.T) {
	prog := &Program{Main: block(
		setVar("x", "outer"),
		&Subshell{Body: block(setVar("x", "inner"), call("exit", "3"))},
		callWords(lit("echo"), dq(param("x")), dq(param("?"))),
	)}

	code, out, _ := run(t, prog)

	assert.Equal(t, 0, code)
	assert.Equal(t, "outer 3\n", out)
}

func TestShell_Redirect(t *testing.T) {
	fs := afero.NewMemMapFs()

	prog := &Program{Main: block(
		&Redirected{
			X:      call("echo", "saved"),
			Redirs: []*Redir{{N: -1, Op: RedirOut, Word: lit("/out.txt")}},
		},
		&Redirected{
			X:      call("echo", "more"),
			Redirs: []*Redir{{N: -1, Op: RedirAppend, Word: lit("/out.txt")}},
		},
		&Redirected{
			X:      call("read", "line"),
			Redirs: []*Redir{{N: -1, Op: RedirIn, Word: lit("/out.txt")}},
		},
		callWords(lit("echo"), dq(param("line"))),
	)}

	code, out, _ := run(t, prog, WithFs(fs))

	assert.Equal(t, 0, code)
	assert.Equal(t, "saved\n", out)

	data, err := afero.ReadFile(fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "saved\nmore\n", string(data))
}

func TestShell_BreakContinue(t *testing.T) {
	items := []*Word{lit("1"), lit("2"), lit("3"), lit("4")}

	prog := &Program{Main: block(&For{
		Name:  "i",
		Items: items,
		Body: block(
			&If{
				Cond: block(&Test{X: &TestBinary{Op: "==", X: &TestWord{Word: dq(param("i"))}, Y: &TestWord{Word: lit("2")}}}),
				Then: block(call("continue")),
			},
			&If{
				Cond: block(&Test{X: &TestBinary{Op: "==", X: &TestWord{Word: dq(param("i"))}, Y: &TestWord{Word: lit("4")}}}),
				Then: block(call("break")),
			},
			callWords(lit("echo"), dq(param("i"))),
		),
	})}

	_, out, _ := run(t, prog)

	assert.Equal(t, "1\n3\n", out)
}

func TestShell_ExitTrap(t *testing.T) {
	prog := &Program{Main: block(call("exit", "4"))}

	s := New(prog,
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
		WithEnv(nil),
		WithFs(afero.NewMemMapFs()),
		WithDir("/"),
		WithCompiler(func(context.Context, string, []byte) (*Block, error) {
			return block(call("echo", "bye")), nil
		}))

	var out bytes.Buffer

	WithStdio(nil, &out, nil)(s)
	s.traps["EXIT"] = "echo bye"

	assert.Equal(t, 4, s.Run(context.Background(), nil))
	assert.Equal(t, "bye\n", out.String())
}

func TestShell_EncodeDecode(t *testing.T) {
	prog := &Program{
		Name:   "demo",
		Main:   block(callWords(lit("echo"), dq(param("1")))),
		Embeds: map[string][]byte{"/data.txt": []byte("content")},
	}

	var buf bytes.Buffer

	require.NoError(t, Encode(&buf, prog))

	got, err := Load(buf.Bytes())
	require.NoError(t, err)

	var out bytes.Buffer

	code := New(got,
		WithStdio(nil, &out, &bytes.Buffer{}),
		WithEnv(nil),
		WithFs(afero.NewMemMapFs()),
		WithDir("/")).Run(context.Background(), []string{"demo", "hello"})

	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, []byte("content"), got.Embeds["/data.txt"])
}

func TestShell_TestArgs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/d", 0o755))

	s := New(nil, WithEnv(nil), WithFs(fs), WithDir("/"))

	tests := []struct {
		args    []string
		want    bool
		wantErr bool
	}{
		{args: nil, want: false},
		{args: []string{"x"}, want: true},
		{args: []string{""}, want: false},
		{args: []string{"-n", "x"}, want: true},
		{args: []string{"-z", "x"}, want: false},
		{args: []string{"a", "=", "b"}, want: false},
		{args: []string{"a", "!=", "b"}, want: true},
		{args: []string{"1", "-lt", "2"}, want: true},
		{args: []string{"!", "-z", ""}, want: false},
		{args: []string{"-f", "/a"}, want: true},
		{args: []string{"-d", "/a"}, want: false},
		{args: []string{"-d", "d"}, want: true},
		{args: []string{"-s", "/a"}, want: true},
		{args: []string{"-e", "/missing"}, want: false},
		{args: []string{"x", "-a", "", "-o", "y"}, want: true},
		{args: []string{"(", "-n", "x", ")"}, want: true},
		{args: []string{"1", "-eq", "x"}, wantErr: true},
		{args: []string{"-q", "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got, err := s.testArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
