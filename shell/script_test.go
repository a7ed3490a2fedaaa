package shell_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/shgo/lower"
	"github.com/ardnew/shgo/shell"
)

// script compiles src and runs it with args, returning the status and the
// output streams.
func script(t *testing.T, src string, opts shell.Options, args ...string) (int, string, string) {
	t.Helper()

	b, err := lower.Compile(context.Background(), "script", []byte(src))
	require.NoError(t, err)

	var out, errb bytes.Buffer

	prog := &shell.Program{Name: "script", Dialect: "bash", Main: b, Options: opts}
	code := shell.New(prog,
		shell.WithStdio(strings.NewReader(""), &out, &errb),
		shell.WithEnv([]string{"HOME=/home/user"}),
		shell.WithFs(afero.NewMemMapFs()),
		shell.WithDir("/"),
		shell.WithCompiler(lower.Compile),
	).Run(context.Background(), append([]string{"script"}, args...))

	return code, out.String(), errb.String()
}

func TestScript(t *testing.T) {
	tests := []struct {
		name string
		src  string
		args []string
		code int
		out  string
	}{
		{
			name: "eval",
			src:  "cmd='echo from eval'\neval \"$cmd\"\neval 'x=5'\necho \"$x\"\n",
			out:  "from eval\n5\n",
		},
		{
			name: "heredoc",
			src:  "name=world\ncat <<EOF\nhello $name\nEOF\ncat <<'EOF'\nhello $name\nEOF\n",
			out:  "hello world\nhello $name\n",
		},
		{
			name: "arrays",
			src:  "a=(one two)\na+=(three)\necho \"${#a[@]}\" \"${a[1]}\"\nfor x in \"${a[@]}\"; do echo \"$x\"; done\n",
			out:  "3 two\none\ntwo\nthree\n",
		},
		{
			name: "case",
			src:  "for f in a.txt b.go c; do\n  case $f in\n    *.txt) echo text ;;\n    *.go) echo go ;;\n    *) echo other ;;\n  esac\ndone\n",
			out:  "text\ngo\nother\n",
		},
		{
			name: "function status",
			src:  "check() { [ \"$1\" = ok ] && return 0; return 3; }\ncheck ok; echo $?\ncheck bad; echo $?\n",
			out:  "0\n3\n",
		},
		{
			name: "positional",
			src:  "echo \"$#\" \"$1\"\nshift\necho \"$*\"\n",
			args: []string{"a", "b", "c"},
			out:  "3 a\nb c\n",
		},
		{
			name: "printf",
			src:  "printf '%s=%d\\n' a 1 b 2\nprintf '%05.1f|%-3s|\\n' 3.14159 x\n",
			out:  "a=1\nb=2\n003.1|x  |\n",
		},
		{
			name: "parameter operators",
			src:  "f=archive.tar.gz\necho \"${f%%.*}\" \"${f#*.}\" \"${#f}\" \"${unset:-dflt}\"\n",
			out:  "archive tar.gz 14 dflt\n",
		},
		{
			name: "command substitution",
			src:  "n=$(echo 4)\necho $(( n * 2 + 1 ))\n",
			out:  "9\n",
		},
		{
			name: "herestring read",
			src:  "read -r a b <<< 'first second third'\necho \"$b|$a\"\n",
			out:  "second third|first\n",
		},
		{
			name: "exit trap",
			src:  "trap 'echo bye' EXIT\necho hi\nexit 4\n",
			code: 4,
			out:  "hi\nbye\n",
		},
		{
			name: "printf quote",
			src:  "printf '%q\\n' 'a b'\n",
			out:  "'a b'\n",
		},
		{
			name: "prefix names",
			src:  "my_a=1\nmy_b=2\nfor n in \"${!my_@}\"; do echo \"$n\"; done\necho \"${!my_*}\" \"${!none_@}\"\n",
			out:  "my_a\nmy_b\nmy_a my_b\n",
		},
		{
			name: "while arithmetic",
			src:  "i=0\nwhile (( i < 3 )); do i=$((i + 1)); done\necho $i\n",
			out:  "3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := script(t, tt.src, shell.Options{}, tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestScript_Errexit(t *testing.T) {
	src := "echo start\nif false; then echo no; fi\nfalse || echo recovered\nfalse\necho unreachable\n"

	code, out, _ := script(t, src, shell.Options{Errexit: true})
	assert.Equal(t, 1, code)
	assert.Equal(t, "start\nrecovered\n", out)
}

func TestScript_Nounset(t *testing.T) {
	code, out, errs := script(t, "echo \"${missing}\"\necho after\n", shell.Options{Nounset: true})
	assert.NotEqual(t, 0, code)
	assert.Empty(t, out)
	assert.Contains(t, errs, "missing")
}

func TestScript_EvalSyntaxError(t *testing.T) {
	code, out, errs := script(t, "eval 'if then'\necho $?\n", shell.Options{})
	assert.Equal(t, 0, code)
	assert.Equal(t, "2\n", out)
	assert.Contains(t, errs, "eval")
}

func TestScript_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts shell.Options
		code int
		out  string
		errs string
	}{
		{
			name: "division by zero",
			src:  "echo $((1/0))\necho after\n",
			out:  "after\n",
			errs: "division by 0",
		},
		{
			name: "invalid octal",
			src:  "echo $(( 08 ))\necho $?\n",
			out:  "1\n",
			errs: "value too great for base",
		},
		{
			name: "readonly assignment",
			src:  "readonly R=1\nR=2\necho $? \"$R\"\n",
			out:  "1 1\n",
			errs: "readonly variable",
		},
		{
			name: "errexit",
			src:  "echo $((1/0))\necho after\n",
			opts: shell.Options{Errexit: true},
			code: 1,
			errs: "division by 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errs := script(t, tt.src, tt.opts)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.out, out)
			assert.Contains(t, errs, tt.errs)
		})
	}
}
