package syntax

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func dump(t *testing.T, n Node) string {
	t.Helper()

	var buf bytes.Buffer
	if err := Dump(&buf, n); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	return buf.String()
}

var roundTrip = []string{
	"echo hello world",
	"a=1 b=2 env",
	"ls -l | grep foo | wc -l",
	"a && b || ! c",
	"sleep 1 & wait",
	"if a; then b; elif c; then d; else e; fi",
	"if (a) && { b; }; then :; fi",
	"while true; do break; done",
	"until false; do continue; done",
	"for i in 1 2 3; do echo $i; done",
	"for ((i = 0; i < 10; i++)); do echo $i; done",
	"for ((;;)); do break; done",
	"select x in a b; do echo $x; done",
	"case $x in a | b) echo ab ;; *) ;; esac",
	"f() { local x=$1; echo ${x:-none}; }",
	"function g { return 0; }",
	"(cd /tmp; ls) >out 2>&1",
	"{ a; b; } | c",
	"(( x = (1 + 2) * 3 ))",
	"(( a = -(-1) + - -b ))",
	"echo $(( (a + b) * c ? d : e ))",
	"[[ -f /etc/passwd && $USER == r* ]]",
	"[[ ! ( $a < $b ) || $c =~ ^x(y|z)$ ]]",
	"echo $(date) `hostname` $((1 + 2)) ${#PATH} ${v/a/b} ${v:1:2} ${!ref}",
	"echo \"`echo \\\"q\\\"`\"",
	"cat <<EOF\nline $x\nEOF\n",
	"cat <<'EOF' | wc -l\nliteral $x\nEOF\n",
	"arr=(one 'two three' \"$four\")",
	"declare -a list=(a b); export PATH",
	"echo {a,b,c} {1..3} x{y,z}",
	"diff <(sort a) <(sort b)",
	"echo 'single' \"double $x\" $'ansi\\n'",
	"x=$(if true; then echo y; fi)",
	"x=$( (sub) )",
	"echo $(cat <<EOF\nnested\nEOF\n)",
	"exec 3<>file 4<&0 >|clobber &>all",
	"read -r x <<< \"$y\"",
}

func TestPrint_RoundTrip(t *testing.T) {
	for _, src := range roundTrip {
		t.Run(src, func(t *testing.T) {
			first := mustParse(t, src)
			text := String(first)

			second := mustParse(t, text)

			if got, want := dump(t, second.Body), dump(t, first.Body); got != want {
				t.Fatalf("re-parsed tree differs\nprinted:\n%s\nwant:\n%s\ngot:\n%s", text, want, got)
			}

			if again := String(second); again != text {
				t.Errorf("printing is not idempotent\nfirst:\n%s\nsecond:\n%s", text, again)
			}
		})
	}
}

func TestPrint_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	inputs, err := filepath.Glob(filepath.Join("testdata", "fmt", "*.sh"))
	if err != nil {
		t.Fatal(err)
	}

	if len(inputs) == 0 {
		t.Fatal("no inputs")
	}

	for _, path := range inputs {
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		f, err := Parse(context.Background(), filepath.Base(path), src)
		if err != nil {
			t.Fatal(err)
		}

		if f.Fatal() {
			t.Fatalf("%s: %v", path, f.Diagnostics)
		}

		var buf bytes.Buffer
		if err := Print(&buf, f); err != nil {
			t.Fatal(err)
		}

		g.Assert(t, strings.TrimSuffix(filepath.Base(path), ".sh"), buf.Bytes())
	}
}

func TestPrint_Fragments(t *testing.T) {
	f := mustParse(t, "echo ${x:-a b} >>log")
	sc := f.Body.Items[0].(*SimpleCommand)

	tests := []struct {
		name string
		node Node
		want string
	}{
		{"word", sc.Args[1], "${x:-a b}"},
		{"redirect", sc.Redirs[0], ">>log\n"},
		{"command", sc, "echo ${x:-a b} >>log\n"},
		{"arith", &ArithBinary{Op: ArithPow, X: numWord("2"), Y: numWord("8")}, "2 ** 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.node); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func numWord(s string) *ArithWord {
	return &ArithWord{Word: &Word{Parts: []WordPart{&Lit{Value: s}}}}
}

func TestDump_OmitsPositions(t *testing.T) {
	a := mustParse(t, "echo   x")
	b := mustParse(t, "\n\necho x")

	if dump(t, a.Body) != dump(t, b.Body) {
		t.Error("dumps differ only by position")
	}

	if !strings.Contains(dump(t, a.Body), `Value: "echo"`) {
		t.Errorf("expected literal value in dump:\n%s", dump(t, a.Body))
	}
}
