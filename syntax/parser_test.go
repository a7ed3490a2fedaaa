package syntax

import (
	"context"
	"errors"
	"testing"

	"github.com/ardnew/shgo/diag"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()

	f, err := Parse(context.Background(), "test.sh", []byte(src), WithDialect(Bash))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if f.Fatal() {
		t.Fatalf("unexpected diagnostics for %q: %v", src, f.Diagnostics)
	}

	return f
}

func only[T any](t *testing.T, f *File) T {
	t.Helper()

	if len(f.Body.Items) != 1 {
		t.Fatalf("expected one command, got %d", len(f.Body.Items))
	}

	c, ok := f.Body.Items[0].(T)
	if !ok {
		t.Fatalf("expected %T, got %T", c, f.Body.Items[0])
	}

	return c
}

func lit(t *testing.T, w *Word) string {
	t.Helper()

	s, ok := w.Lit()
	if !ok {
		t.Fatalf("expected literal word, got %s", String(w))
	}

	return s
}

func TestParse_UnterminatedIf(t *testing.T) {
	src := "echo before\nx=1\nif true; then\n  echo inside\n"

	f, err := Parse(context.Background(), "broken.sh", []byte(src))
	if err != nil {
		t.Fatal(err)
	}

	if n := f.Diagnostics.Count(diag.ParseError); n != 1 {
		t.Fatalf("expected exactly one parse error, got %d: %v", n, f.Diagnostics)
	}

	d := f.Diagnostics[0]
	if d.Line != 3 || d.Column != 1 {
		t.Errorf("expected error at the if keyword (3:1), got %d:%d", d.Line, d.Column)
	}

	if !f.Fatal() {
		t.Error("expected the unit to be fatal")
	}

	if len(f.Body.Items) != 2 {
		t.Fatalf("expected both sibling statements to survive, got %d", len(f.Body.Items))
	}

	if _, ok := f.Body.Items[0].(*SimpleCommand); !ok {
		t.Errorf("expected first statement to be a simple command, got %T", f.Body.Items[0])
	}
}

func TestParse_UnterminatedBlocks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"while", "echo a\nwhile true; do\n  echo b\n", 2},
		{"for", "for i in 1 2; do echo $i\n", 1},
		{"case", "\ncase $x in\n a) echo;;\n", 2},
		{"group", "{ echo a\n", 1},
		{"subshell", "( echo a\n", 1},
		{"function", "f() {\n echo\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := Parse(context.Background(), "t.sh", []byte(tt.src))

			if n := f.Diagnostics.Count(diag.ParseError); n != 1 {
				t.Fatalf("expected one parse error, got %v", f.Diagnostics)
			}

			if f.Diagnostics[0].Line != tt.line {
				t.Errorf("expected error on line %d, got %d", tt.line, f.Diagnostics[0].Line)
			}
		})
	}
}

func TestParse_RecoversAfterBadStatement(t *testing.T) {
	f, _ := Parse(context.Background(), "t.sh", []byte("echo a\nfi\necho b\n"))

	if n := f.Diagnostics.Count(diag.ParseError); n != 1 {
		t.Fatalf("expected one parse error, got %v", f.Diagnostics)
	}

	if len(f.Body.Items) != 2 {
		t.Errorf("expected two statements around the error, got %d", len(f.Body.Items))
	}
}

func TestParse_Precedence(t *testing.T) {
	f := mustParse(t, "a | b && c || d &")

	bg := only[*Background](t, f)

	or, ok := bg.X.(*AndOr)
	if !ok || or.Op != OR {
		t.Fatalf("expected || at the top, got %s", String(bg.X))
	}

	and, ok := or.X.(*AndOr)
	if !ok || and.Op != AND {
		t.Fatalf("expected && on the left of ||, got %T", or.X)
	}

	pl, ok := and.X.(*Pipeline)
	if !ok || len(pl.Cmds) != 2 {
		t.Fatalf("expected a two-stage pipeline, got %T", and.X)
	}
}

func TestParse_NegatedPipeline(t *testing.T) {
	f := mustParse(t, "! grep -q x file |& cat")

	pl := only[*Pipeline](t, f)
	if !pl.Negated || len(pl.Cmds) != 2 || !pl.Stderr[0] {
		t.Errorf("unexpected pipeline %+v", pl)
	}
}

func TestParse_RedirectAttachment(t *testing.T) {
	t.Run("simple command", func(t *testing.T) {
		sc := only[*SimpleCommand](t, mustParse(t, ">out echo hi 2>&1"))
		if len(sc.Args) != 2 || len(sc.Redirs) != 2 {
			t.Fatalf("expected 2 args and 2 redirects, got %d and %d", len(sc.Args), len(sc.Redirs))
		}

		if sc.Redirs[1].N != "2" || sc.Redirs[1].Op != GREATAND {
			t.Errorf("unexpected redirect %+v", sc.Redirs[1])
		}
	})

	t.Run("compound command", func(t *testing.T) {
		r := only[*Redirected](t, mustParse(t, "if a; then b; fi >out 2>&1"))
		if _, ok := r.X.(*IfClause); !ok {
			t.Fatalf("expected redirected if clause, got %T", r.X)
		}

		if len(r.Redirs) != 2 {
			t.Errorf("expected two redirects, got %d", len(r.Redirs))
		}
	})

	t.Run("heredoc body", func(t *testing.T) {
		sc := only[*SimpleCommand](t, mustParse(t, "cat <<EOF\nhi $USER\nEOF\n"))

		h := sc.Redirs[0].Hdoc
		if h == nil || h.Delim != "EOF" || h.Raw != "hi $USER\n" {
			t.Fatalf("unexpected heredoc %+v", h)
		}

		if h.Body == nil || len(h.Body.Parts) != 3 {
			t.Fatalf("expected expanded heredoc body, got %s", String(h.Body))
		}

		if pe, ok := h.Body.Parts[1].(*ParamExp); !ok || pe.Name != "USER" {
			t.Errorf("expected $USER expansion, got %T", h.Body.Parts[1])
		}
	})
}

func TestParse_Compounds(t *testing.T) {
	t.Run("if elif else", func(t *testing.T) {
		ic := only[*IfClause](t, mustParse(t, "if a; then b; elif c; then d; else e; fi"))
		if len(ic.Elifs) != 1 || ic.Else == nil || len(ic.Else.Items) != 1 {
			t.Errorf("unexpected if clause %s", String(ic))
		}
	})

	t.Run("until", func(t *testing.T) {
		wc := only[*WhileClause](t, mustParse(t, "until false; do :; done"))
		if !wc.Until {
			t.Error("expected until loop")
		}
	})

	t.Run("for", func(t *testing.T) {
		fc := only[*ForClause](t, mustParse(t, "for i in {1..5}; do sum=$((sum+i)); done"))
		if fc.Name != "i" || !fc.In || len(fc.Items) != 1 {
			t.Fatalf("unexpected for clause %+v", fc)
		}

		be, ok := fc.Items[0].Parts[0].(*BraceExp)
		if !ok || !be.Sequence || len(be.Elems) != 2 {
			t.Fatalf("expected a sequence brace expansion, got %s", String(fc.Items[0]))
		}

		sc := fc.Body.Items[0].(*SimpleCommand)
		if _, ok := sc.Assigns[0].Value.Parts[0].(*ArithExp); !ok {
			t.Errorf("expected arithmetic expansion in assignment")
		}
	})

	t.Run("for without in", func(t *testing.T) {
		fc := only[*ForClause](t, mustParse(t, "for arg\ndo echo $arg\ndone"))
		if fc.In {
			t.Error("expected loop over positional parameters")
		}
	})

	t.Run("arith for", func(t *testing.T) {
		af := only[*ArithForClause](t, mustParse(t, "for ((i = 0; i < 3; i++)); do echo $i; done"))
		if af.Init == nil || af.Cond == nil || af.Post == nil {
			t.Errorf("expected three expressions, got %s", String(af))
		}
	})

	t.Run("case", func(t *testing.T) {
		cc := only[*CaseClause](t, mustParse(t, "case $x in\na|b) echo ab;;\n*) echo other;&\nc) ;;&\nd) echo\nesac"))
		if len(cc.Items) != 4 {
			t.Fatalf("expected four arms, got %d", len(cc.Items))
		}

		if len(cc.Items[0].Patterns) != 2 {
			t.Errorf("expected two patterns in first arm")
		}

		terms := []Kind{DSEMI, SEMIAMP, DSEMIAMP, DSEMI}
		for i, it := range cc.Items {
			if it.Term != terms[i] {
				t.Errorf("arm %d: expected %v, got %v", i, terms[i], it.Term)
			}
		}
	})

	t.Run("select", func(t *testing.T) {
		only[*SelectClause](t, mustParse(t, "select opt in a b; do break; done"))
	})

	t.Run("subshell and group", func(t *testing.T) {
		f := mustParse(t, "(cd /tmp && ls)\n{ echo a; echo b; }")
		if _, ok := f.Body.Items[0].(*Subshell); !ok {
			t.Errorf("expected subshell, got %T", f.Body.Items[0])
		}

		if g, ok := f.Body.Items[1].(*Group); !ok || len(g.Body.Items) != 2 {
			t.Errorf("expected group of two, got %T", f.Body.Items[1])
		}
	})

	t.Run("arith command", func(t *testing.T) {
		ac := only[*ArithCmd](t, mustParse(t, "(( x = 1 + 2 * 3 ))"))

		assign, ok := ac.X.(*ArithBinary)
		if !ok || assign.Op != ArithAssgn {
			t.Fatalf("expected assignment, got %s", String(ac.X))
		}

		add, ok := assign.Y.(*ArithBinary)
		if !ok || add.Op != ArithAdd {
			t.Fatalf("expected addition on the right, got %s", String(assign.Y))
		}

		if mul, ok := add.Y.(*ArithBinary); !ok || mul.Op != ArithMul {
			t.Errorf("expected multiplication to bind tighter, got %s", String(add.Y))
		}
	})

	t.Run("test clause", func(t *testing.T) {
		tc := only[*TestClause](t, mustParse(t, `[[ -f $f && ! $x == y* || ( -z "$z" ) ]]`))

		or, ok := tc.X.(*TestBinary)
		if !ok || or.Op != "||" {
			t.Fatalf("expected || at the top, got %s", String(tc.X))
		}

		and, ok := or.X.(*TestBinary)
		if !ok || and.Op != "&&" {
			t.Fatalf("expected && under ||, got %s", String(or.X))
		}

		if u, ok := and.X.(*TestUnary); !ok || u.Op != "-f" {
			t.Errorf("expected -f test, got %s", String(and.X))
		}

		if _, ok := or.Y.(*TestParen); !ok {
			t.Errorf("expected parenthesized test, got %T", or.Y)
		}
	})

	t.Run("regex test", func(t *testing.T) {
		tc := only[*TestClause](t, mustParse(t, `[[ $v =~ ^(a|b)+$ ]]`))

		b, ok := tc.X.(*TestBinary)
		if !ok || b.Op != "=~" {
			t.Fatalf("expected =~, got %s", String(tc.X))
		}

		if got := String(b.Y.(*TestWord).Word); got != "^(a|b)+$" {
			t.Errorf("expected regex word, got %q", got)
		}
	})
}

func TestParse_Functions(t *testing.T) {
	tests := []struct {
		src     string
		name    string
		keyword bool
	}{
		{"greet() { echo hello $1; }", "greet", false},
		{"function greet { echo hello; }", "greet", true},
		{"function greet() ( echo sub )", "greet", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			fd := only[*FuncDecl](t, mustParse(t, tt.src))
			if fd.Name != tt.name || fd.Keyword != tt.keyword {
				t.Errorf("unexpected function %+v", fd)
			}
		})
	}
}

func TestParse_Declarations(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		dc := only[*DeclClause](t, mustParse(t, "declare -r -x a=1 b"))
		if dc.Variant != "declare" || len(dc.Opts) != 2 || len(dc.Assigns) != 2 {
			t.Fatalf("unexpected clause %s", String(dc))
		}

		if !dc.Assigns[1].Naked {
			t.Error("expected bare name to be naked")
		}
	})

	t.Run("dynamic operand falls back", func(t *testing.T) {
		sc := only[*SimpleCommand](t, mustParse(t, `export "$name"`))
		if lit(t, sc.Args[0]) != "export" || len(sc.Args) != 2 {
			t.Errorf("expected plain command, got %s", String(sc))
		}
	})

	t.Run("arrays", func(t *testing.T) {
		sc := only[*SimpleCommand](t, mustParse(t, "arr=(a 'b c' $d)"))
		a := sc.Assigns[0]

		if a.Array == nil || len(a.Array.Elems) != 3 {
			t.Fatalf("expected three array elements, got %s", String(a))
		}
	})

	t.Run("indexed append", func(t *testing.T) {
		sc := only[*SimpleCommand](t, mustParse(t, "m[$k]+=x"))
		a := sc.Assigns[0]

		if a.Index == nil || !a.Append || lit(t, a.Value) != "x" {
			t.Errorf("unexpected assignment %s", String(a))
		}
	})
}

func TestParse_ParamExpansions(t *testing.T) {
	tests := []struct {
		src    string
		name   string
		op     ParamOp
		length bool
		repl   bool
	}{
		{"${x:-def}", "x", OpDefault, false, false},
		{"${#x}", "x", OpNone, true, false},
		{"${x//a/b}", "x", OpReplaceAll, false, true},
		{"${x:1:2}", "x", OpSlice, false, true},
		{"${x##*/}", "x", OpRemLargePrefix, false, false},
		{"${10}", "10", OpNone, false, false},
		{"${x^^}", "x", OpUpperAll, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			sc := only[*SimpleCommand](t, mustParse(t, "echo "+tt.src))

			pe, ok := sc.Args[1].Parts[0].(*ParamExp)
			if !ok {
				t.Fatalf("expected parameter expansion, got %T", sc.Args[1].Parts[0])
			}

			if pe.Name != tt.name || pe.Op != tt.op || pe.Length != tt.length || (pe.Repl != nil) != tt.repl {
				t.Errorf("unexpected expansion %+v", pe)
			}
		})
	}
}

func TestParse_PrefixNames(t *testing.T) {
	sc := only[*SimpleCommand](t, mustParse(t, "echo ${!my_*} ${!my_@} ${!ref}"))

	for i, want := range []byte{'*', '@', 0} {
		pe, ok := sc.Args[i+1].Parts[0].(*ParamExp)
		if !ok {
			t.Fatalf("arg %d: expected parameter expansion, got %T", i+1, sc.Args[i+1].Parts[0])
		}

		if !pe.Indirect || pe.Names != want {
			t.Errorf("arg %d: unexpected expansion %+v", i+1, pe)
		}
	}

	if got := String(sc.Args[2]); got != "${!my_@}" {
		t.Errorf("String() = %q, want ${!my_@}", got)
	}
}

func TestParse_CommandSubstitutionPositions(t *testing.T) {
	f := mustParse(t, "x=1\necho $(printf '%s' \"$x\")")

	sc := f.Body.Items[1].(*SimpleCommand)

	cs, ok := sc.Args[1].Parts[0].(*CmdSubst)
	if !ok {
		t.Fatalf("expected command substitution, got %T", sc.Args[1].Parts[0])
	}

	inner := cs.Body.Items[0].(*SimpleCommand)
	if p := inner.Pos(); p.Line != 2 || p.Col != 8 {
		t.Errorf("expected inner command at 2:8, got %s", p)
	}
}

func TestParse_Dialects(t *testing.T) {
	t.Run("detected from shebang", func(t *testing.T) {
		f, _ := Parse(context.Background(), "x", []byte("#!/usr/bin/env zsh\necho hi\n"))
		if f.Dialect != Zsh {
			t.Errorf("expected zsh, got %v", f.Dialect)
		}
	})

	t.Run("rejected shell", func(t *testing.T) {
		f, _ := Parse(context.Background(), "x", []byte("#!/usr/bin/fish\necho hi\n"))
		if !f.Fatal() || f.Diagnostics.Count(diag.UnsupportedFeature) != 1 {
			t.Errorf("expected one fatal unsupported-feature diagnostic, got %v", f.Diagnostics)
		}
	})

	t.Run("feature warnings in posix", func(t *testing.T) {
		f, _ := Parse(context.Background(), "x", []byte("function f { local a=(1 2); [[ -n $a ]]; }"), WithDialect(POSIX))
		if f.Fatal() {
			t.Fatalf("feature warnings must not be fatal: %v", f.Diagnostics)
		}

		if n := f.Diagnostics.Count(diag.UnsupportedFeature); n != 4 {
			t.Errorf("expected four feature warnings, got %d: %v", n, f.Diagnostics)
		}
	})
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, "x", []byte("echo"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
