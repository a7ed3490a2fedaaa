package lower

import (
	"strings"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

func (u *unit) arith(x syntax.ArithExpr) shell.ArithExpr {
	switch x := x.(type) {
	case nil:
		return nil
	case *syntax.ArithWord:
		return u.arithWord(x.Word)
	case *syntax.ArithParen:
		return u.arith(x.X)
	case *syntax.ArithBinary:
		return &shell.ArithBinary{Op: x.Op, X: u.arith(x.X), Y: u.arith(x.Y)}
	case *syntax.ArithUnary:
		return &shell.ArithUnary{Op: x.Op, Post: x.Post, X: u.arith(x.X)}
	case *syntax.ArithTernary:
		return &shell.ArithTernary{Cond: u.arith(x.Cond), Then: u.arith(x.Then), Else: u.arith(x.Else)}
	}

	u.errorf(diag.GenerationError, x.Pos(), "cannot lower arithmetic %T", x)

	return nil
}

// arithWord lowers an operand: a number, a variable, an indexed array
// element, or an expansion evaluated when the program runs.
func (u *unit) arithWord(w *syntax.Word) shell.ArithExpr {
	if lit, ok := w.Lit(); ok && lit != "" {
		switch {
		case lit[0] >= '0' && lit[0] <= '9':
			return &shell.ArithNum{Text: lit}
		case isName(lit):
			return &shell.ArithVar{Name: lit}
		}
	}

	if v, ok := u.element(w); ok {
		return v
	}

	return &shell.ArithWord{Word: u.plain(w)}
}

// element lowers "name[index]". A literal index is parsed as an
// expression now; one with expansions is evaluated when the program runs.
func (u *unit) element(w *syntax.Word) (*shell.ArithVar, bool) {
	if len(w.Parts) == 0 {
		return nil, false
	}

	first, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return nil, false
	}

	last, ok := w.Parts[len(w.Parts)-1].(*syntax.Lit)
	if !ok || !strings.HasSuffix(last.Value, "]") {
		return nil, false
	}

	open := strings.IndexByte(first.Value, '[')
	if open <= 0 || !isName(first.Value[:open]) {
		return nil, false
	}

	v := &shell.ArithVar{Name: first.Value[:open]}

	if len(w.Parts) == 1 {
		inner := first.Value[open+1 : len(first.Value)-1]
		if x, ok := u.arithText(first.Pos(), inner); ok {
			v.Index = x

			return v, true
		}

		return nil, false
	}

	var parts []syntax.WordPart

	if rest := first.Value[open+1:]; rest != "" {
		parts = append(parts, &syntax.Lit{ValuePos: first.ValuePos, Value: rest})
	}

	parts = append(parts, w.Parts[1:len(w.Parts)-1]...)

	if rest := strings.TrimSuffix(last.Value, "]"); rest != "" {
		parts = append(parts, &syntax.Lit{ValuePos: last.ValuePos, Value: rest})
	}

	v.Index = &shell.ArithWord{Word: &shell.Word{Parts: u.parts(parts, modeUnquoted)}}

	return v, true
}

// arithText parses text as an arithmetic expression.
func (u *unit) arithText(pos syntax.Pos, text string) (shell.ArithExpr, bool) {
	f, err := syntax.Parse(u.ctx, u.path, []byte("(("+text+"))"), syntax.WithDialect(syntax.Bash))
	if err != nil || f.Fatal() || len(f.Body.Items) != 1 {
		return nil, false
	}

	cmd, ok := f.Body.Items[0].(*syntax.ArithCmd)
	if !ok {
		return nil, false
	}

	x := u.arith(cmd.X)
	if x == nil {
		u.errorf(diag.GenerationError, pos, "empty array index")

		return nil, false
	}

	return x, true
}

func isName(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			continue
		}

		return false
	}

	return true
}

func (u *unit) test(x syntax.TestExpr) shell.TestExpr {
	switch x := x.(type) {
	case nil:
		return nil
	case *syntax.TestWord:
		return &shell.TestWord{Word: u.word(x.Word)}
	case *syntax.TestParen:
		return u.test(x.X)
	case *syntax.TestUnary:
		return &shell.TestUnary{Op: x.Op, X: u.test(x.X)}
	case *syntax.TestBinary:
		return &shell.TestBinary{Op: x.Op, X: u.test(x.X), Y: u.test(x.Y)}
	}

	u.errorf(diag.GenerationError, x.Pos(), "cannot lower test expression %T", x)

	return nil
}
