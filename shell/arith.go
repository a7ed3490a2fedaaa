package shell

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/shgo/syntax"
)

// maxArithDepth bounds the recursive evaluation of variables whose values
// are themselves expressions.
const maxArithDepth = 32

// arith evaluates x with 64-bit wrapping integer semantics.
func (s *Shell) arith(ctx context.Context, x ArithExpr) (int64, error) {
	return s.arithDepth(ctx, x, 0)
}

func (s *Shell) arithDepth(ctx context.Context, x ArithExpr, depth int) (int64, error) {
	if depth > maxArithDepth {
		return 0, ErrArith.With(slog.String("issue", "expression recursion level exceeded"))
	}

	eval := func(x ArithExpr) (int64, error) { return s.arithDepth(ctx, x, depth) }

	switch x := x.(type) {
	case nil:
		return 0, nil
	case *ArithNum:
		return parseNumber(x.Text)
	case *ArithVar:
		v, err := s.arithVar(ctx, x)
		if err != nil {
			return 0, err
		}

		return s.arithValue(ctx, v, depth+1)
	case *ArithWord:
		v, err := s.literal(ctx, x.Word)
		if err != nil {
			return 0, err
		}

		return s.arithValue(ctx, v, depth+1)
	case *ArithTernary:
		c, err := eval(x.Cond)
		if err != nil {
			return 0, err
		}

		if c != 0 {
			return eval(x.Then)
		}

		return eval(x.Else)
	case *ArithUnary:
		return s.arithUnary(ctx, x, depth)
	case *ArithBinary:
		return s.arithBinary(ctx, x, depth)
	}

	return 0, ErrArith.With(slog.String("issue", "unknown expression"))
}

func (s *Shell) arithVar(ctx context.Context, x *ArithVar) (string, error) {
	if x.Index == nil {
		v, ok := s.env.Value(x.Name)
		if !ok && s.opts.Nounset {
			return "", unbound(x.Name)
		}

		return v, nil
	}

	i, err := s.arith(ctx, x.Index)
	if err != nil {
		return "", err
	}

	v, ok := s.env.Get(x.Name)
	if !ok {
		return "", nil
	}

	vals := v.Values()
	if i < 0 {
		i += int64(len(vals))
	}

	if i < 0 || i >= int64(len(vals)) {
		return "", nil
	}

	return vals[i], nil
}

// arithValue evaluates the text of a variable or expansion: a number, the
// name of another variable, or an expression compiled at run time.
func (s *Shell) arithValue(ctx context.Context, v string, depth int) (int64, error) {
	v = strings.TrimSpace(v)

	switch {
	case v == "":
		return 0, nil
	case isNumber(v):
		return parseNumber(v)
	case validName(v):
		return s.arithDepth(ctx, &ArithVar{Name: v}, depth)
	}

	x, err := s.arithCompile(ctx, v)
	if err != nil {
		return 0, err
	}

	return s.arithDepth(ctx, x, depth)
}

func (s *Shell) arithCompile(ctx context.Context, text string) (ArithExpr, error) {
	s.shared.mu.Lock()
	x, ok := s.shared.arith[text]
	s.shared.mu.Unlock()

	if ok {
		return x, nil
	}

	if s.compile == nil {
		return nil, ErrArith.Wrap(ErrNoCompiler).With(slog.String("expr", text))
	}

	b, err := s.compile(ctx, "arith", []byte("(("+text+"))"))
	if err != nil {
		return nil, ErrArith.Wrap(err).With(slog.String("expr", text))
	}

	if len(b.Stmts) != 1 {
		return nil, ErrArith.With(slog.String("expr", text), slog.String("issue", "syntax error"))
	}

	cmd, ok := b.Stmts[0].(*ArithCmd)
	if !ok {
		return nil, ErrArith.With(slog.String("expr", text), slog.String("issue", "syntax error"))
	}

	s.shared.mu.Lock()
	s.shared.arith[text] = cmd.X
	s.shared.mu.Unlock()

	return cmd.X, nil
}

func (s *Shell) arithUnary(ctx context.Context, x *ArithUnary, depth int) (int64, error) {
	if x.Op == syntax.ArithInc || x.Op == syntax.ArithDec {
		v, ok := x.X.(*ArithVar)
		if !ok {
			return 0, ErrArith.With(slog.String("issue", "assignment to non-variable"))
		}

		old, err := s.arithDepth(ctx, v, depth)
		if err != nil {
			return 0, err
		}

		n := old + 1
		if x.Op == syntax.ArithDec {
			n = old - 1
		}

		if err := s.arithAssign(ctx, v, n); err != nil {
			return 0, err
		}

		if x.Post {
			return old, nil
		}

		return n, nil
	}

	n, err := s.arithDepth(ctx, x.X, depth)
	if err != nil {
		return 0, err
	}

	switch x.Op {
	case syntax.ArithAdd:
		return n, nil
	case syntax.ArithSub:
		return -n, nil
	case syntax.ArithNot:
		return b2i(n == 0), nil
	case syntax.ArithBitNot:
		return ^n, nil
	}

	return 0, ErrArith.With(slog.String("op", x.Op.String()))
}

func (s *Shell) arithBinary(ctx context.Context, x *ArithBinary, depth int) (int64, error) {
	eval := func(x ArithExpr) (int64, error) { return s.arithDepth(ctx, x, depth) }

	switch x.Op {
	case syntax.ArithLand, syntax.ArithLor:
		l, err := eval(x.X)
		if err != nil {
			return 0, err
		}

		if (x.Op == syntax.ArithLand) == (l == 0) {
			return b2i(l != 0), nil
		}

		r, err := eval(x.Y)
		if err != nil {
			return 0, err
		}

		return b2i(r != 0), nil
	case syntax.ArithComma:
		if _, err := eval(x.X); err != nil {
			return 0, err
		}

		return eval(x.Y)
	}

	if x.Op.IsAssign() {
		v, ok := x.X.(*ArithVar)
		if !ok {
			return 0, ErrArith.With(slog.String("issue", "assignment to non-variable"))
		}

		r, err := eval(x.Y)
		if err != nil {
			return 0, err
		}

		if x.Op != syntax.ArithAssgn {
			l, err := eval(v)
			if err != nil {
				return 0, err
			}

			if r, err = binary(assignOp[x.Op], l, r); err != nil {
				return 0, err
			}
		}

		return r, s.arithAssign(ctx, v, r)
	}

	l, err := eval(x.X)
	if err != nil {
		return 0, err
	}

	r, err := eval(x.Y)
	if err != nil {
		return 0, err
	}

	return binary(x.Op, l, r)
}

var assignOp = map[syntax.ArithOp]syntax.ArithOp{
	syntax.ArithAddAssgn: syntax.ArithAdd,
	syntax.ArithSubAssgn: syntax.ArithSub,
	syntax.ArithMulAssgn: syntax.ArithMul,
	syntax.ArithQuoAssgn: syntax.ArithQuo,
	syntax.ArithRemAssgn: syntax.ArithRem,
	syntax.ArithShlAssgn: syntax.ArithShl,
	syntax.ArithShrAssgn: syntax.ArithShr,
	syntax.ArithAndAssgn: syntax.ArithAnd,
	syntax.ArithOrAssgn:  syntax.ArithOr,
	syntax.ArithXorAssgn: syntax.ArithXor,
}

func binary(op syntax.ArithOp, l, r int64) (int64, error) {
	switch op {
	case syntax.ArithAdd:
		return l + r, nil
	case syntax.ArithSub:
		return l - r, nil
	case syntax.ArithMul:
		return l * r, nil
	case syntax.ArithQuo, syntax.ArithRem:
		if r == 0 {
			return 0, ErrArith.With(slog.String("issue", "division by 0"))
		}

		if op == syntax.ArithQuo {
			return l / r, nil
		}

		return l % r, nil
	case syntax.ArithPow:
		if r < 0 {
			return 0, ErrArith.With(slog.String("issue", "exponent less than 0"))
		}

		n := int64(1)
		for ; r > 0; r-- {
			n *= l
		}

		return n, nil
	case syntax.ArithShl:
		return l << (uint64(r) & 63), nil
	case syntax.ArithShr:
		return l >> (uint64(r) & 63), nil
	case syntax.ArithAnd:
		return l & r, nil
	case syntax.ArithOr:
		return l | r, nil
	case syntax.ArithXor:
		return l ^ r, nil
	case syntax.ArithEql:
		return b2i(l == r), nil
	case syntax.ArithNeq:
		return b2i(l != r), nil
	case syntax.ArithLss:
		return b2i(l < r), nil
	case syntax.ArithLeq:
		return b2i(l <= r), nil
	case syntax.ArithGtr:
		return b2i(l > r), nil
	case syntax.ArithGeq:
		return b2i(l >= r), nil
	}

	return 0, ErrArith.With(slog.String("op", op.String()))
}

func (s *Shell) arithAssign(ctx context.Context, v *ArithVar, n int64) error {
	val := strconv.FormatInt(n, 10)

	if v.Index == nil {
		return s.env.Set(v.Name, val)
	}

	i, err := s.arith(ctx, v.Index)
	if err != nil {
		return err
	}

	return s.env.SetIndex(v.Name, int(i), val)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}

	return 0
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}

	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}

	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// parseNumber reads decimal, octal (leading 0), hexadecimal (0x) and
// "base#digits" literals.
func parseNumber(text string) (int64, error) {
	s := strings.TrimSpace(text)

	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var (
		n   int64
		err error
	)

	if b, digits, ok := strings.Cut(s, "#"); ok {
		base, perr := strconv.Atoi(b)
		if perr != nil || base < 2 || base > 64 {
			return 0, ErrArith.With(slog.String("number", text), slog.String("issue", "invalid base"))
		}

		n, err = parseBase(digits, base)
	} else {
		n, err = strconv.ParseInt(s, 0, 64)
		if err != nil && strings.HasPrefix(s, "0") && !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
			n, err = strconv.ParseInt(s, 8, 64)
		}
	}

	if err != nil {
		return 0, ErrArith.With(slog.String("number", text), slog.String("issue", "value too great for base"))
	}

	if neg {
		n = -n
	}

	return n, nil
}

func parseBase(digits string, base int) (int64, error) {
	if base <= 36 {
		return strconv.ParseInt(digits, base, 64)
	}

	var n int64

	for _, c := range digits {
		var d int

		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'z':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = int(c-'A') + 36
		case c == '@':
			d = 62
		case c == '_':
			d = 63
		default:
			d = base
		}

		if d >= base {
			return 0, strconv.ErrSyntax
		}

		n = n*int64(base) + int64(d)
	}

	return n, nil
}
