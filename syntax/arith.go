package syntax

import (
	"strings"
)

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	ArithAdd ArithOp = iota + 1
	ArithSub
	ArithMul
	ArithQuo
	ArithRem
	ArithPow
	ArithShl
	ArithShr
	ArithAnd
	ArithOr
	ArithXor
	ArithLand
	ArithLor
	ArithEql
	ArithNeq
	ArithLss
	ArithLeq
	ArithGtr
	ArithGeq
	ArithNot
	ArithBitNot
	ArithInc
	ArithDec
	ArithAssgn
	ArithAddAssgn
	ArithSubAssgn
	ArithMulAssgn
	ArithQuoAssgn
	ArithRemAssgn
	ArithShlAssgn
	ArithShrAssgn
	ArithAndAssgn
	ArithOrAssgn
	ArithXorAssgn
	ArithComma
	ArithQuest
	ArithColon
)

var arithOpText = map[ArithOp]string{
	ArithAdd: "+", ArithSub: "-", ArithMul: "*", ArithQuo: "/", ArithRem: "%",
	ArithPow: "**", ArithShl: "<<", ArithShr: ">>", ArithAnd: "&", ArithOr: "|",
	ArithXor: "^", ArithLand: "&&", ArithLor: "||", ArithEql: "==", ArithNeq: "!=",
	ArithLss: "<", ArithLeq: "<=", ArithGtr: ">", ArithGeq: ">=", ArithNot: "!",
	ArithBitNot: "~", ArithInc: "++", ArithDec: "--", ArithAssgn: "=",
	ArithAddAssgn: "+=", ArithSubAssgn: "-=", ArithMulAssgn: "*=",
	ArithQuoAssgn: "/=", ArithRemAssgn: "%=", ArithShlAssgn: "<<=",
	ArithShrAssgn: ">>=", ArithAndAssgn: "&=", ArithOrAssgn: "|=",
	ArithXorAssgn: "^=", ArithComma: ",", ArithQuest: "?", ArithColon: ":",
}

func (o ArithOp) String() string { return arithOpText[o] }

// IsAssign reports whether o stores into its left operand.
func (o ArithOp) IsAssign() bool { return o >= ArithAssgn && o <= ArithXorAssgn }

// arithOps is ordered longest first for greedy matching.
var arithOps = func() []ArithOp {
	ops := make([]ArithOp, 0, len(arithOpText))
	for op := range arithOpText {
		ops = append(ops, op)
	}

	// Stable order: by length descending, then by value.
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && lessOp(ops[j], ops[j-1]); j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}

	return ops
}()

func lessOp(a, b ArithOp) bool {
	la, lb := len(a.String()), len(b.String())
	if la != lb {
		return la > lb
	}

	return a < b
}

type arithTok struct {
	op    ArithOp // zero for operands and parens
	paren byte    // '(' or ')'
	word  *Word
	pos   Pos
}

type arithParser struct {
	p    *parser
	toks []arithTok
	i    int
	end  Pos
}

// arithText parses an arithmetic expression. An empty expression yields nil.
func (p *parser) arithText(text []byte, base Pos) ArithExpr {
	src := newSource(text, base)
	ap := &arithParser{p: p, end: src.posAt(len(text))}
	ap.tokenize(src)

	if len(ap.toks) == 0 {
		return nil
	}

	x := ap.expr(0)
	if ap.i < len(ap.toks) {
		p.errorf(ap.toks[ap.i].pos, "syntax error in arithmetic expression")
	}

	return x
}

func (ap *arithParser) tokenize(src source) {
	text := src.text

	for i := 0; i < len(text); {
		c := text[i]

		switch {
		case isBlank(c) || c == '\n':
			i++

			continue
		case c == '\\' && i+1 < len(text) && text[i+1] == '\n':
			i += 2

			continue
		case c == '(' || c == ')':
			ap.toks = append(ap.toks, arithTok{paren: c, pos: src.posAt(i)})
			i++

			continue
		}

		if op, n := matchArithOp(text[i:]); n > 0 {
			ap.toks = append(ap.toks, arithTok{op: op, pos: src.posAt(i)})
			i += n

			continue
		}

		j := i

	operand:
		for j < len(text) {
			switch c := text[j]; {
			case c == '$':
				j, _ = skipDollar(text, j, ap.p.dialect, false)
				if j == len(text) || text[j-1] != '$' {
					continue
				}

				// Short parameter: consume the name.
				if j < len(text) && (isDigit(text[j]) || strings.IndexByte("@*#?-$!", text[j]) >= 0) {
					j++
				} else {
					for j < len(text) && isNameChar(text[j]) {
						j++
					}
				}
			case c == '`':
				j, _ = skipBackquote(text, j)
			case c == '"':
				j, _ = skipDouble(text, j, ap.p.dialect)
			case c == '\'':
				j, _ = skipSingle(text, j)
			case c == '[':
				if k := matchBracket(text, j, len(text)); k > 0 {
					j = k + 1
				} else {
					j++
				}
			case c == '\\':
				j += 2
			case isNameChar(c) || c == '#' || c == '@' || c == '.':
				j++
			default:
				break operand
			}
		}

		if j == i {
			ap.p.errorf(src.posAt(i), "unexpected %q in arithmetic expression", c)
			j = i + 1
		} else {
			ap.toks = append(ap.toks, arithTok{
				word: &Word{Parts: ap.p.parts(src, i, min(j, len(text)), modeArith)},
				pos:  src.posAt(i),
			})
		}

		i = j
	}
}

func matchArithOp(b []byte) (ArithOp, int) {
	for _, op := range arithOps {
		s := op.String()
		if strings.HasPrefix(string(b[:min(len(b), 3)]), s) {
			return op, len(s)
		}
	}

	return 0, 0
}

// binary operator precedence; higher binds tighter.
func binaryPrec(op ArithOp) int {
	switch op {
	case ArithComma:
		return 1
	case ArithAssgn, ArithAddAssgn, ArithSubAssgn, ArithMulAssgn, ArithQuoAssgn,
		ArithRemAssgn, ArithShlAssgn, ArithShrAssgn, ArithAndAssgn, ArithOrAssgn,
		ArithXorAssgn:
		return 2
	case ArithQuest:
		return 3
	case ArithLor:
		return 4
	case ArithLand:
		return 5
	case ArithOr:
		return 6
	case ArithXor:
		return 7
	case ArithAnd:
		return 8
	case ArithEql, ArithNeq:
		return 9
	case ArithLss, ArithLeq, ArithGtr, ArithGeq:
		return 10
	case ArithShl, ArithShr:
		return 11
	case ArithAdd, ArithSub:
		return 12
	case ArithMul, ArithQuo, ArithRem:
		return 13
	case ArithPow:
		return 14
	}

	return 0
}

func (ap *arithParser) peek() *arithTok {
	if ap.i < len(ap.toks) {
		return &ap.toks[ap.i]
	}

	return nil
}

// expr parses a binary expression whose operators bind tighter than min.
func (ap *arithParser) expr(minPrec int) ArithExpr {
	x := ap.unary()

	for {
		t := ap.peek()
		if t == nil || t.op == 0 {
			return x
		}

		prec := binaryPrec(t.op)
		if prec == 0 || prec <= minPrec {
			return x
		}

		op := t.op
		opPos := t.pos
		ap.i++

		switch {
		case op == ArithQuest:
			then := ap.expr(ArithComma.prec())
			if c := ap.peek(); c == nil || c.op != ArithColon {
				ap.p.errorf(ap.posOr(c), "expected ':' in conditional expression")

				return &ArithTernary{Cond: x, Then: then}
			}

			ap.i++
			x = &ArithTernary{Cond: x, Then: then, Else: ap.expr(prec - 1)}
		case op.IsAssign() || op == ArithPow:
			// right-associative
			x = &ArithBinary{OpPos: opPos, Op: op, X: x, Y: ap.expr(prec - 1)}
		default:
			x = &ArithBinary{OpPos: opPos, Op: op, X: x, Y: ap.expr(prec)}
		}
	}
}

func (o ArithOp) prec() int { return binaryPrec(o) }

func (ap *arithParser) posOr(t *arithTok) Pos {
	if t != nil {
		return t.pos
	}

	return ap.end
}

func (ap *arithParser) unary() ArithExpr {
	t := ap.peek()
	if t == nil {
		ap.p.errorf(ap.end, "missing operand in arithmetic expression")

		return &ArithWord{Word: &Word{}}
	}

	switch t.op {
	case ArithNot, ArithBitNot, ArithAdd, ArithSub, ArithInc, ArithDec:
		ap.i++

		return &ArithUnary{OpPos: t.pos, Op: t.op, X: ap.unary()}
	}

	return ap.postfix()
}

func (ap *arithParser) postfix() ArithExpr {
	x := ap.primary()

	for {
		t := ap.peek()
		if t == nil || (t.op != ArithInc && t.op != ArithDec) {
			return x
		}

		ap.i++
		x = &ArithUnary{OpPos: t.pos, Op: t.op, Post: true, X: x}
	}
}

func (ap *arithParser) primary() ArithExpr {
	t := ap.peek()

	switch {
	case t == nil:
		ap.p.errorf(ap.end, "missing operand in arithmetic expression")

		return &ArithWord{Word: &Word{}}
	case t.paren == '(':
		ap.i++
		x := ap.expr(0)

		if c := ap.peek(); c == nil || c.paren != ')' {
			ap.p.errorf(ap.posOr(c), "expected ')' in arithmetic expression")
		} else {
			ap.i++
		}

		return &ArithParen{Lparen: t.pos, X: x}
	case t.word != nil:
		ap.i++

		return &ArithWord{Word: t.word}
	}

	ap.p.errorf(t.pos, "unexpected %q in arithmetic expression", t.text())
	ap.i++

	return &ArithWord{Word: &Word{}}
}

func (t *arithTok) text() string {
	if t.paren != 0 {
		return string(t.paren)
	}

	return t.op.String()
}
