package syntax

var testUnaryOps = map[string]bool{
	"-a": true, "-b": true, "-c": true, "-d": true, "-e": true, "-f": true,
	"-g": true, "-h": true, "-k": true, "-p": true, "-r": true, "-s": true,
	"-t": true, "-u": true, "-w": true, "-x": true, "-G": true, "-L": true,
	"-N": true, "-O": true, "-S": true, "-z": true, "-n": true, "-v": true,
	"-o": true, "-R": true,
}

var testBinaryOps = map[string]bool{
	"==": true, "=": true, "!=": true, "=~": true,
	"-eq": true, "-ne": true, "-lt": true, "-le": true, "-gt": true, "-ge": true,
	"-nt": true, "-ot": true, "-ef": true,
}

// IsTestUnaryOp reports whether op is a unary test operator.
func IsTestUnaryOp(op string) bool { return testUnaryOps[op] }

// IsTestBinaryOp reports whether op is a binary test operator other than
// "<" and ">".
func IsTestBinaryOp(op string) bool { return testBinaryOps[op] }

func (p *parser) testClause() Command {
	tc := &TestClause{Left: p.tok.Pos}
	p.feature(ExtendedTest, tc.Left)
	p.next()

	if p.atTestEnd() {
		p.errorf(tc.Left, "empty [[ expression")

		return nil
	}

	tc.X = p.testOr()
	if tc.X == nil {
		return nil
	}

	if _, ok := p.expect("]]", "[[", tc.Left); !ok {
		return nil
	}

	return tc
}

func (p *parser) atTestEnd() bool {
	return p.tok.Kind == EOF || (p.tok.Kind == WORD && p.tok.Text == "]]" && p.tok.Keyword)
}

func (p *parser) testOr() TestExpr {
	x := p.testAnd()

	for x != nil && p.tok.Kind == OR {
		pos := p.tok.Pos
		p.next()
		p.skipNewlines()

		y := p.testAnd()
		if y == nil {
			return nil
		}

		x = &TestBinary{OpPos: pos, Op: "||", X: x, Y: y}
	}

	return x
}

func (p *parser) testAnd() TestExpr {
	x := p.testNot()

	for x != nil && p.tok.Kind == AND {
		pos := p.tok.Pos
		p.next()
		p.skipNewlines()

		y := p.testNot()
		if y == nil {
			return nil
		}

		x = &TestBinary{OpPos: pos, Op: "&&", X: x, Y: y}
	}

	return x
}

func (p *parser) testNot() TestExpr {
	if p.tok.Kind == WORD && p.tok.Text == "!" && !p.tok.Quoted {
		pos := p.tok.Pos
		p.next()

		x := p.testNot()
		if x == nil {
			return nil
		}

		return &TestUnary{OpPos: pos, Op: "!", X: x}
	}

	return p.testPrimary()
}

func (p *parser) testPrimary() TestExpr {
	switch {
	case p.tok.Kind == LPAREN:
		pos := p.tok.Pos
		p.next()

		x := p.testOr()
		if x == nil {
			return nil
		}

		if p.tok.Kind != RPAREN {
			p.errorf(p.tok.Pos, "expected \")\" in [[ expression, found %s", p.tok)

			return nil
		}

		p.next()

		return &TestParen{Lparen: pos, X: x}

	case p.tok.Kind != WORD || p.atTestEnd():
		p.errorf(p.tok.Pos, "unexpected %s in [[ expression", p.tok)

		return nil
	}

	first := p.tok
	p.next()

	if !first.Quoted && testUnaryOps[first.Text] && p.tok.Kind == WORD && !p.atTestEnd() &&
		!testBinaryOps[p.tok.Text] {
		x := &TestWord{Word: p.wordFrom(p.tok)}
		p.next()

		return &TestUnary{OpPos: first.Pos, Op: first.Text, X: x}
	}

	x := &TestWord{Word: p.wordFrom(first)}

	var op string

	switch {
	case p.tok.Kind == LESS:
		op = "<"
	case p.tok.Kind == GREAT:
		op = ">"
	case p.tok.Kind == WORD && !p.tok.Quoted && testBinaryOps[p.tok.Text]:
		op = p.tok.Text
	default:
		return x
	}

	opPos := p.tok.Pos
	p.next()

	if p.tok.Kind != WORD || p.atTestEnd() {
		p.errorf(p.tok.Pos, "expected an operand after %q, found %s", op, p.tok)

		return nil
	}

	y := &TestWord{Word: p.wordFrom(p.tok)}
	p.next()

	return &TestBinary{OpPos: opPos, Op: op, X: x, Y: y}
}
