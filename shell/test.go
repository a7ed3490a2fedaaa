package shell

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
)

var errTestSyntax = errors.New("syntax error")

// cond evaluates a "[[ ]]" expression. Operands are neither split nor
// globbed; the right side of == and != is a pattern, and of =~ a regular
// expression.
func (s *Shell) cond(ctx context.Context, x TestExpr) (bool, error) {
	switch x := x.(type) {
	case *TestWord:
		v, err := s.literal(ctx, x.Word)

		return v != "", err
	case *TestUnary:
		if x.Op == "!" {
			ok, err := s.cond(ctx, x.X)

			return !ok, err
		}

		w, ok := x.X.(*TestWord)
		if !ok {
			return false, errTestSyntax
		}

		v, err := s.literal(ctx, w.Word)
		if err != nil {
			return false, err
		}

		return s.unaryTest(x.Op, v)
	case *TestBinary:
		switch x.Op {
		case "&&", "-a":
			ok, err := s.cond(ctx, x.X)
			if err != nil || !ok {
				return false, err
			}

			return s.cond(ctx, x.Y)
		case "||", "-o":
			ok, err := s.cond(ctx, x.X)
			if err != nil || ok {
				return ok, err
			}

			return s.cond(ctx, x.Y)
		}

		lw, lok := x.X.(*TestWord)
		rw, rok := x.Y.(*TestWord)

		if !lok || !rok {
			return false, errTestSyntax
		}

		l, err := s.literal(ctx, lw.Word)
		if err != nil {
			return false, err
		}

		switch x.Op {
		case "==", "=", "!=":
			pat, err := s.pattern(ctx, rw.Word)
			if err != nil {
				return false, err
			}

			return s.match(pat, l) == (x.Op != "!="), nil
		case "=~":
			return s.rematch(ctx, l, rw.Word)
		case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
			a, err := s.arithValue(ctx, l, 0)
			if err != nil {
				return false, err
			}

			r, err := s.literal(ctx, rw.Word)
			if err != nil {
				return false, err
			}

			b, err := s.arithValue(ctx, r, 0)
			if err != nil {
				return false, err
			}

			return compareInts(x.Op, a, b), nil
		}

		r, err := s.literal(ctx, rw.Word)
		if err != nil {
			return false, err
		}

		return s.binaryTest(x.Op, l, r)
	}

	return false, errTestSyntax
}

// rematch matches l against the extended regular expression in w, setting
// BASH_REMATCH. Quoted parts of w match literally.
func (s *Shell) rematch(ctx context.Context, l string, w *Word) (bool, error) {
	e := s.expander(ctx, true)
	if err := e.parts(w.Parts, false); err != nil {
		return false, err
	}

	var sb strings.Builder

	for _, f := range e.done() {
		for _, frag := range f {
			if frag.quoted {
				sb.WriteString(regexp.QuoteMeta(frag.text))
			} else {
				sb.WriteString(frag.text)
			}
		}
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, errTestSyntax
	}

	m := re.FindStringSubmatch(l)
	if m == nil {
		_ = s.env.SetArray("BASH_REMATCH", nil)

		return false, nil
	}

	return true, s.env.SetArray("BASH_REMATCH", m)
}

func compareInts(op string, a, b int64) bool {
	switch op {
	case "-eq":
		return a == b
	case "-ne":
		return a != b
	case "-lt":
		return a < b
	case "-le":
		return a <= b
	case "-gt":
		return a > b
	case "-ge":
		return a >= b
	}

	return false
}

func isUnaryTest(op string) bool {
	switch op {
	case "-a", "-b", "-c", "-d", "-e", "-f", "-g", "-h", "-k", "-L", "-n",
		"-N", "-o", "-O", "-G", "-p", "-r", "-s", "-S", "-t", "-u", "-v",
		"-w", "-x", "-z":
		return true
	}

	return false
}

func isBinaryTest(op string) bool {
	switch op {
	case "=", "==", "!=", "<", ">", "-eq", "-ne", "-lt", "-le", "-gt", "-ge",
		"-nt", "-ot", "-ef":
		return true
	}

	return false
}

func (s *Shell) stat(p string) (fs.FileInfo, error) {
	return s.fs.Stat(s.abs(p))
}

func (s *Shell) lstat(p string) (fs.FileInfo, error) {
	if l, ok := s.fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(s.abs(p))

		return fi, err
	}

	return s.stat(p)
}

func (s *Shell) unaryTest(op, x string) (bool, error) {
	mode := func(fn func(fs.FileMode) bool) (bool, error) {
		fi, err := s.stat(x)
		if err != nil {
			return false, nil
		}

		return fn(fi.Mode()), nil
	}

	switch op {
	case "-z":
		return x == "", nil
	case "-n":
		return x != "", nil
	case "-a", "-e":
		_, err := s.stat(x)

		return err == nil, nil
	case "-f":
		return mode(fs.FileMode.IsRegular)
	case "-d":
		return mode(fs.FileMode.IsDir)
	case "-b":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeDevice != 0 && m&fs.ModeCharDevice == 0 })
	case "-c":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeCharDevice != 0 })
	case "-p":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeNamedPipe != 0 })
	case "-S":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeSocket != 0 })
	case "-g":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeSetgid != 0 })
	case "-u":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeSetuid != 0 })
	case "-k":
		return mode(func(m fs.FileMode) bool { return m&fs.ModeSticky != 0 })
	case "-r":
		return mode(func(m fs.FileMode) bool { return m.Perm()&0o444 != 0 })
	case "-w":
		return mode(func(m fs.FileMode) bool { return m.Perm()&0o222 != 0 })
	case "-x":
		return mode(func(m fs.FileMode) bool { return m.Perm()&0o111 != 0 })
	case "-O", "-G", "-N":
		_, err := s.stat(x)

		return err == nil, nil
	case "-s":
		fi, err := s.stat(x)

		return err == nil && fi.Size() > 0, nil
	case "-h", "-L":
		fi, err := s.lstat(x)

		return err == nil && fi.Mode()&fs.ModeSymlink != 0, nil
	case "-t":
		return s.terminal(atoi(x)), nil
	case "-v":
		_, ok := s.env.Get(x)

		return ok, nil
	case "-o":
		on, ok := s.option(x)

		return ok && on, nil
	}

	return false, errTestSyntax
}

func (s *Shell) binaryTest(op, x, y string) (bool, error) {
	switch op {
	case "=", "==":
		return x == y, nil
	case "!=":
		return x != y, nil
	case "<":
		return x < y, nil
	case ">":
		return x > y, nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		a, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return false, errors.New(x + ": integer expression expected")
		}

		b, err := strconv.ParseInt(strings.TrimSpace(y), 10, 64)
		if err != nil {
			return false, errors.New(y + ": integer expression expected")
		}

		return compareInts(op, a, b), nil
	case "-nt", "-ot":
		a, aerr := s.stat(x)
		b, berr := s.stat(y)

		if op == "-ot" {
			a, b, aerr, berr = b, a, berr, aerr
		}

		switch {
		case aerr != nil:
			return false, nil
		case berr != nil:
			return true, nil
		}

		return a.ModTime().After(b.ModTime()), nil
	case "-ef":
		a, aerr := s.stat(x)
		b, berr := s.stat(y)

		return aerr == nil && berr == nil && os.SameFile(a, b), nil
	}

	return false, errTestSyntax
}

// terminal reports whether descriptor fd of the current streams is a
// terminal.
func (s *Shell) terminal(fd int) bool {
	var v any

	switch fd {
	case 0:
		v = s.io.in
	case 1:
		v = s.io.out
	case 2:
		v = s.io.err
	default:
		return false
	}

	f, ok := v.(*os.File)

	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// testArgs evaluates the arguments of the test builtin.
func (s *Shell) testArgs(args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			ok, err := s.testArgs(args[1:])

			return !ok, err
		}

		if isUnaryTest(args[0]) {
			return s.unaryTest(args[0], args[1])
		}

		return false, errors.New(args[0] + ": unary operator expected")
	case 3:
		if isBinaryTest(args[1]) {
			return s.binaryTest(args[1], args[0], args[2])
		}

		switch args[1] {
		case "-a":
			return args[0] != "" && args[2] != "", nil
		case "-o":
			return args[0] != "" || args[2] != "", nil
		}

		if args[0] == "!" {
			ok, err := s.testArgs(args[1:])

			return !ok, err
		}

		if args[0] == "(" && args[2] == ")" {
			return args[1] != "", nil
		}

		return false, errors.New(args[1] + ": binary operator expected")
	case 4:
		if args[0] == "!" {
			ok, err := s.testArgs(args[1:])

			return !ok, err
		}

		if args[0] == "(" && args[3] == ")" {
			return s.testArgs(args[1:3])
		}
	}

	p := &testParser{s: s, args: args}

	ok, err := p.or()
	if err == nil && p.i < len(args) {
		err = errors.New(args[p.i] + ": unexpected argument")
	}

	return ok, err
}

// testParser evaluates long test expressions, where -a binds tighter
// than -o.
type testParser struct {
	s    *Shell
	args []string
	i    int
}

func (p *testParser) peek() string {
	if p.i < len(p.args) {
		return p.args[p.i]
	}

	return ""
}

func (p *testParser) or() (bool, error) {
	l, err := p.and()
	if err != nil {
		return false, err
	}

	for p.peek() == "-o" {
		p.i++

		r, err := p.and()
		if err != nil {
			return false, err
		}

		l = l || r
	}

	return l, nil
}

func (p *testParser) and() (bool, error) {
	l, err := p.not()
	if err != nil {
		return false, err
	}

	for p.peek() == "-a" {
		p.i++

		r, err := p.not()
		if err != nil {
			return false, err
		}

		l = l && r
	}

	return l, nil
}

func (p *testParser) not() (bool, error) {
	if p.peek() == "!" {
		p.i++

		ok, err := p.not()

		return !ok, err
	}

	return p.primary()
}

func (p *testParser) primary() (bool, error) {
	rest := len(p.args) - p.i

	switch {
	case rest <= 0:
		return false, errors.New("argument expected")
	case p.peek() == "(":
		p.i++

		ok, err := p.or()
		if err != nil {
			return false, err
		}

		if p.peek() != ")" {
			return false, errors.New("')' expected")
		}

		p.i++

		return ok, nil
	case rest >= 3 && isBinaryTest(p.args[p.i+1]):
		x, op, y := p.args[p.i], p.args[p.i+1], p.args[p.i+2]
		p.i += 3

		return p.s.binaryTest(op, x, y)
	case rest >= 2 && isUnaryTest(p.peek()):
		op, x := p.args[p.i], p.args[p.i+1]
		p.i += 2

		return p.s.unaryTest(op, x)
	}

	x := p.peek()
	p.i++

	return x != "", nil
}
