package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"mvdan.cc/sh/v3/syntax"
)

// quote returns s quoted so that the shell reads it back unchanged.
func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return strconv.Quote(s)
	}

	return q
}

// printf formats its arguments like printf(1). The format is reused while
// arguments remain.
func (s *Shell) printf(_ context.Context, args []string) error {
	args = args[1:]

	var dest string

	if len(args) > 1 && args[0] == "-v" {
		dest, args = args[1], args[2:]
	}

	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}

	if len(args) == 0 {
		s.usage("printf", errors.New("usage: printf [-v var] format [arguments]"))

		return nil
	}

	var sb strings.Builder

	p := &printer{w: &sb, args: args[1:]}

	for {
		consumed := len(p.args)

		if p.run(args[0]) || len(p.args) == 0 || len(p.args) == consumed {
			break
		}
	}

	for _, msg := range p.errs {
		s.errorf("printf: %s", msg)
	}

	s.status = 0
	if len(p.errs) > 0 {
		s.status = 1
	}

	if p.fatal {
		s.status = 1
	}

	if dest != "" {
		return s.env.Set(dest, sb.String())
	}

	_, _ = io.WriteString(s.io.out, sb.String())

	return nil
}

type printer struct {
	w     *strings.Builder
	args  []string
	errs  []string
	fatal bool
}

func (p *printer) next() (string, bool) {
	if len(p.args) == 0 {
		return "", false
	}

	a := p.args[0]
	p.args = p.args[1:]

	return a, true
}

// run writes one pass of format and reports whether output must stop.
func (p *printer) run(format string) bool {
	for i := 0; i < len(format); i++ {
		c := format[i]

		switch c {
		case '\\':
			text, n, stop := unescapeAt(format, i, false)
			p.w.WriteString(text)
			i += n - 1

			if stop {
				return true
			}
		case '%':
			n, stop := p.directive(format[i:])
			i += n - 1

			if stop {
				return true
			}
		default:
			p.w.WriteByte(c)
		}
	}

	return false
}

// directive formats the conversion at the start of f, returning its length.
func (p *printer) directive(f string) (int, bool) {
	if len(f) > 1 && f[1] == '%' {
		p.w.WriteByte('%')

		return 2, false
	}

	i := 1

	var spec strings.Builder

	spec.WriteByte('%')

	for i < len(f) && strings.IndexByte("-+ #0'", f[i]) >= 0 {
		if f[i] != '\'' {
			spec.WriteByte(f[i])
		}

		i++
	}

	star := func() {
		a, _ := p.next()
		n, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil && a != "" {
			p.errs = append(p.errs, a+": invalid number")
		}

		spec.WriteString(strconv.Itoa(n))
		i++
	}

	if i < len(f) && f[i] == '*' {
		star()
	} else {
		for i < len(f) && f[i] >= '0' && f[i] <= '9' {
			spec.WriteByte(f[i])
			i++
		}
	}

	if i < len(f) && f[i] == '.' {
		spec.WriteByte('.')
		i++

		if i < len(f) && f[i] == '*' {
			star()
		} else {
			for i < len(f) && f[i] >= '0' && f[i] <= '9' {
				spec.WriteByte(f[i])
				i++
			}
		}
	}

	// Length modifiers are accepted and ignored.
	for i < len(f) && strings.IndexByte("hlLjzt", f[i]) >= 0 {
		i++
	}

	if i >= len(f) {
		p.errs = append(p.errs, "`"+f+"': missing format character")
		p.fatal = true

		return i, true
	}

	verb := f[i]
	i++

	arg, _ := p.next()

	switch verb {
	case 's':
		fmt.Fprintf(p.w, spec.String()+"s", arg)
	case 'q':
		fmt.Fprintf(p.w, spec.String()+"s", quote(arg))
	case 'b':
		text, stop := unescape(arg, true)
		fmt.Fprintf(p.w, spec.String()+"s", text)

		if stop {
			return i, true
		}
	case 'c':
		if arg != "" {
			r, _ := utf8.DecodeRuneInString(arg)
			fmt.Fprintf(p.w, spec.String()+"c", r)
		}
	case 'd', 'i':
		fmt.Fprintf(p.w, spec.String()+"d", p.integer(arg))
	case 'u':
		fmt.Fprintf(p.w, spec.String()+"d", uint64(p.integer(arg)))
	case 'o', 'x', 'X':
		fmt.Fprintf(p.w, spec.String()+string(verb), uint64(p.integer(arg)))
	case 'e', 'E', 'f', 'g', 'G':
		fmt.Fprintf(p.w, spec.String()+string(verb), p.float(arg))
	case 'F':
		fmt.Fprintf(p.w, spec.String()+"f", p.float(arg))
	default:
		p.errs = append(p.errs, "`"+string(verb)+"': invalid format character")
		p.fatal = true

		return i, true
	}

	return i, false
}

// charCode returns the code of the character after a leading quote, as
// printf treats "'a" as 97.
func charCode(a string) (int64, bool) {
	if len(a) < 2 || (a[0] != '\'' && a[0] != '"') {
		return 0, false
	}

	r, _ := utf8.DecodeRuneInString(a[1:])

	return int64(r), true
}

func (p *printer) integer(a string) int64 {
	if n, ok := charCode(a); ok {
		return n
	}

	a = strings.TrimSpace(a)
	if a == "" {
		return 0
	}

	n, err := strconv.ParseInt(a, 0, 64)
	if err != nil {
		if u, uerr := strconv.ParseUint(a, 0, 64); uerr == nil {
			return int64(u)
		}

		p.errs = append(p.errs, a+": invalid number")
	}

	return n
}

func (p *printer) float(a string) float64 {
	if n, ok := charCode(a); ok {
		return float64(n)
	}

	a = strings.TrimSpace(a)
	if a == "" {
		return 0
	}

	f, err := strconv.ParseFloat(a, 64)
	if err != nil {
		p.errs = append(p.errs, a+": invalid number")
	}

	return f
}

// unescape interprets backslash escapes in s. With echo set, octal escapes
// take the "\0nnn" form of echo -e and %b; \c reports that output stops.
func unescape(s string, echo bool) (string, bool) {
	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])

			continue
		}

		text, n, stop := unescapeAt(s, i, echo)
		sb.WriteString(text)

		if stop {
			return sb.String(), true
		}

		i += n - 1
	}

	return sb.String(), false
}

// unescapeAt decodes the escape starting at s[i], returning its text and
// length.
func unescapeAt(s string, i int, echo bool) (string, int, bool) {
	if i+1 >= len(s) {
		return "\\", 1, false
	}

	switch c := s[i+1]; c {
	case 'a':
		return "\a", 2, false
	case 'b':
		return "\b", 2, false
	case 'c':
		return "", 2, true
	case 'e', 'E':
		return "\x1b", 2, false
	case 'f':
		return "\f", 2, false
	case 'n':
		return "\n", 2, false
	case 'r':
		return "\r", 2, false
	case 't':
		return "\t", 2, false
	case 'v':
		return "\v", 2, false
	case '\\':
		return "\\", 2, false
	case '"', '\'':
		if !echo {
			return string(c), 2, false
		}
	case 'x':
		return numeric(s, i, 2, 2, 16)
	case 'u':
		return numeric(s, i, 2, 4, 16)
	case 'U':
		return numeric(s, i, 2, 8, 16)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		if echo {
			if c != '0' {
				break
			}

			return numeric(s, i, 2, 3, 8)
		}

		return numeric(s, i, 1, 3, 8)
	}

	return s[i : i+2], 2, false
}

// numeric decodes up to width digits in base starting at s[i+skip].
func numeric(s string, i, skip, width, base int) (string, int, bool) {
	j := i + skip

	for j < len(s) && j < i+skip+width && isDigit(s[j], base) {
		j++
	}

	if j == i+skip {
		if base == 8 {
			return "\x00", skip, false
		}

		return s[i:j], j - i, false
	}

	n, _ := strconv.ParseUint(s[i+skip:j], base, 32)

	if base == 8 || width == 2 {
		return string([]byte{byte(n)}), j - i, false
	}

	return string(rune(n)), j - i, false
}

func isDigit(c byte, base int) bool {
	switch base {
	case 8:
		return c >= '0' && c <= '7'
	case 16:
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}

	return false
}
