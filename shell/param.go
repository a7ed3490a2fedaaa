package shell

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"mvdan.cc/sh/v3/pattern"

	"github.com/ardnew/shgo/syntax"
)

// paramValue is the result of a parameter expansion. With at or star set
// the value is the list of positional parameters or array elements.
type paramValue struct {
	str  string
	list []string
	at   bool
	star bool
	set  bool
}

func (v paramValue) empty() bool {
	if v.at || v.star {
		return len(v.list) == 0 || (len(v.list) == 1 && v.list[0] == "")
	}

	return v.str == ""
}

func (v paramValue) each(fn func(string) string) paramValue {
	if v.at || v.star {
		list := make([]string, len(v.list))
		for i, s := range v.list {
			list[i] = fn(s)
		}

		v.list = list

		return v
	}

	v.str = fn(v.str)

	return v
}

// param evaluates a parameter expansion.
func (s *Shell) param(ctx context.Context, p *Param) (paramValue, error) {
	name := p.Name

	if p.Names != 0 {
		return s.names(p), nil
	}

	if p.Indirect && !p.Length {
		ref, _ := s.env.Value(name)
		if !validName(ref) && !isSpecial(ref) {
			return paramValue{}, ErrBadSubst.Wrap(errors.New("${!" + name + "}"))
		}

		name = ref
	}

	v, err := s.lookup(ctx, name, p.Index)
	if err != nil {
		return paramValue{}, err
	}

	if p.Length {
		if v.at || v.star {
			return paramValue{str: strconv.Itoa(len(v.list)), set: true}, nil
		}

		if !v.set && s.opts.Nounset {
			return paramValue{}, unbound(name)
		}

		return paramValue{str: strconv.Itoa(utf8.RuneCountInString(v.str)), set: true}, nil
	}

	switch p.Op {
	case syntax.OpNone:
		if !v.set && s.opts.Nounset && name != "@" && name != "*" {
			return paramValue{}, unbound(name)
		}

		return v, nil
	case syntax.OpDefault, syntax.OpDefaultUnset:
		if !v.set || (p.Op == syntax.OpDefault && v.empty()) {
			arg, err := s.literal(ctx, p.Arg)

			return paramValue{str: arg, set: true}, err
		}

		return v, nil
	case syntax.OpAssign, syntax.OpAssignUnset:
		if !v.set || (p.Op == syntax.OpAssign && v.empty()) {
			arg, err := s.literal(ctx, p.Arg)
			if err != nil {
				return paramValue{}, err
			}

			if !validName(name) {
				return paramValue{}, ErrBadSubst.Wrap(errors.New("$" + name + ": cannot assign in this way"))
			}

			if err := s.assignIndex(ctx, name, p.Index, arg); err != nil {
				return paramValue{}, err
			}

			return paramValue{str: arg, set: true}, nil
		}

		return v, nil
	case syntax.OpError, syntax.OpErrorUnset:
		if !v.set || (p.Op == syntax.OpError && v.empty()) {
			msg, err := s.literal(ctx, p.Arg)
			if err != nil {
				return paramValue{}, err
			}

			if msg == "" {
				msg = "parameter null or not set"
			}

			return paramValue{}, ErrUnbound.Wrap(errors.New(name + ": " + msg))
		}

		return v, nil
	case syntax.OpAlt, syntax.OpAltUnset:
		if v.set && !(p.Op == syntax.OpAlt && v.empty()) {
			arg, err := s.literal(ctx, p.Arg)

			return paramValue{str: arg, set: true}, err
		}

		return paramValue{set: true}, nil
	}

	if !v.set && s.opts.Nounset {
		return paramValue{}, unbound(name)
	}

	switch p.Op {
	case syntax.OpRemSmallPrefix, syntax.OpRemLargePrefix,
		syntax.OpRemSmallSuffix, syntax.OpRemLargeSuffix:
		pat, err := s.pattern(ctx, p.Arg)
		if err != nil {
			return paramValue{}, err
		}

		return v.each(func(str string) string { return s.trim(p.Op, pat, str) }), nil
	case syntax.OpReplace, syntax.OpReplaceAll, syntax.OpReplacePrefix, syntax.OpReplaceSuffix:
		pat, err := s.pattern(ctx, p.Arg)
		if err != nil {
			return paramValue{}, err
		}

		repl, err := s.literal(ctx, p.Repl)
		if err != nil {
			return paramValue{}, err
		}

		return v.each(func(str string) string { return s.replace(p.Op, pat, repl, str) }), nil
	case syntax.OpUpperFirst, syntax.OpUpperAll, syntax.OpLowerFirst, syntax.OpLowerAll:
		pat := "?"

		if p.Arg != nil {
			var err error
			if pat, err = s.pattern(ctx, p.Arg); err != nil {
				return paramValue{}, err
			}
		}

		return v.each(func(str string) string { return s.casemap(p.Op, pat, str) }), nil
	case syntax.OpSlice:
		return s.slice(ctx, v, p)
	}

	return paramValue{}, ErrBadSubst.With(slog.String("op", p.Op.String()))
}

// names lists the set variables whose names begin with p.Name.
func (s *Shell) names(p *Param) paramValue {
	var list []string

	for _, name := range s.env.Names() {
		if !strings.HasPrefix(name, p.Name) {
			continue
		}

		if _, ok := s.env.Value(name); ok {
			list = append(list, name)
		}
	}

	return paramValue{list: list, at: p.Names == '@', star: p.Names == '*', set: true}
}

func unbound(name string) error {
	return ErrUnbound.Wrap(errors.New(name))
}

func isSpecial(name string) bool {
	switch name {
	case "@", "*", "#", "?", "$", "!", "-", "0":
		return true
	}

	_, err := strconv.Atoi(name)

	return err == nil
}

// lookup returns the value of a variable, special parameter or array
// element.
func (s *Shell) lookup(ctx context.Context, name string, index *Word) (paramValue, error) {
	switch name {
	case "@":
		return paramValue{list: s.params, at: true, set: true}, nil
	case "*":
		return paramValue{list: s.params, star: true, set: true}, nil
	case "#":
		return paramValue{str: strconv.Itoa(len(s.params)), set: true}, nil
	case "?":
		return paramValue{str: strconv.Itoa(s.status), set: true}, nil
	case "$":
		return paramValue{str: strconv.Itoa(os.Getpid()), set: true}, nil
	case "!":
		if s.lastBg == 0 {
			return paramValue{}, nil
		}

		return paramValue{str: strconv.Itoa(s.lastBg), set: true}, nil
	case "-":
		return paramValue{str: s.flags(), set: true}, nil
	case "0":
		return paramValue{str: s.name, set: true}, nil
	}

	if n, err := strconv.Atoi(name); err == nil {
		if n < 1 || n > len(s.params) {
			return paramValue{}, nil
		}

		return paramValue{str: s.params[n-1], set: true}, nil
	}

	switch name {
	case "RANDOM":
		s.shared.mu.Lock()
		n := s.shared.rand.IntN(32768)
		s.shared.mu.Unlock()

		return paramValue{str: strconv.Itoa(n), set: true}, nil
	case "SECONDS":
		return paramValue{str: strconv.Itoa(int(s.since().Seconds())), set: true}, nil
	}

	v, ok := s.env.Get(name)

	if index == nil {
		if !ok {
			return paramValue{}, nil
		}

		if v.Array && len(v.List) == 0 {
			return paramValue{}, nil
		}

		return paramValue{str: v.String(), set: true}, nil
	}

	idx, err := s.literal(ctx, index)
	if err != nil {
		return paramValue{}, err
	}

	switch idx {
	case "@":
		if !ok {
			return paramValue{at: true}, nil
		}

		return paramValue{list: v.Values(), at: true, set: true}, nil
	case "*":
		if !ok {
			return paramValue{star: true}, nil
		}

		return paramValue{list: v.Values(), star: true, set: true}, nil
	}

	i, err := s.arithValue(ctx, idx, 0)
	if err != nil {
		return paramValue{}, err
	}

	if !ok {
		return paramValue{}, nil
	}

	vals := v.Values()
	if i < 0 {
		i += int64(len(vals))
	}

	if i < 0 || i >= int64(len(vals)) {
		return paramValue{}, nil
	}

	return paramValue{str: vals[i], set: true}, nil
}

// assignIndex assigns a scalar, or an element when index is set.
func (s *Shell) assignIndex(ctx context.Context, name string, index *Word, value string) error {
	if index == nil {
		return s.env.Set(name, value)
	}

	idx, err := s.literal(ctx, index)
	if err != nil {
		return err
	}

	i, err := s.arithValue(ctx, idx, 0)
	if err != nil {
		return err
	}

	return s.env.SetIndex(name, int(i), value)
}

// trim removes the shortest or longest prefix or suffix of str matching pat.
func (s *Shell) trim(op syntax.ParamOp, pat, str string) string {
	switch op {
	case syntax.OpRemSmallPrefix:
		for i := 0; i <= len(str); i++ {
			if s.match(pat, str[:i]) {
				return str[i:]
			}
		}
	case syntax.OpRemLargePrefix:
		for i := len(str); i >= 0; i-- {
			if s.match(pat, str[:i]) {
				return str[i:]
			}
		}
	case syntax.OpRemSmallSuffix:
		for i := len(str); i >= 0; i-- {
			if s.match(pat, str[i:]) {
				return str[:i]
			}
		}
	case syntax.OpRemLargeSuffix:
		for i := 0; i <= len(str); i++ {
			if s.match(pat, str[i:]) {
				return str[:i]
			}
		}
	}

	return str
}

// replace substitutes the longest matches of pat in str with repl.
func (s *Shell) replace(op syntax.ParamOp, pat, repl, str string) string {
	if pat == "" {
		return str
	}

	switch op {
	case syntax.OpReplacePrefix:
		for i := len(str); i >= 0; i-- {
			if s.match(pat, str[:i]) {
				return repl + str[i:]
			}
		}

		return str
	case syntax.OpReplaceSuffix:
		for i := 0; i <= len(str); i++ {
			if s.match(pat, str[i:]) {
				return str[:i] + repl
			}
		}

		return str
	}

	var sb strings.Builder

	for i := 0; i < len(str); {
		j := -1

		for k := len(str); k > i; k-- {
			if s.match(pat, str[i:k]) {
				j = k

				break
			}
		}

		if j < 0 {
			_, size := utf8.DecodeRuneInString(str[i:])
			sb.WriteString(str[i : i+size])
			i += size

			continue
		}

		sb.WriteString(repl)
		i = j

		if op == syntax.OpReplace {
			sb.WriteString(str[i:])

			return sb.String()
		}
	}

	return sb.String()
}

// casemap converts the case of the first or every character matching pat.
func (s *Shell) casemap(op syntax.ParamOp, pat, str string) string {
	upper := op == syntax.OpUpperFirst || op == syntax.OpUpperAll
	all := op == syntax.OpUpperAll || op == syntax.OpLowerAll
	re := s.regexp(pat, pattern.EntireString)

	var sb strings.Builder

	for i, r := range str {
		if (all || i == 0) && re.MatchString(string(r)) {
			if upper {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

// slice is ${name:offset[:length]}. Offsets count characters, or elements
// of a list; negative values count from the end.
func (s *Shell) slice(ctx context.Context, v paramValue, p *Param) (paramValue, error) {
	off, err := s.arithWordValue(ctx, p.Arg)
	if err != nil {
		return paramValue{}, err
	}

	var (
		length int64
		limit  = p.Repl != nil
	)

	if limit {
		if length, err = s.arithWordValue(ctx, p.Repl); err != nil {
			return paramValue{}, err
		}
	}

	bounds := func(n int) (int, int, bool) {
		start := off
		if start < 0 {
			start += int64(n)
		}

		if start < 0 || start > int64(n) {
			return 0, 0, false
		}

		end := int64(n)

		if limit {
			if length < 0 {
				end = int64(n) + length
			} else {
				end = min(start+length, int64(n))
			}
		}

		if end < start {
			return 0, 0, false
		}

		return int(start), int(end), true
	}

	if v.at || v.star {
		list := v.list

		// The positional parameters are indexed from $0.
		if p.Index == nil && (p.Name == "@" || p.Name == "*") {
			list = append([]string{s.name}, list...)
		}

		start, end, ok := bounds(len(list))
		if !ok {
			v.list = nil

			return v, nil
		}

		v.list = list[start:end]

		return v, nil
	}

	runes := []rune(v.str)

	start, end, ok := bounds(len(runes))
	if !ok {
		return paramValue{set: v.set}, nil
	}

	v.str = string(runes[start:end])

	return v, nil
}

func (s *Shell) arithWordValue(ctx context.Context, w *Word) (int64, error) {
	text, err := s.literal(ctx, w)
	if err != nil {
		return 0, err
	}

	return s.arithValue(ctx, text, 0)
}

// flags returns the single-letter options in effect, as "$-" shows them.
func (s *Shell) flags() string {
	var sb strings.Builder

	for _, f := range []struct {
		c  byte
		on bool
	}{
		{'e', s.opts.Errexit},
		{'f', s.opts.Noglob},
		{'u', s.opts.Nounset},
		{'x', s.opts.Xtrace},
	} {
		if f.on {
			sb.WriteByte(f.c)
		}
	}

	return sb.String()
}
