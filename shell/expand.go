package shell

import (
	"context"
	osuser "os/user"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/pattern"
)

// fragment is a piece of an expanded field. Quoted text takes no part in
// globbing or pattern matching.
type fragment struct {
	text   string
	quoted bool
}

// expander accumulates the fields of one word.
type expander struct {
	s   *Shell
	ctx context.Context
	ifs string
	// join disables field splitting: multiple values are joined with a
	// space, as in assignments and here-documents.
	join bool

	fields [][]fragment
	cur    []fragment
	// open is set once the current field exists, even if it is empty.
	open bool
}

func (s *Shell) expander(ctx context.Context, join bool) *expander {
	ifs, ok := s.env.Value("IFS")
	if !ok {
		ifs = " \t\n"
	}

	return &expander{s: s, ctx: ctx, ifs: ifs, join: join}
}

// fields expands words into command arguments: brace expansion, parameter,
// command and arithmetic expansion, field splitting and globbing.
func (s *Shell) fields(ctx context.Context, words ...*Word) ([]string, error) {
	var out []string

	for _, w := range words {
		for _, b := range braces(w) {
			e := s.expander(ctx, false)
			if err := e.parts(b.Parts, false); err != nil {
				return nil, err
			}

			for _, f := range e.done() {
				out = append(out, s.glob(f)...)
			}
		}
	}

	return out, nil
}

// literal expands w to a single string without splitting or globbing.
func (s *Shell) literal(ctx context.Context, w *Word) (string, error) {
	if w == nil {
		return "", nil
	}

	e := s.expander(ctx, true)
	if err := e.parts(w.Parts, false); err != nil {
		return "", err
	}

	var sb strings.Builder

	for _, f := range e.done() {
		for _, frag := range f {
			sb.WriteString(frag.text)
		}
	}

	return sb.String(), nil
}

// pattern expands w to a shell pattern in which quoted text matches
// literally.
func (s *Shell) pattern(ctx context.Context, w *Word) (string, error) {
	if w == nil {
		return "", nil
	}

	e := s.expander(ctx, true)
	if err := e.parts(w.Parts, false); err != nil {
		return "", err
	}

	var sb strings.Builder

	for _, f := range e.done() {
		for _, frag := range f {
			if frag.quoted {
				sb.WriteString(pattern.QuoteMeta(frag.text, 0))
			} else {
				sb.WriteString(frag.text)
			}
		}
	}

	return sb.String(), nil
}

// match reports whether name matches the whole of shell pattern pat.
func (s *Shell) match(pat, name string) bool {
	re := s.regexp(pat, pattern.EntireString)

	return re != nil && re.MatchString(name)
}

func (s *Shell) regexp(pat string, mode pattern.Mode) *regexp.Regexp {
	key := strconv.Itoa(int(mode)) + "\x00" + pat

	s.shared.mu.Lock()
	re, ok := s.shared.patterns[key]
	s.shared.mu.Unlock()

	if ok {
		return re
	}

	expr, err := pattern.Regexp(pat, mode|pattern.NoGlobStar)
	if err == nil {
		re, err = regexp.Compile(expr)
	}

	if err != nil {
		// An invalid pattern matches only itself.
		re = regexp.MustCompile("^" + regexp.QuoteMeta(pat) + "$")
	}

	s.shared.mu.Lock()
	s.shared.patterns[key] = re
	s.shared.mu.Unlock()

	return re
}

func (e *expander) done() [][]fragment {
	if e.open || len(e.cur) > 0 {
		e.flush()
	}

	return e.fields
}

func (e *expander) flush() {
	e.fields = append(e.fields, e.cur)
	e.cur, e.open = nil, false
}

func (e *expander) add(text string, quoted bool) {
	e.cur = append(e.cur, fragment{text: text, quoted: quoted})
	e.open = true
}

// split adds an unquoted expansion result, breaking it into fields at IFS
// characters. Runs of IFS whitespace separate fields; every other IFS
// character delimits exactly one field, possibly empty.
func (e *expander) split(v string) {
	if e.join || e.ifs == "" {
		if v != "" {
			e.add(v, false)
		}

		return
	}

	isIFS := func(c byte) bool { return strings.IndexByte(e.ifs, c) >= 0 }
	isSpace := func(c byte) bool { return isIFS(c) && (c == ' ' || c == '\t' || c == '\n') }

	for i := 0; i < len(v); {
		if !isIFS(v[i]) {
			j := i
			for j < len(v) && !isIFS(v[j]) {
				j++
			}

			e.add(v[i:j], false)
			i = j

			continue
		}

		hard := false

		for i < len(v) && isSpace(v[i]) {
			i++
		}

		if i < len(v) && isIFS(v[i]) && !isSpace(v[i]) {
			hard = true
			i++

			for i < len(v) && isSpace(v[i]) {
				i++
			}
		}

		if e.open || hard {
			e.flush()
		}
	}
}

// values adds the elements of "$@" or an array. Quoted, each element is a
// separate field; unquoted, each element is split.
func (e *expander) values(vals []string, quoted bool) {
	if e.join {
		e.add(strings.Join(vals, " "), quoted)

		return
	}

	for i, v := range vals {
		if i > 0 {
			e.flush()
		}

		if quoted {
			e.add(v, true)
		} else {
			e.split(v)
		}
	}
}

func (e *expander) parts(parts []Part, quoted bool) error {
	for _, p := range parts {
		if err := e.part(p, quoted); err != nil {
			return err
		}
	}

	return nil
}

func (e *expander) part(p Part, quoted bool) error {
	switch p := p.(type) {
	case *Lit:
		e.add(p.Text, quoted || p.Quoted)
	case *Quoted:
		// "$@" with no parameters produces no field at all.
		if !(len(p.Parts) == 1 && isAtParam(p.Parts[0])) {
			e.open = true
		}

		return e.parts(p.Parts, true)
	case *Param:
		v, err := e.s.param(e.ctx, p)
		if err != nil {
			return err
		}

		switch {
		case v.at:
			e.values(v.list, quoted)
		case v.star && quoted:
			sep := ""
			if e.ifs != "" {
				sep = e.ifs[:1]
			}

			e.add(strings.Join(v.list, sep), true)
		case v.star:
			e.values(v.list, false)
		case quoted:
			e.add(v.str, true)
		default:
			e.split(v.str)
		}
	case *Subst:
		out, err := e.s.subst(e.ctx, p.Body)
		if err != nil {
			return err
		}

		if quoted {
			e.add(out, true)
		} else {
			e.split(out)
		}
	case *Arith:
		n, err := e.s.arith(e.ctx, p.X)
		if err != nil {
			return err
		}

		e.add(strconv.FormatInt(n, 10), quoted)
	case *Tilde:
		e.add(e.s.home(p.User), true)
	case *EmbedPath:
		path, err := e.s.embedFile(p.Key)
		if err != nil {
			return err
		}

		e.add(path, true)
	case *RuntimePath:
		return e.parts(p.Word.Parts, quoted)
	case *Brace:
		// Braces inside quotes or after expansion are literal text.
		e.add(braceText(p), quoted)
	}

	return nil
}

func isAtParam(p Part) bool {
	x, ok := p.(*Param)
	if ok && x.Names == '@' {
		return true
	}

	if !ok || x.Length || x.Indirect || x.Op != 0 {
		return false
	}

	if x.Name == "@" {
		return true
	}

	if x.Index != nil && len(x.Index.Parts) == 1 {
		if l, ok := x.Index.Parts[0].(*Lit); ok && l.Text == "@" {
			return true
		}
	}

	return false
}

// subst runs body in a subshell and returns its output without trailing
// newlines.
func (s *Shell) subst(ctx context.Context, body *Block) (string, error) {
	var sb strings.Builder

	sub := s.fork()
	sub.io.out = &sb

	err := sub.block(ctx, body)
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}

	s.status = sub.code(err)

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (s *Shell) home(user string) string {
	if user == "" {
		v, _ := s.env.Value("HOME")

		return v
	}

	u, err := osuser.Lookup(user)
	if err != nil {
		return "~" + user
	}

	return u.HomeDir
}

// glob expands the unquoted pattern characters of field f against the file
// system. A field without matches, or with globbing disabled, is returned
// as is.
func (s *Shell) glob(f []fragment) []string {
	var (
		text strings.Builder
		pat  strings.Builder
		meta bool
	)

	for _, frag := range f {
		text.WriteString(frag.text)

		if frag.quoted {
			pat.WriteString(pattern.QuoteMeta(frag.text, 0))

			continue
		}

		pat.WriteString(frag.text)

		if pattern.HasMeta(frag.text, 0) {
			meta = true
		}
	}

	if !meta || s.opts.Noglob {
		return []string{text.String()}
	}

	p := pat.String()

	abs := filepath.IsAbs(p)
	if !abs {
		p = filepath.Join(s.dir, p)
	}

	matches, err := afero.Glob(s.fs, p)
	if err != nil || len(matches) == 0 {
		return []string{text.String()}
	}

	dot := strings.HasPrefix(filepath.Base(pat.String()), ".")

	out := make([]string, 0, len(matches))

	for _, m := range matches {
		if !dot && strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}

		if !abs {
			if rel, err := filepath.Rel(s.dir, m); err == nil {
				m = rel
			}
		}

		out = append(out, m)
	}

	if len(out) == 0 {
		return []string{text.String()}
	}

	slices.Sort(out)

	return out
}

// braces performs brace expansion, returning one word per alternative.
func braces(w *Word) []*Word {
	i := slices.IndexFunc(w.Parts, func(p Part) bool {
		_, ok := p.(*Brace)

		return ok
	})
	if i < 0 {
		return []*Word{w}
	}

	b := w.Parts[i].(*Brace)
	head, tail := w.Parts[:i], w.Parts[i+1:]

	var alts [][]Part

	if b.Seq {
		seq, ok := sequence(b)
		if !ok {
			alts = [][]Part{{&Lit{Text: braceText(b)}}}
		}

		for _, v := range seq {
			alts = append(alts, []Part{&Lit{Text: v}})
		}
	} else {
		for _, e := range b.Elems {
			alts = append(alts, e.Parts)
		}
	}

	var out []*Word

	for _, alt := range alts {
		parts := make([]Part, 0, len(head)+len(alt)+len(tail))
		parts = append(parts, head...)
		parts = append(parts, alt...)
		parts = append(parts, tail...)

		out = append(out, braces(&Word{Parts: parts})...)
	}

	return out
}

// sequence expands {from..to[..step]} over integers or single letters.
func sequence(b *Brace) ([]string, bool) {
	if len(b.Elems) < 2 || len(b.Elems) > 3 {
		return nil, false
	}

	lits := make([]string, len(b.Elems))
	for i, e := range b.Elems {
		lits[i] = wordText(e)
	}

	step := 1

	if len(lits) == 3 {
		n, err := strconv.Atoi(lits[2])
		if err != nil {
			return nil, false
		}

		if n < 0 {
			n = -n
		}

		step = max(n, 1)
	}

	from, ferr := strconv.Atoi(lits[0])
	to, terr := strconv.Atoi(lits[1])

	letters := false

	if ferr != nil || terr != nil {
		if len(lits[0]) != 1 || len(lits[1]) != 1 {
			return nil, false
		}

		from, to, letters = int(lits[0][0]), int(lits[1][0]), true
	}

	width := 0

	if !letters {
		for _, l := range lits[:2] {
			t := strings.TrimPrefix(l, "-")
			if len(t) > 1 && t[0] == '0' {
				width = max(width, len(l))
			}
		}
	}

	var out []string

	emit := func(n int) {
		switch {
		case letters:
			out = append(out, string(rune(n)))
		case width > 0:
			s := strconv.Itoa(n)
			neg := strings.HasPrefix(s, "-")
			s = strings.TrimPrefix(s, "-")

			pad := width - len(s)
			if neg {
				pad--
			}

			if pad > 0 {
				s = strings.Repeat("0", pad) + s
			}

			if neg {
				s = "-" + s
			}

			out = append(out, s)
		default:
			out = append(out, strconv.Itoa(n))
		}
	}

	if from <= to {
		for n := from; n <= to; n += step {
			emit(n)
		}
	} else {
		for n := from; n >= to; n -= step {
			emit(n)
		}
	}

	return out, true
}

func braceText(b *Brace) string {
	sep := ","
	if b.Seq {
		sep = ".."
	}

	elems := make([]string, len(b.Elems))
	for i, e := range b.Elems {
		elems[i] = wordText(e)
	}

	return "{" + strings.Join(elems, sep) + "}"
}

// wordText returns the literal text of w, ignoring expansions.
func wordText(w *Word) string {
	var sb strings.Builder

	for _, p := range w.Parts {
		switch p := p.(type) {
		case *Lit:
			sb.WriteString(p.Text)
		case *Quoted:
			sb.WriteString(wordText(&Word{Parts: p.Parts}))
		}
	}

	return sb.String()
}
