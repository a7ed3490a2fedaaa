package syntax

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/pkg"
)

// ErrParse is the root of errors returned by [Parse].
var ErrParse = pkg.NewError("parse")

// ParseOption configures [Parse].
type ParseOption func(*parseConfig)

type parseConfig struct {
	dialect  Dialect
	explicit bool
	logger   log.Logger
}

// WithDialect forces dialect d instead of detecting it.
func WithDialect(d Dialect) ParseOption {
	return func(c *parseConfig) {
		c.dialect = d
		c.explicit = true
	}
}

// WithLogger sets the logger for parse events.
func WithLogger(l log.Logger) ParseOption {
	return func(c *parseConfig) { c.logger = l }
}

// Parse parses one compilation unit. The returned File is never nil; its
// Diagnostics hold every lexical and parse problem found. The error is
// non-nil only when ctx is done before parsing starts.
func Parse(ctx context.Context, name string, src []byte, opts ...ParseOption) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrParse.Wrap(err).With(slog.String("file", name))
	}

	cfg := parseConfig{dialect: DefaultDialect}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	f := &File{Name: name, Dialect: cfg.dialect, Meta: ParseMetadata(src)}

	if !cfg.explicit {
		d, _, err := DetectDialect(name, src)
		if err != nil {
			f.Body = &List{Start: Pos{Line: 1, Col: 1}}
			f.Symbols = NewScope(nil)
			f.Diagnostics.Add(dialectDiag(name, err))

			return f, nil
		}

		f.Dialect = d
	}

	p := newParser(name, src, f.Dialect, Pos{})
	f.Body = p.parseAll()
	f.Diagnostics = p.finish()
	f.Symbols = BuildSymbols(f.Body)

	cfg.logger.Trace("parsed unit",
		slog.String("file", name),
		slog.String("dialect", f.Dialect.String()),
		slog.Int("commands", len(f.Body.Items)),
		slog.Int("diagnostics", len(f.Diagnostics)))

	return f, nil
}

func dialectDiag(name string, err error) diag.Diagnostic {
	d := diag.New(diag.UnsupportedFeature, name, 1, 1, "%s", err.Error())

	var ude *UnsupportedDialectError
	if errors.As(err, &ude) && ude.Suggestion != "" {
		d.Hint = "did you mean " + ude.Suggestion + "?"
	}

	return d
}

type parser struct {
	lx      *Lexer
	tok     Token
	file    string
	dialect Dialect
	diags   diag.List
	hdocs   []*Redirect
}

func newParser(name string, src []byte, d Dialect, base Pos) *parser {
	p := &parser{
		file:    name,
		dialect: d,
		lx:      NewLexer(src, d, WithFileName(name), withBase(base)),
	}
	p.next()

	return p
}

func (p *parser) parseAll() *List {
	start := p.tok.Pos

	l := p.list(func() bool { return false })
	l.Start = start

	return l
}

// finish returns all diagnostics, lexical ones included, sorted by
// position.
func (p *parser) finish() diag.List {
	var all diag.List

	all.Add(p.lx.Diagnostics()...)
	all.Add(p.diags...)
	all.Sort()

	return slices.CompactFunc(all, func(a, b diag.Diagnostic) bool { return a == b })
}

// subParse parses the body of a command or process substitution.
func (p *parser) subParse(body []byte, base Pos) *List {
	sp := newParser(p.file, body, p.dialect, base)
	l := sp.parseAll()
	p.diags.Add(sp.finish()...)

	return l
}

func (p *parser) errorf(pos Pos, format string, args ...any) {
	p.diags.Addf(diag.ParseError, p.file, pos.Line, pos.Col, format, args...)
}

func (p *parser) feature(f Feature, pos Pos) {
	if p.dialect.Supports(f) {
		return
	}

	p.diags.Add(diag.Diagnostic{
		Severity: diag.SeverityWarning,
		Kind:     diag.UnsupportedFeature,
		Message:  f.String() + " is not part of the " + p.dialect.String() + " dialect",
		File:     p.file,
		Line:     pos.Line,
		Column:   pos.Col,
	})
}

// next advances to the next significant token. Comments are dropped and
// heredoc bodies are attached to their redirections in order.
func (p *parser) next() {
	for {
		t := p.lx.Next()

		switch t.Kind {
		case COMMENT:
			continue
		case HEREDOC:
			if len(p.hdocs) > 0 {
				r := p.hdocs[0]
				p.hdocs = p.hdocs[1:]
				p.attachHeredoc(r, t)
			}

			continue
		}

		p.tok = t

		return
	}
}

func (p *parser) attachHeredoc(r *Redirect, t Token) {
	h := r.Hdoc
	h.Start = t.Pos
	h.Raw = t.Text

	if !h.Quoted {
		h.Body = p.wordText(t.Text, t.Pos, modeHeredoc)
	}
}

func (p *parser) isKeyword(words ...string) bool {
	return p.tok.Kind == WORD && p.tok.Keyword && slices.Contains(words, p.tok.Text)
}

func (p *parser) stopAt(words ...string) func() bool {
	return func() bool { return p.isKeyword(words...) }
}

func (p *parser) skipNewlines() {
	for p.tok.Kind == NEWLINE {
		p.next()
	}
}

// expect consumes keyword word closing or continuing the construct opened
// at open. A missing keyword at end of input is reported once at open.
func (p *parser) expect(word, construct string, open Pos) (Pos, bool) {
	if p.isKeyword(word) {
		pos := p.tok.Pos
		p.next()

		return pos, true
	}

	if p.tok.Kind == EOF {
		p.errorf(open, "unterminated %s (missing %q)", construct, word)
	} else {
		p.errorf(p.tok.Pos, "expected %q in %s, found %s", word, construct, p.tok)
	}

	return Pos{}, false
}

// recover discards tokens up to and including the next statement separator,
// or up to a block keyword.
func (p *parser) recover() {
	p.next()

	for {
		switch {
		case p.tok.Kind == EOF:
			return
		case p.tok.Kind == SEMI || p.tok.Kind == NEWLINE || p.tok.Kind == AMP:
			p.next()

			return
		case p.isKeyword("then", "do", "done", "fi", "elif", "else", "esac", "}"):
			return
		}

		p.next()
	}
}

// list parses commands until EOF or stop reports true.
func (p *parser) list(stop func() bool) *List {
	l := &List{Start: p.tok.Pos}

	for {
		p.skipNewlines()

		if p.tok.Kind == EOF || stop() {
			return l
		}

		cmd := p.andOr()
		if cmd == nil {
			p.recover()

			continue
		}

		switch p.tok.Kind {
		case AMP:
			cmd = &Background{X: cmd, Amp: p.tok.Pos}
			p.next()
		case SEMI, NEWLINE:
			p.next()
		case EOF:
		default:
			if !stop() {
				p.errorf(p.tok.Pos, "unexpected %s", p.tok)
				p.recover()
			}
		}

		l.Items = append(l.Items, cmd)
	}
}

func (p *parser) andOr() Command {
	x := p.pipeline()
	if x == nil {
		return nil
	}

	for p.tok.Kind == AND || p.tok.Kind == OR {
		op, pos := p.tok.Kind, p.tok.Pos
		p.next()
		p.skipNewlines()

		y := p.pipeline()
		if y == nil {
			return nil
		}

		x = &AndOr{OpPos: pos, Op: op, X: x, Y: y}
	}

	return x
}

func (p *parser) pipeline() Command {
	pl := &Pipeline{}

	if p.isKeyword("!") {
		pl.Bang, pl.Negated = p.tok.Pos, true
		p.next()
	}

	cmd := p.command()
	if cmd == nil {
		return nil
	}

	pl.Cmds = append(pl.Cmds, cmd)

	for p.tok.Kind == PIPE || p.tok.Kind == PIPEALL {
		pl.Stderr = append(pl.Stderr, p.tok.Kind == PIPEALL)
		p.next()
		p.skipNewlines()

		cmd := p.command()
		if cmd == nil {
			return nil
		}

		pl.Cmds = append(pl.Cmds, cmd)
	}

	if len(pl.Cmds) == 1 && !pl.Negated {
		return pl.Cmds[0]
	}

	return pl
}

func (p *parser) command() Command {
	var cmd Command

	t := p.tok

	switch {
	case t.Kind == WORD && t.Keyword:
		switch t.Text {
		case "if":
			cmd = p.ifClause()
		case "while", "until":
			cmd = p.whileClause()
		case "for":
			cmd = p.forClause()
		case "select":
			cmd = p.selectClause()
		case "case":
			cmd = p.caseClause()
		case "function":
			cmd = p.funcKeyword()
		case "{":
			cmd = p.group()
		case "[[":
			cmd = p.testClause()
		default:
			p.errorf(t.Pos, "unexpected keyword %q", t.Text)

			return nil
		}
	case t.Kind == LPAREN:
		cmd = p.subshell()
	case t.Kind == ARITH:
		cmd = p.arithCmd()
	case t.Kind == WORD || t.Kind == IONUMBER || t.Kind.IsRedirect():
		return p.simpleCommand()
	default:
		p.errorf(t.Pos, "unexpected %s", t)

		return nil
	}

	if cmd == nil {
		return nil
	}

	return p.redirected(cmd)
}

func (p *parser) redirected(cmd Command) Command {
	var redirs []*Redirect

	for p.tok.Kind == IONUMBER || p.tok.Kind.IsRedirect() {
		r := p.redirect()
		if r == nil {
			return nil
		}

		redirs = append(redirs, r)
	}

	if len(redirs) == 0 {
		return cmd
	}

	return &Redirected{X: cmd, Redirs: redirs}
}

func (p *parser) ifClause() Command {
	ic := &IfClause{If: p.tok.Pos}
	p.next()

	ic.Cond = p.list(p.stopAt("then"))
	if _, ok := p.expect("then", "if", ic.If); !ok {
		return nil
	}

	ic.Then = p.list(p.stopAt("elif", "else", "fi"))

	for p.isKeyword("elif") {
		e := &Elif{Elif: p.tok.Pos}
		p.next()

		e.Cond = p.list(p.stopAt("then"))
		if _, ok := p.expect("then", "if", ic.If); !ok {
			return nil
		}

		e.Then = p.list(p.stopAt("elif", "else", "fi"))
		ic.Elifs = append(ic.Elifs, e)
	}

	if p.isKeyword("else") {
		p.next()
		ic.Else = p.list(p.stopAt("fi"))
	}

	fi, ok := p.expect("fi", "if", ic.If)
	if !ok {
		return nil
	}

	ic.Fi = fi

	return ic
}

func (p *parser) whileClause() Command {
	wc := &WhileClause{While: p.tok.Pos, Until: p.tok.Text == "until"}
	construct := p.tok.Text
	p.next()

	wc.Cond = p.list(p.stopAt("do"))
	if _, ok := p.expect("do", construct, wc.While); !ok {
		return nil
	}

	wc.Body = p.list(p.stopAt("done"))

	done, ok := p.expect("done", construct, wc.While)
	if !ok {
		return nil
	}

	wc.Done = done

	return wc
}

// loopHead parses "name [in words...]" followed by a separator, shared by
// for and select.
func (p *parser) loopHead(construct string) (name string, namePos Pos, in bool, items []*Word, ok bool) {
	if p.tok.Kind != WORD || !IsName(p.tok.Text) {
		p.errorf(p.tok.Pos, "expected a variable name after %q, found %s", construct, p.tok)

		return "", Pos{}, false, nil, false
	}

	name, namePos = p.tok.Text, p.tok.Pos
	p.next()
	p.skipNewlines()

	if p.tok.Kind == WORD && p.tok.Text == "in" {
		in = true
		p.next()

		for p.tok.Kind == WORD {
			items = append(items, p.wordFrom(p.tok))
			p.next()
		}

		if p.tok.Kind != SEMI && p.tok.Kind != NEWLINE {
			p.errorf(p.tok.Pos, "unexpected %s in %s word list", p.tok, construct)

			return "", Pos{}, false, nil, false
		}

		p.next()
	} else if p.tok.Kind == SEMI {
		p.next()
	}

	p.skipNewlines()

	return name, namePos, in, items, true
}

func (p *parser) loopBody(construct string, open Pos) (*List, bool) {
	if _, ok := p.expect("do", construct, open); !ok {
		return nil, false
	}

	body := p.list(p.stopAt("done"))

	if _, ok := p.expect("done", construct, open); !ok {
		return nil, false
	}

	return body, true
}

func (p *parser) forClause() Command {
	pos := p.tok.Pos
	p.next()

	if p.tok.Kind == ARITH {
		return p.arithFor(pos)
	}

	fc := &ForClause{For: pos}

	var ok bool

	fc.Name, fc.NamePos, fc.In, fc.Items, ok = p.loopHead("for")
	if !ok {
		return nil
	}

	if fc.Body, ok = p.loopBody("for", pos); !ok {
		return nil
	}

	return fc
}

func (p *parser) arithFor(pos Pos) Command {
	p.feature(ArithFor, pos)

	t := p.tok
	text := []byte(t.Text)
	base := Pos{Offset: t.Pos.Offset + 2, Line: t.Pos.Line, Col: t.Pos.Col + 2}
	src := newSource(text, base)

	var exprs [3]ArithExpr

	start, n := 0, 0

	for n < 3 {
		end := splitTop(text, start, len(text), ';', p.dialect)
		if end < 0 {
			end = len(text)
		}

		exprs[n] = p.arithText(text[start:end], src.posAt(start))
		n++

		if end == len(text) {
			break
		}

		start = end + 1
	}

	if n != 3 {
		p.errorf(t.Pos, "arithmetic for loop needs three expressions")

		return nil
	}

	p.next()

	if p.tok.Kind == SEMI {
		p.next()
	}

	p.skipNewlines()

	body, ok := p.loopBody("for", pos)
	if !ok {
		return nil
	}

	return &ArithForClause{For: pos, Init: exprs[0], Cond: exprs[1], Post: exprs[2], Body: body}
}

func (p *parser) selectClause() Command {
	sc := &SelectClause{Select: p.tok.Pos}
	p.feature(SelectLoop, sc.Select)
	p.next()

	var ok bool

	sc.Name, sc.NamePos, sc.In, sc.Items, ok = p.loopHead("select")
	if !ok {
		return nil
	}

	if sc.Body, ok = p.loopBody("select", sc.Select); !ok {
		return nil
	}

	return sc
}

func (p *parser) caseClause() Command {
	cc := &CaseClause{Case: p.tok.Pos}
	p.next()

	if p.tok.Kind != WORD {
		p.errorf(p.tok.Pos, "expected a word after \"case\", found %s", p.tok)

		return nil
	}

	cc.Word = p.wordFrom(p.tok)
	p.next()
	p.skipNewlines()

	if p.tok.Kind != WORD || p.tok.Text != "in" {
		if p.tok.Kind == EOF {
			p.errorf(cc.Case, "unterminated case (missing \"in\")")
		} else {
			p.errorf(p.tok.Pos, "expected \"in\" in case, found %s", p.tok)
		}

		return nil
	}

	p.next()
	p.skipNewlines()

	isTerm := func() bool {
		k := p.tok.Kind

		return k == DSEMI || k == SEMIAMP || k == DSEMIAMP || p.isKeyword("esac")
	}

	for !p.isKeyword("esac") {
		if p.tok.Kind == EOF {
			p.errorf(cc.Case, "unterminated case (missing \"esac\")")

			return nil
		}

		item := p.caseItem(isTerm)
		if item == nil {
			return nil
		}

		cc.Items = append(cc.Items, item)
		p.skipNewlines()
	}

	cc.Esac = p.tok.Pos
	p.next()

	return cc
}

func (p *parser) caseItem(isTerm func() bool) *CaseItem {
	item := &CaseItem{}

	if p.tok.Kind == LPAREN {
		p.next()
	}

	for {
		if p.tok.Kind != WORD {
			p.errorf(p.tok.Pos, "expected a case pattern, found %s", p.tok)

			return nil
		}

		item.Patterns = append(item.Patterns, p.wordFrom(p.tok))
		p.next()

		if p.tok.Kind != PIPE {
			break
		}

		p.next()
	}

	if p.tok.Kind != RPAREN {
		p.errorf(p.tok.Pos, "expected \")\" after case pattern, found %s", p.tok)

		return nil
	}

	p.next()

	item.Body = p.list(isTerm)

	switch p.tok.Kind {
	case DSEMI, SEMIAMP, DSEMIAMP:
		item.Term, item.TermPos = p.tok.Kind, p.tok.Pos
		p.next()
	default:
		item.Term = DSEMI
	}

	return item
}

func (p *parser) funcKeyword() Command {
	fd := &FuncDecl{Position: p.tok.Pos, Keyword: true}
	p.feature(FunctionKeyword, fd.Position)
	p.next()

	if p.tok.Kind != WORD {
		p.errorf(p.tok.Pos, "expected a function name, found %s", p.tok)

		return nil
	}

	fd.Name = p.tok.Text
	p.next()

	if p.tok.Kind == LPAREN {
		p.next()

		if p.tok.Kind != RPAREN {
			p.errorf(p.tok.Pos, "expected \")\" in function definition, found %s", p.tok)

			return nil
		}

		fd.Parens = true
		p.next()
	}

	return p.funcBody(fd)
}

func (p *parser) funcBody(fd *FuncDecl) Command {
	p.skipNewlines()

	if p.tok.Kind == EOF {
		p.errorf(fd.Position, "unterminated function %q (missing body)", fd.Name)

		return nil
	}

	var body Command

	// "function f {" leaves the brace out of command position.
	if p.tok.Kind == WORD && p.tok.Text == "{" && !p.tok.Quoted {
		if g := p.group(); g != nil {
			body = p.redirected(g)
		}
	} else {
		body = p.command()
	}

	if body == nil {
		return nil
	}

	fd.Body = body

	return fd
}

func (p *parser) group() Command {
	g := &Group{Lbrace: p.tok.Pos}
	p.next()

	g.Body = p.list(p.stopAt("}"))
	if _, ok := p.expect("}", "group", g.Lbrace); !ok {
		return nil
	}

	return g
}

func (p *parser) subshell() Command {
	s := &Subshell{Lparen: p.tok.Pos}
	p.next()

	s.Body = p.list(func() bool { return p.tok.Kind == RPAREN })

	switch p.tok.Kind {
	case RPAREN:
		p.next()

		return s
	case EOF:
		p.errorf(s.Lparen, "unterminated subshell (missing \")\")")
	default:
		p.errorf(p.tok.Pos, "expected \")\", found %s", p.tok)
	}

	return nil
}

func (p *parser) arithCmd() Command {
	t := p.tok
	base := Pos{Offset: t.Pos.Offset + 2, Line: t.Pos.Line, Col: t.Pos.Col + 2}
	ac := &ArithCmd{Left: t.Pos, X: p.arithText([]byte(t.Text), base)}
	p.next()

	if ac.X == nil {
		p.errorf(t.Pos, "empty arithmetic command")

		return nil
	}

	return ac
}

func (p *parser) redirect() *Redirect {
	r := &Redirect{}

	if p.tok.Kind == IONUMBER {
		r.N = p.tok.Text
		p.next()
	}

	r.Op, r.OpPos = p.tok.Kind, p.tok.Pos
	p.next()

	if p.tok.Kind != WORD {
		p.errorf(p.tok.Pos, "expected a word after %s, found %s", r.Op, p.tok)

		return nil
	}

	r.Word = p.wordFrom(p.tok)

	if r.Op == DLESS || r.Op == DLESSDASH {
		r.Hdoc = &HereDoc{
			Delim:     unquoteDelim(p.tok.Text),
			Quoted:    p.tok.Quoted,
			StripTabs: r.Op == DLESSDASH,
		}
		p.hdocs = append(p.hdocs, r)
	}

	p.next()

	return r
}

// declVariants are the commands parsed as a [DeclClause].
var declVariants = map[string]bool{
	"export": true, "local": true, "readonly": true, "declare": true, "typeset": true,
}

type declItem struct {
	word   *Word
	assign *Assignment
}

func (p *parser) simpleCommand() Command {
	sc := &SimpleCommand{}

	var (
		decl  string
		items []declItem
	)

loop:
	for {
		switch {
		case p.tok.Kind == IONUMBER || p.tok.Kind.IsRedirect():
			r := p.redirect()
			if r == nil {
				return nil
			}

			sc.Redirs = append(sc.Redirs, r)

		case p.tok.Kind == WORD:
			t := p.tok

			if len(sc.Args) == 0 || decl != "" {
				a, ok := p.assignment()
				if !ok {
					return nil
				}

				if a != nil {
					if decl != "" {
						items = append(items, declItem{word: p.wordFrom(t), assign: a})
					} else {
						sc.Assigns = append(sc.Assigns, a)
					}

					continue
				}
			}

			w := p.wordFrom(t)
			p.next()

			if decl != "" {
				items = append(items, declItem{word: w})

				continue
			}

			sc.Args = append(sc.Args, w)

			if len(sc.Args) == 1 && !t.Quoted && declVariants[t.Text] {
				decl = t.Text
				if decl == "local" {
					p.feature(LocalKeyword, t.Pos)
				}
			}

			if len(sc.Args) == 1 && len(sc.Assigns) == 0 && len(sc.Redirs) == 0 && p.tok.Kind == LPAREN {
				return p.funcParens(t)
			}

		default:
			break loop
		}
	}

	if len(sc.Args) == 0 && len(sc.Assigns) == 0 && len(sc.Redirs) == 0 {
		p.errorf(p.tok.Pos, "unexpected %s", p.tok)

		return nil
	}

	if decl != "" {
		return p.declClause(sc, items)
	}

	return sc
}

func (p *parser) declClause(sc *SimpleCommand, items []declItem) Command {
	dc := &DeclClause{Variant: decl(sc), VariantPos: sc.Args[0].Pos(), Redirs: sc.Redirs}

	static := len(sc.Assigns) == 0

	for _, it := range items {
		switch lit, ok := it.word.Lit(); {
		case it.assign != nil:
			dc.Assigns = append(dc.Assigns, it.assign)
		case ok && (strings.HasPrefix(lit, "-") || strings.HasPrefix(lit, "+")) && len(dc.Assigns) == 0:
			dc.Opts = append(dc.Opts, it.word)

			if strings.Contains(lit, "A") {
				p.feature(AssocArrays, it.word.Pos())
			}
		case ok && IsName(lit):
			dc.Assigns = append(dc.Assigns, &Assignment{NamePos: it.word.Pos(), Name: lit, Naked: true})
		default:
			static = false
		}
	}

	if static {
		return dc
	}

	// Operands computed at run time: keep it an ordinary command.
	for _, it := range items {
		if it.assign != nil && it.assign.Array != nil {
			p.errorf(it.assign.Pos(), "array assignment mixed with dynamic %s operands", dc.Variant)

			return nil
		}

		sc.Args = append(sc.Args, it.word)
	}

	return sc
}

func decl(sc *SimpleCommand) string {
	s, _ := sc.Args[0].Lit()

	return s
}

func (p *parser) funcParens(name Token) Command {
	fd := &FuncDecl{Position: name.Pos, Name: name.Text, Parens: true}

	if name.Quoted || strings.ContainsAny(name.Text, "$`") {
		p.errorf(name.Pos, "invalid function name %q", name.Text)

		return nil
	}

	p.next()

	if p.tok.Kind != RPAREN {
		p.errorf(p.tok.Pos, "expected \")\" in function definition, found %s", p.tok)

		return nil
	}

	p.next()

	return p.funcBody(fd)
}

// assignment parses the current WORD as an assignment. It returns nil and
// true when the word is not an assignment, leaving it unconsumed.
func (p *parser) assignment() (*Assignment, bool) {
	t := p.tok
	text := t.Text

	i := 0
	for i < len(text) && isNameChar(text[i]) {
		i++
	}

	if i == 0 || !isNameStart(text[0]) {
		return nil, true
	}

	a := &Assignment{NamePos: t.Pos, Name: text[:i]}
	src := newSource([]byte(text), t.Pos)

	if i < len(text) && text[i] == '[' {
		k := matchBracket(src.text, i, len(text))
		if k < 0 {
			return nil, true
		}

		a.Index = &Word{Parts: p.parts(src, i+1, k, modeArith)}
		i = k + 1
	}

	switch {
	case strings.HasPrefix(text[i:], "+="):
		a.Append = true
		i += 2
	case strings.HasPrefix(text[i:], "="):
		i++
	default:
		return nil, true
	}

	end := t.Pos.Offset + len(text)
	p.next()

	if i < len(text) {
		a.Value = &Word{Parts: p.parts(src, i, len(text), modeUnquoted)}

		return a, true
	}

	if p.tok.Kind == LPAREN && p.tok.Pos.Offset == end {
		p.feature(Arrays, p.tok.Pos)

		arr := &ArrayExpr{Lparen: p.tok.Pos}
		p.next()

		for {
			p.skipNewlines()

			switch p.tok.Kind {
			case RPAREN:
				p.next()

				a.Array = arr

				return a, true
			case WORD:
				arr.Elems = append(arr.Elems, p.wordFrom(p.tok))
				p.next()
			case EOF:
				p.errorf(arr.Lparen, "unterminated array (missing \")\")")

				return nil, false
			default:
				p.errorf(p.tok.Pos, "unexpected %s in array", p.tok)

				return nil, false
			}
		}
	}

	return a, true
}
