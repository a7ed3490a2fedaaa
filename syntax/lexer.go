package syntax

import (
	"bytes"
	"strings"

	"github.com/ardnew/shgo/diag"
)

// LexOption configures a [Lexer].
type LexOption func(*Lexer)

// WithFileName sets the file name reported in diagnostics.
func WithFileName(name string) LexOption {
	return func(l *Lexer) { l.file = name }
}

// withBase positions the lexer input inside an enclosing file.
func withBase(p Pos) LexOption {
	return func(l *Lexer) { l.source = newSource(l.text, p) }
}

type pendingHeredoc struct {
	op     Pos
	delim  string
	quoted bool
	strip  bool
}

// Lexer splits shell source text into tokens for one dialect.
type Lexer struct {
	source

	dialect Dialect
	file    string
	off     int

	cmdStart  bool
	afterFor  bool
	wantDelim int // 0, or the kind of heredoc operator just seen
	inTest    bool
	wantRegex bool

	pending []pendingHeredoc
	queue   []Token
	diags   diag.List
}

// NewLexer returns a lexer over src for dialect d.
func NewLexer(src []byte, d Dialect, opts ...LexOption) *Lexer {
	l := &Lexer{dialect: d, cmdStart: true}
	l.source = newSource(src, Pos{})

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Lex returns every token of src up to and including EOF.
func Lex(src []byte, d Dialect, opts ...LexOption) ([]Token, diag.List) {
	l := NewLexer(src, d, opts...)

	var toks []Token

	for {
		t := l.Next()
		toks = append(toks, t)

		if t.Kind == EOF {
			return toks, l.Diagnostics()
		}
	}
}

// Diagnostics returns the lexical diagnostics reported so far.
func (l *Lexer) Diagnostics() diag.List { return l.diags }

func (l *Lexer) errorf(off int, format string, args ...any) {
	p := l.posAt(off)
	l.diags.Addf(diag.LexicalError, l.file, p.Line, p.Col, format, args...)
}

func (l *Lexer) feature(f Feature, off int) {
	if l.dialect.Supports(f) {
		return
	}

	p := l.posAt(off)
	l.diags.Add(diag.Diagnostic{
		Severity: diag.SeverityWarning,
		Kind:     diag.UnsupportedFeature,
		Message:  f.String() + " is not part of the " + l.dialect.String() + " dialect",
		File:     l.file,
		Line:     p.Line,
		Column:   p.Col,
	})
}

func (l *Lexer) peek(n int) byte {
	if l.off+n < len(l.text) {
		return l.text[l.off+n]
	}

	return 0
}

func (l *Lexer) hasPrefix(s string) bool {
	return bytes.HasPrefix(l.text[l.off:], []byte(s))
}

func (l *Lexer) token(k Kind, start int) Token {
	return Token{
		Kind:    k,
		Text:    string(l.text[start:l.off]),
		Pos:     l.posAt(start),
		Dialect: l.dialect,
	}
}

// Next returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) Next() Token {
	if len(l.queue) > 0 {
		t := l.queue[0]
		l.queue = l.queue[1:]

		return t
	}

	t := l.scan()

	switch t.Kind {
	case WORD:
		l.afterFor = t.Keyword && t.Text == "for"

		switch {
		case t.Keyword && t.Text == "[[":
			l.inTest = true
		case l.inTest && t.Text == "]]":
			l.inTest = false
		case l.inTest && t.Text == "=~":
			l.wantRegex = true
		}

		l.cmdStart = t.Keyword && opensCommand(t.Text)
	case NEWLINE, SEMI, AMP, AND, OR, PIPE, PIPEALL, DSEMI, SEMIAMP, DSEMIAMP, LPAREN, RPAREN:
		l.cmdStart = !l.inTest
		l.afterFor = false
	case COMMENT:
	default:
		l.cmdStart = false
		l.afterFor = false
	}

	if t.Kind == DLESS || t.Kind == DLESSDASH {
		l.wantDelim = int(t.Kind)
	}

	return t
}

// opensCommand reports whether the word following keyword kw is in command
// position.
func opensCommand(kw string) bool {
	switch kw {
	case "if", "then", "elif", "else", "do", "while", "until", "{", "!":
		return true
	}

	return false
}

func (l *Lexer) scan() Token {
	// Blanks and line continuations.
	for l.off < len(l.text) {
		c := l.text[l.off]
		if isBlank(c) {
			l.off++
		} else if c == '\\' && l.peek(1) == '\n' {
			l.off += 2
		} else {
			break
		}
	}

	if l.off >= len(l.text) {
		for _, h := range l.pending {
			p := h.op
			l.diags.Addf(diag.LexicalError, l.file, p.Line, p.Col,
				"unterminated here-document (wanted %q)", h.delim)
		}

		l.pending = nil

		return Token{Kind: EOF, Pos: l.posAt(len(l.text)), Dialect: l.dialect}
	}

	start := l.off
	c := l.text[l.off]

	switch {
	case c == '\n':
		l.off++
		t := l.token(NEWLINE, start)
		l.readHeredocs()

		return t
	case c == '#':
		for l.off < len(l.text) && l.text[l.off] != '\n' {
			l.off++
		}

		return l.token(COMMENT, start)
	case l.wantRegex:
		l.wantRegex = false

		return l.regexWord()
	case c == '(' && l.peek(1) == '(' && (l.cmdStart || l.afterFor) && l.dialect.Supports(ArithCommand):
		if end, err := skipArith(l.text, l.off, l.dialect); err == nil {
			l.off = end
			t := l.token(ARITH, start)
			t.Text = t.Text[2 : len(t.Text)-2]

			return t
		}
	case (c == '<' || c == '>') && l.peek(1) == '(':
		l.feature(ProcSubstitution, start)

		return l.word()
	}

	if k, n := l.operator(); n > 0 {
		l.off += n

		return l.token(k, start)
	}

	if c < 0x20 && c != '\t' || c == 0x7f {
		l.off++
		l.errorf(start, "illegal character %q", c)

		return l.token(ILLEGAL, start)
	}

	return l.word()
}

func (l *Lexer) operator() (Kind, int) {
	switch l.text[l.off] {
	case ';':
		switch {
		case l.hasPrefix(";;&"):
			l.feature(CaseFallthrough, l.off)

			return DSEMIAMP, 3
		case l.hasPrefix(";;"):
			return DSEMI, 2
		case l.hasPrefix(";&"):
			l.feature(CaseFallthrough, l.off)

			return SEMIAMP, 2
		}

		return SEMI, 1
	case '&':
		switch {
		case l.hasPrefix("&&"):
			return AND, 2
		case l.hasPrefix("&>>"):
			l.feature(AmpRedirect, l.off)

			return ANDDGREAT, 3
		case l.hasPrefix("&>"):
			l.feature(AmpRedirect, l.off)

			return ANDGREAT, 2
		}

		return AMP, 1
	case '|':
		switch {
		case l.hasPrefix("||"):
			return OR, 2
		case l.hasPrefix("|&"):
			l.feature(PipeAll, l.off)

			return PIPEALL, 2
		}

		return PIPE, 1
	case '(':
		return LPAREN, 1
	case ')':
		return RPAREN, 1
	case '<':
		switch {
		case l.hasPrefix("<<<"):
			l.feature(HereString, l.off)

			return TLESS, 3
		case l.hasPrefix("<<-"):
			return DLESSDASH, 3
		case l.hasPrefix("<<"):
			return DLESS, 2
		case l.hasPrefix("<&"):
			return LESSAND, 2
		case l.hasPrefix("<>"):
			return LESSGREAT, 2
		}

		return LESS, 1
	case '>':
		switch {
		case l.hasPrefix(">>"):
			return DGREAT, 2
		case l.hasPrefix(">&"):
			return GREATAND, 2
		case l.hasPrefix(">|"):
			return CLOBBER, 2
		}

		return GREAT, 1
	}

	return 0, 0
}

// word scans one word, tracking quotes and nested expansions.
func (l *Lexer) word() Token {
	start := l.off
	quoted := false

	for l.off < len(l.text) {
		c := l.text[l.off]

		var (
			end int
			err *scanError
		)

		switch {
		case (c == '<' || c == '>') && l.peek(1) == '(' && l.off == start:
			end, err = skipParens(l.text, l.off+1, l.dialect)
			if err != nil {
				err.at, err.what = l.off, "process substitution"
			}
		case strings.IndexByte("?*+@!", c) >= 0 && l.peek(1) == '(' && l.dialect.Supports(Arrays):
			end, err = skipParens(l.text, l.off+1, l.dialect)
		case isMeta(c):
			return l.wordToken(start, quoted)
		case c == '\\':
			quoted = true
			end = min(l.off+2, len(l.text))
		case c == '\'':
			quoted = true
			end, err = skipSingle(l.text, l.off)
		case c == '"':
			quoted = true
			end, err = skipDouble(l.text, l.off, l.dialect)
		case c == '`':
			end, err = skipBackquote(l.text, l.off)
		case c == '$':
			if l.peek(1) == '\'' || l.peek(1) == '"' {
				quoted = true
			}

			if l.peek(1) == '\'' {
				l.feature(AnsiCQuote, l.off)
			}

			end, err = skipDollar(l.text, l.off, l.dialect, false)
		default:
			end = l.off + 1
		}

		if err != nil {
			l.errorf(err.at, "unterminated %s", err.what)
		}

		l.off = end
	}

	return l.wordToken(start, quoted)
}

func (l *Lexer) wordToken(start int, quoted bool) Token {
	t := l.token(WORD, start)
	t.Quoted = quoted

	if !quoted && isAllDigits(t.Text) && l.off < len(l.text) &&
		(l.text[l.off] == '<' || l.text[l.off] == '>') {
		t.Kind = IONUMBER

		return t
	}

	if l.wantDelim != 0 {
		strip := l.wantDelim == int(DLESSDASH)
		l.wantDelim = 0
		l.pending = append(l.pending, pendingHeredoc{
			op:     t.Pos,
			delim:  unquoteDelim(t.Text),
			quoted: quoted,
			strip:  strip,
		})

		return t
	}

	if !quoted && reserved[t.Text] {
		switch {
		case l.cmdStart:
			t.Keyword = t.Text != "]]"
		case l.inTest && t.Text == "]]":
			t.Keyword = true
		}
	}

	return t
}

// regexWord scans the right operand of "=~", in which parentheses and bars
// are part of the pattern.
func (l *Lexer) regexWord() Token {
	start := l.off
	depth := 0
	quoted := false

	for l.off < len(l.text) {
		c := l.text[l.off]

		var (
			end = l.off + 1
			err *scanError
		)

		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return l.wordToken(start, quoted)
			}

			depth--
		case depth == 0 && (isBlank(c) || c == '\n'):
			return l.wordToken(start, quoted)
		case c == '\\':
			quoted = true
			end = min(l.off+2, len(l.text))
		case c == '\'':
			quoted = true
			end, err = skipSingle(l.text, l.off)
		case c == '"':
			quoted = true
			end, err = skipDouble(l.text, l.off, l.dialect)
		case c == '$':
			end, err = skipDollar(l.text, l.off, l.dialect, false)
		}

		if err != nil {
			l.errorf(err.at, "unterminated %s", err.what)
		}

		l.off = end
	}

	return l.wordToken(start, quoted)
}

// readHeredocs reads the bodies of every heredoc opened on the line just
// ended and queues one HEREDOC token per body.
func (l *Lexer) readHeredocs() {
	pending := l.pending
	l.pending = nil

	for _, h := range pending {
		start := l.off

		var body strings.Builder

		found := false

		for l.off < len(l.text) {
			eol := bytes.IndexByte(l.text[l.off:], '\n')

			var line []byte

			next := len(l.text)
			if eol >= 0 {
				line = l.text[l.off : l.off+eol]
				next = l.off + eol + 1
			} else {
				line = l.text[l.off:]
			}

			if h.strip {
				line = bytes.TrimLeft(line, "\t")
			}

			l.off = next

			if string(bytes.TrimSuffix(line, []byte("\r"))) == h.delim {
				found = true

				break
			}

			body.Write(line)
			body.WriteByte('\n')
		}

		if !found {
			l.diags.Addf(diag.LexicalError, l.file, h.op.Line, h.op.Col,
				"unterminated here-document (wanted %q)", h.delim)
		}

		l.queue = append(l.queue, Token{
			Kind:    HEREDOC,
			Text:    body.String(),
			Pos:     l.posAt(start),
			Dialect: l.dialect,
			Quoted:  h.quoted,
		})
	}
}

// unquoteDelim removes quoting from a heredoc delimiter word.
func unquoteDelim(s string) string {
	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"':
			continue
		case '\\':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			}
		case '$':
			if i+1 < len(s) && (s[i+1] == '\'' || s[i+1] == '"') {
				continue
			}

			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}

	return true
}
