package syntax

import (
	"regexp"
	"strings"
)

// wordMode selects the quoting context a word is parsed in.
type wordMode int

const (
	modeUnquoted wordMode = iota
	modeDouble
	modeHeredoc
	modeParamArg
	modeArith
)

var braceSeq = regexp.MustCompile(`^(-?[0-9]+|[a-zA-Z])\.\.(-?[0-9]+|[a-zA-Z])(\.\.-?[0-9]+)?$`)

// wordFrom parses the text of a WORD token.
func (p *parser) wordFrom(t Token) *Word {
	return p.wordText(t.Text, t.Pos, modeUnquoted)
}

func (p *parser) wordText(text string, base Pos, mode wordMode) *Word {
	src := newSource([]byte(text), base)

	return &Word{Parts: p.parts(src, 0, len(src.text), mode)}
}

// parts splits src.text[lo:hi] into word parts.
func (p *parser) parts(src source, lo, hi int, mode wordMode) []WordPart {
	text := src.text[:hi]

	var (
		out    []WordPart
		lit    strings.Builder
		litPos Pos
	)

	flush := func() {
		if lit.Len() > 0 {
			out = append(out, &Lit{ValuePos: litPos, Value: lit.String()})
			lit.Reset()
		}
	}

	addLit := func(i, j int) {
		if lit.Len() == 0 {
			litPos = src.posAt(i)
		}

		lit.Write(text[i:j])
	}

	unquoted := mode == modeUnquoted || mode == modeParamArg || mode == modeArith

	for i := lo; i < hi; {
		c := text[i]

		switch {
		case c == '\\':
			end := min(i+2, hi)
			addLit(i, end)
			i = end

		case c == '\'' && unquoted:
			end, err := skipSingle(text, i)
			inner := text[i+1 : max(i+1, end-1)]

			if err != nil {
				inner = text[i+1 : hi]
			}

			flush()
			out = append(out, &SglQuoted{Left: src.posAt(i), Value: string(inner)})
			i = end

		case c == '"' && unquoted:
			end, err := skipDouble(text, i, p.dialect)
			innerEnd := end - 1

			if err != nil {
				innerEnd = hi
			}

			flush()
			out = append(out, &DblQuoted{
				Left:  src.posAt(i),
				Parts: p.parts(src, i+1, max(i+1, innerEnd), modeDouble),
			})
			i = end

		case c == '`':
			end, err := skipBackquote(text, i)
			innerEnd := end - 1

			if err != nil {
				innerEnd = hi
			}

			flush()

			body := unescapeBackquote(text[i+1:max(i+1, innerEnd)], mode == modeDouble)
			out = append(out, &CmdSubst{
				Left:      src.posAt(i),
				Body:      p.subParse(body, src.posAt(i+1)),
				Backquote: true,
			})
			i = end

		case c == '$':
			part, end := p.dollar(src, i, hi, mode)
			if part == nil {
				addLit(i, i+1)
				i++

				continue
			}

			flush()
			out = append(out, part)
			i = end

		case c == '{' && mode == modeUnquoted && p.dialect.Supports(BraceExpansion):
			if be, end, ok := p.brace(src, i, hi); ok {
				flush()
				out = append(out, be)
				i = end

				continue
			}

			addLit(i, i+1)
			i++

		case (c == '<' || c == '>') && i == lo && mode == modeUnquoted && i+1 < hi && text[i+1] == '(':
			end, err := skipParens(text, i+1, p.dialect)
			innerEnd := end - 1

			if err != nil {
				innerEnd = hi
			}

			op := LESS
			if c == '>' {
				op = GREAT
			}

			flush()
			out = append(out, &ProcSubst{
				OpPos: src.posAt(i),
				Op:    op,
				Body:  p.subParse(text[i+2:max(i+2, innerEnd)], src.posAt(i+2)),
			})
			i = end

		default:
			addLit(i, i+1)
			i++
		}
	}

	flush()

	return out
}

// dollar parses an expansion at src.text[i] == '$'. It returns nil when the
// dollar sign is literal.
func (p *parser) dollar(src source, i, hi int, mode wordMode) (WordPart, int) {
	text := src.text[:hi]
	if i+1 >= hi {
		return nil, 0
	}

	pos := src.posAt(i)

	switch c := text[i+1]; {
	case c == '(':
		if i+2 < hi && text[i+2] == '(' {
			if end, err := skipArith(text, i+1, p.dialect); err == nil {
				return &ArithExp{
					Left: pos,
					X:    p.arithText(text[i+3:end-2], src.posAt(i+3)),
				}, end
			}
		}

		end, err := skipParens(text, i+1, p.dialect)
		innerEnd := end - 1

		if err != nil {
			innerEnd = hi
		}

		return &CmdSubst{
			Left: pos,
			Body: p.subParse(text[i+2:max(i+2, innerEnd)], src.posAt(i+2)),
		}, end

	case c == '{':
		end, err := skipParam(text, i, p.dialect)
		innerEnd := end - 1

		if err != nil {
			innerEnd = hi
		}

		return p.paramExp(src, i, max(i+2, innerEnd)), end

	case c == '\'' && (mode == modeUnquoted || mode == modeParamArg) && p.dialect.Supports(AnsiCQuote):
		end, err := skipAnsiC(text, i)
		innerEnd := end - 1

		if err != nil {
			innerEnd = hi
		}

		return &SglQuoted{Left: pos, Dollar: true, Value: string(text[i+2 : max(i+2, innerEnd)])}, end

	case c == '"' && (mode == modeUnquoted || mode == modeParamArg):
		end, err := skipDouble(text, i+1, p.dialect)
		innerEnd := end - 1

		if err != nil {
			innerEnd = hi
		}

		return &DblQuoted{
			Left:   pos,
			Dollar: true,
			Parts:  p.parts(src, i+2, max(i+2, innerEnd), modeDouble),
		}, end

	case isNameStart(c):
		j := i + 1
		for j < hi && isNameChar(text[j]) {
			j++
		}

		return &ParamExp{Dollar: pos, Short: true, Name: string(text[i+1 : j])}, j

	case isDigit(c) || strings.IndexByte("@*#?-$!", c) >= 0:
		return &ParamExp{Dollar: pos, Short: true, Name: string(c)}, i + 2
	}

	return nil, 0
}

// paramExp parses "${...}" where src.text[i:i+2] == "${" and innerEnd is the
// offset of the closing brace.
func (p *parser) paramExp(src source, i, innerEnd int) *ParamExp {
	text := src.text
	pe := &ParamExp{Dollar: src.posAt(i)}
	j := i + 2

	if j < innerEnd && text[j] == '#' && j+1 < innerEnd && !strings.ContainsAny(string(text[j+1]), "}:=-+?%/") {
		pe.Length = true
		j++
	} else if j < innerEnd && text[j] == '!' && j+1 < innerEnd {
		pe.Indirect = true
		j++
	}

	switch {
	case j < innerEnd && isNameStart(text[j]):
		k := j
		for k < innerEnd && isNameChar(text[k]) {
			k++
		}

		pe.Name = string(text[j:k])
		j = k
	case j < innerEnd && isDigit(text[j]):
		k := j
		for k < innerEnd && isDigit(text[k]) {
			k++
		}

		pe.Name = string(text[j:k])
		j = k
	case j < innerEnd && strings.IndexByte("@*#?-$!", text[j]) >= 0:
		pe.Name = string(text[j])
		j++
	default:
		p.errorf(pe.Dollar, "bad substitution")

		return pe
	}

	if pe.Indirect && isNameStart(pe.Name[0]) && j+1 == innerEnd && (text[j] == '*' || text[j] == '@') {
		pe.Names = text[j]

		return pe
	}

	if j < innerEnd && text[j] == '[' {
		if k := matchBracket(text, j, innerEnd); k > 0 {
			pe.Index = &Word{Parts: p.parts(src, j+1, k, modeArith)}
			j = k + 1
		}
	}

	if j >= innerEnd {
		return pe
	}

	if pe.Length {
		p.errorf(src.posAt(j), "bad substitution")

		return pe
	}

	rest := string(text[j:innerEnd])

	for _, op := range paramOps {
		if strings.HasPrefix(rest, op.String()) {
			pe.Op = op
			j += len(op.String())

			break
		}
	}

	if pe.Op == OpNone {
		p.errorf(src.posAt(j), "bad substitution")

		return pe
	}

	switch pe.Op {
	case OpSlice:
		if k := splitTop(text, j, innerEnd, ':', p.dialect); k >= 0 {
			pe.Arg = &Word{Parts: p.parts(src, j, k, modeArith)}
			pe.Repl = &Word{Parts: p.parts(src, k+1, innerEnd, modeArith)}
		} else {
			pe.Arg = &Word{Parts: p.parts(src, j, innerEnd, modeArith)}
		}
	case OpReplace, OpReplaceAll, OpReplacePrefix, OpReplaceSuffix:
		if k := splitTop(text, j, innerEnd, '/', p.dialect); k >= 0 {
			pe.Arg = &Word{Parts: p.parts(src, j, k, modeParamArg)}
			pe.Repl = &Word{Parts: p.parts(src, k+1, innerEnd, modeParamArg)}
		} else {
			pe.Arg = &Word{Parts: p.parts(src, j, innerEnd, modeParamArg)}
		}
	default:
		pe.Arg = &Word{Parts: p.parts(src, j, innerEnd, modeParamArg)}
	}

	return pe
}

// brace parses a brace expansion at src.text[i] == '{'.
func (p *parser) brace(src source, i, hi int) (*BraceExp, int, bool) {
	text := src.text[:hi]
	depth := 0
	commas := []int{}

	for j := i; j < hi; {
		switch c := text[j]; c {
		case '{':
			depth++
			j++
		case '}':
			depth--

			if depth == 0 {
				return p.braceElems(src, i, j, commas)
			}

			j++
		case ',':
			if depth == 1 {
				commas = append(commas, j)
			}

			j++
		case '\\':
			j += 2
		case '\'':
			j, _ = skipSingle(text, j)
		case '"':
			j, _ = skipDouble(text, j, p.dialect)
		case '`':
			j, _ = skipBackquote(text, j)
		case '$':
			j, _ = skipDollar(text, j, p.dialect, false)
		default:
			if isMeta(c) {
				return nil, 0, false
			}

			j++
		}
	}

	return nil, 0, false
}

func (p *parser) braceElems(src source, open, close int, commas []int) (*BraceExp, int, bool) {
	be := &BraceExp{Lbrace: src.posAt(open)}

	if len(commas) == 0 {
		inner := string(src.text[open+1 : close])
		if !braceSeq.MatchString(inner) {
			return nil, 0, false
		}

		be.Sequence = true
		off := open + 1

		for _, e := range strings.Split(inner, "..") {
			be.Elems = append(be.Elems, &Word{Parts: []WordPart{
				&Lit{ValuePos: src.posAt(off), Value: e},
			}})
			off += len(e) + 2
		}

		return be, close + 1, true
	}

	start := open + 1
	for _, c := range append(commas, close) {
		be.Elems = append(be.Elems, &Word{Parts: p.parts(src, start, c, modeUnquoted)})
		start = c + 1
	}

	return be, close + 1, true
}

// matchBracket returns the offset of the "]" closing the "[" at text[i], or
// -1.
func matchBracket(text []byte, i, hi int) int {
	depth := 0

	for j := i; j < hi; j++ {
		switch text[j] {
		case '[':
			depth++
		case ']':
			depth--

			if depth == 0 {
				return j
			}
		case '\\':
			j++
		}
	}

	return -1
}

// splitTop returns the offset of the first sep in text[lo:hi] that is not
// quoted, escaped or inside an expansion, or -1.
func splitTop(text []byte, lo, hi int, sep byte, d Dialect) int {
	for j := lo; j < hi; {
		switch c := text[j]; {
		case c == sep:
			return j
		case c == '\\':
			j += 2
		case c == '\'':
			j, _ = skipSingle(text, j)
		case c == '"':
			j, _ = skipDouble(text, j, d)
		case c == '`':
			j, _ = skipBackquote(text, j)
		case c == '$':
			j, _ = skipDollar(text, j, d, false)
		default:
			j++
		}
	}

	return -1
}

// unescapeBackquote removes the backslashes that protect "\", "`" and "$"
// (and '"' inside double quotes) in a backquoted command.
func unescapeBackquote(b []byte, inDouble bool) []byte {
	out := make([]byte, 0, len(b))

	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			switch n := b[i+1]; {
			case n == '\\' || n == '`' || n == '$' || (inDouble && n == '"'):
				out = append(out, n)
				i++

				continue
			}
		}

		out = append(out, b[i])
	}

	return out
}

// escapeBackquote is the inverse of unescapeBackquote for printing.
func escapeBackquote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "`", "\\`")

	return r.Replace(s)
}
