package syntax

import (
	"bufio"
	"io"
	"slices"
	"strings"
)

// Print writes node to w in canonical form. Commands are laid out one per
// line with tab indentation; comments are not preserved. Parsing the output
// yields a tree equal to node apart from positions.
func Print(w io.Writer, node Node) error {
	bw := bufio.NewWriter(w)
	p := &printer{w: bw}

	switch n := node.(type) {
	case *File:
		p.header(n.Meta)
		p.top(n.Body)
	case *List:
		p.top(n)
	case Command:
		p.command(n)
		p.newline()
	case *Word:
		p.word(n)
	case WordPart:
		p.part(n, false)
	case ArithExpr:
		p.arith(n)
	case TestExpr:
		p.test(n)
	case *Redirect:
		p.redirect(n)
		p.newline()
	case *Assignment:
		p.assign(n)
	}

	return bw.Flush()
}

// String returns the canonical text of node.
func String(node Node) string {
	var sb strings.Builder

	_ = Print(&sb, node)

	return sb.String()
}

type printer struct {
	w      *bufio.Writer
	indent int
	inline int
	hdocs  []*HereDoc
}

func (p *printer) str(s string) { _, _ = p.w.WriteString(s) }

// newline ends the current line, writes pending here-document bodies, and
// indents the next line.
func (p *printer) newline() {
	p.str("\n")

	for _, h := range p.hdocs {
		p.str(h.Raw)
		p.str(h.Delim)
		p.str("\n")
	}

	p.hdocs = p.hdocs[:0]

	for range p.indent {
		p.str("\t")
	}
}

// header writes the shebang and tags of m followed by a blank line.
func (p *printer) header(m *Metadata) {
	if m == nil {
		return
	}

	if m.Shebang != "" {
		p.str(m.Shebang + "\n")
	}

	tags := 0
	tag := func(k, v string) {
		if v != "" {
			p.str("# @" + k + ": " + v + "\n")
			tags++
		}
	}

	tag("Version", m.Version)
	tag("Author", m.Author)
	tag("Description", m.Description)

	for _, d := range m.Dependencies {
		if strings.ContainsAny(d, " \t'\"\\") {
			d = "'" + strings.ReplaceAll(d, "'", `'\''`) + "'"
		}

		tag("Dependency", d)
	}

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		tag(k, m.Headers[k])
	}

	if m.Shebang != "" || tags > 0 {
		p.str("\n")
	}
}

func (p *printer) top(l *List) {
	if l == nil {
		return
	}

	for i, c := range l.Items {
		if i > 0 {
			p.newline()
		}

		p.command(c)
	}

	if len(l.Items) > 0 {
		p.newline()
	}
}

// body prints a block body. In block mode each command is on its own
// indented line; inline, commands are separated and terminated by ";".
func (p *printer) body(l *List) {
	if p.inline > 0 {
		p.str(" ")

		if l != nil && len(l.Items) > 0 {
			p.inlineList(l)
			p.terminate(l)
		}

		return
	}

	p.indent++

	if l != nil {
		for _, c := range l.Items {
			p.newline()
			p.command(c)
		}
	}

	p.indent--
	p.newline()
}

// terminate writes the separator after the last command of an inline list.
func (p *printer) terminate(l *List) {
	if _, bg := l.Items[len(l.Items)-1].(*Background); bg {
		p.str(" ")

		return
	}

	p.str("; ")
}

func (p *printer) inlineList(l *List) {
	p.inline++
	defer func() { p.inline-- }()

	for i, c := range l.Items {
		if i > 0 {
			if _, bg := l.Items[i-1].(*Background); bg {
				p.str(" ")
			} else {
				p.str("; ")
			}
		}

		p.command(c)
	}
}

func (p *printer) command(c Command) {
	switch c := c.(type) {
	case *SimpleCommand:
		p.simple(c)
	case *DeclClause:
		p.decl(c)
	case *AndOr:
		p.command(c.X)
		p.str(" " + c.Op.String() + " ")
		p.command(c.Y)
	case *Pipeline:
		if c.Negated {
			p.str("! ")
		}

		for i, cmd := range c.Cmds {
			if i > 0 {
				if c.Stderr[i-1] {
					p.str(" |& ")
				} else {
					p.str(" | ")
				}
			}

			p.command(cmd)
		}
	case *Background:
		p.command(c.X)
		p.str(" &")
	case *IfClause:
		p.str("if ")
		p.inlineList(c.Cond)
		p.str("; then")
		p.body(c.Then)

		for _, e := range c.Elifs {
			p.str("elif ")
			p.inlineList(e.Cond)
			p.str("; then")
			p.body(e.Then)
		}

		if c.Else != nil {
			p.str("else")
			p.body(c.Else)
		}

		p.str("fi")
	case *WhileClause:
		if c.Until {
			p.str("until ")
		} else {
			p.str("while ")
		}

		p.inlineList(c.Cond)
		p.str("; do")
		p.body(c.Body)
		p.str("done")
	case *ForClause:
		p.loopHead("for", c.Name, c.In, c.Items)
		p.body(c.Body)
		p.str("done")
	case *SelectClause:
		p.loopHead("select", c.Name, c.In, c.Items)
		p.body(c.Body)
		p.str("done")
	case *ArithForClause:
		p.str("for ((")
		p.arithOpt(c.Init)
		p.str("; ")
		p.arithOpt(c.Cond)
		p.str("; ")
		p.arithOpt(c.Post)
		p.str(")); do")
		p.body(c.Body)
		p.str("done")
	case *CaseClause:
		p.caseClause(c)
	case *FuncDecl:
		if c.Keyword {
			p.str("function ")
		}

		p.str(c.Name)

		if c.Parens || !c.Keyword {
			p.str("()")
		}

		p.str(" ")
		p.command(c.Body)
	case *Subshell:
		if p.inline > 0 {
			p.str("( ")
			p.inlineList(c.Body)
			p.str(" )")

			return
		}

		p.str("(")
		p.body(c.Body)
		p.str(")")
	case *Group:
		p.str("{")
		p.body(c.Body)
		p.str("}")
	case *ArithCmd:
		p.str("((")
		p.arith(c.X)
		p.str("))")
	case *TestClause:
		p.str("[[ ")
		p.test(c.X)
		p.str(" ]]")
	case *Redirected:
		p.command(c.X)

		for _, r := range c.Redirs {
			p.str(" ")
			p.redirect(r)
		}
	}
}

func (p *printer) loopHead(kw, name string, in bool, items []*Word) {
	p.str(kw + " " + name)

	if in {
		p.str(" in")

		for _, w := range items {
			p.str(" ")
			p.word(w)
		}
	}

	p.str("; do")
}

func (p *printer) caseClause(c *CaseClause) {
	p.str("case ")
	p.word(c.Word)
	p.str(" in")

	if p.inline > 0 {
		for _, it := range c.Items {
			p.str(" ")
			p.patterns(it)

			if it.Body != nil && len(it.Body.Items) > 0 {
				p.str(" ")
				p.inlineList(it.Body)
			}

			p.str(" " + it.Term.String())
		}

		p.str(" esac")

		return
	}

	p.indent++

	for _, it := range c.Items {
		p.newline()
		p.patterns(it)
		p.indent++

		if it.Body != nil {
			for _, cmd := range it.Body.Items {
				p.newline()
				p.command(cmd)
			}
		}

		p.newline()
		p.str(it.Term.String())
		p.indent--
	}

	p.indent--
	p.newline()
	p.str("esac")
}

func (p *printer) patterns(it *CaseItem) {
	for i, w := range it.Patterns {
		if i > 0 {
			p.str(" | ")
		}

		p.word(w)
	}

	p.str(")")
}

func (p *printer) simple(c *SimpleCommand) {
	sep := ""

	for _, a := range c.Assigns {
		p.str(sep)
		p.assign(a)
		sep = " "
	}

	for _, w := range c.Args {
		p.str(sep)
		p.word(w)
		sep = " "
	}

	for _, r := range c.Redirs {
		p.str(sep)
		p.redirect(r)
		sep = " "
	}
}

func (p *printer) decl(c *DeclClause) {
	p.str(c.Variant)

	for _, w := range c.Opts {
		p.str(" ")
		p.word(w)
	}

	for _, a := range c.Assigns {
		p.str(" ")
		p.assign(a)
	}

	for _, r := range c.Redirs {
		p.str(" ")
		p.redirect(r)
	}
}

func (p *printer) assign(a *Assignment) {
	p.str(a.Name)

	if a.Index != nil {
		p.str("[")
		p.word(a.Index)
		p.str("]")
	}

	if a.Naked {
		return
	}

	if a.Append {
		p.str("+=")
	} else {
		p.str("=")
	}

	switch {
	case a.Array != nil:
		p.str("(")

		for i, w := range a.Array.Elems {
			if i > 0 {
				p.str(" ")
			}

			p.word(w)
		}

		p.str(")")
	case a.Value != nil:
		p.word(a.Value)
	}
}

func (p *printer) redirect(r *Redirect) {
	p.str(r.N)
	p.str(r.Op.String())
	p.word(r.Word)

	if r.Hdoc != nil {
		p.hdocs = append(p.hdocs, r.Hdoc)
	}
}

func (p *printer) word(w *Word) {
	if w == nil {
		return
	}

	for _, part := range w.Parts {
		p.part(part, false)
	}
}

func (p *printer) part(wp WordPart, inDouble bool) {
	switch x := wp.(type) {
	case *Lit:
		p.str(x.Value)
	case *SglQuoted:
		if x.Dollar {
			p.str("$")
		}

		p.str("'" + x.Value + "'")
	case *DblQuoted:
		if x.Dollar {
			p.str("$")
		}

		p.str(`"`)

		for _, q := range x.Parts {
			p.part(q, true)
		}

		p.str(`"`)
	case *ParamExp:
		p.param(x)
	case *CmdSubst:
		p.cmdSubst(x, inDouble)
	case *ArithExp:
		p.str("$((")
		p.arith(x.X)
		p.str("))")
	case *BraceExp:
		p.str("{")

		sep := ","
		if x.Sequence {
			sep = ".."
		}

		for i, e := range x.Elems {
			if i > 0 {
				p.str(sep)
			}

			p.word(e)
		}

		p.str("}")
	case *ProcSubst:
		p.str(x.Op.String() + "(")
		p.sub(x.Body)
		p.str(")")
	}
}

func (p *printer) param(x *ParamExp) {
	if x.Short {
		p.str("$" + x.Name)

		return
	}

	p.str("${")

	switch {
	case x.Length:
		p.str("#")
	case x.Indirect:
		p.str("!")
	}

	p.str(x.Name)

	if x.Names != 0 {
		p.str(string(x.Names))
	}

	if x.Index != nil {
		p.str("[")
		p.word(x.Index)
		p.str("]")
	}

	if x.Op != OpNone {
		p.str(x.Op.String())
		p.word(x.Arg)

		if x.Repl != nil {
			if x.Op == OpSlice {
				p.str(":")
			} else {
				p.str("/")
			}

			p.word(x.Repl)
		}
	}

	p.str("}")
}

func (p *printer) cmdSubst(x *CmdSubst, inDouble bool) {
	if !x.Backquote {
		p.str("$(")
		p.sub(x.Body)
		p.str(")")

		return
	}

	var sb strings.Builder

	inner := &printer{w: bufio.NewWriter(&sb)}
	inner.sub(x.Body)
	_ = inner.w.Flush()

	s := escapeBackquote(sb.String())
	if inDouble {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}

	p.str("`" + s + "`")
}

// sub prints the body of a substitution. Bodies holding here-documents
// need real newlines and are printed as blocks.
func (p *printer) sub(l *List) {
	if l == nil || len(l.Items) == 0 {
		return
	}

	if hasHereDoc(l) {
		saved, savedIndent, savedDocs := p.inline, p.indent, p.hdocs
		p.inline, p.hdocs = 0, nil

		for _, c := range l.Items {
			p.newline()
			p.command(c)
		}

		p.newline()
		p.inline, p.indent, p.hdocs = saved, savedIndent, savedDocs

		return
	}

	var sb strings.Builder

	inner := &printer{w: bufio.NewWriter(&sb)}
	inner.inlineList(l)
	_ = inner.w.Flush()

	s := sb.String()
	if strings.HasPrefix(s, "(") {
		s = " " + s
	}

	p.str(s)
}

func hasHereDoc(l *List) bool {
	found := false

	Walk(l, func(n Node) bool {
		if _, ok := n.(*HereDoc); ok {
			found = true
		}

		return !found
	})

	return found
}

func (p *printer) arithOpt(x ArithExpr) {
	if x != nil {
		p.arith(x)
	}
}

func (p *printer) arith(x ArithExpr) {
	switch x := x.(type) {
	case *ArithWord:
		p.word(x.Word)
	case *ArithBinary:
		p.arith(x.X)

		if x.Op == ArithComma {
			p.str(", ")
		} else {
			p.str(" " + x.Op.String() + " ")
		}

		p.arith(x.Y)
	case *ArithUnary:
		if x.Post {
			p.arith(x.X)
			p.str(x.Op.String())

			return
		}

		p.str(x.Op.String())

		if u, ok := x.X.(*ArithUnary); ok && !u.Post && signLike(x.Op) && signLike(u.Op) {
			p.str(" ")
		}

		p.arith(x.X)
	case *ArithParen:
		p.str("(")
		p.arith(x.X)
		p.str(")")
	case *ArithTernary:
		p.arith(x.Cond)
		p.str(" ? ")
		p.arith(x.Then)
		p.str(" : ")
		p.arith(x.Else)
	}
}

func signLike(op ArithOp) bool {
	switch op {
	case ArithAdd, ArithSub, ArithInc, ArithDec:
		return true
	}

	return false
}

func (p *printer) test(x TestExpr) {
	switch x := x.(type) {
	case *TestWord:
		p.word(x.Word)
	case *TestBinary:
		p.test(x.X)
		p.str(" " + x.Op + " ")
		p.test(x.Y)
	case *TestUnary:
		p.str(x.Op + " ")
		p.test(x.X)
	case *TestParen:
		p.str("( ")
		p.test(x.X)
		p.str(" )")
	}
}
