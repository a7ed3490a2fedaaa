package lower

import (
	"context"
	"slices"
	"strconv"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// unit lowers one compilation unit. It is used by a single goroutine.
type unit struct {
	ctx   context.Context
	g     *Generator
	path  string
	diags diag.List
}

func newUnit(ctx context.Context, g *Generator, path string) *unit {
	return &unit{ctx: ctx, g: g, path: path}
}

func (u *unit) errorf(k diag.Kind, pos syntax.Pos, format string, args ...any) {
	u.diags.Addf(k, u.path, pos.Line, pos.Col, format, args...)
}

// ref returns the file reference the resolver recorded for w.
func (u *unit) ref(w *syntax.Word) (*resolve.SourceFileRef, *resolve.Node, bool) {
	if u.g.res == nil || u.g.res.Graph == nil {
		return nil, nil, false
	}

	ref, ok := u.g.res.Ref(w)
	if !ok {
		return nil, nil, false
	}

	n, ok := u.g.res.File(ref)

	return ref, n, ok
}

func position(p syntax.Pos) shell.Pos { return shell.Pos{Line: p.Line, Col: p.Col} }

func (u *unit) list(l *syntax.List) *shell.Block {
	b := &shell.Block{File: u.path}
	if l == nil {
		return b
	}

	b.Stmts = make([]shell.Stmt, 0, len(l.Items))

	for _, c := range l.Items {
		if st := u.command(c); st != nil {
			b.Stmts = append(b.Stmts, st)
		}
	}

	return b
}

func (u *unit) command(c syntax.Command) shell.Stmt {
	switch c := c.(type) {
	case nil:
		return nil
	case *syntax.AndOr:
		return &shell.AndOr{Or: c.Op == syntax.OR, X: u.command(c.X), Y: u.command(c.Y)}
	case *syntax.Pipeline:
		p := &shell.Pipeline{Negated: c.Negated, Stderr: slices.Clone(c.Stderr)}
		for _, x := range c.Cmds {
			p.Stages = append(p.Stages, u.command(x))
		}

		return p
	case *syntax.Background:
		return &shell.Background{X: u.command(c.X)}
	case *syntax.SimpleCommand:
		return u.simple(c)
	case *syntax.DeclClause:
		return u.decl(c)
	case *syntax.IfClause:
		return u.ifClause(c.Cond, c.Then, c.Elifs, c.Else)
	case *syntax.WhileClause:
		return &shell.While{Until: c.Until, Cond: u.list(c.Cond), Body: u.list(c.Body)}
	case *syntax.ForClause:
		return &shell.For{Name: c.Name, InParams: !c.In, Items: u.words(c.Items), Body: u.list(c.Body)}
	case *syntax.ArithForClause:
		return &shell.ArithFor{
			Init: u.arith(c.Init),
			Cond: u.arith(c.Cond),
			Post: u.arith(c.Post),
			Body: u.list(c.Body),
		}
	case *syntax.SelectClause:
		return &shell.Select{Name: c.Name, InParams: !c.In, Items: u.words(c.Items), Body: u.list(c.Body)}
	case *syntax.CaseClause:
		return u.caseClause(c)
	case *syntax.FuncDecl:
		return &shell.FuncDef{Name: c.Name, Body: u.command(c.Body)}
	case *syntax.Subshell:
		return &shell.Subshell{Body: u.list(c.Body)}
	case *syntax.Group:
		return &shell.Group{Body: u.list(c.Body)}
	case *syntax.ArithCmd:
		return &shell.ArithCmd{X: u.arith(c.X)}
	case *syntax.TestClause:
		return &shell.Test{X: u.test(c.X)}
	case *syntax.Redirected:
		return &shell.Redirected{X: u.command(c.X), Redirs: u.redirects(c.Redirs)}
	}

	u.errorf(diag.GenerationError, c.Pos(), "cannot lower %T", c)

	return nil
}

// ifClause nests each elif branch in the else block of the one before.
func (u *unit) ifClause(cond, then *syntax.List, elifs []*syntax.Elif, els *syntax.List) *shell.If {
	x := &shell.If{Cond: u.list(cond), Then: u.list(then)}

	switch {
	case len(elifs) > 0:
		x.Else = &shell.Block{
			File:  u.path,
			Stmts: []shell.Stmt{u.ifClause(elifs[0].Cond, elifs[0].Then, elifs[1:], els)},
		}
	case els != nil:
		x.Else = u.list(els)
	}

	return x
}

func (u *unit) caseClause(c *syntax.CaseClause) *shell.Case {
	x := &shell.Case{Word: u.word(c.Word), Arms: make([]*shell.CaseArm, 0, len(c.Items))}

	for _, it := range c.Items {
		arm := &shell.CaseArm{Patterns: u.words(it.Patterns), Body: u.list(it.Body)}

		switch it.Term {
		case syntax.SEMIAMP:
			arm.Term = shell.CaseFallthrough
		case syntax.DSEMIAMP:
			arm.Term = shell.CaseContinue
		default:
			arm.Term = shell.CaseBreak
		}

		x.Arms = append(x.Arms, arm)
	}

	return x
}

// simple lowers a command. A static command name binds a builtin through
// its lowering function or an external program recorded by the resolver.
func (u *unit) simple(c *syntax.SimpleCommand) shell.Stmt {
	call := &shell.Call{
		Pos:      position(c.Pos()),
		Assigns:  u.assigns(c.Assigns),
		Args:     u.words(c.Args),
		Redirs:   u.redirects(c.Redirs),
		External: -1,
	}

	if len(c.Args) == 0 {
		return call
	}

	name, ok := c.Args[0].Value()
	if !ok {
		return call
	}

	if b, ok := shell.LookupBuiltin(name); ok {
		call.Builtin = b

		return lowerBuiltin(u, b, c, call)
	}

	call.External = u.g.external(name)

	return call
}

func (u *unit) decl(c *syntax.DeclClause) shell.Stmt {
	b, ok := shell.LookupBuiltin(c.Variant)
	if !ok || !b.IsDecl() {
		u.errorf(diag.GenerationError, c.Pos(), "%s is not a declaration builtin", c.Variant)

		return nil
	}

	return &shell.Decl{
		Pos:     position(c.Pos()),
		Variant: b,
		Opts:    u.words(c.Opts),
		Assigns: u.assigns(c.Assigns),
		Redirs:  u.redirects(c.Redirs),
	}
}

func (u *unit) assigns(as []*syntax.Assignment) []*shell.Assign {
	if len(as) == 0 {
		return nil
	}

	out := make([]*shell.Assign, len(as))

	for i, a := range as {
		x := &shell.Assign{Name: a.Name, Append: a.Append}

		if a.Index != nil {
			x.Index = u.plain(a.Index)
		}

		switch {
		case a.Array != nil:
			x.IsArray, x.Array = true, u.words(a.Array.Elems)
		case a.Naked:
		case a.Value == nil || len(a.Value.Parts) == 0:
			// A quoted empty literal keeps "name=" distinct from a bare name
			// once the program is encoded.
			x.Value = &shell.Word{Parts: []shell.Part{&shell.Lit{Quoted: true}}}
		default:
			x.Value = u.word(a.Value)
		}

		out[i] = x
	}

	return out
}

func (u *unit) redirects(rs []*syntax.Redirect) []*shell.Redir {
	if len(rs) == 0 {
		return nil
	}

	out := make([]*shell.Redir, 0, len(rs))

	for _, r := range rs {
		x := &shell.Redir{N: -1}

		if r.N != "" {
			n, err := strconv.Atoi(r.N)
			if err != nil {
				u.errorf(diag.GenerationError, r.Pos(), "invalid file descriptor %q", r.N)

				continue
			}

			x.N = n
		}

		op, ok := redirOps[r.Op]
		if !ok {
			u.errorf(diag.UnsupportedFeature, r.Pos(), "redirection operator %s", r.Op)

			continue
		}

		x.Op = op

		switch {
		case r.Hdoc != nil && r.Hdoc.Quoted:
			x.Word = &shell.Word{Parts: []shell.Part{&shell.Lit{Text: r.Hdoc.Raw, Quoted: true}}}
		case r.Hdoc != nil:
			x.Word = &shell.Word{}
			if r.Hdoc.Body != nil {
				x.Word.Parts = u.parts(r.Hdoc.Body.Parts, modeHeredoc)
			}
		default:
			x.Word = u.word(r.Word)
		}

		out = append(out, x)
	}

	return out
}

var redirOps = map[syntax.Kind]shell.RedirOp{
	syntax.LESS:      shell.RedirIn,
	syntax.GREAT:     shell.RedirOut,
	syntax.DGREAT:    shell.RedirAppend,
	syntax.LESSAND:   shell.RedirDupIn,
	syntax.GREATAND:  shell.RedirDupOut,
	syntax.LESSGREAT: shell.RedirReadWrite,
	syntax.CLOBBER:   shell.RedirClobber,
	syntax.DLESS:     shell.RedirHeredoc,
	syntax.DLESSDASH: shell.RedirHeredoc,
	syntax.TLESS:     shell.RedirHerestring,
	syntax.ANDGREAT:  shell.RedirAll,
	syntax.ANDDGREAT: shell.RedirAllAppend,
}
