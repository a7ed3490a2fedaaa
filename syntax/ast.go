package syntax

import "github.com/ardnew/shgo/diag"

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Pos
}

// Command is a node that can appear as an item of a [List].
type Command interface {
	Node
	commandNode()
}

// WordPart is one piece of a [Word].
type WordPart interface {
	Node
	wordPartNode()
}

// ArithExpr is an arithmetic expression node.
type ArithExpr interface {
	Node
	arithNode()
}

// TestExpr is a node inside a "[[ ... ]]" clause.
type TestExpr interface {
	Node
	testNode()
}

// File is the parse result of one compilation unit.
type File struct {
	Name        string
	Dialect     Dialect
	Body        *List
	Meta        *Metadata
	Symbols     *Scope
	Diagnostics diag.List
}

func (f *File) Pos() Pos { return f.Body.Pos() }

// Fatal reports whether f has a diagnostic that blocks resolution and
// generation.
func (f *File) Fatal() bool { return f.Diagnostics.HasFatal() }

// List is a sequence of commands separated by ";", "&" or newlines.
type List struct {
	Start Pos
	Items []Command
}

// AndOr is "X && Y" or "X || Y". Chains are left-associative.
type AndOr struct {
	OpPos Pos
	Op    Kind // AND or OR
	X, Y  Command
}

// Pipeline is two or more commands joined by "|" or "|&", or a single
// command negated with "!".
type Pipeline struct {
	Bang    Pos
	Negated bool
	Cmds    []Command
	// Stderr[i] is set when Cmds[i] and Cmds[i+1] are joined by "|&".
	Stderr []bool
}

// Background is "X &".
type Background struct {
	X   Command
	Amp Pos
}

// SimpleCommand is a command name with arguments, optionally preceded by
// assignments, with redirections anywhere.
type SimpleCommand struct {
	Assigns []*Assignment
	Args    []*Word
	Redirs  []*Redirect
}

// DeclClause is an export, local, readonly, declare or typeset command whose
// operands are all names or assignments.
type DeclClause struct {
	Variant    string
	VariantPos Pos
	Opts       []*Word
	Assigns    []*Assignment
	Redirs     []*Redirect
}

// IfClause is "if ... then ... [elif ... then ...]... [else ...] fi".
type IfClause struct {
	If    Pos
	Cond  *List
	Then  *List
	Elifs []*Elif
	Else  *List
	Fi    Pos
}

// Elif is one "elif ... then ..." branch.
type Elif struct {
	Elif Pos
	Cond *List
	Then *List
}

// WhileClause is a while loop, or an until loop when Until is set.
type WhileClause struct {
	While Pos
	Until bool
	Cond  *List
	Body  *List
	Done  Pos
}

// ForClause is "for Name [in Items]; do Body; done". Without "in" the loop
// iterates over the positional parameters.
type ForClause struct {
	For     Pos
	Name    string
	NamePos Pos
	In      bool
	Items   []*Word
	Body    *List
}

// ArithForClause is "for ((Init; Cond; Post)); do Body; done". Any of the
// three expressions may be nil.
type ArithForClause struct {
	For              Pos
	Init, Cond, Post ArithExpr
	Body             *List
}

// SelectClause is "select Name [in Items]; do Body; done".
type SelectClause struct {
	Select  Pos
	Name    string
	NamePos Pos
	In      bool
	Items   []*Word
	Body    *List
}

// CaseClause is "case Word in Items esac".
type CaseClause struct {
	Case  Pos
	Word  *Word
	Items []*CaseItem
	Esac  Pos
}

// CaseItem is one "pattern) body ;;" arm. Term is DSEMI, SEMIAMP or
// DSEMIAMP.
type CaseItem struct {
	Patterns []*Word
	Body     *List
	Term     Kind
	TermPos  Pos
}

// FuncDecl is a function definition.
type FuncDecl struct {
	Position Pos
	Name     string
	Keyword  bool // "function name"
	Parens   bool // "name()"
	Body     Command
}

// Subshell is "( List )".
type Subshell struct {
	Lparen Pos
	Body   *List
}

// Group is "{ List; }".
type Group struct {
	Lbrace Pos
	Body   *List
}

// ArithCmd is "(( expr ))".
type ArithCmd struct {
	Left Pos
	X    ArithExpr
}

// TestClause is "[[ expr ]]".
type TestClause struct {
	Left Pos
	X    TestExpr
}

// Redirected applies redirections to a compound command.
type Redirected struct {
	X      Command
	Redirs []*Redirect
}

// Redirect is one redirection. N is the explicit file descriptor, if any.
// Here-documents carry their body in Hdoc.
type Redirect struct {
	OpPos Pos
	Op    Kind
	N     string
	Word  *Word
	Hdoc  *HereDoc
}

// HereDoc is the body of a "<<" or "<<-" redirection. When Quoted is set
// the body is literal; otherwise Body holds its expansions.
type HereDoc struct {
	Start     Pos
	Delim     string
	Quoted    bool
	StripTabs bool
	Raw       string
	Body      *Word
}

// Assignment is "Name[Index]=Value", "Name+=Value", "Name=(Array...)", or
// a bare Name in a declaration.
type Assignment struct {
	NamePos Pos
	Name    string
	Index   *Word
	Append  bool
	Naked   bool
	Value   *Word
	Array   *ArrayExpr
}

// ArrayExpr is "( elem... )" on the right of an assignment.
type ArrayExpr struct {
	Lparen Pos
	Elems  []*Word
}

// Word is a shell word made of adjacent parts.
type Word struct {
	Parts []WordPart
}

func (w *Word) Pos() Pos {
	if len(w.Parts) == 0 {
		return Pos{}
	}

	return w.Parts[0].Pos()
}

// Lit is literal word text, with any backslash escapes left in place.
type Lit struct {
	ValuePos Pos
	Value    string
}

// SglQuoted is '...' or, with Dollar, $'...'. Value is the raw text between
// the quotes.
type SglQuoted struct {
	Left   Pos
	Dollar bool
	Value  string
}

// DblQuoted is "..." or, with Dollar, $"...".
type DblQuoted struct {
	Left   Pos
	Dollar bool
	Parts  []WordPart
}

// ParamExp is a parameter expansion: $name, ${name}, or ${name op arg}.
// For OpSlice, Arg is the offset and Repl the optional length.
type ParamExp struct {
	Dollar   Pos
	Short    bool
	Name     string
	Length   bool // ${#name}
	Indirect bool // ${!name}
	Names    byte // '*' or '@' in ${!prefix*} and ${!prefix@}
	Index    *Word
	Op       ParamOp
	Arg      *Word
	Repl     *Word
}

// CmdSubst is $(...) or `...`.
type CmdSubst struct {
	Left      Pos
	Body      *List
	Backquote bool
}

// ArithExp is $((...)).
type ArithExp struct {
	Left Pos
	X    ArithExpr
}

// BraceExp is {a,b,c} or, with Sequence, {from..to[..step]}.
type BraceExp struct {
	Lbrace   Pos
	Sequence bool
	Elems    []*Word
}

// ProcSubst is <(...) or >(...).
type ProcSubst struct {
	OpPos Pos
	Op    Kind // LESS or GREAT
	Body  *List
}

// ParamOp is the operator of a parameter expansion.
type ParamOp int

const (
	OpNone ParamOp = iota
	OpDefault
	OpDefaultUnset
	OpAssign
	OpAssignUnset
	OpError
	OpErrorUnset
	OpAlt
	OpAltUnset
	OpRemSmallPrefix
	OpRemLargePrefix
	OpRemSmallSuffix
	OpRemLargeSuffix
	OpReplace
	OpReplaceAll
	OpReplacePrefix
	OpReplaceSuffix
	OpUpperFirst
	OpUpperAll
	OpLowerFirst
	OpLowerAll
	OpSlice
)

var paramOpText = [...]string{
	OpNone:           "",
	OpDefault:        ":-",
	OpDefaultUnset:   "-",
	OpAssign:         ":=",
	OpAssignUnset:    "=",
	OpError:          ":?",
	OpErrorUnset:     "?",
	OpAlt:            ":+",
	OpAltUnset:       "+",
	OpRemSmallPrefix: "#",
	OpRemLargePrefix: "##",
	OpRemSmallSuffix: "%",
	OpRemLargeSuffix: "%%",
	OpReplace:        "/",
	OpReplaceAll:     "//",
	OpReplacePrefix:  "/#",
	OpReplaceSuffix:  "/%",
	OpUpperFirst:     "^",
	OpUpperAll:       "^^",
	OpLowerFirst:     ",",
	OpLowerAll:       ",,",
	OpSlice:          ":",
}

func (o ParamOp) String() string { return paramOpText[o] }

// paramOps lists operators longest first so prefix matching is greedy.
var paramOps = []ParamOp{
	OpRemLargePrefix, OpRemLargeSuffix, OpReplaceAll, OpReplacePrefix,
	OpReplaceSuffix, OpUpperAll, OpLowerAll, OpDefault, OpAssign, OpError,
	OpAlt, OpDefaultUnset, OpAssignUnset, OpErrorUnset, OpAltUnset,
	OpRemSmallPrefix, OpRemSmallSuffix, OpReplace, OpUpperFirst,
	OpLowerFirst, OpSlice,
}

// ArithWord is an operand: a number, a variable name, or an expansion.
type ArithWord struct {
	Word *Word
}

// ArithBinary is "X Op Y", including assignments and the comma operator.
type ArithBinary struct {
	OpPos Pos
	Op    ArithOp
	X, Y  ArithExpr
}

// ArithUnary is a prefix or, with Post, postfix operator.
type ArithUnary struct {
	OpPos Pos
	Op    ArithOp
	Post  bool
	X     ArithExpr
}

// ArithParen is "( X )".
type ArithParen struct {
	Lparen Pos
	X      ArithExpr
}

// ArithTernary is "Cond ? Then : Else".
type ArithTernary struct {
	Cond, Then, Else ArithExpr
}

// TestBinary is "X Op Y". Op is the operator text, including "&&" and "||".
type TestBinary struct {
	OpPos Pos
	Op    string
	X, Y  TestExpr
}

// TestUnary is "Op X" for "!" and the file and string test operators.
type TestUnary struct {
	OpPos Pos
	Op    string
	X     TestExpr
}

// TestParen is "( X )".
type TestParen struct {
	Lparen Pos
	X      TestExpr
}

// TestWord is an operand.
type TestWord struct {
	Word *Word
}

func (l *List) Pos() Pos {
	if len(l.Items) > 0 {
		return l.Items[0].Pos()
	}

	return l.Start
}

func (c *AndOr) Pos() Pos      { return c.X.Pos() }
func (c *Background) Pos() Pos { return c.X.Pos() }
func (c *Pipeline) Pos() Pos {
	if c.Negated {
		return c.Bang
	}

	return c.Cmds[0].Pos()
}

func (c *SimpleCommand) Pos() Pos {
	var p Pos

	for _, a := range c.Assigns {
		p = earliest(p, a.Pos())
	}

	if len(c.Args) > 0 {
		p = earliest(p, c.Args[0].Pos())
	}

	for _, r := range c.Redirs {
		p = earliest(p, r.Pos())
	}

	return p
}

func earliest(p, q Pos) Pos {
	if !p.IsValid() || (q.IsValid() && p.After(q)) {
		return q
	}

	return p
}

func (c *DeclClause) Pos() Pos     { return c.VariantPos }
func (c *IfClause) Pos() Pos       { return c.If }
func (c *Elif) Pos() Pos           { return c.Elif }
func (c *WhileClause) Pos() Pos    { return c.While }
func (c *ForClause) Pos() Pos      { return c.For }
func (c *ArithForClause) Pos() Pos { return c.For }
func (c *SelectClause) Pos() Pos   { return c.Select }
func (c *CaseClause) Pos() Pos     { return c.Case }
func (c *CaseItem) Pos() Pos       { return c.Patterns[0].Pos() }
func (c *FuncDecl) Pos() Pos       { return c.Position }
func (c *Subshell) Pos() Pos       { return c.Lparen }
func (c *Group) Pos() Pos          { return c.Lbrace }
func (c *ArithCmd) Pos() Pos       { return c.Left }
func (c *TestClause) Pos() Pos     { return c.Left }
func (c *Redirected) Pos() Pos     { return c.X.Pos() }
func (r *Redirect) Pos() Pos {
	if r.N != "" {
		return Pos{Offset: r.OpPos.Offset - len(r.N), Line: r.OpPos.Line, Col: r.OpPos.Col - len(r.N)}
	}

	return r.OpPos
}
func (h *HereDoc) Pos() Pos    { return h.Start }
func (a *Assignment) Pos() Pos { return a.NamePos }
func (a *ArrayExpr) Pos() Pos  { return a.Lparen }

func (p *Lit) Pos() Pos       { return p.ValuePos }
func (p *SglQuoted) Pos() Pos { return p.Left }
func (p *DblQuoted) Pos() Pos { return p.Left }
func (p *ParamExp) Pos() Pos  { return p.Dollar }
func (p *CmdSubst) Pos() Pos  { return p.Left }
func (p *ArithExp) Pos() Pos  { return p.Left }
func (p *BraceExp) Pos() Pos  { return p.Lbrace }
func (p *ProcSubst) Pos() Pos { return p.OpPos }

func (x *ArithWord) Pos() Pos    { return x.Word.Pos() }
func (x *ArithBinary) Pos() Pos  { return x.X.Pos() }
func (x *ArithUnary) Pos() Pos {
	if x.Post {
		return x.X.Pos()
	}

	return x.OpPos
}
func (x *ArithParen) Pos() Pos   { return x.Lparen }
func (x *ArithTernary) Pos() Pos { return x.Cond.Pos() }

func (x *TestBinary) Pos() Pos { return x.X.Pos() }
func (x *TestUnary) Pos() Pos  { return x.OpPos }
func (x *TestParen) Pos() Pos  { return x.Lparen }
func (x *TestWord) Pos() Pos   { return x.Word.Pos() }

func (*AndOr) commandNode()          {}
func (*Pipeline) commandNode()       {}
func (*Background) commandNode()     {}
func (*SimpleCommand) commandNode()  {}
func (*DeclClause) commandNode()     {}
func (*IfClause) commandNode()       {}
func (*WhileClause) commandNode()    {}
func (*ForClause) commandNode()      {}
func (*ArithForClause) commandNode() {}
func (*SelectClause) commandNode()   {}
func (*CaseClause) commandNode()     {}
func (*FuncDecl) commandNode()       {}
func (*Subshell) commandNode()       {}
func (*Group) commandNode()          {}
func (*ArithCmd) commandNode()       {}
func (*TestClause) commandNode()     {}
func (*Redirected) commandNode()     {}

func (*Lit) wordPartNode()       {}
func (*SglQuoted) wordPartNode() {}
func (*DblQuoted) wordPartNode() {}
func (*ParamExp) wordPartNode()  {}
func (*CmdSubst) wordPartNode()  {}
func (*ArithExp) wordPartNode()  {}
func (*BraceExp) wordPartNode()  {}
func (*ProcSubst) wordPartNode() {}

func (*ArithWord) arithNode()    {}
func (*ArithBinary) arithNode()  {}
func (*ArithUnary) arithNode()   {}
func (*ArithParen) arithNode()   {}
func (*ArithTernary) arithNode() {}

func (*TestBinary) testNode() {}
func (*TestUnary) testNode()  {}
func (*TestParen) testNode()  {}
func (*TestWord) testNode()   {}

// Lit returns the word's text when it consists of a single unquoted
// literal without escapes, and ok reports whether it does.
func (w *Word) Lit() (s string, ok bool) {
	if len(w.Parts) != 1 {
		return "", len(w.Parts) == 0
	}

	lit, isLit := w.Parts[0].(*Lit)
	if !isLit {
		return "", false
	}

	for i := 0; i < len(lit.Value); i++ {
		switch lit.Value[i] {
		case '\\', '*', '?', '[':
			return "", false
		}
	}

	return lit.Value, true
}

// IsStatic reports whether w expands to a fixed string: it contains no
// parameter, command, arithmetic or process expansions.
func (w *Word) IsStatic() bool {
	return staticParts(w.Parts)
}

func staticParts(parts []WordPart) bool {
	for _, p := range parts {
		switch p := p.(type) {
		case *Lit, *SglQuoted:
		case *DblQuoted:
			if !staticParts(p.Parts) {
				return false
			}
		case *BraceExp:
			for _, e := range p.Elems {
				if !e.IsStatic() {
					return false
				}
			}
		default:
			return false
		}
	}

	return true
}
