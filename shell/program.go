package shell

import (
	"bytes"
	"encoding/gob"
	"io"
	"log/slog"
	"slices"

	"github.com/ardnew/shgo/syntax"
)

// Program is a lowered script: the statements of the entry unit, every
// sourced unit compiled into the program, the content of embedded files and
// the external programs the script may run.
type Program struct {
	Name    string
	Dialect string
	Main    *Block
	// Units holds sourced scripts by canonical path.
	Units map[string]*Block
	// Embeds holds file content captured at generation time, keyed by the
	// canonical path it was read from. Bundled programs are stored here too.
	Embeds    map[string][]byte
	Externals []External
	Meta      Meta
	Options   Options
}

// External is a program the script runs that is not a builtin or function.
type External struct {
	Name string `yaml:"name"`
	// Bundle is set when the program's binary is stored in Embeds under Path.
	Bundle bool   `yaml:"bundle,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Line   int    `yaml:"line,omitempty"`
	Unit   string `yaml:"unit,omitempty"`
}

// Meta describes the script a program was generated from.
type Meta struct {
	Shebang      string   `yaml:"shebang,omitempty"`
	Version      string   `yaml:"version,omitempty"`
	Author       string   `yaml:"author,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Terminal     string   `yaml:"terminal,omitempty"`
	Features     []string `yaml:"features,omitempty"`
	Generator    string   `yaml:"generator,omitempty"`
}

// Options are the shell options in effect when the program starts.
type Options struct {
	Errexit  bool `yaml:"errexit,omitempty"`
	Nounset  bool `yaml:"nounset,omitempty"`
	Pipefail bool `yaml:"pipefail,omitempty"`
	Xtrace   bool `yaml:"xtrace,omitempty"`
	Noglob   bool `yaml:"noglob,omitempty"`
}

// External returns the external program named name.
func (p *Program) External(name string) (External, bool) {
	i := slices.IndexFunc(p.Externals, func(e External) bool { return e.Name == name })
	if i < 0 {
		return External{}, false
	}

	return p.Externals[i], true
}

// Pos is a source position.
type Pos struct {
	Line int
	Col  int
}

// Block is a sequence of statements from one unit.
type Block struct {
	File  string
	Stmts []Stmt
}

// Stmt is an executable statement.
type Stmt interface {
	stmtNode()
}

// Call runs a function, builtin or external program. Builtin is resolved
// at generation time when the command name is static; External indexes
// Program.Externals, or is -1.
type Call struct {
	Pos      Pos
	Assigns  []*Assign
	Args     []*Word
	Redirs   []*Redir
	Builtin  Builtin
	External int
}

// Assign sets a variable. Array is used for "name=(...)".
type Assign struct {
	Name    string
	Index   *Word
	Append  bool
	Value   *Word
	IsArray bool
	Array   []*Word
}

// Decl is export, local, readonly, declare or typeset.
type Decl struct {
	Pos     Pos
	Variant Builtin
	Opts    []*Word
	Assigns []*Assign
	Redirs  []*Redir
}

// AndOr is "X && Y" or, with Or set, "X || Y".
type AndOr struct {
	Or   bool
	X, Y Stmt
}

// Pipeline connects the output of each stage to the input of the next.
// Stderr[i] joins the error stream of stage i as well.
type Pipeline struct {
	Negated bool
	Stages  []Stmt
	Stderr  []bool
}

// Background runs X asynchronously.
type Background struct {
	X Stmt
}

// If runs Then when Cond succeeds and Else otherwise. An elif chain is an
// If nested in Else.
type If struct {
	Cond, Then, Else *Block
}

// While loops while Cond succeeds, or until it succeeds with Until set.
type While struct {
	Until      bool
	Cond, Body *Block
}

// For iterates Name over Items, or over the positional parameters when
// InParams is set.
type For struct {
	Name     string
	InParams bool
	Items    []*Word
	Body     *Block
}

// ArithFor is the C-style for loop.
type ArithFor struct {
	Init, Cond, Post ArithExpr
	Body             *Block
}

// Select prints a numbered menu of Items and runs Body with the choice.
type Select struct {
	Name     string
	InParams bool
	Items    []*Word
	Body     *Block
}

// CaseTerm is the terminator of a case arm.
type CaseTerm uint8

const (
	// CaseBreak ends the case statement (";;").
	CaseBreak CaseTerm = iota
	// CaseFallthrough runs the next arm's body (";&").
	CaseFallthrough
	// CaseContinue tests the following arms (";;&").
	CaseContinue
)

// Case runs the body of the first arm with a pattern matching Word.
type Case struct {
	Word *Word
	Arms []*CaseArm
}

// CaseArm is one "pattern) body" arm.
type CaseArm struct {
	Patterns []*Word
	Body     *Block
	Term     CaseTerm
}

// FuncDef defines a function when executed.
type FuncDef struct {
	Name string
	Body Stmt
}

// Subshell runs Body in a copy of the shell state.
type Subshell struct {
	Body *Block
}

// Group runs Body in the current shell.
type Group struct {
	Body *Block
}

// ArithCmd is "(( X ))"; it succeeds when X is non-zero.
type ArithCmd struct {
	X ArithExpr
}

// Test is "[[ X ]]".
type Test struct {
	X TestExpr
}

// Redirected applies Redirs around X.
type Redirected struct {
	X      Stmt
	Redirs []*Redir
}

// Source runs a unit compiled into the program in the current shell. Args,
// when present, replace the positional parameters for its duration.
type Source struct {
	Pos    Pos
	Unit   string
	Args   []*Word
	Redirs []*Redir
}

func (*Block) stmtNode()      {}
func (*Call) stmtNode()       {}
func (*Decl) stmtNode()       {}
func (*AndOr) stmtNode()      {}
func (*Pipeline) stmtNode()   {}
func (*Background) stmtNode() {}
func (*If) stmtNode()         {}
func (*While) stmtNode()      {}
func (*For) stmtNode()        {}
func (*ArithFor) stmtNode()   {}
func (*Select) stmtNode()     {}
func (*Case) stmtNode()       {}
func (*FuncDef) stmtNode()    {}
func (*Subshell) stmtNode()   {}
func (*Group) stmtNode()      {}
func (*ArithCmd) stmtNode()   {}
func (*Test) stmtNode()       {}
func (*Redirected) stmtNode() {}
func (*Source) stmtNode()     {}

// RedirOp is a redirection operator.
type RedirOp uint8

const (
	RedirIn         RedirOp = iota // <
	RedirOut                       // >
	RedirAppend                    // >>
	RedirDupIn                     // <&
	RedirDupOut                    // >&
	RedirReadWrite                 // <>
	RedirClobber                   // >|
	RedirHeredoc                   // << and <<-
	RedirHerestring                // <<<
	RedirAll                       // &>
	RedirAllAppend                 // &>>
)

// Redir is a redirection of descriptor N, or of the operator's default
// descriptor when N is -1. Here-documents carry their expanded body in Word.
type Redir struct {
	N    int
	Op   RedirOp
	Word *Word
}

// Word is a shell word made of adjacent parts.
type Word struct {
	Parts []Part
}

// Part is a piece of a word.
type Part interface {
	partNode()
}

// Lit is literal text. Quoted text takes no part in pattern matching.
type Lit struct {
	Text   string
	Quoted bool
}

// Quoted is a double-quoted sequence: its expansions are neither split nor
// globbed.
type Quoted struct {
	Parts []Part
}

// Param is a parameter expansion.
type Param struct {
	Name     string
	Length   bool
	Indirect bool
	Names    byte
	Index    *Word
	Op       syntax.ParamOp
	Arg      *Word
	Repl     *Word
}

// Subst is command substitution.
type Subst struct {
	Body *Block
}

// Arith is arithmetic expansion.
type Arith struct {
	X ArithExpr
}

// Brace is brace expansion. A Seq brace has two or three literal elements:
// from, to and an optional step.
type Brace struct {
	Seq   bool
	Elems []*Word
}

// Tilde is a leading "~" or "~user".
type Tilde struct {
	User string
}

// EmbedPath names a file whose content is stored in Program.Embeds. It
// expands to the path of a private copy created on first use; input
// redirections read the content directly.
type EmbedPath struct {
	Key string
}

// RuntimePath is a file reference resolved when the program runs. Expr is
// the source text of the reference.
type RuntimePath struct {
	Word *Word
	Expr string
}

func (*Lit) partNode()         {}
func (*Quoted) partNode()      {}
func (*Param) partNode()       {}
func (*Subst) partNode()       {}
func (*Arith) partNode()       {}
func (*Brace) partNode()       {}
func (*Tilde) partNode()       {}
func (*EmbedPath) partNode()   {}
func (*RuntimePath) partNode() {}

// ArithExpr is an integer expression.
type ArithExpr interface {
	arithNode()
}

// ArithNum is a numeric literal in any base the shell accepts.
type ArithNum struct {
	Text string
}

// ArithVar is a variable, optionally indexed.
type ArithVar struct {
	Name  string
	Index ArithExpr
}

// ArithWord is an expansion whose value is evaluated as an expression.
type ArithWord struct {
	Word *Word
}

// ArithBinary is "X Op Y", including assignment and comma.
type ArithBinary struct {
	Op   syntax.ArithOp
	X, Y ArithExpr
}

// ArithUnary is a prefix operator or, with Post, a postfix one.
type ArithUnary struct {
	Op   syntax.ArithOp
	Post bool
	X    ArithExpr
}

// ArithTernary is "Cond ? Then : Else".
type ArithTernary struct {
	Cond, Then, Else ArithExpr
}

func (*ArithNum) arithNode()     {}
func (*ArithVar) arithNode()     {}
func (*ArithWord) arithNode()    {}
func (*ArithBinary) arithNode()  {}
func (*ArithUnary) arithNode()   {}
func (*ArithTernary) arithNode() {}

// TestExpr is a "[[ ]]" expression.
type TestExpr interface {
	testNode()
}

// TestBinary is "X Op Y".
type TestBinary struct {
	Op   string
	X, Y TestExpr
}

// TestUnary is "Op X".
type TestUnary struct {
	Op string
	X  TestExpr
}

// TestWord is an operand.
type TestWord struct {
	Word *Word
}

func (*TestBinary) testNode() {}
func (*TestUnary) testNode()  {}
func (*TestWord) testNode()   {}

func init() {
	for _, v := range []any{
		&Block{}, &Call{}, &Decl{}, &AndOr{}, &Pipeline{}, &Background{},
		&If{}, &While{}, &For{}, &ArithFor{}, &Select{}, &Case{}, &FuncDef{},
		&Subshell{}, &Group{}, &ArithCmd{}, &Test{}, &Redirected{}, &Source{},
		&Lit{}, &Quoted{}, &Param{}, &Subst{}, &Arith{}, &Brace{}, &Tilde{},
		&EmbedPath{}, &RuntimePath{},
		&ArithNum{}, &ArithVar{}, &ArithWord{}, &ArithBinary{}, &ArithUnary{},
		&ArithTernary{},
		&TestBinary{}, &TestUnary{}, &TestWord{},
	} {
		gob.Register(v)
	}
}

// Encode writes p in the binary form generated programs embed.
func Encode(w io.Writer, p *Program) error {
	if err := gob.NewEncoder(w).Encode(p); err != nil {
		return ErrProgram.Wrap(err).With(slog.String("op", "encode"))
	}

	return nil
}

// Decode reads a program written by [Encode].
func Decode(r io.Reader) (*Program, error) {
	var p Program
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, ErrProgram.Wrap(err).With(slog.String("op", "decode"))
	}

	return &p, nil
}

// Load decodes a program from b.
func Load(b []byte) (*Program, error) { return Decode(bytes.NewReader(b)) }
