package resolve

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// SourceFileRef is a file path expression found in a unit.
type SourceFileRef struct {
	Unit   string      `yaml:"unit"`
	Expr   string      `yaml:"expr"`
	Node   syntax.Node `yaml:"-"`
	Line   int         `yaml:"line"`
	Column int         `yaml:"column"`
	// Paths approximates the concrete files the expression names: one
	// entry for a static path, the matches of a glob, or none when the
	// expression depends on values unknown before execution.
	Paths   []string `yaml:"paths,omitempty"`
	Dynamic bool     `yaml:"dynamic,omitempty"`
	Usage   Usage    `yaml:"usage"`
}

// Static reports whether the reference names exactly one known path.
func (r *SourceFileRef) Static() bool { return !r.Dynamic && len(r.Paths) == 1 }

type commandRef struct {
	name string
	pos  syntax.Pos
}

type urlRef struct {
	url string
	pos syntax.Pos
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"'{}|\\^` + "`" + `\[\]]+`)

// Commands whose operands are files.
var (
	readCommands = set("cat", "less", "more", "head", "tail", "wc", "sort", "uniq",
		"cut", "md5sum", "sha1sum", "sha256sum", "diff", "cmp", "base64",
		"xxd", "od", "strings", "file", "stat", "nl", "tac", "paste", "column")
	patternCommands = set("grep", "egrep", "fgrep", "sed", "awk", "jq")
	monitorCommands = set("inotifywait", "inotifywatch", "fswatch", "watch")
	writeCommands   = set("rm", "unlink", "touch", "truncate", "mkdir", "rmdir", "shred")
	modeCommands    = set("chmod", "chown", "chgrp")
	copyCommands    = set("cp", "mv", "install", "ln", "rsync")
	wrapCommands    = set("command", "exec", "nohup", "sudo", "env", "time", "nice", "xargs", "timeout")
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}

	return m
}

// litKind classifies the result of evaluating a word at conversion time.
type litKind int

const (
	litStatic litKind = iota
	litGlob
	litDynamic
)

// collector gathers references from one unit in source order.
type collector struct {
	unit  string
	dir   string
	glob  func(pattern string) []string
	vars  map[string]string
	refs  []*SourceFileRef
	cmds  []commandRef
	urls  []urlRef
	guard map[string]bool
	loop  int
	cond  int
}

func newCollector(unit string, glob func(string) []string) *collector {
	return &collector{
		unit:  unit,
		dir:   filepath.Dir(unit),
		glob:  glob,
		vars:  make(map[string]string),
		guard: make(map[string]bool),
	}
}

// collect walks f and returns what it references.
func (c *collector) collect(f *syntax.File) {
	c.list(f.Body)

	for _, r := range c.refs {
		for _, p := range r.Paths {
			if c.guard[p] {
				r.Usage.Guarded = true
			}
		}
	}
}

func (c *collector) list(l *syntax.List) {
	if l == nil {
		return
	}

	for _, cmd := range l.Items {
		c.command(cmd)
	}
}

func (c *collector) condition(l *syntax.List) {
	c.cond++
	c.list(l)
	c.cond--
}

func (c *collector) loopBody(l *syntax.List) {
	c.loop++
	c.list(l)
	c.loop--
}

func (c *collector) command(cmd syntax.Command) {
	switch x := cmd.(type) {
	case *syntax.AndOr:
		c.cond++
		c.command(x.X)
		c.cond--
		c.command(x.Y)
	case *syntax.Pipeline:
		for _, s := range x.Cmds {
			c.command(s)
		}
	case *syntax.Background:
		c.command(x.X)
	case *syntax.SimpleCommand:
		c.simple(x)
	case *syntax.DeclClause:
		for _, w := range x.Opts {
			c.words(w)
		}

		for _, a := range x.Assigns {
			c.assign(a)
		}

		c.redirects(x.Redirs)
	case *syntax.IfClause:
		c.condition(x.Cond)
		c.list(x.Then)

		for _, e := range x.Elifs {
			c.condition(e.Cond)
			c.list(e.Then)
		}

		c.list(x.Else)
	case *syntax.WhileClause:
		c.loop++
		c.condition(x.Cond)
		c.loop--
		c.loopBody(x.Body)
	case *syntax.ForClause:
		c.forItems(x.Items)
		delete(c.vars, x.Name)
		c.loopBody(x.Body)
	case *syntax.SelectClause:
		c.forItems(x.Items)
		delete(c.vars, x.Name)
		c.loopBody(x.Body)
	case *syntax.ArithForClause:
		c.arith(x.Init)
		c.arith(x.Cond)
		c.arith(x.Post)
		c.loopBody(x.Body)
	case *syntax.CaseClause:
		c.words(x.Word)

		for _, it := range x.Items {
			c.list(it.Body)
		}
	case *syntax.FuncDecl:
		c.command(x.Body)
	case *syntax.Subshell:
		c.list(x.Body)
	case *syntax.Group:
		c.list(x.Body)
	case *syntax.ArithCmd:
		c.arith(x.X)
	case *syntax.TestClause:
		c.test(x.X)
	case *syntax.Redirected:
		c.command(x.X)
		c.redirects(x.Redirs)
	}
}

func (c *collector) forItems(items []*syntax.Word) {
	for _, w := range items {
		c.words(w)

		if looksLikePath(w) {
			c.ref(w, Usage{Reads: 1}, "for")
		}
	}
}

func (c *collector) arith(x syntax.ArithExpr) {
	if x == nil {
		return
	}

	syntax.Walk(x, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.CmdSubst:
			c.list(n.Body)

			return false
		case *syntax.ArithBinary:
			if w, ok := n.X.(*syntax.ArithWord); ok && n.Op.IsAssign() {
				if name, ok := w.Word.Lit(); ok {
					delete(c.vars, name)
				}
			}
		}

		return true
	})
}

// test records paths checked by file test operators.
func (c *collector) test(x syntax.TestExpr) {
	syntax.Walk(x, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.TestUnary:
			if w, ok := n.X.(*syntax.TestWord); ok && isFileTest(n.Op) {
				c.guardWord(w.Word)
			}
		case *syntax.Word:
			c.words(n)

			return false
		}

		return true
	})
}

func isFileTest(op string) bool {
	switch op {
	case "-e", "-a", "-f", "-d", "-r", "-w", "-x", "-s", "-L", "-h", "-b", "-c", "-p", "-S":
		return true
	}

	return false
}

func (c *collector) guardWord(w *syntax.Word) {
	if s, kind := c.literal(w); kind == litStatic && s != "" {
		c.guard[c.abs(s)] = true
	}
}

// words scans w for nested command substitutions and URLs.
func (c *collector) words(w *syntax.Word) {
	if w == nil {
		return
	}

	syntax.Walk(w, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.CmdSubst:
			c.list(n.Body)

			return false
		case *syntax.ProcSubst:
			c.list(n.Body)

			return false
		case *syntax.Lit:
			c.scanURLs(n.Value, n.ValuePos)
		case *syntax.SglQuoted:
			c.scanURLs(n.Value, n.Left)
		}

		return true
	})
}

func (c *collector) scanURLs(s string, pos syntax.Pos) {
	for _, u := range urlRe.FindAllString(s, -1) {
		c.urls = append(c.urls, urlRef{url: u, pos: pos})
	}
}

func (c *collector) assign(a *syntax.Assignment) {
	c.words(a.Value)
	c.words(a.Index)

	if a.Array != nil {
		for _, e := range a.Array.Elems {
			c.words(e)
		}
	}

	if a.Naked {
		return
	}

	if a.Array != nil || a.Index != nil || a.Value == nil {
		delete(c.vars, a.Name)

		return
	}

	v, kind := c.literal(a.Value)
	if kind != litStatic {
		delete(c.vars, a.Name)

		return
	}

	if a.Append {
		v = c.vars[a.Name] + v
	}

	c.vars[a.Name] = v
}

func (c *collector) redirects(rs []*syntax.Redirect) {
	for _, r := range rs {
		if r.Hdoc != nil {
			c.words(r.Hdoc.Body)

			continue
		}

		c.words(r.Word)

		var u Usage

		switch r.Op {
		case syntax.LESS:
			u.Reads = 1
		case syntax.GREAT, syntax.CLOBBER, syntax.ANDGREAT:
			u.Writes = 1
		case syntax.DGREAT, syntax.ANDDGREAT:
			u.Appends = 1
		case syntax.LESSGREAT:
			u.Reads, u.Writes = 1, 1
		case syntax.LESSAND, syntax.GREATAND:
			if s, ok := r.Word.Lit(); ok && (s == "-" || isNumber(s)) {
				continue
			}

			u.Writes = 1
		default:
			continue
		}

		c.ref(r.Word, u, "")
	}
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

func (c *collector) simple(sc *syntax.SimpleCommand) {
	for _, a := range sc.Assigns {
		if len(sc.Args) == 0 {
			c.assign(a)
		} else {
			c.words(a.Value)
		}
	}

	for _, w := range sc.Args {
		c.words(w)
	}

	c.redirects(sc.Redirs)

	if len(sc.Args) == 0 {
		return
	}

	args := sc.Args

	for {
		name, kind := c.literal(args[0])
		if kind != litStatic || name == "" {
			return
		}

		c.invoke(name, args[0].Pos())

		if !wrapCommands[name] {
			c.operands(name, args[1:])

			return
		}

		rest := skipWrapperOptions(name, args[1:])
		if len(rest) == 0 {
			return
		}

		args = rest
	}
}

// skipWrapperOptions drops the options of a command that runs another
// command, leaving the wrapped command first.
func skipWrapperOptions(name string, args []*syntax.Word) []*syntax.Word {
	for i, w := range args {
		s, ok := w.Value()
		switch {
		case !ok:
			return args[i:]
		case s == "--":
			return args[i+1:]
		case strings.HasPrefix(s, "-"):
			continue
		case name == "env" && strings.Contains(s, "="):
			continue
		case (name == "timeout" || name == "nice") && isNumber(strings.TrimSuffix(s, "s")):
			continue
		}

		return args[i:]
	}

	return nil
}

func (c *collector) invoke(name string, pos syntax.Pos) {
	if syntax.IsKeyword(name) {
		return
	}

	if strings.Contains(name, "/") {
		c.cmds = append(c.cmds, commandRef{name: c.abs(name), pos: pos})

		return
	}

	if !shell.IsBuiltin(name) {
		c.cmds = append(c.cmds, commandRef{name: name, pos: pos})
	}
}

// operands applies the usage heuristics of command name to its arguments.
func (c *collector) operands(name string, args []*syntax.Word) {
	b, _ := shell.LookupBuiltin(name)

	switch {
	case b.IsSource():
		if len(args) > 0 {
			c.ref(args[0], Usage{Reads: 1, Sourced: true}, name)
		}
	case b == shell.BuiltinTest || b == shell.BuiltinBracket:
		for i := 0; i+1 < len(args); i++ {
			if op, ok := args[i].Lit(); ok && isFileTest(op) {
				c.guardWord(args[i+1])
			}
		}
	case b == shell.BuiltinRead || b == shell.BuiltinGetopts:
		for _, w := range args {
			if s, ok := w.Lit(); ok && syntax.IsName(s) {
				delete(c.vars, s)
			}
		}
	case readCommands[name]:
		u := Usage{Reads: 1}
		if name == "tail" && hasFlag(args, "-f", "-F", "--follow") {
			u.Monitored = true
		}

		c.files(name, plain(args), u)
	case patternCommands[name]:
		c.patternOperands(name, args)
	case monitorCommands[name]:
		for _, w := range plain(args) {
			if name != "watch" || looksLikePath(w) {
				c.ref(w, Usage{Monitored: true}, name)
			}
		}
	case writeCommands[name]:
		c.files(name, plain(args), Usage{Writes: 1})
	case modeCommands[name]:
		if ops := plain(args); len(ops) > 1 {
			c.files(name, ops[1:], Usage{Writes: 1})
		}
	case name == "tee":
		u := Usage{Writes: 1}
		if hasFlag(args, "-a", "--append") {
			u = Usage{Appends: 1}
		}

		c.files(name, plain(args), u)
	case copyCommands[name]:
		ops := plain(args)
		if len(ops) < 2 {
			return
		}

		src := Usage{Reads: 1}
		if name == "mv" {
			src.Writes = 1
		}

		c.files(name, ops[:len(ops)-1], src)
		c.files(name, ops[len(ops)-1:], Usage{Writes: 1})
	case name == "dd":
		for _, w := range args {
			s, _ := w.Value()
			switch {
			case strings.HasPrefix(s, "if="):
				c.refText(w, s[3:], Usage{Reads: 1}, name)
			case strings.HasPrefix(s, "of="):
				c.refText(w, s[3:], Usage{Writes: 1}, name)
			}
		}
	case name == "curl" || name == "wget":
		c.network(name, args)
	default:
		for _, w := range args {
			if looksLikePath(w) {
				c.ref(w, Usage{Reads: 1}, name)
			}
		}
	}
}

// patternOperands handles commands whose first operand is a pattern or
// program unless one is given with -e or -f.
func (c *collector) patternOperands(name string, args []*syntax.Word) {
	inPlace := name == "sed" && hasFlag(args, "-i", "--in-place")
	explicit := false

	var files []*syntax.Word

	for i := 0; i < len(args); i++ {
		s, _ := args[i].Value()

		switch {
		case s == "-e" || s == "--regexp" || s == "--expression":
			explicit = true
			i++
		case s == "-f" || s == "--file":
			explicit = true

			if i+1 < len(args) {
				c.ref(args[i+1], Usage{Reads: 1}, name)
			}

			i++
		case strings.HasPrefix(s, "-") && s != "-":
		default:
			files = append(files, args[i])
		}
	}

	if !explicit && len(files) > 0 {
		files = files[1:]
	}

	u := Usage{Reads: 1}
	if inPlace {
		u.Writes = 1
	}

	c.files(name, files, u)
}

func (c *collector) network(name string, args []*syntax.Word) {
	out := "-o"
	if name == "wget" {
		out = "-O"
	}

	for i := 0; i+1 < len(args); i++ {
		s, _ := args[i].Value()
		if s != out && s != "--output" && s != "--output-document" {
			continue
		}

		if t, _ := args[i+1].Value(); t != "-" {
			c.ref(args[i+1], Usage{Writes: 1}, name)
		}

		i++
	}
}

func (c *collector) files(cmd string, ws []*syntax.Word, u Usage) {
	for _, w := range ws {
		if s, ok := w.Value(); ok && (s == "-" || s == "." || urlRe.MatchString(s)) {
			continue
		}

		c.ref(w, u, cmd)
	}
}

// plain returns the operands of a command line, skipping options.
func plain(args []*syntax.Word) []*syntax.Word {
	var out []*syntax.Word

	dashdash := false

	for _, w := range args {
		s, ok := w.Value()
		if !dashdash && ok {
			if s == "--" {
				dashdash = true

				continue
			}

			if strings.HasPrefix(s, "-") && s != "-" {
				continue
			}
		}

		out = append(out, w)
	}

	return out
}

func hasFlag(args []*syntax.Word, flags ...string) bool {
	for _, w := range args {
		s, ok := w.Value()
		if !ok || !strings.HasPrefix(s, "-") {
			continue
		}

		if slices.Contains(flags, s) {
			return true
		}

		// Combined short options: -qf
		if len(s) > 2 && s[1] != '-' {
			for _, f := range flags {
				if len(f) == 2 && strings.IndexByte(s[1:], f[1]) >= 0 {
					return true
				}
			}
		}
	}

	return false
}

// looksLikePath reports whether w is shaped like a file path rather than
// an ordinary argument.
func looksLikePath(w *syntax.Word) bool {
	s, ok := w.Value()
	if !ok {
		lit, isLit := firstLit(w)
		if !isLit {
			return false
		}

		s = lit
	}

	if urlRe.MatchString(s) {
		return false
	}

	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") || strings.HasPrefix(s, "~/")
}

func firstLit(w *syntax.Word) (string, bool) {
	if len(w.Parts) == 0 {
		return "", false
	}

	switch p := w.Parts[0].(type) {
	case *syntax.Lit:
		return syntax.Unescape(p.Value), true
	case *syntax.SglQuoted:
		return p.Value, true
	}

	return "", false
}

func (c *collector) refText(w *syntax.Word, text string, u Usage, cmd string) {
	r := c.newRef(w, u, cmd)
	r.Paths = []string{c.abs(text)}
	c.refs = append(c.refs, r)
}

// ref records the file named by w.
func (c *collector) ref(w *syntax.Word, u Usage, cmd string) {
	if w == nil {
		return
	}

	r := c.newRef(w, u, cmd)
	s, kind := c.literal(w)

	switch kind {
	case litStatic:
		if s == "" {
			return
		}

		r.Paths = []string{c.abs(s)}
	case litGlob:
		r.Dynamic = true
		if c.glob != nil {
			r.Paths = c.glob(c.abs(s))
		}
	case litDynamic:
		r.Dynamic = true
	}

	c.refs = append(c.refs, r)
}

func (c *collector) newRef(w *syntax.Word, u Usage, cmd string) *SourceFileRef {
	pos := w.Pos()

	u.InLoop = u.InLoop || c.loop > 0
	u.InCondition = u.InCondition || c.cond > 0

	if cmd != "" {
		u.Commands = []string{cmd}
	}

	return &SourceFileRef{
		Unit:   c.unit,
		Expr:   syntax.String(w),
		Node:   w,
		Line:   pos.Line,
		Column: pos.Col,
		Usage:  u,
	}
}

func (c *collector) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.dir, p)
}

// literal evaluates w using the literal assignments seen so far. Globs
// keep their pattern characters.
func (c *collector) literal(w *syntax.Word) (string, litKind) {
	var sb strings.Builder

	kind := litStatic
	if w.HasGlob() {
		kind = litGlob
	}

	if !c.literalParts(&sb, w.Parts, false, kind == litGlob) {
		return "", litDynamic
	}

	if strings.HasPrefix(sb.String(), "~") {
		return "", litDynamic
	}

	return sb.String(), kind
}

func (c *collector) literalParts(sb *strings.Builder, parts []syntax.WordPart, quoted, glob bool) bool {
	for _, p := range parts {
		switch p := p.(type) {
		case *syntax.Lit:
			switch {
			case quoted:
				sb.WriteString(syntax.UnescapeDouble(p.Value))
			case glob:
				sb.WriteString(unescapeKeepGlob(p.Value))
			default:
				sb.WriteString(syntax.Unescape(p.Value))
			}
		case *syntax.SglQuoted:
			if p.Dollar {
				sb.WriteString(syntax.UnescapeAnsiC(p.Value))
			} else {
				sb.WriteString(p.Value)
			}
		case *syntax.DblQuoted:
			if !c.literalParts(sb, p.Parts, true, glob) {
				return false
			}
		case *syntax.ParamExp:
			if p.Op != syntax.OpNone || p.Length || p.Indirect || p.Index != nil {
				return false
			}

			v, ok := c.vars[p.Name]
			if !ok {
				return false
			}

			sb.WriteString(v)
		default:
			return false
		}
	}

	return true
}

// unescapeKeepGlob removes escapes except those protecting pattern
// characters, so a later glob sees them as literals.
func unescapeKeepGlob(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '*', '?', '[', '\\':
				sb.WriteByte('\\')
			case '\n':
				i++

				continue
			}

			i++
		}

		sb.WriteByte(s[i])
	}

	return sb.String()
}
