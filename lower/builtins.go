package lower

import (
	"strconv"
	"strings"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// lowerFunc lowers a call to a builtin named statically. call holds the
// generic lowering; the function may check its operands or replace it.
type lowerFunc func(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt

// builtinLowering has one entry for every builtin. It is filled in init
// because its functions reach back into statement lowering.
var builtinLowering map[shell.Builtin]lowerFunc

func init() {
	builtinLowering = map[shell.Builtin]lowerFunc{
		shell.BuiltinColon:    lowerCall,
		shell.BuiltinTrue:     lowerCall,
		shell.BuiltinFalse:    lowerCall,
		shell.BuiltinEcho:     lowerCall,
		shell.BuiltinPrintf:   lowerPrintf,
		shell.BuiltinCd:       lowerCall,
		shell.BuiltinPwd:      lowerCall,
		shell.BuiltinPushd:    lowerCall,
		shell.BuiltinPopd:     lowerCall,
		shell.BuiltinDirs:     lowerCall,
		shell.BuiltinExport:   lowerCall,
		shell.BuiltinUnset:    lowerCall,
		shell.BuiltinLocal:    lowerCall,
		shell.BuiltinReadonly: lowerCall,
		shell.BuiltinDeclare:  lowerCall,
		shell.BuiltinTypeset:  lowerCall,
		shell.BuiltinRead:     lowerCall,
		shell.BuiltinTest:     lowerCall,
		shell.BuiltinBracket:  lowerBracket,
		shell.BuiltinExit:     lowerStatus,
		shell.BuiltinReturn:   lowerStatus,
		shell.BuiltinBreak:    lowerLoop,
		shell.BuiltinContinue: lowerLoop,
		shell.BuiltinShift:    lowerStatus,
		shell.BuiltinSet:      lowerCall,
		shell.BuiltinSource:   lowerSource,
		shell.BuiltinDot:      lowerSource,
		shell.BuiltinEval:     lowerEval,
		shell.BuiltinExec:     lowerCall,
		shell.BuiltinTrap:     lowerTrap,
		shell.BuiltinWait:     lowerCall,
		shell.BuiltinJobs:     lowerCall,
		shell.BuiltinFg:       lowerCall,
		shell.BuiltinBg:       lowerCall,
		shell.BuiltinKill:     lowerCall,
		shell.BuiltinLet:      lowerLet,
		shell.BuiltinGetopts:  lowerCall,
		shell.BuiltinType:     lowerCall,
		shell.BuiltinCommand:  lowerCall,
		shell.BuiltinUmask:    lowerCall,
		shell.BuiltinTimes:    lowerCall,
		shell.BuiltinAlias:    lowerAlias,
		shell.BuiltinUnalias:  lowerCall,
		shell.BuiltinHash:     lowerCall,
		shell.BuiltinHelp:     lowerCall,
	}
}

func lowerBuiltin(u *unit, b shell.Builtin, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	fn, ok := builtinLowering[b]
	if !ok {
		u.errorf(diag.GenerationError, c.Pos(), "no lowering for builtin %s", b)

		return call
	}

	return fn(u, c, call)
}

func lowerCall(_ *unit, _ *syntax.SimpleCommand, call *shell.Call) shell.Stmt { return call }

// lowerSource runs a sourced unit compiled into the program. Sources
// named at run time, or with prefix assignments, stay calls.
func lowerSource(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if len(c.Args) < 2 || len(call.Assigns) > 0 {
		return call
	}

	ref, n, ok := u.ref(c.Args[1])
	if !ok || !ref.Static() || !u.g.units[n.Path] {
		return call
	}

	return &shell.Source{Pos: call.Pos, Unit: n.Path, Args: call.Args[2:], Redirs: call.Redirs}
}

func lowerEval(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if text, ok := staticText(c.Args[1:]); ok && text != "" {
		u.checkCode(c.Pos(), "eval", text)
	}

	return call
}

func lowerTrap(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if len(c.Args) < 3 {
		return call
	}

	handler, ok := c.Args[1].Value()
	if !ok || handler == "-" || handler == "" || isInteger(handler) || strings.HasPrefix(handler, "-") {
		return call
	}

	u.checkCode(c.Args[1].Pos(), "trap", handler)

	return call
}

func lowerLet(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	for _, w := range c.Args[1:] {
		text, ok := w.Value()
		if !ok {
			continue
		}

		f, err := syntax.Parse(u.ctx, u.path, []byte("(("+text+"))"), syntax.WithDialect(syntax.Bash))
		if err == nil && f.Fatal() {
			u.warnf(w.Pos(), "let: %q is not a valid expression", text)
		}
	}

	return call
}

// lowerStatus checks the numeric operand of exit, return and shift.
func lowerStatus(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if len(c.Args) < 2 {
		return call
	}

	if v, ok := c.Args[1].Value(); ok && !isInteger(v) {
		u.warnf(c.Args[1].Pos(), "%s: %s: numeric argument required", call.Builtin, v)
	}

	return call
}

func lowerLoop(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if len(c.Args) < 2 {
		return call
	}

	v, ok := c.Args[1].Value()
	if !ok {
		return call
	}

	if n, err := strconv.Atoi(v); err != nil || n < 1 {
		u.warnf(c.Args[1].Pos(), "%s: %s: loop count out of range", call.Builtin, v)
	}

	return call
}

func lowerBracket(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if v, ok := c.Args[len(c.Args)-1].Value(); !ok || v != "]" {
		u.warnf(c.Pos(), "[: missing `]'")
	}

	return call
}

func lowerPrintf(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	args := c.Args[1:]
	if len(args) > 1 {
		if v, ok := args[0].Value(); ok && v == "-v" {
			args = args[2:]
		}
	}

	if len(args) == 0 {
		u.warnf(c.Pos(), "printf: missing format")
	}

	return call
}

func lowerAlias(u *unit, c *syntax.SimpleCommand, call *shell.Call) shell.Stmt {
	if len(c.Args) > 1 {
		d := diag.New(diag.Notice, u.path, c.Pos().Line, c.Pos().Col,
			"aliases are recorded but not expanded in the converted program")
		u.diags.Add(d)
	}

	return call
}

// checkCode reports static code passed to eval or trap that does not parse.
func (u *unit) checkCode(pos syntax.Pos, what, text string) {
	f, err := syntax.Parse(u.ctx, what, []byte(text), syntax.WithDialect(syntax.Bash))
	if err != nil || !f.Fatal() {
		return
	}

	for _, d := range f.Diagnostics {
		if d.Fatal() {
			u.warnf(pos, "%s: code does not parse: %s", what, d.Message)

			return
		}
	}
}

func (u *unit) warnf(pos syntax.Pos, format string, args ...any) {
	d := diag.New(diag.Notice, u.path, pos.Line, pos.Col, format, args...)
	d.Severity = diag.SeverityWarning
	u.diags.Add(d)
}

// staticText joins words that all have fixed values with spaces.
func staticText(ws []*syntax.Word) (string, bool) {
	vals := make([]string, len(ws))

	for i, w := range ws {
		v, ok := w.Value()
		if !ok {
			return "", false
		}

		vals[i] = v
	}

	return strings.Join(vals, " "), true
}

func isInteger(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)

	return err == nil
}
