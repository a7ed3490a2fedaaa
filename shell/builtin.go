package shell

import (
	"slices"
	"strconv"
)

// Builtin identifies a command implemented natively by the runtime. The set
// is closed: names that do not map to a Builtin are functions or external
// programs.
type Builtin int

const (
	NotBuiltin Builtin = iota
	BuiltinColon
	BuiltinTrue
	BuiltinFalse
	BuiltinEcho
	BuiltinPrintf
	BuiltinCd
	BuiltinPwd
	BuiltinPushd
	BuiltinPopd
	BuiltinDirs
	BuiltinExport
	BuiltinUnset
	BuiltinLocal
	BuiltinReadonly
	BuiltinDeclare
	BuiltinTypeset
	BuiltinRead
	BuiltinTest
	BuiltinBracket
	BuiltinExit
	BuiltinReturn
	BuiltinBreak
	BuiltinContinue
	BuiltinShift
	BuiltinSet
	BuiltinSource
	BuiltinDot
	BuiltinEval
	BuiltinExec
	BuiltinTrap
	BuiltinWait
	BuiltinJobs
	BuiltinFg
	BuiltinBg
	BuiltinKill
	BuiltinLet
	BuiltinGetopts
	BuiltinType
	BuiltinCommand
	BuiltinUmask
	BuiltinTimes
	BuiltinAlias
	BuiltinUnalias
	BuiltinHash
	BuiltinHelp
	numBuiltins
)

var builtinName = [numBuiltins]string{
	NotBuiltin:      "",
	BuiltinColon:    ":",
	BuiltinTrue:     "true",
	BuiltinFalse:    "false",
	BuiltinEcho:     "echo",
	BuiltinPrintf:   "printf",
	BuiltinCd:       "cd",
	BuiltinPwd:      "pwd",
	BuiltinPushd:    "pushd",
	BuiltinPopd:     "popd",
	BuiltinDirs:     "dirs",
	BuiltinExport:   "export",
	BuiltinUnset:    "unset",
	BuiltinLocal:    "local",
	BuiltinReadonly: "readonly",
	BuiltinDeclare:  "declare",
	BuiltinTypeset:  "typeset",
	BuiltinRead:     "read",
	BuiltinTest:     "test",
	BuiltinBracket:  "[",
	BuiltinExit:     "exit",
	BuiltinReturn:   "return",
	BuiltinBreak:    "break",
	BuiltinContinue: "continue",
	BuiltinShift:    "shift",
	BuiltinSet:      "set",
	BuiltinSource:   "source",
	BuiltinDot:      ".",
	BuiltinEval:     "eval",
	BuiltinExec:     "exec",
	BuiltinTrap:     "trap",
	BuiltinWait:     "wait",
	BuiltinJobs:     "jobs",
	BuiltinFg:       "fg",
	BuiltinBg:       "bg",
	BuiltinKill:     "kill",
	BuiltinLet:      "let",
	BuiltinGetopts:  "getopts",
	BuiltinType:     "type",
	BuiltinCommand:  "command",
	BuiltinUmask:    "umask",
	BuiltinTimes:    "times",
	BuiltinAlias:    "alias",
	BuiltinUnalias:  "unalias",
	BuiltinHash:     "hash",
	BuiltinHelp:     "help",
}

// builtinAlias lists extra names accepted for a builtin.
var builtinAlias = map[string]Builtin{
	"include": BuiltinSource,
}

var builtinByName = func() map[string]Builtin {
	m := make(map[string]Builtin, len(builtinName)+len(builtinAlias))
	for b, name := range builtinName {
		if name != "" {
			m[name] = Builtin(b)
		}
	}

	for name, b := range builtinAlias {
		m[name] = b
	}

	return m
}()

func (b Builtin) String() string {
	if b >= 0 && b < numBuiltins {
		return builtinName[b]
	}

	return "Builtin(" + strconv.Itoa(int(b)) + ")"
}

// MarshalText encodes b by name so lowered programs stay readable.
func (b Builtin) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText decodes a builtin name.
func (b *Builtin) UnmarshalText(text []byte) error {
	*b, _ = LookupBuiltin(string(text))

	return nil
}

// LookupBuiltin returns the builtin named name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinByName[name]

	return b, ok
}

// IsBuiltin reports whether name is implemented natively.
func IsBuiltin(name string) bool {
	_, ok := builtinByName[name]

	return ok
}

// Builtins returns every builtin name, including aliases, in sorted order.
func Builtins() []string {
	names := make([]string, 0, len(builtinByName))
	for name := range builtinByName {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// IsSource reports whether b reads and runs another file in the current
// shell.
func (b Builtin) IsSource() bool { return b == BuiltinSource || b == BuiltinDot }

// IsDecl reports whether b declares variables.
func (b Builtin) IsDecl() bool {
	switch b {
	case BuiltinExport, BuiltinLocal, BuiltinReadonly, BuiltinDeclare, BuiltinTypeset:
		return true
	}

	return false
}

// Special reports whether b is a POSIX special builtin: assignments
// preceding it persist, and its errors abort a non-interactive shell.
func (b Builtin) Special() bool {
	switch b {
	case BuiltinColon, BuiltinBreak, BuiltinContinue, BuiltinDot, BuiltinEval,
		BuiltinExec, BuiltinExit, BuiltinExport, BuiltinReadonly, BuiltinReturn,
		BuiltinSet, BuiltinShift, BuiltinTimes, BuiltinTrap, BuiltinUnset:
		return true
	}

	return false
}
