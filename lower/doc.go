// Package lower turns resolved scripts into programs the runtime executes.
//
// A [Generator] walks the syntax tree of every compilation unit of a
// [resolve.Result] and produces a [shell.Program]: control flow maps one to
// one onto runtime statements, builtins are bound by name, every other
// command is recorded as an external program, and file references become
// embedded content or paths resolved when the program runs, as the
// resolver classified them. Units are lowered concurrently.
//
// [Emit] renders a program as the source of a Go main package, and
// [Compile] lowers code that only exists at run time.
package lower
