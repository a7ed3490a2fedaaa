// Package shell is the runtime of generated programs.
//
// A [Program] is the lowered form of a script: statements, sourced units,
// embedded file content and the external programs the script may run. It
// is encoded with [Encode] into the generated source and decoded by the
// generated main function, which hands it to [Main].
//
// A [Shell] executes a program with the semantics of the script it came
// from: word expansion, parameter operators, arithmetic, pipelines of
// concurrent stages, redirections, functions with dynamically scoped
// locals, traps and background jobs. Builtins are implemented natively and
// every other command runs as a host process with the shell's environment.
//
// Code that only exists at run time (eval, let, trap handlers and files
// sourced by computed names) needs a [Compiler], installed with
// [WithCompiler].
package shell
