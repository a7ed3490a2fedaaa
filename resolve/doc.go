// Package resolve discovers everything a script depends on and decides how
// each dependency reaches the generated program.
//
// [Resolver.Resolve] parses the root script, follows every file it sources
// and records each file, external program and URL in a [Graph]. Sourced
// files are traversed depth first with three-color marking, so a chain of
// source statements that returns to a file on the chain is reported once as
// a DependencyCycle diagnostic naming the whole chain.
//
// Files are classified by an ordered list of [Rule] values grouped into
// categories (system, sensitive, size, static, context). The first matching
// rule wins, except that a fail-closed classifier lets a later runtime rule
// overrule an embed verdict. Custom rules are expr-lang expressions over a
// [Subject]. What the rules cannot decide becomes a [Request] answered by
// [Decisions] or by the request default.
package resolve
