package resolve

import "github.com/ardnew/shgo/pkg"

var (
	// ErrResolve is the root of errors returned by [Resolver.Resolve].
	ErrResolve = pkg.NewError("resolve")
	// ErrCycle reports a chain of source statements that returns to a file
	// already on the chain.
	ErrCycle = pkg.NewError("dependency cycle")
	// ErrDepth reports a chain of source statements deeper than allowed.
	ErrDepth = pkg.NewError("maximum source depth exceeded")
	// ErrUnit reports a compilation unit with fatal diagnostics.
	ErrUnit = pkg.NewError("unit has fatal diagnostics")
	// ErrRoot reports a root script that cannot be read.
	ErrRoot = pkg.NewError("cannot read script")
	// ErrRule reports an invalid custom classification rule.
	ErrRule = pkg.NewError("invalid classification rule")
	// ErrFrozen reports a mutation of a frozen graph.
	ErrFrozen = pkg.NewError("graph is frozen")
)
