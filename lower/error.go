package lower

import "github.com/ardnew/shgo/pkg"

var (
	// ErrGenerate is the root of errors returned by [Generator.Generate].
	ErrGenerate = pkg.NewError("generate")
	// ErrUnsupported reports a construct the runtime cannot execute.
	ErrUnsupported = pkg.NewError("unsupported construct")
	// ErrCompile reports runtime code that does not parse.
	ErrCompile = pkg.NewError("compile")
	// ErrEmit reports a program that cannot be rendered as Go source.
	ErrEmit = pkg.NewError("emit")
)
