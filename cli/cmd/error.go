package cmd

import (
	"strconv"

	"github.com/ardnew/shgo/pkg"
)

var (
	ErrConfig      = pkg.NewError("load configuration")
	ErrDecisions   = pkg.NewError("load decisions")
	ErrWriteConfig = pkg.NewError("write configuration file")
	ErrFileExists  = pkg.NewError("file exists (use --force to overwrite)")
	ErrDialect     = pkg.NewError("unsupported dialect")
	ErrDiagnostics = pkg.NewError("script has errors")
	ErrOutput      = pkg.NewError("write output")
	ErrWatch       = pkg.NewError("watch")
)

// ExitStatus is returned by commands that finish with a non-zero status
// but nothing further to report, such as a script run by the run command.
type ExitStatus int

func (e ExitStatus) Error() string { return "exit status " + strconv.Itoa(int(e)) }
