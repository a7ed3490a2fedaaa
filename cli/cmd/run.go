package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/lower"
	"github.com/ardnew/shgo/shell"
)

// Run converts a script and executes the program in process, without
// building it.
type Run struct {
	Pipeline `embed:""`

	Script string   `arg:"" help:"Shell script to run."           name:"script" type:"path"`
	Args   []string `arg:"" help:"Arguments passed to the script." name:"args"  optional:"" passthrough:""`
}

// Run executes the run command. A non-zero script status is returned as
// an [ExitStatus].
func (r *Run) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	_, prog, _, err := r.generate(ctx, r.Script)
	if err != nil {
		return err
	}

	code := newShell(ctx, prog).Run(ctx, append([]string{r.Script}, r.Args...))

	log.DebugContext(ctx, "script finished",
		slog.String("script", r.Script),
		slog.Int("status", code))

	if code != 0 {
		return ExitStatus(code)
	}

	return nil
}

// newShell returns a shell that runs prog with the command's streams.
func newShell(ctx context.Context, prog *shell.Program) *shell.Shell {
	s := stdioFrom(ctx)

	return shell.New(prog,
		shell.WithStdio(s.in, s.out, s.err),
		shell.WithFs(fsFrom(ctx)),
		shell.WithLogger(log.Default()),
		shell.WithCompiler(lower.Compile),
	)
}
