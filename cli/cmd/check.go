package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
)

// Check validates scripts without writing anything. Each script is
// resolved and lowered so that every diagnostic conversion would report
// is found.
type Check struct {
	Pipeline `embed:""`

	Strict bool `help:"Treat warnings as errors."`

	Scripts []string `arg:"" help:"Shell scripts to check." name:"script" type:"path"`
}

// Run executes the check command.
func (c *Check) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	var failed []error

	for _, script := range c.Scripts {
		if err := c.check(ctx, script); err != nil {
			failed = append(failed, err)
		}
	}

	if len(failed) > 0 {
		return ErrDiagnostics.Wrap(errors.Join(failed...)).With(slog.Int("failed", len(failed)))
	}

	return nil
}

func (c *Check) check(ctx context.Context, script string) error {
	_, _, diags, err := c.generate(ctx, script)
	if err != nil {
		return err
	}

	if c.Strict {
		if warn := diags.Filter(diag.SeverityWarning); len(warn) > 0 {
			return fmt.Errorf("%s: %d warnings", script, len(warn))
		}
	}

	if !c.Quiet {
		fmt.Fprintf(stdioFrom(ctx).out, "%s: ok\n", script)
	}

	log.DebugContext(ctx, "checked",
		slog.String("script", script),
		slog.Int("diagnostics", len(diags)))

	return nil
}
