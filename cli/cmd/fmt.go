package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/syntax"
)

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// Fmt re-renders scripts in canonical form.
type Fmt struct {
	Write   bool   `help:"Write the result back to each file instead of stdout." short:"w"`
	Dump    bool   `help:"Print the syntax tree instead of the script."`
	Dialect string `help:"Parse as this dialect instead of detecting it."        placeholder:"NAME"`

	Sources []string `arg:"" default:"-" help:"Scripts to format, or '-' for stdin." name:"source"`
}

// Run executes the fmt command.
func (f *Fmt) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	var opts []syntax.ParseOption

	if f.Dialect != "" {
		d, err := syntax.ParseDialect(f.Dialect)
		if err != nil {
			return ErrDialect.Wrap(err).With(slog.String("dialect", f.Dialect))
		}

		opts = append(opts, syntax.WithDialect(d))
	}

	opts = append(opts, syntax.WithLogger(log.Default()))

	for _, src := range f.Sources {
		if err := f.format(ctx, src, opts); err != nil {
			return err
		}
	}

	return nil
}

func (f *Fmt) format(ctx context.Context, src string, opts []syntax.ParseOption) error {
	fs := fsFrom(ctx)
	std := stdioFrom(ctx)

	var (
		text []byte
		err  error
	)

	if src == stdinSource {
		text, err = io.ReadAll(std.in)
	} else {
		text, err = afero.ReadFile(fs, src)
	}

	if err != nil {
		return ErrOutput.Wrap(err).With(slog.String("source", src))
	}

	file, err := syntax.Parse(ctx, src, text, opts...)
	if err != nil {
		return ErrDiagnostics.Wrap(err).With(slog.String("source", src))
	}

	if len(file.Diagnostics) > 0 {
		_ = diag.Render(std.err, file.Diagnostics)
	}

	if file.Fatal() {
		return ErrDiagnostics.Wrap(file.Diagnostics.Err()).With(slog.String("source", src))
	}

	var out bytes.Buffer

	if f.Dump {
		err = syntax.Dump(&out, file)
	} else {
		err = syntax.Print(&out, file)
	}

	if err != nil {
		return ErrOutput.Wrap(err).With(slog.String("source", src))
	}

	if !f.Write || src == stdinSource || f.Dump {
		_, err = std.out.Write(out.Bytes())

		return err
	}

	if bytes.Equal(out.Bytes(), text) {
		return nil
	}

	info, err := fs.Stat(src)
	if err != nil {
		return ErrOutput.Wrap(err).With(slog.String("source", src))
	}

	if err := afero.WriteFile(fs, src, out.Bytes(), info.Mode().Perm()); err != nil {
		return ErrOutput.Wrap(err).With(slog.String("source", src))
	}

	log.DebugContext(ctx, "formatted", slog.String("source", src))

	return nil
}
