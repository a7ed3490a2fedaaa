package cmd

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type (
	fsKey     struct{}
	stdioKey  struct{}
	configKey struct{}
)

// stdio holds the streams a command reads and writes.
type stdio struct {
	in       io.Reader
	out, err io.Writer
}

// WithFs returns a new context.Context whose commands read and write
// through fs instead of the host file system.
func WithFs(ctx context.Context, fs afero.Fs) context.Context {
	return context.WithValue(ctx, fsKey{}, fs)
}

func fsFrom(ctx context.Context) afero.Fs {
	if fs, ok := ctx.Value(fsKey{}).(afero.Fs); ok && fs != nil {
		return fs
	}

	return afero.NewOsFs()
}

// WithStdio returns a new context.Context whose commands use the given
// streams. Nil streams fall back to the process streams.
func WithStdio(ctx context.Context, in io.Reader, out, err io.Writer) context.Context {
	return context.WithValue(ctx, stdioKey{}, stdio{in: in, out: out, err: err})
}

func stdioFrom(ctx context.Context) stdio {
	s, _ := ctx.Value(stdioKey{}).(stdio)

	if s.in == nil {
		s.in = os.Stdin
	}

	if s.out == nil {
		s.out = os.Stdout
	}

	if s.err == nil {
		s.err = os.Stderr
	}

	return s
}

// WithConfig returns a new context.Context carrying the converter
// configuration.
func WithConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) Config {
	if cfg, ok := ctx.Value(configKey{}).(Config); ok {
		return cfg
	}

	return DefaultConfig()
}
