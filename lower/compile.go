package lower

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

var _ shell.Compiler = Compile

// Compile lowers code that exists only at run time: eval text, let and
// trap handlers, and files sourced by computed names. Every file reference
// in it is resolved when it runs. Names containing a slash are files whose
// dialect is detected; anything else is parsed as bash.
func Compile(ctx context.Context, name string, src []byte) (*shell.Block, error) {
	var opts []syntax.ParseOption
	if !strings.Contains(name, "/") {
		opts = append(opts, syntax.WithDialect(syntax.Bash))
	}

	f, err := syntax.Parse(ctx, name, src, opts...)
	if err != nil {
		return nil, ErrCompile.Wrap(err).With(slog.String("name", name))
	}

	if f.Fatal() {
		return nil, ErrCompile.Wrap(f.Diagnostics.Err()).With(slog.String("name", name))
	}

	u := newUnit(ctx, &Generator{}, name)
	b := u.list(f.Body)

	if u.diags.HasFatal() {
		return nil, ErrCompile.Wrap(u.diags.Err()).With(slog.String("name", name))
	}

	return b, nil
}
