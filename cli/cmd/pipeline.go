package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/lower"
	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// Pipeline holds the flags shared by commands that resolve a script.
type Pipeline struct {
	Decisions string `help:"YAML file answering resolution requests." placeholder:"FILE" short:"d" type:"path"`
	Dialect   string `help:"Parse as this dialect instead of detecting it (${dialects})." placeholder:"NAME"`
	Quiet     bool   `help:"Only report errors."                                           short:"q"`

	cache *resolve.Cache
}

// resolve parses script and everything it sources. Diagnostics are
// reported before returning.
func (p *Pipeline) resolve(ctx context.Context, script string) (*resolve.Result, error) {
	cfg := configFrom(ctx)
	fs := fsFrom(ctx)

	path := p.Decisions
	if path == "" {
		path = cfg.Generate.Decisions
	}

	decisions, err := LoadDecisions(fs, path)
	if err != nil {
		return nil, err
	}

	if p.cache == nil {
		p.cache = resolve.NewCache()
	}

	opts := []resolve.Option{
		resolve.WithLogger(log.Default()),
		resolve.WithDecisions(decisions),
		resolve.WithCache(p.cache),
	}

	if p.Dialect != "" {
		d, err := syntax.ParseDialect(p.Dialect)
		if err != nil {
			return nil, ErrDialect.Wrap(err).With(slog.String("dialect", p.Dialect))
		}

		opts = append(opts, resolve.WithParseOptions(syntax.WithDialect(d)))
	}

	log.DebugContext(ctx, "resolve",
		slog.String("script", script),
		slog.Int("decisions", len(decisions)))

	res, err := resolve.New(fs, cfg.Resolve, opts...).Resolve(ctx, script)
	p.report(ctx, res.Diagnostics)

	if err != nil {
		return res, ErrDiagnostics.Wrap(err).With(slog.String("script", script))
	}

	return res, nil
}

// generate resolves script and lowers it into a program. The returned
// list holds the diagnostics of both stages.
func (p *Pipeline) generate(ctx context.Context, script string) (*resolve.Result, *shell.Program, diag.List, error) {
	res, err := p.resolve(ctx, script)
	if err != nil {
		var diags diag.List
		if res != nil {
			diags = res.Diagnostics
		}

		return res, nil, diags, err
	}

	cfg := configFrom(ctx)

	prog, diags, err := lower.New(res,
		lower.WithFs(fsFrom(ctx)),
		lower.WithLogger(log.Default()),
		lower.WithParallel(cfg.Generate.Parallel),
		lower.WithOptions(cfg.Generate.Options),
	).Generate(ctx)
	p.report(ctx, diags)

	all := append(slices.Clone(res.Diagnostics), diags...)

	if err != nil {
		return res, nil, all, ErrDiagnostics.Wrap(err).With(slog.String("script", script))
	}

	return res, prog, all, nil
}

// report renders diags on the error stream, leaving out warnings and
// notices when quiet.
func (p *Pipeline) report(ctx context.Context, diags diag.List) {
	if p.Quiet {
		diags = diags.Filter(diag.SeverityError)
	}

	if len(diags) == 0 {
		return
	}

	if err := diag.Render(stdioFrom(ctx).err, diags); err != nil {
		log.WarnContext(ctx, "render diagnostics", slog.Any("error", err))
	}
}

// programName is the base name of script without its extension.
func programName(script string) string {
	base := filepath.Base(script)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
