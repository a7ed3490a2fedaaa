package lower

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/pkg"
	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// Option configures a [Generator].
type Option func(*Generator)

// WithLogger sets the logger for generation events.
func WithLogger(l log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithFs sets the file system embedded content is read from. It should be
// the one the resolver used.
func WithFs(fs afero.Fs) Option {
	return func(g *Generator) {
		if fs != nil {
			g.fs = fs
		}
	}
}

// WithName sets the program name. The default is the base name of the
// root script without its extension.
func WithName(name string) Option {
	return func(g *Generator) { g.name = name }
}

// WithParallel limits the number of units lowered at once. Zero or less
// means no limit.
func WithParallel(n int) Option {
	return func(g *Generator) { g.parallel = n }
}

// WithOptions enables shell options at program start in addition to those
// given on the root script's shebang line.
func WithOptions(o shell.Options) Option {
	return func(g *Generator) { g.opts = o }
}

// Generator lowers the units of one resolution into a program.
type Generator struct {
	res      *resolve.Result
	fs       afero.Fs
	logger   log.Logger
	name     string
	parallel int
	opts     shell.Options

	// Filled by collect before units are lowered and read-only afterwards.
	embeds    map[string][]byte
	externals []shell.External
	extIndex  map[string]int
	units     map[string]bool
}

// New returns a generator for res.
func New(res *resolve.Result, opts ...Option) *Generator {
	g := &Generator{res: res, fs: afero.NewOsFs()}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Generate lowers every unit of the resolution. The diagnostics are those
// found during generation; the error is non-nil when the resolution was
// fatal, ctx is done, or a construct cannot be lowered.
func (g *Generator) Generate(ctx context.Context) (*shell.Program, diag.List, error) {
	if g.res == nil || g.res.Graph == nil {
		return nil, nil, ErrGenerate.Wrap(errors.New("no resolution"))
	}

	if g.res.Fatal() {
		return nil, nil, ErrGenerate.Wrap(g.res.Diagnostics.Err()).
			With(slog.String("root", g.res.Root))
	}

	root, ok := g.res.Units[g.res.Root]
	if !ok {
		return nil, nil, ErrGenerate.Wrap(errors.New("root unit was not parsed")).
			With(slog.String("root", g.res.Root))
	}

	var diags diag.List

	g.collect(&diags)

	paths := g.unitPaths()
	blocks := make([]*shell.Block, len(paths))
	found := make([]diag.List, len(paths))

	eg, ectx := errgroup.WithContext(ctx)
	if g.parallel > 0 {
		eg.SetLimit(g.parallel)
	}

	for i, p := range paths {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return ErrGenerate.Wrap(err).With(slog.String("unit", p))
			}

			u := newUnit(ectx, g, p)
			blocks[i] = u.list(g.res.Units[p].Body)
			found[i] = u.diags

			g.logger.TraceContext(ectx, "lowered unit",
				slog.String("unit", p),
				slog.Int("statements", len(blocks[i].Stmts)),
				slog.Int("diagnostics", len(u.diags)))

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	for _, l := range found {
		diags.Add(l...)
	}

	diags.Sort()

	if diags.HasFatal() {
		return nil, diags, ErrGenerate.Wrap(diags.Err()).With(slog.String("root", g.res.Root))
	}

	prog := &shell.Program{
		Name:      g.programName(),
		Dialect:   root.Dialect.String(),
		Main:      blocks[0],
		Units:     make(map[string]*shell.Block, len(paths)-1),
		Embeds:    g.embeds,
		Externals: g.externals,
		Meta:      g.meta(root),
		Options:   g.options(root),
	}

	for i, p := range paths[1:] {
		prog.Units[p] = blocks[i+1]
	}

	g.logger.DebugContext(ctx, "generated program",
		slog.String("name", prog.Name),
		slog.Int("units", len(prog.Units)),
		slog.Int("embeds", len(prog.Embeds)),
		slog.Int("externals", len(prog.Externals)))

	return prog, diags, nil
}

// unitPaths returns the root followed by every sourced unit compiled into
// the program, in resolution order.
func (g *Generator) unitPaths() []string {
	paths := []string{g.res.Root}

	for _, p := range g.res.Order {
		if p != g.res.Root && g.units[p] {
			paths = append(paths, p)
		}
	}

	return paths
}

// collect reads embedded content and numbers the external programs so that
// units can be lowered independently.
func (g *Generator) collect(diags *diag.List) {
	g.embeds = make(map[string][]byte)
	g.extIndex = make(map[string]int)
	g.units = map[string]bool{g.res.Root: true}

	for _, n := range g.res.Graph.Nodes() {
		switch n.Kind {
		case resolve.LocalFile:
			if n.Unit() && n.Choice == resolve.Embed && n.Expr == "" {
				if _, ok := g.res.Units[n.Path]; ok {
					g.units[n.Path] = true
				}
			}

			if !g.embeddable(n) {
				continue
			}

			data, err := g.read(n.Path)
			if err != nil {
				e := origin(n)
				diags.Addf(diag.MissingReference, e.From, e.Line, e.Column,
					"cannot embed %s: %v; it is read at run time", n.Path, err)

				continue
			}

			g.embeds[n.Path] = data
		case resolve.ExternalBinary:
			e := origin(n)
			ext := shell.External{Name: n.Path, Line: e.Line, Unit: e.From}

			if n.Bundle {
				data, err := g.read(n.BundlePath)
				if err != nil {
					diags.Addf(diag.MissingReference, e.From, e.Line, e.Column,
						"cannot bundle %s: %v; it runs from PATH", n.Path, err)
				} else {
					ext.Bundle, ext.Path = true, n.BundlePath
					g.embeds[n.BundlePath] = data
				}
			}

			g.extIndex[n.Path] = len(g.externals)
			g.externals = append(g.externals, ext)
		}
	}
}

// embeddable reports whether the content of file node n is captured now.
// Scripts that are only sourced are lowered instead.
func (g *Generator) embeddable(n *resolve.Node) bool {
	switch {
	case n.Choice != resolve.Embed, n.Expr != "", !n.Exists, n.Path == g.res.Root:
		return false
	case n.Usage.Modified():
		return false
	case n.Usage.Sourced && n.Usage.Reads == 0:
		return false
	}

	info, err := g.fs.Stat(n.Path)

	return err == nil && !info.IsDir()
}

func (g *Generator) read(p string) ([]byte, error) {
	return afero.ReadFile(g.fs, p)
}

// external returns the index of the external program name, or -1.
func (g *Generator) external(name string) int {
	if i, ok := g.extIndex[name]; ok {
		return i
	}

	return -1
}

func (g *Generator) programName() string {
	if g.name != "" {
		return g.name
	}

	base := filepath.Base(g.res.Root)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (g *Generator) meta(root *syntax.File) shell.Meta {
	m := shell.Meta{
		Terminal:  g.res.Terminal.Requirement.String(),
		Features:  slices.Clone(g.res.Terminal.Features),
		Generator: pkg.Name + " " + pkg.Version(),
	}

	if root.Meta != nil {
		m.Shebang = root.Meta.Shebang
		m.Version = root.Meta.Version
		m.Author = root.Meta.Author
		m.Description = root.Meta.Description
		m.Dependencies = slices.Clone(root.Meta.Dependencies)
	}

	return m
}

// options merges the generator's options with the flags of the root
// script's shebang line, such as "#!/bin/bash -eu" or "-o pipefail".
func (g *Generator) options(root *syntax.File) shell.Options {
	o := g.opts
	if root.Meta == nil {
		return o
	}

	return ShebangOptions(root.Meta.Shebang, o)
}

// ShebangOptions adds the shell options named by the flags of shebang to o.
func ShebangOptions(shebang string, o shell.Options) shell.Options {
	words, err := shlex.Split(strings.TrimPrefix(shebang, "#!"), true)
	if err != nil || len(words) < 2 {
		return o
	}

	long := map[string]*bool{
		"errexit":  &o.Errexit,
		"nounset":  &o.Nounset,
		"pipefail": &o.Pipefail,
		"xtrace":   &o.Xtrace,
		"noglob":   &o.Noglob,
	}

	short := map[rune]*bool{'e': &o.Errexit, 'u': &o.Nounset, 'x': &o.Xtrace, 'f': &o.Noglob}

	for i := 1; i < len(words); i++ {
		w := words[i]

		switch {
		case w == "-o" && i+1 < len(words):
			if p, ok := long[words[i+1]]; ok {
				*p = true
			}

			i++
		case len(w) > 1 && w[0] == '-' && w[1] != '-':
			for _, c := range w[1:] {
				if p, ok := short[c]; ok {
					*p = true
				}
			}
		}
	}

	return o
}

// origin returns the earliest edge of n.
func origin(n *resolve.Node) resolve.Edge {
	if len(n.Edges) == 0 {
		return resolve.Edge{}
	}

	return slices.MinFunc(n.Edges, func(a, b resolve.Edge) int {
		return cmp.Or(strings.Compare(a.From, b.From), cmp.Compare(a.Line, b.Line))
	})
}
