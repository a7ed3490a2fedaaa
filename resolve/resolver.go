package resolve

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// Option configures a [Resolver].
type Option func(*Resolver)

// WithLogger sets the logger for resolution events.
func WithLogger(l log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithDecisions supplies answers to decision requests.
func WithDecisions(d Decisions) Option {
	return func(r *Resolver) { r.decisions = d }
}

// WithCache shares a parse cache between resolvers.
func WithCache(c *Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithParseOptions passes opts to every parse.
func WithParseOptions(opts ...syntax.ParseOption) Option {
	return func(r *Resolver) { r.parseOpts = append(r.parseOpts, opts...) }
}

// Resolver discovers and classifies the dependencies of a script. A
// Resolver may be reused; each call to [Resolver.Resolve] starts from a
// clean state apart from the parse cache.
type Resolver struct {
	fs        afero.Fs
	cfg       Config
	logger    log.Logger
	decisions Decisions
	cache     *Cache
	parseOpts []syntax.ParseOption
}

// New returns a resolver reading files from fsys.
func New(fsys afero.Fs, cfg Config, opts ...Option) *Resolver {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}

	if cfg.MaxEmbedSize <= 0 {
		cfg.MaxEmbedSize = DefaultMaxEmbedSize
	}

	if cfg.SmallDataSize <= 0 {
		cfg.SmallDataSize = DefaultSmallDataSize
	}

	r := &Resolver{fs: fsys, cfg: cfg, cache: NewCache()}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Config returns the configuration r applies.
func (r *Resolver) Config() Config { return r.cfg }

// Result is the outcome of one resolution.
type Result struct {
	Root        string           `yaml:"root"`
	Graph       *Graph           `yaml:"-"`
	Refs        []*SourceFileRef `yaml:"refs"`
	Requests    []Request        `yaml:"requests"`
	Diagnostics diag.List        `yaml:"diagnostics"`
	Terminal    Terminal         `yaml:"terminal"`
	// Units holds every parsed unit by canonical path. Order lists them
	// in the order they were entered, root first.
	Units map[string]*syntax.File `yaml:"-"`
	Order []string                `yaml:"units"`

	refs map[syntax.Node]*SourceFileRef
}

// Fatal reports whether the result must not be passed to generation.
func (res *Result) Fatal() bool { return res.Diagnostics.HasFatal() }

// Ref returns the reference recorded for word n.
func (res *Result) Ref(n syntax.Node) (*SourceFileRef, bool) {
	ref, ok := res.refs[n]

	return ref, ok
}

// File returns the graph node a reference resolved to.
func (res *Result) File(ref *SourceFileRef) (*Node, bool) {
	return res.Graph.Node(LocalFile, refKey(ref))
}

// Binary returns the node of an external program.
func (res *Result) Binary(name string) (*Node, bool) {
	return res.Graph.Node(ExternalBinary, name)
}

func refKey(ref *SourceFileRef) string {
	if ref.Static() {
		return ref.Paths[0]
	}

	return ref.Expr
}

// Resolve parses root and every file it sources, builds the dependency
// graph and classifies each node. The returned Result is never nil; the
// error is non-nil when ctx is done or resolution found a fatal problem
// (a cycle, excessive depth, an unreadable root or a unit with fatal
// diagnostics), and the diagnostics describe it.
func (r *Resolver) Resolve(ctx context.Context, root string) (*Result, error) {
	res := &Result{Units: make(map[string]*syntax.File)}

	classifier, err := NewClassifier(r.cfg)
	if err != nil {
		return res, ErrResolve.Wrap(err)
	}

	if !filepath.IsAbs(root) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	res.Root = r.canonical(root)

	run := &run{
		Resolver: r,
		res:      res,
		graph:    NewGraph(),
		rootDir:  filepath.Dir(res.Root),
		funcs:    make(map[string]bool),
		cycles:   make(map[string]bool),
	}

	if err := run.visit(ctx, res.Root, nil, Edge{}); err != nil {
		return res, err
	}

	run.binaries()
	run.classify(classifier)
	run.graph.Freeze()

	res.Graph = run.graph
	res.refs = make(map[syntax.Node]*SourceFileRef, len(res.Refs))

	for _, ref := range res.Refs {
		res.refs[ref.Node] = ref
	}

	for _, p := range res.Order {
		res.Terminal.Merge(AnalyzeTerminal(res.Units[p]))
	}

	sortRequests(res.Requests)
	res.Diagnostics.Sort()

	r.logger.DebugContext(ctx, "resolved",
		slog.String("root", res.Root),
		slog.Int("units", len(res.Order)),
		slog.Int("nodes", res.Graph.Len()),
		slog.Int("requests", len(res.Requests)),
		slog.Int("diagnostics", len(res.Diagnostics)))

	return res, run.err
}

// canonical cleans p and, when configured, resolves symbolic links.
func (r *Resolver) canonical(p string) string {
	p = filepath.Clean(p)
	if !r.cfg.FollowSymlinks {
		return p
	}

	if _, ok := r.fs.(*afero.OsFs); ok {
		if q, err := filepath.EvalSymlinks(p); err == nil {
			return q
		}

		return p
	}

	lr, ok := r.fs.(afero.LinkReader)
	if !ok {
		return p
	}

	for range 40 {
		target, err := lr.ReadlinkIfPossible(p)
		if err != nil || target == "" {
			break
		}

		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(p), target)
		}

		p = filepath.Clean(target)
	}

	return p
}

func (r *Resolver) glob(pattern string) []string {
	m, err := afero.Glob(r.fs, pattern)
	if err != nil {
		return nil
	}

	for i, p := range m {
		m[i] = r.canonical(p)
	}

	slices.Sort(m)

	return slices.Compact(m)
}

// unit is a loaded compilation unit or the reason it could not be loaded.
type unit struct {
	file    *syntax.File
	missing bool
	dir     bool
	err     error
}

type child struct {
	path string
	edge Edge
}

type unitCommand struct {
	commandRef
	unit string
}

// run holds the state of one resolution.
type run struct {
	*Resolver

	res     *Result
	graph   *Graph
	rootDir string
	colors  colors
	flight  singleflight.Group
	loaded  sync.Map // path -> *unit
	funcs   map[string]bool
	cmds    []unitCommand
	cycles  map[string]bool
	err     error
}

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// visit enters unit p, reached from the units on chain through edge from.
// The returned error is non-nil only on cancellation.
func (r *run) visit(ctx context.Context, p string, chain []string, from Edge) error {
	if err := ctx.Err(); err != nil {
		return ErrResolve.Wrap(err).With(slog.String("path", p))
	}

	switch r.colors.claim(p) {
	case gray:
		i := slices.Index(chain, p)
		r.cycle(append(slices.Clone(chain[i:]), p), from)

		return nil
	case black:
		return nil
	}

	defer r.colors.finish(p)

	if len(chain) > r.cfg.MaxDepth {
		d := diag.New(diag.DepthExceeded, from.From, from.Line, from.Column,
			"source depth exceeds %d: %s", r.cfg.MaxDepth,
			strings.Join(append(slices.Clone(chain), p), " -> "))
		r.res.Diagnostics.Add(d)
		r.fail(ErrDepth.Wrap(d))

		return nil
	}

	u, err := r.load(ctx, p)
	if err != nil {
		return err
	}

	if u.file == nil {
		r.unreadable(p, u, chain, from)

		return nil
	}

	r.res.Units[p] = u.file
	r.res.Order = append(r.res.Order, p)
	r.res.Diagnostics.Add(u.file.Diagnostics...)

	if u.file.Fatal() {
		r.fail(ErrUnit.Wrap(u.file.Diagnostics.Err()).With(slog.String("path", p)))

		return nil
	}

	children := r.scan(p, u.file)
	r.prefetch(ctx, children)

	next := append(slices.Clone(chain), p)

	for _, c := range children {
		if err := r.visit(ctx, c.path, next, c.edge); err != nil {
			return err
		}
	}

	return nil
}

func (r *run) unreadable(p string, u *unit, chain []string, from Edge) {
	reason := "not found"

	switch {
	case u.dir:
		reason = "is a directory"
	case u.err != nil && !errors.Is(u.err, fs.ErrNotExist):
		reason = u.err.Error()
	}

	if len(chain) == 0 {
		d := diag.New(diag.MissingReference, p, 0, 0, "script %s", reason)
		d.Severity = diag.SeverityError
		r.res.Diagnostics.Add(d)
		r.fail(ErrRoot.Wrap(d).With(slog.String("path", p)))

		return
	}

	r.res.Diagnostics.Addf(diag.MissingReference, from.From, from.Line, from.Column,
		"sourced file %s %s", p, reason)
}

func (r *run) cycle(path []string, from Edge) {
	key := strings.Join(path, "\x00")
	if r.cycles[key] {
		return
	}

	r.cycles[key] = true

	d := diag.New(diag.DependencyCycle, from.From, from.Line, from.Column,
		"source cycle: %s", strings.Join(path, " -> "))
	r.res.Diagnostics.Add(d)
	r.fail(ErrCycle.Wrap(d).With(slog.String("cycle", strings.Join(path, " -> "))))
}

// load reads and parses p once per resolution. Concurrent loads of the
// same path share one read.
func (r *run) load(ctx context.Context, p string) (*unit, error) {
	if v, ok := r.loaded.Load(p); ok {
		return v.(*unit), nil
	}

	v, err, _ := r.flight.Do(p, func() (any, error) {
		if v, ok := r.loaded.Load(p); ok {
			return v, nil
		}

		u := &unit{}

		info, err := r.fs.Stat(p)

		switch {
		case err != nil:
			u.missing, u.err = true, err
		case info.IsDir():
			u.dir = true
		default:
			data, err := readFile(r.fs, p)
			if err != nil {
				u.missing, u.err = true, err

				break
			}

			f, hit, err := r.cache.Parse(ctx, p, data, r.parseOpts...)
			if err != nil {
				return nil, err
			}

			r.logger.TraceContext(ctx, "load unit",
				slog.String("path", p),
				slog.Int("bytes", len(data)),
				slog.Bool("cache_hit", hit))

			u.file = f
		}

		r.loaded.Store(p, u)

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*unit), nil
}

// prefetch loads the given units concurrently so the sequential traversal
// finds them parsed.
func (r *run) prefetch(ctx context.Context, children []child) {
	if len(children) < 2 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Parallel > 0 {
		g.SetLimit(r.cfg.Parallel)
	}

	for _, c := range children {
		g.Go(func() error {
			_, err := r.load(gctx, c.path)

			return err
		})
	}

	// Failures resurface when the traversal loads the unit itself.
	_ = g.Wait()
}

// scan records the references of unit p and returns the units it sources.
func (r *run) scan(p string, f *syntax.File) []child {
	c := newCollector(p, r.glob)
	c.collect(f)

	var children []child

	for _, ref := range c.refs {
		for i, q := range ref.Paths {
			ref.Paths[i] = r.canonical(q)
		}

		r.res.Refs = append(r.res.Refs, ref)

		edge := Edge{From: p, Line: ref.Line, Column: ref.Column, Sourced: ref.Usage.Sourced}

		n, err := r.graph.Add(LocalFile, refKey(ref), ref.Usage, edge)
		if err != nil {
			continue
		}

		if !ref.Static() {
			n.Expr = ref.Expr
			n.Paths = union(n.Paths, ref.Paths)

			// Sourced glob matches are followed so their units are known.
			if ref.Usage.Sourced {
				for _, q := range ref.Paths {
					if _, err := r.graph.Add(LocalFile, q, ref.Usage, edge); err == nil {
						children = append(children, child{path: q, edge: edge})
					}
				}
			}

			continue
		}

		if ref.Usage.Sourced {
			children = append(children, child{path: ref.Paths[0], edge: edge})
		}
	}

	for _, u := range c.urls {
		edge := Edge{From: p, Line: u.pos.Line, Column: u.pos.Col}
		_, _ = r.graph.Add(NetworkResource, u.url, Usage{Reads: 1}, edge)
	}

	for _, cmd := range c.cmds {
		r.cmds = append(r.cmds, unitCommand{commandRef: cmd, unit: p})
	}

	for name := range f.Symbols.Root().Funcs {
		r.funcs[name] = true
	}

	if f.Meta != nil {
		for _, dep := range f.Meta.Dependencies {
			r.cmds = append(r.cmds, unitCommand{commandRef: commandRef{name: dep}, unit: p})
		}
	}

	return children
}

// binaries adds a node for every external program invoked by a unit.
func (r *run) binaries() {
	builtins := shell.Builtins()

	for _, cmd := range r.cmds {
		if r.funcs[cmd.name] {
			continue
		}

		edge := Edge{From: cmd.unit, Line: cmd.pos.Line, Column: cmd.pos.Col}

		n, err := r.graph.Add(ExternalBinary, cmd.name, Usage{Executed: true}, edge)
		if err != nil || n.Rule != "" {
			continue
		}

		n.Rule = "external"

		if hint := suggest(cmd.name, builtins); hint != "" && cmd.pos.IsValid() {
			d := diag.New(diag.Notice, cmd.unit, cmd.pos.Line, cmd.pos.Col,
				"%s is not a builtin and runs as an external program", cmd.name)
			d.Hint = "did you mean " + hint + "?"
			r.res.Diagnostics.Add(d)
		}
	}
}

// suggest returns a builtin name that name is likely a misspelling of.
func suggest(name string, builtins []string) string {
	if len(name) < 4 || strings.Contains(name, "/") {
		return ""
	}

	for _, m := range fuzzy.Find(name, builtins) {
		if d := len(m.Str) - len(name); d > 0 && d <= 2 {
			return m.Str
		}
	}

	return ""
}

// classify decides every node and records the requests left for the
// decision maker.
func (r *run) classify(c *Classifier) {
	if n, err := r.graph.Add(LocalFile, r.res.Root, Usage{Sourced: true}, Edge{}); err == nil {
		n.Class, n.Rule, n.Choice, n.Exists = Embed, "entry", Embed, true
	}

	for _, n := range r.graph.Nodes() {
		switch n.Kind {
		case LocalFile:
			if n.Rule != "entry" {
				r.classifyFile(c, n)
			}
		case ExternalBinary:
			r.classifyBinary(n)
		case NetworkResource:
			n.Class, n.Rule, n.Choice = Runtime, "network", Runtime
		}
	}
}

func (r *run) classifyFile(c *Classifier, n *Node) {
	if n.Expr != "" {
		n.Class, n.Rule = ContextDependent, "dynamic"
		n.Choice = r.decide(n, Request{
			Kind:    RequestPath,
			Subject: n.Expr,
			Options: []string{ChoiceRuntime},
			Default: ChoiceRuntime,
			Reason:  "path depends on values known only at run time",
		})

		return
	}

	if info, err := r.fs.Stat(n.Path); err == nil {
		n.Exists = true

		if !info.IsDir() {
			n.Size = info.Size()
		}
	}

	v := c.Classify(NewSubject(filepath.ToSlash(n.Path), filepath.ToSlash(r.rootDir), n.Exists, n.Size, n.Usage))
	n.Class, n.Rule = v.Class, v.Rule

	if v.Overruled != "" {
		r.logger.Debug("classification overruled",
			slog.String("path", n.Path),
			slog.String("rule", v.Rule),
			slog.String("overruled", v.Overruled))
	}

	switch v.Class {
	case Embed, Runtime:
		n.Choice = v.Class
	default:
		edge := firstEdge(n)
		r.res.Diagnostics.Addf(diag.ClassificationAmbiguity, edge.From, edge.Line, edge.Column,
			"no rule classifies %s; defaulting to runtime", n.Path)

		n.Choice = r.decide(n, Request{
			Kind:    RequestClassify,
			Subject: n.Path,
			Options: []string{ChoiceEmbed, ChoiceRuntime},
			Default: ChoiceRuntime,
			Reason:  "no classification rule matched",
		})
	}

	r.logger.Trace("classified",
		slog.String("path", n.Path),
		slog.String("class", n.Class.String()),
		slog.String("rule", n.Rule),
		slog.String("choice", n.Choice.String()))
}

func (r *run) classifyBinary(n *Node) {
	if slices.Contains(r.cfg.SystemBinaries, n.Path) {
		n.Class, n.Rule, n.Choice = Runtime, "system-binary", Runtime

		return
	}

	n.Class = Unresolved
	n.BundlePath = r.bundleCandidate(n.Path)

	req := Request{
		Kind:    RequestBinary,
		Subject: n.Path,
		Options: []string{ChoiceBundle, ChoiceSystem},
		Default: ChoiceSystem,
		Reason:  "external program",
	}

	if n.BundlePath != "" {
		req.Default = ChoiceBundle
	}

	choice := r.decide(n, req)
	if choice == Embed && n.BundlePath == "" {
		edge := firstEdge(n)
		r.res.Diagnostics.Addf(diag.MissingReference, edge.From, edge.Line, edge.Column,
			"cannot bundle %s: not found in bundle directories", n.Path)

		choice = Runtime
	}

	n.Choice = choice
	n.Bundle = choice == Embed
}

// bundleCandidate returns the file that would be bundled for program name.
func (r *run) bundleCandidate(name string) string {
	if filepath.IsAbs(name) {
		if info, err := r.fs.Stat(name); err == nil && !info.IsDir() && within(r.rootDir, name) {
			return name
		}

		return ""
	}

	for _, dir := range r.cfg.BundleDirs {
		p := filepath.Join(dir, name)
		if info, err := r.fs.Stat(p); err == nil && !info.IsDir() {
			return r.canonical(p)
		}
	}

	return ""
}

// decide records req and returns the class its answer selects.
func (r *run) decide(n *Node, req Request) Class {
	r.res.Requests = append(r.res.Requests, req)

	choice, rejected := r.decisions.answer(req)
	if rejected != nil {
		edge := firstEdge(n)
		d := diag.New(diag.Notice, edge.From, edge.Line, edge.Column,
			"decision %q for %s %s is not one of %s; using %q",
			rejected.Choice, req.Kind, req.Subject, strings.Join(req.Options, ", "), req.Default)
		d.Severity = diag.SeverityWarning
		r.res.Diagnostics.Add(d)
	}

	switch choice {
	case ChoiceEmbed, ChoiceBundle:
		return Embed
	default:
		return Runtime
	}
}

func firstEdge(n *Node) Edge {
	if len(n.Edges) == 0 {
		return Edge{}
	}

	e := slices.MinFunc(n.Edges, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}

		return a.Line - b.Line
	})

	return e
}
