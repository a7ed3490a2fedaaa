package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ardnew/shgo/log"
)

// defaultPath is the search path used when the environment has none.
const defaultPath = "/usr/local/bin:/usr/local/sbin:/usr/bin:/usr/sbin:/bin:/sbin:."

// Compiler turns script text into a block. It serves eval, let, trap
// handlers and sourcing of files that were not compiled into the program.
type Compiler func(ctx context.Context, name string, src []byte) (*Block, error)

// Option configures a [Shell].
type Option func(*Shell)

// WithStdio sets the standard streams. Nil values keep the default.
func WithStdio(in io.Reader, out, err io.Writer) Option {
	return func(s *Shell) {
		if in != nil {
			s.io.in = in
		}

		if out != nil {
			s.io.out = out
		}

		if err != nil {
			s.io.err = err
		}
	}
}

// WithEnv sets the initial environment as "KEY=VALUE" entries.
func WithEnv(environ []string) Option {
	return func(s *Shell) { s.env = NewEnv(environ) }
}

// WithDir sets the initial working directory.
func WithDir(dir string) Option {
	return func(s *Shell) { s.dir = dir }
}

// WithFs sets the file system used for redirections, globbing, tests and
// runtime file references. External programs always see the host.
func WithFs(fs afero.Fs) Option {
	return func(s *Shell) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithLogger sets the logger for runtime events.
func WithLogger(l log.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithCompiler sets the compiler for code built at run time.
func WithCompiler(c Compiler) Option {
	return func(s *Shell) { s.compile = c }
}

// WithPipefail overrides the program's pipefail option.
func WithPipefail(on bool) Option {
	return func(s *Shell) { s.opts.Pipefail = on }
}

// WithErrexit overrides the program's errexit option.
func WithErrexit(on bool) Option {
	return func(s *Shell) { s.opts.Errexit = on }
}

// stdio is the set of streams a statement runs with.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// Shell executes a [Program].
type Shell struct {
	prog    *Program
	fs      afero.Fs
	logger  log.Logger
	compile Compiler
	io      stdio

	env     *Env
	funcs   map[string]Stmt
	aliases map[string]string
	traps   map[string]string
	name    string
	params  []string
	dir     string
	dirs    []string
	opts    Options
	status  int
	lastBg  int

	// condDepth > 0 while a condition runs; errexit is suspended.
	condDepth int
	// depth counts sourced units and calls counts functions; return is
	// valid in either.
	depth  int
	calls  int
	loops  int
	optPos int
	sub    bool

	shared *shared
}

// shared is the state common to a shell and its subshells.
type shared struct {
	mu       sync.Mutex
	tmp      string
	files    map[string]string
	hash     map[string]string
	arith    map[string]ArithExpr
	patterns map[string]*regexp.Regexp
	jobs     []*job
	nextJob  int
	closers  []io.Closer
	umask    os.FileMode
	start    time.Time
	rand     *rand.Rand
	sigc     chan os.Signal
}

// New returns a shell ready to run prog.
func New(prog *Program, opts ...Option) *Shell {
	if prog == nil {
		prog = &Program{}
	}

	s := &Shell{
		prog:    prog,
		fs:      afero.NewOsFs(),
		io:      stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr},
		funcs:   make(map[string]Stmt),
		aliases: make(map[string]string),
		traps:   make(map[string]string),
		name:    prog.Name,
		opts:    prog.Options,
		shared: &shared{
			files:    make(map[string]string),
			hash:     make(map[string]string),
			arith:    make(map[string]ArithExpr),
			patterns: make(map[string]*regexp.Regexp),
			umask:    0o022,
			start:    time.Now(),
			rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid()))),
			sigc:     make(chan os.Signal, 8),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.env == nil {
		s.env = NewEnv(os.Environ())
	}

	if s.dir == "" {
		s.dir, _ = os.Getwd()
	}

	_ = s.env.Set("PWD", s.dir)

	if _, ok := s.env.Get("IFS"); !ok {
		_ = s.env.Set("IFS", " \t\n")
	}

	if _, ok := s.env.Get("PATH"); !ok {
		_ = s.env.Set("PATH", defaultPath)
	}

	if _, ok := s.env.Get("PS3"); !ok {
		_ = s.env.Set("PS3", "#? ")
	}

	_ = s.env.Set("OPTIND", "1")

	return s
}

// Status returns the exit status of the last command.
func (s *Shell) Status() int { return s.status }

// Env returns the variable store.
func (s *Shell) Env() *Env { return s.env }

// Run executes the program with args as $0 and the positional parameters
// and returns its exit status.
func (s *Shell) Run(ctx context.Context, args []string) int {
	if len(args) > 0 {
		s.name, s.params = args[0], slices.Clone(args[1:])
	}

	defer s.cleanup()

	s.logger.DebugContext(ctx, "run program",
		slog.String("name", s.name),
		slog.Int("args", len(s.params)),
		slog.Int("units", len(s.prog.Units)),
		slog.Int("embeds", len(s.prog.Embeds)))

	s.listen()

	code := s.finish(ctx, s.code(s.block(ctx, s.prog.Main)))

	s.logger.DebugContext(ctx, "program exited", slog.Int("status", code))

	return code
}

// Exec runs b in the shell's current state, as eval does.
func (s *Shell) Exec(ctx context.Context, b *Block) error {
	return s.block(ctx, b)
}

// Main runs prog with the process arguments and exits with its status.
func Main(prog *Program, opts ...Option) {
	os.Exit(New(prog, opts...).Run(context.Background(), os.Args))
}

// code converts the outcome of a statement into an exit status, reporting
// failures on the error stream.
func (s *Shell) code(err error) int {
	if err == nil {
		return s.status
	}

	var (
		e exitStatus
		r returnStatus
		l loopControl
	)

	switch {
	case errors.As(err, &e):
		return e.code
	case errors.As(err, &r):
		return r.code
	case errors.As(err, &l):
		return s.status
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 130
	}

	s.errorf("%s", describe(err))

	return 1
}

func (s *Shell) errorf(format string, args ...any) {
	fmt.Fprintf(s.io.err, "%s: %s\n", s.name, fmt.Sprintf(format, args...))
}

// fork returns a subshell: a copy of the state sharing embedded files and
// jobs. Traps other than ignored signals are reset.
func (s *Shell) fork() *Shell {
	c := *s
	c.env = s.env.Clone()
	c.funcs = maps.Clone(s.funcs)
	c.aliases = maps.Clone(s.aliases)
	c.params = slices.Clone(s.params)
	c.dirs = slices.Clone(s.dirs)
	c.traps = make(map[string]string)
	c.sub = true

	for k, v := range s.traps {
		if v == "" {
			c.traps[k] = v
		}
	}

	return &c
}

func (s *Shell) cleanup() {
	if s.sub {
		return
	}

	for _, j := range s.jobList() {
		j.cancel()
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	for _, c := range slices.Backward(s.shared.closers) {
		_ = c.Close()
	}

	s.shared.closers = nil

	signal.Stop(s.shared.sigc)

	if s.shared.tmp != "" {
		_ = os.RemoveAll(s.shared.tmp)
		s.shared.tmp = ""
	}
}

// abs resolves p against the working directory.
func (s *Shell) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(s.dir, p)
}

// embedFile returns the path of a private copy of embedded file key,
// creating it on first use.
func (s *Shell) embedFile(key string) (string, error) {
	return s.materialize(key, key, func(n int) string {
		return filepath.Join(strconv.Itoa(n), filepath.Base(key))
	}, 0o644)
}

// bundled returns the path of bundled program name, creating it on first
// use. Every bundled program shares one directory, which [Shell.path] puts
// first in PATH.
func (s *Shell) bundled(name, key string) (string, error) {
	return s.materialize("bin\x00"+name, key, func(int) string {
		return filepath.Join("bin", name)
	}, 0o755)
}

func (s *Shell) materialize(
	id, key string,
	rel func(n int) string,
	mode os.FileMode,
) (string, error) {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	if p, ok := s.shared.files[id]; ok {
		return p, nil
	}

	data, ok := s.prog.Embeds[key]
	if !ok {
		return "", ErrRedirect.With(slog.String("embed", key), slog.String("issue", "not embedded"))
	}

	if s.shared.tmp == "" {
		dir, err := os.MkdirTemp("", "shgo-")
		if err != nil {
			return "", ErrRedirect.Wrap(err)
		}

		s.shared.tmp = dir
	}

	p := filepath.Join(s.shared.tmp, rel(len(s.shared.files)))
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", ErrRedirect.Wrap(err)
	}

	if err := os.WriteFile(p, data, mode); err != nil {
		return "", ErrRedirect.Wrap(err).With(slog.String("embed", key))
	}

	s.shared.files[id] = p

	s.logger.Trace("materialized embedded file",
		slog.String("key", key),
		slog.String("path", p),
		slog.Int("bytes", len(data)))

	return p, nil
}

// binDir returns the directory of bundled programs, if any were created.
func (s *Shell) binDir() string {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	if s.shared.tmp == "" {
		return ""
	}

	return filepath.Join(s.shared.tmp, "bin")
}
