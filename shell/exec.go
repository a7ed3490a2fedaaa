package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ardnew/mung"
	"golang.org/x/sync/errgroup"
)

// maxCallDepth bounds function recursion.
const maxCallDepth = 1000

// block runs the statements of b in order, running pending signal traps
// between statements. A statement failing on an expansion or assignment
// error reports it and sets status 1, as the shell continues with the next
// one.
func (s *Shell) block(ctx context.Context, b *Block) error {
	if b == nil {
		return nil
	}

	for _, st := range b.Stmts {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.stmt(ctx, st); err != nil {
			if !isRecoverable(err) {
				return err
			}

			// The failed command alone is abandoned.
			s.errorf("%s", describe(err))
			s.status = 1

			if err := s.check(ctx, nil); err != nil {
				return err
			}
		}

		if err := s.signals(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Shell) stmt(ctx context.Context, st Stmt) error {
	switch x := st.(type) {
	case *Block:
		return s.block(ctx, x)
	case *Call:
		return s.check(ctx, s.call(ctx, x))
	case *Decl:
		return s.check(ctx, s.redirect(ctx, x.Redirs, func() error { return s.decl(ctx, x) }))
	case *AndOr:
		return s.andOr(ctx, x)
	case *Pipeline:
		return s.pipeline(ctx, x)
	case *Background:
		return s.background(ctx, x)
	case *If:
		return s.ifClause(ctx, x)
	case *While:
		return s.while(ctx, x)
	case *For:
		return s.forClause(ctx, x)
	case *ArithFor:
		return s.arithFor(ctx, x)
	case *Select:
		return s.selectClause(ctx, x)
	case *Case:
		return s.caseClause(ctx, x)
	case *FuncDef:
		s.funcs[x.Name] = x.Body
		s.status = 0

		return nil
	case *Subshell:
		return s.check(ctx, s.subshell(ctx, x.Body))
	case *Group:
		return s.block(ctx, x.Body)
	case *ArithCmd:
		n, err := s.arith(ctx, x.X)
		if err != nil {
			return err
		}

		s.status = int(b2i(n == 0))

		return s.check(ctx, nil)
	case *Test:
		ok, err := s.cond(ctx, x.X)

		switch {
		case errors.Is(err, errTestSyntax):
			s.errorf("conditional expression: %v", err)
			s.status = 2
		case err != nil:
			return err
		default:
			s.status = int(b2i(!ok))
		}

		return s.check(ctx, nil)
	case *Redirected:
		return s.redirect(ctx, x.Redirs, func() error { return s.stmt(ctx, x.X) })
	case *Source:
		return s.check(ctx, s.redirect(ctx, x.Redirs, func() error { return s.source(ctx, x) }))
	}

	return ErrProgram.With(slog.String("stmt", fmt.Sprintf("%T", st)))
}

// check applies the ERR trap and errexit after a command completes.
func (s *Shell) check(ctx context.Context, err error) error {
	if err != nil || s.status == 0 || s.condDepth > 0 {
		return err
	}

	if trap, ok := s.traps["ERR"]; ok && trap != "" {
		status := s.status
		if err := s.runTrap(ctx, "ERR", trap); err != nil {
			return err
		}

		s.status = status
	}

	if s.opts.Errexit {
		return exitStatus{code: s.status}
	}

	return nil
}

// condition runs b with errexit suspended.
func (s *Shell) condition(ctx context.Context, st Stmt) error {
	s.condDepth++
	defer func() { s.condDepth-- }()

	return s.stmt(ctx, st)
}

func (s *Shell) andOr(ctx context.Context, x *AndOr) error {
	if err := s.condition(ctx, x.X); err != nil {
		return err
	}

	if (s.status == 0) == x.Or {
		return nil
	}

	return s.stmt(ctx, x.Y)
}

func (s *Shell) pipeline(ctx context.Context, x *Pipeline) error {
	var err error

	switch {
	case len(x.Stages) == 1 && x.Negated:
		err = s.condition(ctx, x.Stages[0])
	case len(x.Stages) == 1:
		return s.stmt(ctx, x.Stages[0])
	default:
		err = s.stages(ctx, x)
	}

	if err != nil {
		return err
	}

	if x.Negated {
		s.status = int(b2i(s.status == 0))

		return nil
	}

	return s.check(ctx, nil)
}

// stages runs every stage of a pipeline concurrently in a subshell, joined
// by OS pipes so external programs share descriptors directly.
func (s *Shell) stages(ctx context.Context, x *Pipeline) error {
	n := len(x.Stages)
	rs := make([]*os.File, n-1)
	ws := make([]*os.File, n-1)

	for i := range n - 1 {
		r, w, err := os.Pipe()
		if err != nil {
			for j := range i {
				_ = rs[j].Close()
				_ = ws[j].Close()
			}

			return ErrRedirect.Wrap(err)
		}

		rs[i], ws[i] = r, w
	}

	var (
		g      errgroup.Group
		status = make([]int, n)
	)

	for i, st := range x.Stages {
		sub := s.fork()

		if i > 0 {
			sub.io.in = rs[i-1]
		}

		if i < n-1 {
			sub.io.out = ws[i]

			if i < len(x.Stderr) && x.Stderr[i] {
				sub.io.err = ws[i]
			}
		}

		g.Go(func() error {
			err := sub.stmt(ctx, st)
			status[i] = sub.code(err)

			if i < n-1 {
				_ = ws[i].Close()
			}

			if i > 0 {
				_ = rs[i-1].Close()
			}

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.status = pipeStatus(status, s.opts.Pipefail)

	codes := make([]string, n)
	for i, c := range status {
		codes[i] = strconv.Itoa(c)
	}

	_ = s.env.SetArray("PIPESTATUS", codes)

	return nil
}

// pipeStatus is the status of the last stage or, with pipefail, of the
// first stage that failed.
func pipeStatus(status []int, pipefail bool) int {
	if pipefail {
		for _, c := range status {
			if c != 0 {
				return c
			}
		}
	}

	return status[len(status)-1]
}

func (s *Shell) ifClause(ctx context.Context, x *If) error {
	if err := s.condition(ctx, x.Cond); err != nil {
		return err
	}

	if s.status == 0 {
		return s.block(ctx, x.Then)
	}

	if x.Else != nil {
		return s.block(ctx, x.Else)
	}

	s.status = 0

	return nil
}

// loop runs one iteration of a loop body and reports whether the loop
// ends. Break and continue aimed at an outer loop propagate.
func (s *Shell) loop(ctx context.Context, body *Block) (bool, error) {
	err := s.block(ctx, body)
	if err == nil {
		return false, nil
	}

	var l loopControl
	if !errors.As(err, &l) {
		return true, err
	}

	if l.n > 1 {
		l.n--

		return true, l
	}

	return !l.next, nil
}

func (s *Shell) while(ctx context.Context, x *While) error {
	s.loops++
	defer func() { s.loops-- }()

	status := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.condition(ctx, x.Cond); err != nil {
			return err
		}

		if (s.status == 0) == x.Until {
			break
		}

		done, err := s.loop(ctx, x.Body)
		status = s.status

		if err != nil {
			return err
		}

		if done {
			break
		}
	}

	s.status = status

	return nil
}

func (s *Shell) items(ctx context.Context, params bool, words []*Word) ([]string, error) {
	if params {
		return append([]string(nil), s.params...), nil
	}

	return s.fields(ctx, words...)
}

func (s *Shell) forClause(ctx context.Context, x *For) error {
	items, err := s.items(ctx, x.InParams, x.Items)
	if err != nil {
		return err
	}

	s.loops++
	defer func() { s.loops-- }()

	s.status = 0

	for _, item := range items {
		if err := s.env.Set(x.Name, item); err != nil {
			return err
		}

		done, err := s.loop(ctx, x.Body)
		if err != nil {
			return err
		}

		if done {
			break
		}
	}

	return nil
}

func (s *Shell) arithFor(ctx context.Context, x *ArithFor) error {
	if _, err := s.arith(ctx, x.Init); err != nil {
		return err
	}

	s.loops++
	defer func() { s.loops-- }()

	s.status = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if x.Cond != nil {
			n, err := s.arith(ctx, x.Cond)
			if err != nil {
				return err
			}

			if n == 0 {
				break
			}
		}

		done, err := s.loop(ctx, x.Body)
		if err != nil {
			return err
		}

		if done {
			break
		}

		if _, err := s.arith(ctx, x.Post); err != nil {
			return err
		}
	}

	return nil
}

func (s *Shell) selectClause(ctx context.Context, x *Select) error {
	items, err := s.items(ctx, x.InParams, x.Items)
	if err != nil {
		return err
	}

	s.loops++
	defer func() { s.loops-- }()

	menu := func() {
		for i, item := range items {
			fmt.Fprintf(s.io.err, "%d) %s\n", i+1, item)
		}
	}

	menu()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ps3, _ := s.env.Value("PS3")
		fmt.Fprint(s.io.err, ps3)

		line, eof := s.readLine(s.io.in, '\n')
		if eof && line == "" {
			fmt.Fprintln(s.io.err)
			s.status = 1

			return nil
		}

		if err := s.env.Set("REPLY", line); err != nil {
			return err
		}

		if strings.TrimSpace(line) == "" {
			menu()

			continue
		}

		choice := ""
		if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && n >= 1 && n <= len(items) {
			choice = items[n-1]
		}

		if err := s.env.Set(x.Name, choice); err != nil {
			return err
		}

		done, err := s.loop(ctx, x.Body)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}
}

func (s *Shell) caseClause(ctx context.Context, x *Case) error {
	word, err := s.literal(ctx, x.Word)
	if err != nil {
		return err
	}

	s.status = 0

	for i := 0; i < len(x.Arms); i++ {
		arm := x.Arms[i]

		matched, err := s.matchArm(ctx, arm, word)
		if err != nil {
			return err
		}

		if !matched {
			continue
		}

		for {
			if err := s.block(ctx, arm.Body); err != nil {
				return err
			}

			if arm.Term != CaseFallthrough || i+1 >= len(x.Arms) {
				break
			}

			i++
			arm = x.Arms[i]
		}

		if arm.Term != CaseContinue {
			return nil
		}
	}

	return nil
}

func (s *Shell) matchArm(ctx context.Context, arm *CaseArm, word string) (bool, error) {
	for _, p := range arm.Patterns {
		pat, err := s.pattern(ctx, p)
		if err != nil {
			return false, err
		}

		if s.match(pat, word) {
			return true, nil
		}
	}

	return false, nil
}

func (s *Shell) subshell(ctx context.Context, body *Block) error {
	sub := s.fork()
	code := sub.finish(ctx, sub.code(sub.block(ctx, body)))

	if err := ctx.Err(); err != nil {
		return err
	}

	s.status = code

	return nil
}

// source runs a unit compiled into the program.
func (s *Shell) source(ctx context.Context, x *Source) error {
	b, ok := s.prog.Units[x.Unit]
	if !ok {
		s.errorf("%s: no such file or directory", x.Unit)
		s.status = 1

		return nil
	}

	if len(x.Args) > 0 {
		args, err := s.fields(ctx, x.Args...)
		if err != nil {
			return err
		}

		saved := s.params
		s.params = args

		defer func() { s.params = saved }()
	}

	return s.unit(ctx, b)
}

// unit runs b in the current shell as a sourced file; return leaves it.
func (s *Shell) unit(ctx context.Context, b *Block) error {
	s.depth++
	defer func() { s.depth-- }()

	s.status = 0

	err := s.block(ctx, b)

	var r returnStatus
	if errors.As(err, &r) {
		s.status = r.code

		return nil
	}

	return err
}

func (s *Shell) call(ctx context.Context, x *Call) error {
	args, err := s.fields(ctx, x.Args...)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return s.redirect(ctx, x.Redirs, func() error {
			s.status = 0

			for _, a := range x.Assigns {
				if err := s.assign(ctx, a, nil); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if s.opts.Xtrace {
		s.trace(args)
	}

	if args[0] == "exec" && len(args) == 1 {
		if err := s.redirectPermanent(ctx, x.Redirs); err != nil {
			return s.redirectError(err)
		}

		s.status = 0

		return nil
	}

	return s.redirect(ctx, x.Redirs, func() error { return s.dispatch(ctx, x, args) })
}

// dispatch runs a function, builtin or external program with args.
func (s *Shell) dispatch(ctx context.Context, x *Call, args []string) error {
	b := x.Builtin
	if b == NotBuiltin || b.String() != args[0] {
		b, _ = LookupBuiltin(args[0])
	}

	if fn, ok := s.funcs[args[0]]; ok && !b.Special() {
		return s.prefixed(ctx, x.Assigns, func() error { return s.callFunc(ctx, fn, args) })
	}

	if b != NotBuiltin {
		if b.Special() {
			for _, a := range x.Assigns {
				if err := s.assign(ctx, a, nil); err != nil {
					return err
				}
			}

			return s.builtin(ctx, b, args)
		}

		return s.prefixed(ctx, x.Assigns, func() error { return s.builtin(ctx, b, args) })
	}

	assigns := make([]string, 0, len(x.Assigns))

	for _, a := range x.Assigns {
		v, err := s.literal(ctx, a.Value)
		if err != nil {
			return err
		}

		assigns = append(assigns, a.Name+"="+v)
	}

	return s.external(ctx, args, x.External, assigns)
}

// prefixed runs fn with assigns as temporary exported variables.
func (s *Shell) prefixed(ctx context.Context, assigns []*Assign, fn func() error) error {
	if len(assigns) == 0 {
		return fn()
	}

	vals := make([]string, len(assigns))

	for i, a := range assigns {
		v, err := s.literal(ctx, a.Value)
		if err != nil {
			return err
		}

		vals[i] = v
	}

	env := s.env.Push()

	for i, a := range assigns {
		v := env.Local(a.Name)
		v.Value, v.Exported = vals[i], true
	}

	s.env = env

	defer func() { s.env = env.Pop() }()

	return fn()
}

func (s *Shell) callFunc(ctx context.Context, body Stmt, args []string) error {
	if s.calls >= maxCallDepth {
		return ErrProgram.Wrap(errors.New(args[0] + ": maximum function nesting level exceeded"))
	}

	saved, loops := s.params, s.loops
	env := s.env.Push()

	s.params, s.loops, s.env = args[1:], 0, env
	s.calls++

	defer func() {
		s.params, s.loops, s.env = saved, loops, env.Pop()
		s.calls--
	}()

	err := s.stmt(ctx, body)

	var r returnStatus
	if errors.As(err, &r) {
		s.status = r.code

		return nil
	}

	return err
}

// assign performs a variable assignment. With env set the variable is
// created there instead of in its nearest scope.
func (s *Shell) assign(ctx context.Context, a *Assign, local *Env) error {
	target := func() *Var {
		if local != nil {
			return local.Local(a.Name)
		}

		return s.env.Declare(a.Name)
	}

	if a.IsArray {
		vals, err := s.fields(ctx, a.Array...)
		if err != nil {
			return err
		}

		v := target()
		if v.ReadOnly {
			return ErrReadOnly.Wrap(errors.New(a.Name))
		}

		if a.Append && v.Array {
			vals = append(append([]string(nil), v.List...), vals...)
		}

		v.Array, v.List, v.Value = true, vals, ""

		return nil
	}

	val, err := s.literal(ctx, a.Value)
	if err != nil {
		return err
	}

	if a.Index != nil {
		idx, err := s.literal(ctx, a.Index)
		if err != nil {
			return err
		}

		i, err := s.arithValue(ctx, idx, 0)
		if err != nil {
			return err
		}

		target()

		if a.Append {
			if cur, ok := s.env.Get(a.Name); ok {
				vals := cur.Values()
				if i >= 0 && i < int64(len(vals)) {
					val = vals[i] + val
				}
			}
		}

		return s.env.SetIndex(a.Name, int(i), val)
	}

	v := target()
	if v.ReadOnly {
		return ErrReadOnly.Wrap(errors.New(a.Name))
	}

	if v.Integer {
		n, err := s.arithValue(ctx, val, 0)
		if err != nil {
			return err
		}

		if a.Append {
			cur, _ := s.arithValue(ctx, v.String(), 0)
			n += cur
		}

		val = strconv.FormatInt(n, 10)
	} else if a.Append {
		val = v.String() + val
	}

	if v.Array {
		if len(v.List) == 0 {
			v.List = []string{""}
		}

		v.List[0] = val

		return nil
	}

	v.Value = val

	return nil
}

func (s *Shell) trace(args []string) {
	ps4, ok := s.env.Value("PS4")
	if !ok {
		ps4 = "+ "
	}

	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quote(a)
	}

	fmt.Fprintf(s.io.err, "%s%s\n", ps4, strings.Join(quoted, " "))
}

// external runs a program found in the bundle or on PATH.
func (s *Shell) external(ctx context.Context, args []string, ext int, assigns []string) error {
	path, err := s.lookPath(args[0], ext)
	if err != nil {
		s.errorf("%s: command not found", args[0])
		s.status = 127

		return nil
	}

	env := s.env.Environ(append(assigns, "PATH="+s.path())...)

	cmd := exec.CommandContext(ctx, path, args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Dir = s.dir
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = s.io.in, s.io.out, s.io.err

	s.logger.TraceContext(ctx, "run external",
		slog.String("name", args[0]),
		slog.String("path", path),
		slog.Int("args", len(args)-1))

	err = cmd.Run()

	var ee *exec.ExitError

	switch {
	case err == nil:
		s.status = 0
	case errors.As(err, &ee):
		s.status = ee.ExitCode()

		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			s.status = 128 + int(ws.Signal())
		}
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		s.errorf("%s: %v", args[0], err)
		s.status = 126
	}

	return nil
}

// lookPath finds the program for name: a path containing a slash, a
// bundled program, or the first executable match on PATH.
func (s *Shell) lookPath(name string, ext int) (string, error) {
	if strings.ContainsRune(name, '/') {
		p := s.abs(name)
		if !executable(p) {
			return "", ErrNotFound.With(slog.String("name", name))
		}

		return p, nil
	}

	if e, ok := s.externalOf(name, ext); ok && e.Bundle {
		return s.bundled(name, e.Path)
	}

	s.shared.mu.Lock()
	p, ok := s.shared.hash[name]
	s.shared.mu.Unlock()

	if ok && executable(p) {
		return p, nil
	}

	paths, _ := s.env.Value("PATH")

	for _, dir := range filepath.SplitList(paths) {
		if dir == "" {
			dir = "."
		}

		p := filepath.Join(s.abs(dir), name)
		if executable(p) {
			s.shared.mu.Lock()
			s.shared.hash[name] = p
			s.shared.mu.Unlock()

			return p, nil
		}
	}

	return "", ErrNotFound.With(slog.String("name", name))
}

func (s *Shell) externalOf(name string, ext int) (External, bool) {
	if ext >= 0 && ext < len(s.prog.Externals) && s.prog.Externals[ext].Name == name {
		return s.prog.Externals[ext], true
	}

	return s.prog.External(name)
}

// executable reports whether p is a regular file with an execute bit on
// the host.
func executable(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}

// path returns PATH as external programs see it, with the bundle directory
// first when bundled programs exist.
func (s *Shell) path() string {
	paths, _ := s.env.Value("PATH")

	dir := s.binDir()
	if dir == "" {
		return paths
	}

	return mung.Make(
		mung.WithSubjectItems(paths),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(dir),
	).String()
}
