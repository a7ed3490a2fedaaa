package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/pborman/getopt/v2"
	"github.com/spf13/afero"
)

// builtin runs b with args, args[0] being the name it was invoked by.
func (s *Shell) builtin(ctx context.Context, b Builtin, args []string) error {
	switch b {
	case BuiltinColon, BuiltinTrue:
		s.status = 0
	case BuiltinFalse:
		s.status = 1
	case BuiltinEcho:
		s.echo(args)
	case BuiltinPrintf:
		return s.printf(ctx, args)
	case BuiltinCd:
		s.cd(args)
	case BuiltinPwd:
		s.pwd(args)
	case BuiltinPushd:
		s.pushd(args)
	case BuiltinPopd:
		s.popd(args)
	case BuiltinDirs:
		s.printDirs(args)
	case BuiltinExport, BuiltinLocal, BuiltinReadonly, BuiltinDeclare, BuiltinTypeset:
		return s.declArgs(ctx, b, args)
	case BuiltinUnset:
		return s.unset(args)
	case BuiltinRead:
		return s.read(args)
	case BuiltinTest, BuiltinBracket:
		s.test(args)
	case BuiltinExit:
		return s.exit(args)
	case BuiltinReturn:
		return s.ret(args)
	case BuiltinBreak, BuiltinContinue:
		return s.loopCtl(b == BuiltinContinue, args)
	case BuiltinShift:
		s.shift(args)
	case BuiltinSet:
		s.set(args)
	case BuiltinSource, BuiltinDot:
		return s.sourceFile(ctx, args)
	case BuiltinEval:
		return s.eval(ctx, "eval", strings.Join(args[1:], " "))
	case BuiltinExec:
		if len(args) == 1 {
			s.status = 0

			return nil
		}

		if err := s.dispatch(ctx, &Call{External: -1}, args[1:]); err != nil {
			return err
		}

		return exitStatus{code: s.status}
	case BuiltinTrap:
		s.trap(args)
	case BuiltinWait:
		return s.wait(ctx, args)
	case BuiltinJobs:
		s.jobs(args)
	case BuiltinFg, BuiltinBg:
		return s.fg(ctx, b == BuiltinFg, args)
	case BuiltinKill:
		s.kill(args)
	case BuiltinLet:
		return s.let(ctx, args)
	case BuiltinGetopts:
		return s.getopts(args)
	case BuiltinType:
		s.typeOf(args)
	case BuiltinCommand:
		return s.command(ctx, args)
	case BuiltinUmask:
		s.umask(args)
	case BuiltinTimes:
		s.times()
	case BuiltinAlias:
		s.alias(args)
	case BuiltinUnalias:
		s.unalias(args)
	case BuiltinHash:
		s.hash(args)
	case BuiltinHelp:
		s.help(args)
	default:
		s.errorf("%s: not a builtin", args[0])
		s.status = 1
	}

	return nil
}

// usage reports a usage error of builtin name.
func (s *Shell) usage(name string, err error) {
	s.errorf("%s: %v", name, err)
	s.status = 2
}

// options parses the options of a builtin, returning the operands. A nil
// set result means the arguments were invalid and status is 2.
func (s *Shell) options(set *getopt.Set, args []string) ([]string, bool) {
	if err := set.Getopt(args, nil); err != nil {
		s.usage(args[0], err)

		return nil, false
	}

	return set.Args(), true
}

func (s *Shell) echo(args []string) {
	newline, escapes := true, false

	args = args[1:]

opts:
	for len(args) > 0 {
		a := args[0]
		if len(a) < 2 || a[0] != '-' || strings.Trim(a[1:], "neE") != "" {
			break
		}

		for _, c := range a[1:] {
			switch c {
			case 'n':
				newline = false
			case 'e':
				escapes = true
			case 'E':
				escapes = false
			default:
				break opts
			}
		}

		args = args[1:]
	}

	text := strings.Join(args, " ")

	if escapes {
		var stop bool

		text, stop = unescape(text, true)
		if stop {
			newline = false
		}
	}

	if newline {
		text += "\n"
	}

	_, _ = io.WriteString(s.io.out, text)
	s.status = 0
}

func (s *Shell) cd(args []string) {
	set := getopt.New()
	set.Bool('L', "follow symbolic links")
	physical := set.Bool('P', "use the physical directory structure")

	rest, ok := s.options(set, args)
	if !ok {
		return
	}

	var dir string

	switch len(rest) {
	case 0:
		dir, _ = s.env.Value("HOME")
	case 1:
		dir = rest[0]
	default:
		s.errorf("cd: too many arguments")
		s.status = 1

		return
	}

	show := false

	if dir == "-" {
		dir, _ = s.env.Value("OLDPWD")
		show = true
	}

	if err := s.chdir(dir, *physical); err != nil {
		s.errorf("cd: %s: %v", dir, err)
		s.status = 1

		return
	}

	if show {
		fmt.Fprintln(s.io.out, s.dir)
	}

	s.status = 0
}

func (s *Shell) chdir(dir string, physical bool) error {
	p := filepath.Clean(s.abs(dir))

	if physical {
		if r, err := filepath.EvalSymlinks(p); err == nil {
			p = r
		}
	}

	fi, err := s.fs.Stat(p)
	if err != nil {
		return errors.New("no such file or directory")
	}

	if !fi.IsDir() {
		return errors.New("not a directory")
	}

	_ = s.env.Set("OLDPWD", s.dir)
	s.dir = p

	return s.env.Set("PWD", p)
}

func (s *Shell) pwd(args []string) {
	set := getopt.New()
	set.Bool('L', "print the logical directory")
	physical := set.Bool('P', "print the physical directory")

	if _, ok := s.options(set, args); !ok {
		return
	}

	dir := s.dir

	if *physical {
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			dir = r
		}
	}

	fmt.Fprintln(s.io.out, dir)
	s.status = 0
}

func (s *Shell) pushd(args []string) {
	switch len(args) {
	case 1:
		if len(s.dirs) == 0 {
			s.errorf("pushd: no other directory")
			s.status = 1

			return
		}

		top := s.dirs[0]
		s.dirs[0] = s.dir

		if err := s.chdir(top, false); err != nil {
			s.errorf("pushd: %s: %v", top, err)
			s.status = 1

			return
		}
	default:
		cur := s.dir

		if err := s.chdir(args[1], false); err != nil {
			s.errorf("pushd: %s: %v", args[1], err)
			s.status = 1

			return
		}

		s.dirs = append([]string{cur}, s.dirs...)
	}

	s.printDirs(args[:1])
}

func (s *Shell) popd(args []string) {
	if len(s.dirs) == 0 {
		s.errorf("popd: directory stack empty")
		s.status = 1

		return
	}

	top := s.dirs[0]
	s.dirs = s.dirs[1:]

	if err := s.chdir(top, false); err != nil {
		s.errorf("popd: %s: %v", top, err)
		s.status = 1

		return
	}

	s.printDirs(args[:1])
}

func (s *Shell) printDirs(args []string) {
	set := getopt.New()
	reset := set.Bool('c', "clear the directory stack")
	lines := set.Bool('p', "print one entry per line")
	verbose := set.Bool('v', "print one numbered entry per line")

	if _, ok := s.options(set, args); !ok {
		return
	}

	if *reset {
		s.dirs = nil
		s.status = 0

		return
	}

	home, _ := s.env.Value("HOME")
	stack := append([]string{s.dir}, s.dirs...)

	for i, d := range stack {
		if home != "" && strings.HasPrefix(d, home) {
			d = "~" + strings.TrimPrefix(d, home)
		}

		switch {
		case *verbose:
			fmt.Fprintf(s.io.out, "%2d  %s\n", i, d)
		case *lines:
			fmt.Fprintln(s.io.out, d)
		default:
			if i > 0 {
				fmt.Fprint(s.io.out, " ")
			}

			fmt.Fprint(s.io.out, d)
		}
	}

	if !*verbose && !*lines {
		fmt.Fprintln(s.io.out)
	}

	s.status = 0
}

func (s *Shell) unset(args []string) error {
	set := getopt.New()
	funcs := set.Bool('f', "treat each name as a function")
	set.Bool('v', "treat each name as a variable")

	rest, ok := s.options(set, args)
	if !ok {
		return nil
	}

	s.status = 0

	for _, name := range rest {
		if *funcs {
			delete(s.funcs, name)

			continue
		}

		if err := s.env.Unset(name); err != nil {
			s.errorf("unset: %s: cannot unset: readonly variable", name)
			s.status = 1
		}
	}

	return nil
}

// readLine reads up to delim, one byte at a time so that nothing past the
// line is consumed from a shared stream. eof reports that the stream ended
// before delim.
func (s *Shell) readLine(r io.Reader, delim byte) (string, bool) {
	var (
		sb  strings.Builder
		buf [1]byte
	)

	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			if buf[0] == delim {
				return sb.String(), false
			}

			sb.WriteByte(buf[0])
		}

		if err != nil {
			return sb.String(), true
		}
	}
}

func (s *Shell) read(args []string) error {
	set := getopt.New()
	raw := set.Bool('r', "do not treat backslashes as escapes")
	prompt := set.String('p', "", "print prompt before reading")
	delim := set.String('d', "\n", "read until the first character of delim")
	nchars := set.Int('n', 0, "read at most n characters")
	array := set.String('a', "", "assign the words to an indexed array")
	set.Bool('s', "do not echo input")
	set.String('t', "", "accepted for compatibility; input is read without a timeout")

	names, ok := s.options(set, args)
	if !ok {
		return nil
	}

	if *prompt != "" {
		fmt.Fprint(s.io.err, *prompt)
	}

	d := byte(0)
	if *delim != "" {
		d = (*delim)[0]
	}

	var (
		line string
		eof  bool
	)

	if *nchars > 0 {
		line, eof = s.readN(*nchars, d)
	} else {
		line, eof = s.readLine(s.io.in, d)

		for !*raw && strings.HasSuffix(line, "\\") && !eof {
			var more string

			more, eof = s.readLine(s.io.in, d)
			line = line[:len(line)-1] + more
		}
	}

	if !*raw {
		line = unbackslash(line)
	}

	s.status = 0
	if eof {
		s.status = 1
	}

	ifs, ok := s.env.Value("IFS")
	if !ok {
		ifs = " \t\n"
	}

	if *array != "" {
		return s.env.SetArray(*array, splitIFS(line, ifs, -1))
	}

	if len(names) == 0 {
		return s.env.Set("REPLY", line)
	}

	vals := splitIFS(line, ifs, len(names))

	for i, name := range names {
		v := ""
		if i < len(vals) {
			v = vals[i]
		}

		if err := s.env.Set(name, v); err != nil {
			return err
		}
	}

	return nil
}

func (s *Shell) readN(n int, delim byte) (string, bool) {
	var (
		sb  strings.Builder
		buf [1]byte
	)

	for range n {
		k, err := s.io.in.Read(buf[:])
		if k > 0 {
			if buf[0] == delim {
				break
			}

			sb.WriteByte(buf[0])
		}

		if err != nil {
			return sb.String(), true
		}
	}

	return sb.String(), false
}

// unbackslash removes the backslashes read treats as escapes.
func unbackslash(s string) string {
	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}

		sb.WriteByte(s[i])
	}

	return sb.String()
}

// splitIFS splits a line read by read into at most n fields; the last field
// takes the rest of the line. n < 0 means no limit.
func splitIFS(line, ifs string, n int) []string {
	isIFS := func(c byte) bool { return strings.IndexByte(ifs, c) >= 0 }
	isSpace := func(c byte) bool { return isIFS(c) && (c == ' ' || c == '\t' || c == '\n') }

	trim := func(s string) string {
		i, j := 0, len(s)
		for i < j && isSpace(s[i]) {
			i++
		}

		for j > i && isSpace(s[j-1]) {
			j--
		}

		return s[i:j]
	}

	line = trim(line)

	var out []string

	for line != "" {
		if n > 0 && len(out) == n-1 {
			out = append(out, line)

			break
		}

		i := 0
		for i < len(line) && !isIFS(line[i]) {
			i++
		}

		out = append(out, line[:i])

		j := i
		for j < len(line) && isSpace(line[j]) {
			j++
		}

		if j < len(line) && isIFS(line[j]) && !isSpace(line[j]) {
			j++

			for j < len(line) && isSpace(line[j]) {
				j++
			}
		}

		line = line[j:]
	}

	return out
}

func (s *Shell) test(args []string) {
	name := args[0]
	args = args[1:]

	if name == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			s.usage(name, errors.New("missing `]'"))

			return
		}

		args = args[:len(args)-1]
	}

	ok, err := s.testArgs(args)
	if err != nil {
		s.usage(name, err)

		return
	}

	s.status = int(b2i(!ok))
}

func (s *Shell) exit(args []string) error {
	code := s.status

	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			s.errorf("exit: %s: numeric argument required", args[1])

			return exitStatus{code: 2}
		}

		code = n
	}

	return exitStatus{code: code & 0xff}
}

func (s *Shell) ret(args []string) error {
	if s.calls == 0 && s.depth == 0 {
		s.errorf("return: can only `return' from a function or sourced script")
		s.status = 1

		return nil
	}

	code := s.status

	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			s.errorf("return: %s: numeric argument required", args[1])
			n = 2
		}

		code = n
	}

	return returnStatus{code: code & 0xff}
}

func (s *Shell) loopCtl(next bool, args []string) error {
	n := 1

	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			s.errorf("%s: %s: loop count out of range", args[0], args[1])
			s.status = 1

			return nil
		}

		n = v
	}

	if s.loops == 0 {
		s.errorf("%s: only meaningful in a `for', `while', or `until' loop", args[0])
		s.status = 0

		return nil
	}

	s.status = 0

	return loopControl{n: min(n, s.loops), next: next}
}

func (s *Shell) shift(args []string) {
	n := 1

	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			s.errorf("shift: %s: numeric argument required", args[1])
			s.status = 1

			return
		}

		n = v
	}

	if n > len(s.params) {
		s.status = 1

		return
	}

	s.params = s.params[n:]
	s.status = 0
}

// option returns the state of a "set -o" option.
func (s *Shell) option(name string) (bool, bool) {
	p := s.optionPtr(name)
	if p == nil {
		return false, false
	}

	return *p, true
}

func (s *Shell) optionPtr(name string) *bool {
	switch name {
	case "errexit", "e":
		return &s.opts.Errexit
	case "nounset", "u":
		return &s.opts.Nounset
	case "pipefail":
		return &s.opts.Pipefail
	case "xtrace", "x":
		return &s.opts.Xtrace
	case "noglob", "f":
		return &s.opts.Noglob
	}

	return nil
}

var optionNames = []string{"errexit", "noglob", "nounset", "pipefail", "xtrace"}

func (s *Shell) set(args []string) {
	args = args[1:]
	s.status = 0

	if len(args) == 0 {
		for _, name := range s.env.Names() {
			v, _ := s.env.Get(name)
			fmt.Fprintf(s.io.out, "%s=%s\n", name, quote(v.String()))
		}

		return
	}

	for len(args) > 0 {
		a := args[0]

		if a == "--" {
			s.params = slices.Clone(args[1:])

			return
		}

		if a == "-" || a == "+" {
			args = args[1:]

			break
		}

		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}

		on := a[0] == '-'
		args = args[1:]

		for _, c := range a[1:] {
			if c != 'o' {
				p := s.optionPtr(string(c))
				if p == nil {
					s.usage("set", fmt.Errorf("%c%c: invalid option", a[0], c))

					return
				}

				*p = on

				continue
			}

			if len(args) == 0 {
				s.printOptions(on)

				return
			}

			p := s.optionPtr(args[0])
			if p == nil {
				s.usage("set", errors.New(args[0]+": invalid option name"))

				return
			}

			*p = on
			args = args[1:]
		}
	}

	if len(args) > 0 {
		s.params = slices.Clone(args)
	}
}

func (s *Shell) printOptions(table bool) {
	for _, name := range optionNames {
		on, _ := s.option(name)

		if table {
			state := "off"
			if on {
				state = "on"
			}

			fmt.Fprintf(s.io.out, "%-15s\t%s\n", name, state)

			continue
		}

		sign := "+"
		if on {
			sign = "-"
		}

		fmt.Fprintf(s.io.out, "set %so %s\n", sign, name)
	}
}

// sourceFile runs a file named at run time. Units compiled into the
// program are preferred over the file system.
func (s *Shell) sourceFile(ctx context.Context, args []string) error {
	if len(args) < 2 {
		s.usage(args[0], errors.New("filename argument required"))

		return nil
	}

	name := args[1]

	var candidates []string

	if strings.ContainsRune(name, '/') {
		candidates = []string{s.abs(name)}
	} else {
		paths, _ := s.env.Value("PATH")
		for _, dir := range filepath.SplitList(paths) {
			candidates = append(candidates, filepath.Join(s.abs(dir), name))
		}

		candidates = append(candidates, s.abs(name))
	}

	if len(args) > 2 {
		saved := s.params
		s.params = slices.Clone(args[2:])

		defer func() { s.params = saved }()
	}

	for _, p := range candidates {
		if b, ok := s.prog.Units[p]; ok {
			return s.unit(ctx, b)
		}
	}

	for _, p := range candidates {
		data, err := afero.ReadFile(s.fs, p)
		if err != nil {
			continue
		}

		if s.compile == nil {
			return ErrNoCompiler.Wrap(errors.New(name))
		}

		b, err := s.compile(ctx, p, data)
		if err != nil {
			s.errorf("%s: %v", name, err)
			s.status = 2

			return nil
		}

		return s.unit(ctx, b)
	}

	s.errorf("%s: %s: no such file or directory", args[0], name)
	s.status = 1

	return nil
}

func (s *Shell) trap(args []string) {
	args = args[1:]
	s.status = 0

	if len(args) > 0 && args[0] == "-l" {
		for _, name := range slices.Sorted(maps.Keys(killSignals)) {
			fmt.Fprintf(s.io.out, "%d) SIG%s\n", int(killSignals[name]), name)
		}

		return
	}

	if len(args) == 0 || args[0] == "-p" {
		for _, name := range slices.Sorted(maps.Keys(s.traps)) {
			fmt.Fprintf(s.io.out, "trap -- %s %s\n", quote(s.traps[name]), name)
		}

		return
	}

	if args[0] == "--" {
		args = args[1:]
	}

	action := args[0]
	sigs := args[1:]

	// A lone signal, or a number first, resets.
	if len(sigs) == 0 {
		action, sigs = "-", args
	} else if _, err := strconv.Atoi(action); err == nil {
		action, sigs = "-", args
	}

	for _, sig := range sigs {
		name, ok := signalName(sig)
		if !ok {
			s.errorf("trap: %s: invalid signal specification", sig)
			s.status = 1

			continue
		}

		if action == "-" {
			delete(s.traps, name)
		} else {
			s.traps[name] = action
		}
	}

	s.listen()
}

func (s *Shell) wait(ctx context.Context, args []string) error {
	s.status = 0

	if len(args) == 1 {
		for _, j := range s.jobList() {
			if _, err := s.waitJob(ctx, j); err != nil {
				return err
			}
		}

		return nil
	}

	for _, spec := range args[1:] {
		j, ok := s.findJob(spec)
		if !ok {
			s.errorf("wait: %s: no such job", spec)
			s.status = 127

			continue
		}

		code, err := s.waitJob(ctx, j)
		if err != nil {
			return err
		}

		s.status = code
	}

	return nil
}

func (s *Shell) jobs(args []string) {
	set := getopt.New()
	ids := set.Bool('p', "list job ids only")
	set.Bool('l', "list in long format")

	if _, ok := s.options(set, args); !ok {
		return
	}

	jobs := s.jobList()

	for i, j := range jobs {
		if *ids {
			fmt.Fprintln(s.io.out, j.id)

			continue
		}

		mark := " "

		switch i {
		case len(jobs) - 1:
			mark = "+"
		case len(jobs) - 2:
			mark = "-"
		}

		state := "Running"
		if j.finished() {
			state = "Done"
		}

		fmt.Fprintf(s.io.out, "[%d]%s  %s\n", j.id, mark, state)
	}

	s.status = 0
}

// fg waits for a job; bg has nothing to resume since jobs never stop.
func (s *Shell) fg(ctx context.Context, fg bool, args []string) error {
	spec := "%%"
	if len(args) > 1 {
		spec = args[1]
	}

	j, ok := s.findJob(spec)
	if !ok {
		s.errorf("%s: %s: no such job", args[0], spec)
		s.status = 1

		return nil
	}

	if !fg {
		s.status = 0

		return nil
	}

	code, err := s.waitJob(ctx, j)
	s.status = code

	return err
}

func (s *Shell) kill(args []string) {
	args = args[1:]
	sig := syscall.SIGTERM

	if len(args) > 0 && args[0] == "-l" {
		for _, name := range slices.Sorted(maps.Keys(killSignals)) {
			fmt.Fprintln(s.io.out, name)
		}

		s.status = 0

		return
	}

	if len(args) > 0 && strings.HasPrefix(args[0], "-") && len(args[0]) > 1 {
		spec := strings.TrimPrefix(args[0], "-")
		args = args[1:]

		if spec == "s" || spec == "n" {
			if len(args) == 0 {
				s.usage("kill", errors.New("option requires an argument"))

				return
			}

			spec, args = args[0], args[1:]
		}

		name, ok := signalName(spec)
		if !ok || name == "EXIT" || name == "ERR" {
			s.usage("kill", errors.New(spec+": invalid signal specification"))

			return
		}

		sig = killSignals[name]
	}

	if len(args) == 0 {
		s.usage("kill", errors.New("usage: kill [-s sigspec | -sigspec] pid | jobspec ..."))

		return
	}

	s.status = 0

	for _, target := range args {
		if j, ok := s.findJob(target); ok && (strings.HasPrefix(target, "%") || !j.finished()) {
			j.cancel()

			continue
		}

		pid, err := strconv.Atoi(target)
		if err != nil {
			s.errorf("kill: %s: arguments must be process or job IDs", target)
			s.status = 1

			continue
		}

		p, err := os.FindProcess(pid)
		if err == nil {
			err = p.Signal(sig)
		}

		if err != nil {
			s.errorf("kill: (%d) - %v", pid, err)
			s.status = 1
		}
	}
}

func (s *Shell) let(ctx context.Context, args []string) error {
	if len(args) < 2 {
		s.usage("let", errors.New("expression expected"))

		return nil
	}

	var n int64

	for _, a := range args[1:] {
		v, err := s.arithValue(ctx, a, 0)
		if err != nil {
			return err
		}

		n = v
	}

	s.status = int(b2i(n == 0))

	return nil
}

func (s *Shell) getopts(args []string) error {
	if len(args) < 3 {
		s.usage("getopts", errors.New("usage: getopts optstring name [arg ...]"))

		return nil
	}

	optstring, name := args[1], args[2]

	params := s.params
	if len(args) > 3 {
		params = args[3:]
	}

	silent := strings.HasPrefix(optstring, ":")
	optstring = strings.TrimPrefix(optstring, ":")

	optind, _ := s.env.Value("OPTIND")

	ind := atoi(optind)
	if ind < 1 {
		ind = 1
	}

	finish := func() error {
		s.optPos = 0
		s.status = 1
		_ = s.env.Unset("OPTARG")

		if err := s.env.Set("OPTIND", strconv.Itoa(ind)); err != nil {
			return err
		}

		return s.env.Set(name, "?")
	}

	if ind > len(params) {
		return finish()
	}

	arg := params[ind-1]

	if s.optPos == 0 {
		if arg == "--" {
			ind++

			return finish()
		}

		if len(arg) < 2 || arg[0] != '-' {
			return finish()
		}

		s.optPos = 1
	}

	c := arg[s.optPos]
	s.optPos++

	next := func() {
		if s.optPos >= len(arg) {
			s.optPos = 0
			ind++
		}
	}

	s.status = 0

	i := strings.IndexByte(optstring, c)
	if i < 0 || c == ':' {
		next()

		if silent {
			_ = s.env.Set("OPTARG", string(c))
		} else {
			s.errorf("illegal option -- %c", c)
			_ = s.env.Unset("OPTARG")
		}

		_ = s.env.Set("OPTIND", strconv.Itoa(ind))

		return s.env.Set(name, "?")
	}

	if i+1 < len(optstring) && optstring[i+1] == ':' {
		var val string

		switch {
		case s.optPos < len(arg):
			val = arg[s.optPos:]
			ind++
		case ind < len(params):
			val = params[ind]
			ind += 2
		default:
			s.optPos = 0
			ind++

			_ = s.env.Set("OPTIND", strconv.Itoa(ind))

			if silent {
				_ = s.env.Set("OPTARG", string(c))

				return s.env.Set(name, ":")
			}

			s.errorf("option requires an argument -- %c", c)
			_ = s.env.Unset("OPTARG")

			return s.env.Set(name, "?")
		}

		s.optPos = 0

		if err := s.env.Set("OPTARG", val); err != nil {
			return err
		}
	} else {
		next()
		_ = s.env.Unset("OPTARG")
	}

	if err := s.env.Set("OPTIND", strconv.Itoa(ind)); err != nil {
		return err
	}

	return s.env.Set(name, string(c))
}

// kind describes what name resolves to as a command.
func (s *Shell) kind(name string, funcs bool) (string, string) {
	if _, ok := s.aliases[name]; ok {
		return "alias", s.aliases[name]
	}

	if funcs {
		if _, ok := s.funcs[name]; ok {
			return "function", name
		}
	}

	if IsBuiltin(name) {
		return "builtin", name
	}

	if p, err := s.lookPath(name, -1); err == nil {
		return "file", p
	}

	return "", ""
}

func (s *Shell) typeOf(args []string) {
	set := getopt.New()
	short := set.Bool('t', "print a single word describing each name")
	paths := set.Bool('p', "print the file each name would run")
	set.Bool('a', "accepted for compatibility")

	rest, ok := s.options(set, args)
	if !ok {
		return
	}

	s.status = 0

	for _, name := range rest {
		kind, what := s.kind(name, true)

		switch {
		case kind == "":
			if !*short && !*paths {
				s.errorf("type: %s: not found", name)
			}

			s.status = 1
		case *short:
			fmt.Fprintln(s.io.out, kind)
		case *paths:
			if kind == "file" {
				fmt.Fprintln(s.io.out, what)
			}
		case kind == "alias":
			fmt.Fprintf(s.io.out, "%s is aliased to `%s'\n", name, what)
		case kind == "function":
			fmt.Fprintf(s.io.out, "%s is a function\n", name)
		case kind == "builtin":
			fmt.Fprintf(s.io.out, "%s is a shell builtin\n", name)
		default:
			fmt.Fprintf(s.io.out, "%s is %s\n", name, what)
		}
	}
}

func (s *Shell) command(ctx context.Context, args []string) error {
	set := getopt.New()
	set.Bool('p', "use a default PATH")
	short := set.Bool('v', "print the command each name would run")
	long := set.Bool('V', "describe each name")

	rest, ok := s.options(set, args)
	if !ok {
		return nil
	}

	if len(rest) == 0 {
		s.status = 0

		return nil
	}

	if *short || *long {
		s.status = 0

		for _, name := range rest {
			kind, what := s.kind(name, true)

			switch {
			case kind == "":
				if *long {
					s.errorf("command: %s: not found", name)
				}

				s.status = 1
			case *long:
				fmt.Fprintf(s.io.out, "%s is %s\n", name, what)
			case kind == "alias":
				fmt.Fprintf(s.io.out, "alias %s=%s\n", name, quote(what))
			default:
				fmt.Fprintln(s.io.out, what)
			}
		}

		return nil
	}

	if b, ok := LookupBuiltin(rest[0]); ok {
		return s.builtin(ctx, b, rest)
	}

	return s.external(ctx, rest, -1, nil)
}

func (s *Shell) umask(args []string) {
	set := getopt.New()
	symbolic := set.Bool('S', "print the mask in symbolic form")

	rest, ok := s.options(set, args)
	if !ok {
		return
	}

	s.status = 0

	if len(rest) == 0 {
		s.shared.mu.Lock()
		m := s.shared.umask
		s.shared.mu.Unlock()

		if !*symbolic {
			fmt.Fprintf(s.io.out, "%04o\n", uint32(m))

			return
		}

		perm := ^m & 0o777

		var parts []string

		for i, who := range []string{"u", "g", "o"} {
			bits := (perm >> (6 - 3*i)) & 7

			var sb strings.Builder

			sb.WriteString(who + "=")

			for j, c := range "rwx" {
				if bits&(4>>j) != 0 {
					sb.WriteRune(c)
				}
			}

			parts = append(parts, sb.String())
		}

		fmt.Fprintln(s.io.out, strings.Join(parts, ","))

		return
	}

	n, err := strconv.ParseUint(rest[0], 8, 32)
	if err != nil || n > 0o777 {
		s.errorf("umask: %s: octal number out of range", rest[0])
		s.status = 1

		return
	}

	s.shared.mu.Lock()
	s.shared.umask = os.FileMode(n)
	s.shared.mu.Unlock()
}

func (s *Shell) times() {
	elapsed := s.since()
	m := int(elapsed.Minutes())
	sec := elapsed.Seconds() - float64(m*60)

	fmt.Fprintf(s.io.out, "%dm%.3fs %dm%.3fs\n", m, sec, 0, 0.0)
	fmt.Fprintf(s.io.out, "%dm%.3fs %dm%.3fs\n", 0, 0.0, 0, 0.0)

	s.status = 0
}

func (s *Shell) alias(args []string) {
	s.status = 0

	if len(args) == 1 || (len(args) == 2 && args[1] == "-p") {
		for _, name := range slices.Sorted(maps.Keys(s.aliases)) {
			fmt.Fprintf(s.io.out, "alias %s=%s\n", name, quote(s.aliases[name]))
		}

		return
	}

	for _, a := range args[1:] {
		name, value, ok := strings.Cut(a, "=")
		if ok {
			s.aliases[name] = value

			continue
		}

		v, found := s.aliases[name]
		if !found {
			s.errorf("alias: %s: not found", name)
			s.status = 1

			continue
		}

		fmt.Fprintf(s.io.out, "alias %s=%s\n", name, quote(v))
	}
}

func (s *Shell) unalias(args []string) {
	s.status = 0

	for _, name := range args[1:] {
		if name == "-a" {
			clear(s.aliases)

			continue
		}

		if _, ok := s.aliases[name]; !ok {
			s.errorf("unalias: %s: not found", name)
			s.status = 1

			continue
		}

		delete(s.aliases, name)
	}
}

func (s *Shell) hash(args []string) {
	set := getopt.New()
	reset := set.Bool('r', "forget every remembered location")

	rest, ok := s.options(set, args)
	if !ok {
		return
	}

	s.status = 0

	if *reset {
		s.shared.mu.Lock()
		clear(s.shared.hash)
		s.shared.mu.Unlock()
	}

	if len(rest) == 0 && !*reset {
		s.shared.mu.Lock()
		table := maps.Clone(s.shared.hash)
		s.shared.mu.Unlock()

		for _, name := range slices.Sorted(maps.Keys(table)) {
			fmt.Fprintf(s.io.out, "%s\t%s\n", name, table[name])
		}

		return
	}

	for _, name := range rest {
		if IsBuiltin(name) {
			continue
		}

		if _, err := s.lookPath(name, -1); err != nil {
			s.errorf("hash: %s: not found", name)
			s.status = 1
		}
	}
}

func (s *Shell) help(args []string) {
	s.status = 0

	if len(args) > 1 {
		for _, name := range args[1:] {
			if !IsBuiltin(name) {
				s.errorf("help: no help topics match `%s'", name)
				s.status = 1

				continue
			}

			fmt.Fprintf(s.io.out, "%s: shell builtin\n", name)
		}

		return
	}

	fmt.Fprintf(s.io.out, "%s: these commands are built in:\n\n", s.name)

	names := Builtins()
	for i := 0; i < len(names); i += 6 {
		fmt.Fprintln(s.io.out, strings.Join(names[i:min(i+6, len(names))], "  "))
	}
}
