package shell

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"
)

// job is a statement running in the background.
type job struct {
	id     int
	cancel context.CancelFunc
	done   chan struct{}
	status int
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

func (s *Shell) background(ctx context.Context, x *Background) error {
	sub := s.fork()
	sub.io.in = nullDevice{}

	jctx, cancel := context.WithCancel(ctx)

	s.shared.mu.Lock()
	s.shared.nextJob++
	j := &job{id: s.shared.nextJob, cancel: cancel, done: make(chan struct{})}
	s.shared.jobs = append(s.shared.jobs, j)
	s.shared.mu.Unlock()

	go func() {
		defer close(j.done)
		defer cancel()

		j.status = sub.code(sub.stmt(jctx, x.X))
	}()

	s.logger.TraceContext(ctx, "background job", slog.Int("job", j.id))

	s.lastBg = j.id
	s.status = 0

	return nil
}

func (s *Shell) jobList() []*job {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	return slices.Clone(s.shared.jobs)
}

// findJob returns the job with id, accepting the "%n" form.
func (s *Shell) findJob(spec string) (*job, bool) {
	jobs := s.jobList()

	switch spec {
	case "%%", "%+", "%":
		if len(jobs) == 0 {
			return nil, false
		}

		return jobs[len(jobs)-1], true
	case "%-":
		if len(jobs) < 2 {
			return nil, false
		}

		return jobs[len(jobs)-2], true
	}

	id := atoi(strings.TrimPrefix(spec, "%"))

	i := slices.IndexFunc(jobs, func(j *job) bool { return j.id == id })
	if i < 0 {
		return nil, false
	}

	return jobs[i], true
}

// waitJob blocks until j finishes and forgets it.
func (s *Shell) waitJob(ctx context.Context, j *job) (int, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	s.shared.mu.Lock()
	s.shared.jobs = slices.DeleteFunc(s.shared.jobs, func(o *job) bool { return o == j })
	s.shared.mu.Unlock()

	return j.status, nil
}

// trapSignals are the signals a trap can name.
var trapSignals = map[string]os.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  os.Interrupt,
	"QUIT": syscall.SIGQUIT,
	"TERM": syscall.SIGTERM,
	"ALRM": syscall.SIGALRM,
}

// killSignals are the signals kill can send.
var killSignals = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
	"ALRM": syscall.SIGALRM,
}

// signalName normalizes "SIGINT", "int" or "2" to "INT", and "0" to
// "EXIT".
func signalName(s string) (string, bool) {
	s = strings.TrimPrefix(strings.ToUpper(s), "SIG")

	switch s {
	case "EXIT", "ERR":
		return s, true
	case "0":
		return "EXIT", true
	}

	if _, ok := killSignals[s]; ok {
		return s, true
	}

	n := atoi(s)
	for name, sig := range killSignals {
		if n > 0 && int(sig) == n {
			return name, true
		}
	}

	return "", false
}

// listen subscribes to the signals the shell traps and ignores the ones
// with empty handlers.
func (s *Shell) listen() {
	if s.sub {
		return
	}

	signal.Stop(s.shared.sigc)

	var sigs []os.Signal

	for name, sig := range trapSignals {
		text, ok := s.traps[name]

		switch {
		case !ok:
			signal.Reset(sig)
		case text == "":
			signal.Ignore(sig)
		default:
			sigs = append(sigs, sig)
		}
	}

	if len(sigs) > 0 {
		signal.Notify(s.shared.sigc, sigs...)
	}
}

// signals runs the traps of signals received since the last call.
func (s *Shell) signals(ctx context.Context) error {
	if s.sub {
		return nil
	}

	for {
		select {
		case sig := <-s.shared.sigc:
			for name, ts := range trapSignals {
				if ts != sig {
					continue
				}

				if text := s.traps[name]; text != "" {
					if err := s.runTrap(ctx, name, text); err != nil {
						return err
					}
				}
			}
		default:
			return nil
		}
	}
}

// runTrap runs a trap handler, preserving $?. Only exit ends the shell
// from a handler.
func (s *Shell) runTrap(ctx context.Context, name, text string) error {
	s.logger.TraceContext(ctx, "run trap", slog.String("signal", name))

	status := s.status

	s.condDepth++
	err := s.eval(ctx, "trap", text)
	s.condDepth--

	if _, ok := IsExit(err); ok {
		return err
	}

	if err != nil && !isFlow(err) {
		s.errorf("%s", describe(err))
	}

	s.status = status

	return nil
}

// finish runs the EXIT trap of a shell ending with code and returns the
// final status.
func (s *Shell) finish(ctx context.Context, code int) int {
	text, ok := s.traps["EXIT"]
	if !ok || text == "" {
		return code
	}

	delete(s.traps, "EXIT")

	s.status = code

	if err := s.eval(ctx, "trap", text); err != nil {
		if c, ok := IsExit(err); ok {
			return c
		}
	}

	return code
}

// eval compiles src and runs it in the current shell.
func (s *Shell) eval(ctx context.Context, name, src string) error {
	if strings.TrimSpace(src) == "" {
		s.status = 0

		return nil
	}

	if s.compile == nil {
		return ErrNoCompiler.With(slog.String("name", name))
	}

	b, err := s.compile(ctx, name, []byte(src))
	if err != nil {
		s.errorf("%s: %v", name, err)
		s.status = 2

		return nil
	}

	s.status = 0

	return s.block(ctx, b)
}

func (s *Shell) since() time.Duration {
	return time.Since(s.shared.start)
}
