package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// redirect runs fn with redirs applied to the current streams, restoring
// them afterwards. A redirection that cannot be applied fails the command
// with status 1 without running fn.
func (s *Shell) redirect(ctx context.Context, redirs []*Redir, fn func() error) error {
	if len(redirs) == 0 {
		return fn()
	}

	saved := s.io

	closers, err := s.redirs(ctx, redirs)

	defer func() {
		s.io = saved

		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if err != nil {
		return s.redirectError(err)
	}

	return fn()
}

// redirectPermanent applies redirs to the shell itself, as "exec" with no
// command does.
func (s *Shell) redirectPermanent(ctx context.Context, redirs []*Redir) error {
	closers, err := s.redirs(ctx, redirs)

	s.shared.mu.Lock()
	s.shared.closers = append(s.shared.closers, closers...)
	s.shared.mu.Unlock()

	return err
}

// redirectError reports a failed redirection. Other errors propagate.
func (s *Shell) redirectError(err error) error {
	if !errors.Is(err, ErrRedirect) {
		return err
	}

	s.errorf("%s", describe(err))
	s.status = 1

	return nil
}

func (s *Shell) redirs(ctx context.Context, redirs []*Redir) ([]io.Closer, error) {
	var closers []io.Closer

	for _, r := range redirs {
		c, err := s.redir(ctx, r)
		if c != nil {
			closers = append(closers, c)
		}

		if err != nil {
			return closers, err
		}
	}

	return closers, nil
}

func defaultFd(op RedirOp) int {
	switch op {
	case RedirIn, RedirDupIn, RedirReadWrite, RedirHeredoc, RedirHerestring:
		return 0
	}

	return 1
}

func (s *Shell) redir(ctx context.Context, r *Redir) (io.Closer, error) {
	fd := r.N
	if fd < 0 {
		fd = defaultFd(r.Op)
	}

	if fd > 2 {
		return nil, ErrRedirect.With(slog.Int("fd", fd)).
			Wrap(errors.New(strconv.Itoa(fd) + ": unsupported file descriptor"))
	}

	switch r.Op {
	case RedirHeredoc, RedirHerestring:
		text, err := s.literal(ctx, r.Word)
		if err != nil {
			return nil, err
		}

		if r.Op == RedirHerestring {
			text += "\n"
		}

		return nil, s.setFd(fd, strings.NewReader(text))
	case RedirDupIn, RedirDupOut:
		return s.dup(ctx, fd, r)
	}

	if r.Op == RedirIn && r.Word != nil && len(r.Word.Parts) == 1 {
		if e, ok := r.Word.Parts[0].(*EmbedPath); ok {
			data, ok := s.prog.Embeds[e.Key]
			if !ok {
				return nil, ErrRedirect.Wrap(errors.New(e.Key + ": not embedded"))
			}

			return nil, s.setFd(fd, bytes.NewReader(data))
		}
	}

	name, err := s.literal(ctx, r.Word)
	if err != nil {
		return nil, err
	}

	if stream, ok := s.device(name); ok {
		if r.Op == RedirAll || r.Op == RedirAllAppend {
			_ = s.setFd(2, stream)
		}

		return nil, s.setFd(fd, stream)
	}

	var flag int

	switch r.Op {
	case RedirIn:
		flag = os.O_RDONLY
	case RedirOut, RedirClobber, RedirAll:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case RedirAppend, RedirAllAppend:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case RedirReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	}

	s.shared.mu.Lock()
	perm := 0o666 &^ s.shared.umask
	s.shared.mu.Unlock()

	f, err := s.fs.OpenFile(s.abs(name), flag, perm)
	if err != nil {
		return nil, ErrRedirect.Wrap(err).With(slog.String("path", name))
	}

	if r.Op == RedirAll || r.Op == RedirAllAppend {
		s.io.out, s.io.err = f, f

		return f, nil
	}

	return f, s.setFd(fd, f)
}

// device returns the stream for the special files the shell handles
// itself.
func (s *Shell) device(name string) (any, bool) {
	switch name {
	case "/dev/null":
		return nullDevice{}, true
	case "/dev/stdin", "/dev/fd/0":
		return s.io.in, true
	case "/dev/stdout", "/dev/fd/1":
		return s.io.out, true
	case "/dev/stderr", "/dev/fd/2":
		return s.io.err, true
	}

	return nil, false
}

// nullDevice reads as empty and discards writes.
type nullDevice struct{}

func (nullDevice) Read([]byte) (int, error)    { return 0, io.EOF }
func (nullDevice) Write(p []byte) (int, error) { return len(p), nil }

func (s *Shell) dup(ctx context.Context, fd int, r *Redir) (io.Closer, error) {
	target, err := s.literal(ctx, r.Word)
	if err != nil {
		return nil, err
	}

	if target == "-" {
		if fd == 0 {
			return nil, s.setFd(fd, nullDevice{})
		}

		return nil, s.setFd(fd, io.Discard)
	}

	src, err := strconv.Atoi(target)
	if err != nil {
		// ">& file" redirects both output streams.
		if r.Op == RedirDupOut && fd == 1 {
			return s.redir(ctx, &Redir{N: -1, Op: RedirAll, Word: r.Word})
		}

		return nil, ErrRedirect.Wrap(errors.New(target + ": ambiguous redirect"))
	}

	switch src {
	case 0:
		return nil, s.setFd(fd, s.io.in)
	case 1:
		return nil, s.setFd(fd, s.io.out)
	case 2:
		return nil, s.setFd(fd, s.io.err)
	}

	return nil, ErrRedirect.Wrap(errors.New(target + ": bad file descriptor"))
}

// setFd installs stream as descriptor fd. The stream must support the
// direction fd is used in.
func (s *Shell) setFd(fd int, stream any) error {
	switch fd {
	case 0:
		r, ok := stream.(io.Reader)
		if !ok {
			return ErrRedirect.Wrap(errors.New("0: not readable"))
		}

		s.io.in = r
	case 1, 2:
		w, ok := stream.(io.Writer)
		if !ok {
			return ErrRedirect.Wrap(errors.New(strconv.Itoa(fd) + ": not writable"))
		}

		if fd == 1 {
			s.io.out = w
		} else {
			s.io.err = w
		}
	}

	return nil
}
