package profile

// Stopper ends a profiling session and flushes its output.
type Stopper interface{ Stop() }

// Settings describe a profiling session.
type Settings struct {
	// Mode names one of [Modes]. Profiling is disabled when it is empty or
	// unknown.
	Mode string
	// Dir receives the profile files; empty selects the working directory.
	Dir string
	// Quiet suppresses the profiler's own log output.
	Quiet bool
}

// Option adjusts [Settings].
type Option func(*Settings)

// WithMode selects the profiling mode.
func WithMode(mode string) Option { return func(s *Settings) { s.Mode = mode } }

// WithDir selects the output directory.
func WithDir(dir string) Option { return func(s *Settings) { s.Dir = dir } }

// WithQuiet silences the profiler.
func WithQuiet(quiet bool) Option { return func(s *Settings) { s.Quiet = quiet } }

// Start begins a profiling session. Without the pprof build tag, or
// without a known mode, it returns a Stopper that does nothing. Stop is
// always safe to call.
func Start(opts ...Option) Stopper {
	var s Settings
	for _, opt := range opts {
		opt(&s)
	}

	if s.Mode == "" {
		return nop{}
	}

	return start(s)
}

type nop struct{}

func (nop) Stop() {}
