// Package profile provides optional runtime profiling for shgo.
//
// # Overview
//
// This package wraps [github.com/pkg/profile]. Profiling must be enabled at
// build time with the "pprof" build tag; without it every operation is a
// no-op and [Modes] is empty.
//
//	go build -tags pprof -o shgo .
//
// # Modes
//
// The following modes are supported when built with the pprof tag:
//
//   - allocs:    memory allocation profiling (all allocations)
//   - block:     block (synchronization) profiling
//   - clock:     wall-clock profiling
//   - cpu:       CPU profiling
//   - goroutine: goroutine profiling
//   - heap:      heap memory profiling (live allocations)
//   - mem:       general memory profiling
//   - mutex:     mutex contention profiling
//   - thread:    thread creation profiling
//   - trace:     execution trace profiling
//
// # Usage
//
// A session is started with [Start] and options, and ended with Stop:
//
//	defer profile.Start(profile.WithMode("cpu"), profile.WithDir("/tmp/profiles")).Stop()
//
// The shgo command exposes the same settings as flags:
//
//	shgo --pprof-mode=cpu convert deploy.sh
//	shgo --pprof-mode=heap --pprof-dir=./profiles check *.sh
//
// Profiles are written to $XDG_CACHE_HOME/shgo/pprof by default and are read
// with go tool pprof:
//
//	go tool pprof -http=: ~/.cache/shgo/pprof/cpu.pprof
//
// When built with the pprof tag, this package also imports [net/http/pprof],
// which registers its handlers on the default HTTP mux.
package profile

// Tag is the build tag that enables profiling, and the prefix of the
// profiling flags.
const Tag = "pprof"
