// Package cli contains the command line interface for shgo.
//
// # Usage
//
//	shgo [flags] <command> [args]
//
// Commands:
//
//   - convert: resolve a script and its sources and write a Go program
//   - check: report diagnostics for one or more scripts
//   - run: convert a script and execute it in-process
//   - deps: print the dependency graph as text or YAML
//   - watch: regenerate a program whenever its sources change
//   - fmt: format scripts or dump their syntax trees
//   - features: list the language features each dialect supports
//   - init: write a configuration file with the current settings
//
// # Configuration
//
// The configuration file is YAML, read from the user configuration
// directory (for example ~/.config/shgo/config.yaml) or the file named by
// --config. Top-level keys set flag defaults, written with hyphens or
// underscores, and a mapping named after a command holds defaults for that
// command only. The resolve and generate sections configure the converter:
//
//	log_level: debug
//	convert:
//	  output: dist
//	resolve:
//	  max_depth: 8
//	  precedence: [sensitive, system]
//	  rules:
//	    - name: assets
//	      category: static
//	      when: path startsWith "/opt/assets/"
//	      class: embed
//	generate:
//	  decisions: decisions.yaml
//	  options:
//	    pipefail: true
//
// Command-line flags override every value in the file.
//
// # Logging Options
//
//   - --log-level: minimum log level (trace, debug, info, warn, error)
//   - --log-format: log output format (text, json)
//   - --log-time-layout: timestamp format (RFC3339, Kitchen, ...)
//   - --log-caller: include caller information
//   - --log-pretty: colorize output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o shgo .
//
//   - --pprof-mode: enable profiling (allocs, block, clock, cpu, ...)
//   - --pprof-dir: profile output directory (default ~/.cache/shgo/pprof)
package cli
