// Package cmd implements the shgo subcommands.
//
// Every command that reads a script shares the same pipeline: the script
// and the files it sources are resolved into a dependency graph, and the
// graph is lowered into a program. Diagnostics are written to the error
// stream as they are found; a command fails with [ErrDiagnostics] when any
// of them is fatal.
//
// Commands take their file system, streams and configuration from the
// context so that tests can run them against an in-memory tree.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path of
	// the configuration file.
	ConfigIdentifier = "config"

	// DialectsIdentifier is the kong variable identifier listing the
	// supported dialect names.
	DialectsIdentifier = "dialects"
)
