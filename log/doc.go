// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Every pipeline stage of shgo accepts a [Logger] through a functional option
// and reports unit boundaries, cache activity, and classification decisions
// at [LevelTrace] and [LevelDebug]. The zero Logger discards everything.
//
// # Basic Usage
//
//	logger := log.Make(os.Stderr)
//	logger.Info("converted", slog.String("script", "deploy.sh"))
//
// # Configuration
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// The package-level functions ([Debug], [InfoContext], ...) write through a
// default logger that [Config] reconfigures in place.
//
// # Output Formats
//
// [FormatText] (default) and [FormatJSON]. With [WithPretty] enabled the
// output is colorized with lipgloss styles when the destination is a
// terminal.
package log
