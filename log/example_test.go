package log_test

import (
	"log/slog"
	"os"

	"github.com/ardnew/shgo/log"
)

func Example() {
	logger := log.Make(os.Stdout,
		log.WithTimeLayout("none"),
		log.WithPretty(false))

	logger.Info("converted", slog.String("script", "deploy.sh"))
	// Output: level=INFO msg=converted script=deploy.sh
}

func Example_json() {
	logger := log.Make(os.Stdout,
		log.WithFormat(log.FormatJSON),
		log.WithTimeLayout("none"),
		log.WithPretty(false))

	logger.With(slog.String("unit", "helper.sh")).Warn("missing reference")
	// Output: {"level":"WARN","msg":"missing reference","unit":"helper.sh"}
}
