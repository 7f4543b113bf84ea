package logging

import (
	"flag"
	"log/slog"
	"os"
)

var logLevel slog.LevelVar

// Setup installs a text slog handler on stderr and registers the
// -log-level flag controlling it. Call before flag.Parse.
//
// Failures while processing individual track sets are logged at error
// level but never change the exit code, so unlike most tools there is no
// exit-nonzero-on-error handler here.
func Setup() {
	flag.TextVar(&logLevel, "log-level", &logLevel, "set the logging level")

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})
	slog.SetDefault(slog.New(h))
	slog.SetLogLoggerLevel(slog.LevelError)
}
