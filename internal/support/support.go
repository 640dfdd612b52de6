// Package support bundles the process-wide singletons the consumer
// depends on — a logger and a metrics sink — behind a single injectable
// type, so tests can swap both without touching package-level state.
package support

import (
	"log/slog"
	"os"

	"github.com/coldforge/queue-consumer/internal/metrics"
)

// EnvLogLevel is read once by NewDefault to pick the slog verbosity.
const EnvLogLevel = "QUEUE_CONSUMER_LOG_LEVEL"

// Support is the single dependency the consumer needs injected for
// observability. Construct one with New or NewDefault and pass it to
// consumer.Config.
type Support struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// New builds a Support from caller-supplied collaborators.
func New(logger *slog.Logger, collector *metrics.Collector) *Support {
	return &Support{Logger: logger, Metrics: collector}
}

// NewDefault builds the Support a standalone consumer process reaches
// for: a text slog.Logger writing to stderr at the level named by
// QUEUE_CONSUMER_LOG_LEVEL (default DEBUG), and a fresh Prometheus
// Collector registered against the default registerer.
func NewDefault() *Support {
	level := parseLevel(os.Getenv(EnvLogLevel))
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Support{
		Logger:  slog.New(handler),
		Metrics: metrics.NewCollector(),
	}
}

func parseLevel(name string) slog.Level {
	if name == "" {
		name = "DEBUG"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelDebug
	}
	return level
}
