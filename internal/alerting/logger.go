package alerting

import (
	"log/slog"

	"github.com/windwatch/windwatch-go/internal/logging"
)

// getLoggerSafe returns a service logger, falling back to the default
// slog logger if logging has not been initialized (tests).
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}
