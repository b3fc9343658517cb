// Package logging configures the process-wide slog loggers: a structured
// JSON logger on stdout, a human-readable text logger on stderr, and
// rotated per-service file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

func newHandlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level}
}

// Init initializes the logging system. debug lowers the structured logger
// to debug level.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, newHandlerOptions(level)))
	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, newHandlerOptions(slog.LevelInfo)))

	slog.SetDefault(structuredLogger)
}

// SetOutput redirects logger output, primarily for tests.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, newHandlerOptions(slog.LevelDebug)))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, newHandlerOptions(slog.LevelInfo)))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable logger.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute
// added, using the global structured logger as the base. Returns nil if
// Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// NewFileLogger creates a slog.Logger writing JSON logs to the given file
// path, rotated by lumberjack. It returns the logger, a close function for
// the underlying writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := slog.NewJSONHandler(logWriter, newHandlerOptions(level))
	logger := slog.New(fileHandler).With("service", serviceName)

	return logger, logWriter.Close, nil
}
