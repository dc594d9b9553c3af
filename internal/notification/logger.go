package notification

import (
	"log/slog"
	"sync"

	"github.com/hush-home/hushd/internal/logging"
)

var (
	// fileLogger is the dedicated file logger for the notification pipeline
	fileLogger *slog.Logger
	// levelVar allows dynamic log level adjustment
	levelVar = new(slog.LevelVar)
	// loggerCloser stores the cleanup function for the log file
	loggerCloser func() error
	loggerOnce   sync.Once
)

// InitializeFileLogger sets up the dedicated log file for the pipeline.
// Callers that skip it, such as tests and one-shot CLI runs, fall back to
// the shared structured logger.
func InitializeFileLogger(debug bool) {
	loggerOnce.Do(func() {
		if debug {
			levelVar.Set(slog.LevelDebug)
		} else {
			levelVar.Set(slog.LevelInfo)
		}

		logger, closer, err := logging.NewFileLogger("logs/notification.log", "notification", levelVar)
		if err != nil || logger == nil {
			// Fallback to default logger if file logger creation fails
			fileLogger = slog.Default().With("service", "notification")
			return
		}

		fileLogger = logger
		loggerCloser = closer
	})
}

// getLogger returns the pipeline logger, preferring the file logger when
// InitializeFileLogger has run.
func getLogger() *slog.Logger {
	if fileLogger != nil {
		return fileLogger
	}
	if logger := logging.ForService("notification"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "notification")
}

// SetDebugLevel updates the log level for the file logger
func SetDebugLevel(debug bool) {
	if debug {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// CloseLogger closes the log file and cleans up resources
func CloseLogger() error {
	if loggerCloser != nil {
		return loggerCloser()
	}
	return nil
}
