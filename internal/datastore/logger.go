// logger.go: datastore file logger and the gorm logger bridge.
package datastore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hush-home/hushd/internal/logging"
	gormlogger "gorm.io/gorm/logger"
)

var (
	fileLogger        *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
	closeLogger       func() error
	loggerMu          sync.Mutex
)

// InitializeLogger sets up the datastore file logger. Call it once from the
// service bootstrap before opening a store; until then getLogger falls back
// to the process default logger so tests run without any file setup.
func InitializeLogger(logFilePath string) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logFilePath == "" {
		logFilePath = "logs/datastore.log"
	}

	logger, closeFunc, err := logging.NewFileLogger(logFilePath, "datastore", datastoreLevelVar)
	if err != nil {
		return err
	}
	fileLogger = logger
	closeLogger = closeFunc
	return nil
}

// SetLogLevel adjusts the level of the datastore file logger at runtime.
func SetLogLevel(level slog.Level) {
	datastoreLevelVar.Set(level)
}

// CloseLogger releases the datastore log file.
func CloseLogger() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if closeLogger == nil {
		return nil
	}
	err := closeLogger()
	closeLogger = nil
	fileLogger = nil
	return err
}

func getLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if fileLogger != nil {
		return fileLogger
	}
	return slog.Default().With("service", "datastore")
}

// GormLogger adapts the datastore slog logger to gorm's logger interface and
// feeds query timings into the datastore metrics.
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
	metrics       *Metrics
}

// NewGormLogger creates a gorm logger with the given slow query threshold.
func NewGormLogger(slowThreshold time.Duration, level gormlogger.LogLevel, metrics *Metrics) *GormLogger {
	return &GormLogger{
		SlowThreshold: slowThreshold,
		LogLevel:      level,
		metrics:       metrics,
	}
}

// LogMode returns a copy of the logger with the given log level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs informational messages from gorm.
func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		getLogger().Info(msg, "data", data)
	}
}

// Warn logs warning messages from gorm.
func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		getLogger().Warn(msg, "data", data)
	}
}

// Error logs error messages from gorm.
func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		getLogger().Error(msg, "data", data)
	}
}

// Trace logs completed SQL statements with their timing. Failed and slow
// queries are always surfaced; routine queries only appear at Info level.
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	operation, table := parseSQLOperation(sql)

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error:
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "error")
			l.metrics.RecordDbOperationError(operation, table, categorizeError(err))
		}
		getLogger().Error("Database query failed",
			"error", err,
			"operation", operation,
			"table", table,
			"elapsed_ms", elapsed.Milliseconds(),
			"rows", rows)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "slow")
			l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		}
		getLogger().Warn("Slow database query",
			"operation", operation,
			"table", table,
			"elapsed_ms", elapsed.Milliseconds(),
			"threshold_ms", l.SlowThreshold.Milliseconds(),
			"rows", rows)
	case l.LogLevel >= gormlogger.Info:
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
			l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		}
		getLogger().Debug("Database query",
			"operation", operation,
			"table", table,
			"elapsed_ms", elapsed.Milliseconds(),
			"rows", rows)
	default:
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
			l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		}
	}
}
