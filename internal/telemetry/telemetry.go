// Package telemetry provides privacy-compliant error tracking. Reporting is
// opt-in and every outgoing event passes through scrubbing filters, so no
// entity names, hostnames or credentials leave the process.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/logging"
	"github.com/hush-home/hushd/internal/privacy"
	"github.com/hush-home/hushd/internal/secrets"
)

// flushTimeout bounds how long Shutdown waits for queued events.
const flushTimeout = 3 * time.Second

var systemID string

func logger() *slog.Logger {
	if l := logging.ForService("telemetry"); l != nil {
		return l
	}
	return slog.Default().With("service", "telemetry")
}

// Init initializes Sentry error reporting when the user has opted in. On
// success the global error reporter is installed so enhanced errors are
// forwarded automatically. A disabled config is not an error.
func Init(settings *conf.Settings) error {
	// Install the scrubber regardless of opt-in, error messages get
	// anonymized in local logs too.
	errors.SetPrivacyScrubber(privacy.ScrubMessage)

	if !settings.Sentry.Enabled {
		logger().Info("Error reporting is disabled (opt-in required)")
		return nil
	}

	dsn, err := secrets.ExpandString(settings.Sentry.DSN)
	if err != nil || dsn == "" {
		return errors.Newf("sentry DSN is not configured: %v", err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	id, err := loadSystemID()
	if err != nil {
		// A missing system ID degrades grouping but should not block startup.
		logger().Warn("Could not load system ID", "error", err)
	}
	systemID = id

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:        dsn,
		SampleRate: 1.0,

		// Privacy settings: no stack traces with local paths, no hostname.
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",

		Release:    fmt.Sprintf("hushd@%s", settings.Version),
		BeforeSend: scrubEvent,
	}); err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	configureScope(settings)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	logger().Info("Error reporting initialized",
		"system_id", systemID,
		"version", settings.Version)
	return nil
}

// Shutdown flushes queued events and detaches the error reporter.
func Shutdown() {
	errors.SetTelemetryReporter(nil)
	sentry.Flush(flushTimeout)
}

// scrubEvent is the BeforeSend hook. It strips user data, host identity and
// any context the filters do not explicitly allow.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	return event
}

func configureScope(settings *conf.Settings) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", systemID)
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("container", fmt.Sprintf("%t", conf.RunningInContainer()))

		scope.SetContext("application", map[string]any{
			"name":      "hushd",
			"version":   settings.Version,
			"system_id": systemID,
		})
		scope.SetContext("platform", map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"container":  conf.RunningInContainer(),
			"num_cpu":    runtime.NumCPU(),
			"go_version": runtime.Version(),
		})
	})
}

// CaptureError reports an error that did not flow through the enhanced
// error builder, recovered panics for example.
func CaptureError(err error, component string) {
	settings := conf.GetSettings()
	if settings == nil || !settings.Sentry.Enabled {
		return
	}

	scrubbed := errors.ScrubMessage(err.Error())

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetFingerprint([]string{scrubbed, component})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%T", err),
			Value: scrubbed,
		}}
		sentry.CaptureEvent(event)
	})
}

// CaptureMessage reports a free-form message at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	settings := conf.GetSettings()
	if settings == nil || !settings.Sentry.Enabled {
		return
	}

	scrubbed := errors.ScrubMessage(message)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(scrubbed)
	})
}

// loadSystemID resolves the anonymous install identifier from the first
// usable config directory.
func loadSystemID() (string, error) {
	configPaths, err := conf.GetDefaultConfigPaths()
	if err != nil || len(configPaths) == 0 {
		return "", fmt.Errorf("no config directory available: %w", err)
	}
	return LoadOrCreateSystemID(configPaths[0])
}
