package api

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/notification"
)

// getTestSettings returns settings backed by a SQLite file in a temporary
// directory. This bypasses the global singleton and config file loading.
func getTestSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Notification.RetentionDays = 7
	settings.Notification.DedupWindowMinutes = 5
	settings.Notification.HourlyWindowMinutes = 60
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "hushd-api-test.db")
	settings.WebServer.Port = "8080"
	return settings
}

// getTestStore creates and opens a store for testing, closing it when the
// test finishes.
func getTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()

	store := datastore.New(settings)
	require.NotNil(t, store, "Expected a store for the enabled backend")
	require.NoError(t, store.Open(), "Failed to open test database")
	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "Failed to close test database")
	})
	return store
}

// getTestController creates a controller on the given Echo instance with
// disk persistence disabled.
func getTestController(t *testing.T, e *echo.Echo) *Controller {
	t.Helper()

	settings := getTestSettings(t)
	return newTestController(t, e, settings, getTestStore(t, settings))
}

func newTestController(t *testing.T, e *echo.Echo, settings *conf.Settings, store datastore.Interface) *Controller {
	t.Helper()

	controller, err := New(e, store, settings, nil, log.New(os.Stderr, "TEST: ", log.LstdFlags))
	require.NoError(t, err)
	controller.DisableSaveSettings = true // Disable saving to disk during tests
	t.Cleanup(controller.Shutdown)
	return controller
}

// installTestService points the pipeline singleton at a service backed by
// the given store for the duration of the test. Tests touching the
// singleton must not run in parallel.
func installTestService(t *testing.T, settings *conf.Settings, store datastore.Interface) {
	t.Helper()

	service, err := notification.NewService(settings, store, nil)
	require.NoError(t, err)
	notification.SetService(service)
	t.Cleanup(func() {
		notification.SetService(nil)
		service.Stop()
	})
}
