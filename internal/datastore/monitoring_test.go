package datastore

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/observability/metrics"
)

func TestDatabaseSize(t *testing.T) {
	store := createDatabase(t, nil)
	require.NoError(t, store.Save(&Notification{Message: "Garage door left open"}))

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok, "Expected the SQLite backend")

	size, err := databaseSize(sqliteStore.DB)
	require.NoError(t, err)
	assert.Positive(t, size, "Expected a non-empty database file")
}

func TestMonitoringStopsOnClose(t *testing.T) {
	m, err := metrics.NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	store := New(testSettings(t))
	require.NotNil(t, store)
	store.SetMetrics(m)
	require.NoError(t, store.Open(), "Failed to open test database")

	// Close stops the monitoring goroutines; closing again is a no-op.
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
