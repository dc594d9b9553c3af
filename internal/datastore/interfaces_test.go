package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hush-home/hushd/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSettings builds minimal settings backed by a SQLite file in a
// temporary directory.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Notification.RetentionDays = 7
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "hushd-test.db")
	return settings
}

// createDatabase creates and opens a store for testing, closing it when the
// test finishes.
func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()

	if settings == nil {
		settings = testSettings(t)
	}
	store := New(settings)
	require.NotNil(t, store, "Expected a store for the enabled backend")
	require.NoError(t, store.Open(), "Failed to open test database")
	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "Failed to close test database")
	})
	return store
}

func TestNewBackendSelection(t *testing.T) {
	t.Parallel()

	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(sqliteSettings))

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(mysqlSettings))

	assert.Nil(t, New(&conf.Settings{}), "No enabled backend should yield no store")
}

func TestSaveFillsDefaults(t *testing.T) {
	store := createDatabase(t, nil)

	require.NoError(t, store.Save(&Notification{
		Message:  "Water leak detected in basement",
		Category: "safety",
	}))

	recent, err := store.GetRecent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	saved := recent[0]
	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err, "Generated ID should be a valid UUID")
	_, err = ParseTimestamp(saved.Timestamp)
	assert.NoError(t, err, "Generated timestamp should parse")
	assert.Equal(t, 1, saved.CollapsedCount)
	assert.False(t, saved.Delivered)
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	store := createDatabase(t, nil)

	assert.Error(t, store.Save(nil))
	assert.Error(t, store.Save(&Notification{Category: "info"}), "Empty message should be rejected")
}

func TestGetByID(t *testing.T) {
	store := createDatabase(t, nil)

	id := uuid.New().String()
	require.NoError(t, store.Save(&Notification{
		ID:        id,
		Message:   "Garage door left open",
		Title:     "Garage",
		Category:  "security",
		EntityID:  "cover.garage_door",
		Delivered: true,
	}))

	found, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Garage door left open", found.Message)
	assert.Equal(t, "Garage", found.Title)
	assert.Equal(t, "security", found.Category)
	assert.Equal(t, "cover.garage_door", found.EntityID)
	assert.True(t, found.Delivered)

	_, err = store.Get(uuid.New().String())
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestGetRecentOrdering(t *testing.T) {
	store := createDatabase(t, nil)

	base := time.Now().Add(-30 * time.Minute)
	// Inserted out of chronological order on purpose.
	for _, offset := range []time.Duration{10 * time.Minute, 0, 20 * time.Minute} {
		require.NoError(t, store.Save(&Notification{
			Message:   "event at offset " + offset.String(),
			Category:  "info",
			Timestamp: FormatTimestamp(base.Add(offset)),
		}))
	}

	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "event at offset 20m0s", recent[0].Message)
	assert.Equal(t, "event at offset 10m0s", recent[1].Message)
	assert.Equal(t, "event at offset 0s", recent[2].Message)
}

func TestGetRecentLimits(t *testing.T) {
	store := createDatabase(t, nil)

	base := time.Now().Add(-1 * time.Hour)
	for i := 0; i < 120; i++ {
		require.NoError(t, store.Save(&Notification{
			Message:   "bulk event",
			Category:  "info",
			Timestamp: FormatTimestamp(base.Add(time.Duration(i) * time.Second)),
		}))
	}

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, DefaultRecentLimit},
		{"negative uses default", -5, DefaultRecentLimit},
		{"oversized is capped", 1000, MaxRecentLimit},
		{"small limit honored", 7, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recent, err := store.GetRecent(tc.limit)
			require.NoError(t, err)
			assert.Len(t, recent, tc.want)
		})
	}
}

func TestIsDuplicateCollapsesRow(t *testing.T) {
	store := createDatabase(t, nil)

	id := uuid.New().String()
	require.NoError(t, store.Save(&Notification{
		ID:       id,
		Message:  "Motion detected in hallway",
		Category: "motion",
	}))

	for i := 0; i < 2; i++ {
		duplicate, err := store.IsDuplicate("Motion detected in hallway", 5)
		require.NoError(t, err)
		assert.True(t, duplicate)
	}

	collapsed, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 3, collapsed.CollapsedCount, "Original insert plus two collapsed repeats")

	duplicate, err := store.IsDuplicate("Motion detected in kitchen", 5)
	require.NoError(t, err)
	assert.False(t, duplicate, "Different message text is not a duplicate")
}

func TestIsDuplicateWindow(t *testing.T) {
	store := createDatabase(t, nil)

	require.NoError(t, store.Save(&Notification{
		Message:   "Front door opened",
		Category:  "security",
		Timestamp: FormatTimestamp(time.Now().Add(-10 * time.Minute)),
	}))

	duplicate, err := store.IsDuplicate("Front door opened", 5)
	require.NoError(t, err)
	assert.False(t, duplicate, "Record outside a 5 minute window")

	duplicate, err = store.IsDuplicate("Front door opened", 60)
	require.NoError(t, err)
	assert.True(t, duplicate, "Record inside a 60 minute window")

	duplicate, err = store.IsDuplicate("Front door opened", 0)
	require.NoError(t, err)
	assert.False(t, duplicate, "Non-positive window never matches")
}

func TestGetTodayStats(t *testing.T) {
	store := createDatabase(t, nil)

	save := func(category string, delivered bool, ts time.Time) {
		t.Helper()
		require.NoError(t, store.Save(&Notification{
			Message:   "stats " + category + " " + FormatTimestamp(ts),
			Category:  category,
			Delivered: delivered,
			Timestamp: FormatTimestamp(ts),
		}))
	}

	now := time.Now().UTC()
	save("safety", true, now)
	save("motion", false, now)
	save("info", true, now)
	// Yesterday's rows stay within retention but out of today's stats.
	save("safety", true, now.AddDate(0, 0, -1))

	stats, err := store.GetTodayStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.SafetyCount)
	assert.Equal(t, int64(2), stats.DeliveredCount)
}

func TestRetentionSweepOnSave(t *testing.T) {
	store := createDatabase(t, nil)

	require.NoError(t, store.Save(&Notification{
		Message:   "ancient event",
		Category:  "info",
		Timestamp: FormatTimestamp(time.Now().AddDate(0, 0, -8)),
	}))
	require.NoError(t, store.Save(&Notification{
		Message:  "fresh event",
		Category: "info",
	}))

	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1, "Expired row should be swept by the save")
	assert.Equal(t, "fresh event", recent[0].Message)
}

func TestPruneExpired(t *testing.T) {
	settings := testSettings(t)
	settings.Notification.RetentionDays = 30
	store := createDatabase(t, settings)

	require.NoError(t, store.Save(&Notification{
		Message:   "last week",
		Category:  "device",
		Timestamp: FormatTimestamp(time.Now().AddDate(0, 0, -8)),
	}))
	require.NoError(t, store.Save(&Notification{
		Message:  "just now",
		Category: "device",
	}))

	// Both rows survive the 30 day window.
	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Tighten retention and sweep again.
	settings.Notification.RetentionDays = 7
	pruned, err := store.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	recent, err = store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "just now", recent[0].Message)
}

func TestOperationsRequireOpen(t *testing.T) {
	t.Parallel()

	store := New(testSettings(t))

	err := store.Save(&Notification{Message: "x", Category: "info"})
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.Get("some-id")
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.GetRecent(10)
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.GetTodayStats()
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.IsDuplicate("x", 5)
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.PruneExpired()
	assert.ErrorIs(t, err, ErrStoreNotOpen)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := New(testSettings(t))
	require.NoError(t, store.Open())

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "Second close should be a no-op")
}

func TestSQLiteConfigValidation(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true

	store := New(settings)
	err := store.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is empty")
}
