// monitoring.go: periodic connection pool and database size reporting.
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Monitoring intervals. Pool statistics are a cheap in-memory read; sizing
// the database issues a query, so it runs less often.
const (
	poolStatsInterval = 1 * time.Minute
	dbSizeInterval    = 15 * time.Minute
)

// startMonitoring launches the background reporters that feed the connection
// pool and database size gauges. They stop when Close closes monitorQuit.
// Without metrics there is nothing to report, so no goroutines start.
func (ds *DataStore) startMonitoring(db *gorm.DB) {
	if ds.metrics == nil {
		return
	}
	quit := make(chan struct{})
	ds.monitorQuit = quit
	go ds.monitorConnectionPool(db, quit)
	go ds.monitorDatabaseSize(db, quit)
}

// stopMonitoring signals the reporters to exit. Safe to call when monitoring
// never started.
func (ds *DataStore) stopMonitoring() {
	if ds.monitorQuit != nil {
		close(ds.monitorQuit)
		ds.monitorQuit = nil
	}
}

// monitorConnectionPool periodically publishes sql.DB pool statistics.
func (ds *DataStore) monitorConnectionPool(db *gorm.DB, quit <-chan struct{}) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		sqlDB, err := db.DB()
		if err != nil {
			getLogger().Error("Failed to get SQL DB for pool monitoring", "error", err)
			continue
		}

		stats := sqlDB.Stats()
		ds.metrics.UpdateConnectionMetrics(stats.InUse, stats.Idle, stats.MaxOpenConnections)

		getLogger().Info("Connection pool statistics",
			"open_connections", stats.OpenConnections,
			"in_use", stats.InUse,
			"idle", stats.Idle,
			"wait_count", stats.WaitCount,
			"wait_duration", stats.WaitDuration)

		if stats.WaitCount > 0 {
			getLogger().Warn("Connection pool experiencing waits",
				"wait_count", stats.WaitCount,
				"total_wait_duration", stats.WaitDuration)
		}
	}
}

// monitorDatabaseSize periodically publishes the on-disk size of the
// notification history database.
func (ds *DataStore) monitorDatabaseSize(db *gorm.DB, quit <-chan struct{}) {
	ticker := time.NewTicker(dbSizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		size, err := databaseSize(db)
		if err != nil {
			getLogger().Error("Failed to get database size", "error", err)
			continue
		}
		ds.metrics.UpdateDatabaseSize(size)
	}
}

// databaseSize returns the total size of the database in bytes.
func databaseSize(db *gorm.DB) (int64, error) {
	var size int64

	switch db.Name() {
	case "sqlite":
		// page_count * page_size covers the main database file.
		err := db.Raw("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Row().Scan(&size)
		if err != nil {
			return 0, fmt.Errorf("failed to get SQLite database size: %w", err)
		}
		return size, nil

	case "mysql":
		var dbName string
		if err := db.Raw("SELECT DATABASE()").Scan(&dbName).Error; err != nil {
			return 0, fmt.Errorf("failed to get current database name: %w", err)
		}

		err := db.Raw(`
			SELECT SUM(data_length + index_length)
			FROM information_schema.tables
			WHERE table_schema = ?
		`, dbName).Scan(&size).Error
		if err != nil {
			return 0, fmt.Errorf("failed to get MySQL database size: %w", err)
		}
		return size, nil

	default:
		return 0, fmt.Errorf("unsupported database type: %s", db.Name())
	}
}
