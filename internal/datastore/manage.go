// manage.go: database schema management and shared open/close plumbing.
package datastore

import (
	"time"

	"github.com/hush-home/hushd/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold is the elapsed time above which a query is
// logged as slow.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger builds the gorm logger for a store. Debug mode raises
// the level so every statement is traced.
func createGormLogger(debug bool, metrics *Metrics) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return NewGormLogger(DefaultSlowQueryThreshold, level, metrics)
}

// performAutoMigration creates or updates the notification table schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		getLogger().Debug("Database schema ready", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}

// Close releases the underlying database connection. Closing an already
// closed store is a no-op.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}

	ds.stopMonitoring()

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}

	ds.DB = nil
	return nil
}
