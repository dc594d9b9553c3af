package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements DataStore for SQLite.
type SQLiteStore struct {
	DataStore
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings == nil || settings.Output.SQLite.Path == "" {
		return errors.Newf("SQLite database path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_sqlite_config").
			Build()
	}
	return nil
}

// Open initializes the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	basePath := conf.GetBasePath(dir)
	dbPath := filepath.Join(basePath, fileName)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: createGormLogger(store.Settings.Debug, store.metrics),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "open_sqlite").
			Context("path", dbPath).
			Build()
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "SQLite", dbPath); err != nil {
		return err
	}

	store.startMonitoring(db)
	return nil
}
