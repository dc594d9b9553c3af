package main

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/hush-home/hushd/internal/datastore"
)

// Migrator copies notification history from SQLite to MySQL.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// MigrationStats tracks what the migration did.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Source    int64
	Migrated  int64
	Skipped   int64
	Errors    int64
}

// Print outputs the migration summary.
func (s *MigrationStats) Print() {
	fmt.Println("\n=== Migration Summary ===")
	fmt.Printf("Duration: %s\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	fmt.Printf("Source records: %d\n", s.Source)
	fmt.Printf("Migrated:       %d\n", s.Migrated)
	fmt.Printf("Skipped:        %d (already present)\n", s.Skipped)
	fmt.Printf("Errors:         %d\n", s.Errors)
}

// NewMigrator opens both databases and verifies connectivity.
func NewMigrator(cfg *Config) (*Migrator, error) {
	m := &Migrator{cfg: *cfg}

	logLevel := logger.Silent
	if cfg.Verbose {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	sourceDB, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	m.sourceDB = sourceDB

	targetDB, err := gorm.Open(mysql.Open(cfg.GetMySQLDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	m.targetDB = targetDB

	sqlDB, err := sourceDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite connection: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	sqlDB, err = targetDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get MySQL connection: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	fmt.Println("Database connections established successfully")

	return m, nil
}

// Close closes both database connections.
func (m *Migrator) Close() {
	if m.sourceDB != nil {
		if db, err := m.sourceDB.DB(); err == nil {
			_ = db.Close()
		}
	}
	if m.targetDB != nil {
		if db, err := m.targetDB.DB(); err == nil {
			_ = db.Close()
		}
	}
}

// Run executes the migration.
func (m *Migrator) Run() (*MigrationStats, error) {
	stats := &MigrationStats{
		StartTime: time.Now(),
	}

	if err := m.targetDB.AutoMigrate(&datastore.Notification{}); err != nil {
		return nil, fmt.Errorf("failed to create notifications table: %w", err)
	}

	if m.cfg.Clean {
		fmt.Println("Cleaning target table...")
		if err := m.targetDB.Exec("DELETE FROM notifications").Error; err != nil {
			return nil, fmt.Errorf("failed to clean notifications table: %w", err)
		}
	}

	if err := m.migrateNotifications(stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// migrateNotifications copies the notifications table in batches. Inserts
// use ON CONFLICT DO NOTHING so records keep their original IDs and reruns
// skip what is already there.
func (m *Migrator) migrateNotifications(stats *MigrationStats) error {
	fmt.Println("Migrating notifications...")

	if err := m.sourceDB.Model(&datastore.Notification{}).Count(&stats.Source).Error; err != nil {
		return fmt.Errorf("failed to count source records: %w", err)
	}

	if stats.Source == 0 {
		fmt.Println("  notifications: no records to migrate")
		return nil
	}

	var processed int64
	batchNum := 0
	var batch []datastore.Notification

	err := m.sourceDB.Model(&datastore.Notification{}).FindInBatches(&batch, m.cfg.BatchSize, func(_ *gorm.DB, _ int) error {
		batchNum++

		result := m.targetDB.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if result.Error != nil {
			stats.Errors += int64(len(batch))
			fmt.Printf("  Batch %d error: %v\n", batchNum, result.Error)
			// Keep going, a failed batch should not abort the whole run
			return nil //nolint:nilerr // intentional: continue migration despite batch error
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += int64(len(batch)) - result.RowsAffected
		processed += int64(len(batch))

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Printf("  notifications: %d/%d (%.1f%%)\n", processed, stats.Source,
				float64(processed)/float64(stats.Source)*100)
		}

		return nil
	}).Error

	if err != nil {
		return fmt.Errorf("failed to read source records: %w", err)
	}

	fmt.Printf("  notifications: completed (%d migrated, %d skipped, %d errors)\n",
		stats.Migrated, stats.Skipped, stats.Errors)

	return nil
}
