// history.go: notification persistence, duplicate collapsing, daily stats
// and retention pruning.
package datastore

import (
	"time"

	"github.com/google/uuid"
	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/errors"
	"gorm.io/gorm"
)

// Save inserts a notification record and sweeps expired rows afterwards.
// Missing ID, timestamp and collapse count are filled with defaults, so a
// caller only has to populate what it knows.
func (ds *DataStore) Save(notification *Notification) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if notification == nil {
		return validationError("notification cannot be nil", "notification", nil)
	}
	if notification.Message == "" {
		return validationError("notification message cannot be empty", "message", "")
	}

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.Timestamp == "" {
		notification.Timestamp = FormatTimestamp(time.Now())
	}
	if notification.CollapsedCount < 1 {
		notification.CollapsedCount = 1
	}

	if err := ds.DB.Create(notification).Error; err != nil {
		return dbError(err, "save_notification", errors.PriorityHigh,
			"category", notification.Category,
			"table", "notifications")
	}

	// The retention sweep runs after every insert so the table needs no
	// separate maintenance job. Sweep failures are logged, not returned,
	// because the notification itself was stored.
	if _, err := ds.PruneExpired(); err != nil {
		getLogger().Warn("Retention sweep after save failed", "error", err)
	}

	return nil
}

// Get retrieves a single notification by its ID.
func (ds *DataStore) Get(id string) (Notification, error) {
	if err := ds.ready(); err != nil {
		return Notification{}, err
	}

	var notification Notification
	if err := ds.DB.Where("id = ?", id).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Notification{}, notFoundError(id)
		}
		return Notification{}, dbError(err, "get_notification", errors.PriorityMedium, "id", id)
	}
	return notification, nil
}

// GetRecent returns the newest notifications, most recent first. A
// non-positive limit selects DefaultRecentLimit and the limit is capped at
// MaxRecentLimit.
func (ds *DataStore) GetRecent(limit int) ([]Notification, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	var notifications []Notification
	if err := ds.DB.Order("timestamp DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, dbError(err, "get_recent", errors.PriorityMedium,
			"limit", limit,
			"table", "notifications")
	}

	if ds.metrics != nil {
		ds.metrics.RecordQueryResultSize("select", "notifications", len(notifications))
	}
	return notifications, nil
}

// GetTodayStats summarizes stored notifications since UTC midnight.
func (ds *DataStore) GetTodayStats() (TodayStats, error) {
	if err := ds.ready(); err != nil {
		return TodayStats{}, err
	}

	now := time.Now().UTC()
	midnight := FormatTimestamp(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))

	// Each count uses a fresh query chain, gorm chains are not reusable.
	var stats TodayStats
	if err := ds.DB.Model(&Notification{}).
		Where("timestamp >= ?", midnight).
		Count(&stats.Total).Error; err != nil {
		return TodayStats{}, dbError(err, "today_stats_total", errors.PriorityMedium, "since", midnight)
	}

	if err := ds.DB.Model(&Notification{}).
		Where("timestamp >= ? AND category = ?", midnight, classify.CategorySafety.String()).
		Count(&stats.SafetyCount).Error; err != nil {
		return TodayStats{}, dbError(err, "today_stats_safety", errors.PriorityMedium, "since", midnight)
	}

	if err := ds.DB.Model(&Notification{}).
		Where("timestamp >= ? AND delivered = ?", midnight, true).
		Count(&stats.DeliveredCount).Error; err != nil {
		return TodayStats{}, dbError(err, "today_stats_delivered", errors.PriorityMedium, "since", midnight)
	}

	return stats, nil
}

// IsDuplicate reports whether a notification with the same message text was
// stored inside the trailing window. On a hit the stored row's collapse
// counter is incremented in the same transaction, so repeated messages
// accumulate on one record instead of creating new rows.
func (ds *DataStore) IsDuplicate(message string, windowMinutes int) (bool, error) {
	if err := ds.ready(); err != nil {
		return false, err
	}
	if windowMinutes <= 0 {
		return false, nil
	}

	cutoff := FormatTimestamp(time.Now().Add(-time.Duration(windowMinutes) * time.Minute))

	var match Notification
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message = ? AND timestamp > ?", message, cutoff).
			Order("timestamp DESC").
			First(&match).Error; err != nil {
			return err
		}
		return tx.Model(&Notification{}).
			Where("id = ?", match.ID).
			UpdateColumn("collapsed_count", gorm.Expr("collapsed_count + ?", 1)).Error
	})

	switch {
	case err == nil:
		if ds.metrics != nil {
			ds.metrics.RecordDuplicateCollapse()
		}
		getLogger().Debug("Collapsed duplicate notification",
			"id", match.ID,
			"window_minutes", windowMinutes)
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, dbError(err, "duplicate_lookup", errors.PriorityMedium,
			"window_minutes", windowMinutes,
			"table", "notifications")
	}
}

// PruneExpired deletes notifications older than the configured retention
// window and returns the number of rows removed.
func (ds *DataStore) PruneExpired() (int64, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}

	days := ds.Settings.Notification.RetentionDays
	if days < 1 {
		days = 7
	}
	cutoff := FormatTimestamp(time.Now().AddDate(0, 0, -days))

	result := ds.DB.Where("timestamp < ?", cutoff).Delete(&Notification{})
	if result.Error != nil {
		return 0, dbError(result.Error, "prune_expired", errors.PriorityLow,
			"cutoff", cutoff,
			"table", "notifications")
	}

	if result.RowsAffected > 0 {
		if ds.metrics != nil {
			ds.metrics.RecordPrunedNotifications(result.RowsAffected)
		}
		getLogger().Debug("Removed expired notifications",
			"count", result.RowsAffected,
			"retention_days", days)
	}
	return result.RowsAffected, nil
}
