// model.go this code defines the data model for stored notifications
package datastore

import "time"

// timestampLayout is RFC 3339 in UTC with fixed-width nanoseconds. The fixed
// width keeps string comparison equal to chronological order, which the
// retention sweep and the dedup window queries rely on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders a time in the stored timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a stored timestamp back into a time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Notification represents one classified event and its delivery outcome
type Notification struct {
	ID             string `gorm:"primaryKey"`
	Timestamp      string `gorm:"index:idx_notifications_timestamp;index:idx_notifications_message_timestamp,priority:2;not null"`
	Category       string `gorm:"index:idx_notifications_category;not null"`
	Message        string `gorm:"index:idx_notifications_message_timestamp,priority:1;not null"`
	Title          string
	EntityID       string
	Delivered      bool `gorm:"not null"`
	CollapsedCount int  `gorm:"not null;default:1"`
}

// TodayStats summarizes the notifications stored since UTC midnight.
type TodayStats struct {
	Total          int64
	SafetyCount    int64
	DeliveredCount int64
}
