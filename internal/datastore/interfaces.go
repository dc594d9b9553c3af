// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations available on the notification store.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *Metrics)
	Save(notification *Notification) error
	Get(id string) (Notification, error)
	GetRecent(limit int) ([]Notification, error)
	GetTodayStats() (TodayStats, error)
	IsDuplicate(message string, windowMinutes int) (bool, error)
	PruneExpired() (int64, error)
}

// Recent history limits applied by GetRecent.
const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 100
)

// ErrStoreNotOpen is returned when an operation runs before Open succeeded.
var ErrStoreNotOpen = errors.NewStd("datastore is not open")

// ErrNotificationNotFound is returned when a lookup matches no row.
var ErrNotificationNotFound = errors.NewStd("notification not found")

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB          *gorm.DB // GORM database instance
	Settings    *conf.Settings
	metrics     *Metrics
	monitorQuit chan struct{} // closed by Close to stop the monitoring goroutines
}

// New creates a new store instance based on the enabled output backend.
// SQLite takes precedence when both are enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{Settings: settings},
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{Settings: settings},
		}
	default:
		return nil
	}
}

// SetMetrics attaches observability metrics to the store. Call before Open
// so the query logger picks them up.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metrics = m
}

// ready reports whether the store has an open database handle.
func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return errors.New(ErrStoreNotOpen).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "connection_check").
			Build()
	}
	return nil
}
