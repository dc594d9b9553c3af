package notification

import (
	"sync"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/observability/metrics"
)

// ErrNotConfigured is returned when the pipeline is used before Initialize
// has run. The HTTP boundary maps it to a 503.
var ErrNotConfigured = errors.NewStd("notification service not configured")

var (
	instance *Service
	once     sync.Once
	mu       sync.RWMutex
)

// Initialize sets up the global notification service instance
func Initialize(settings *conf.Settings, store datastore.Interface, m *metrics.NotificationMetrics) error {
	var err error
	once.Do(func() {
		var service *Service
		service, err = NewService(settings, store, m)
		if err != nil {
			return
		}
		mu.Lock()
		instance = service
		mu.Unlock()
	})
	return err
}

// GetService returns the global notification service instance
func GetService() *Service {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// SetService allows setting a custom service instance (mainly for testing)
func SetService(service *Service) {
	mu.Lock()
	defer mu.Unlock()
	instance = service
}

// IsInitialized checks if the notification service has been initialized
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return instance != nil
}
