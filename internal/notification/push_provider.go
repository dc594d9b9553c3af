package notification

import (
	"context"

	"github.com/hush-home/hushd/internal/datastore"
)

// PushProvider defines an external push delivery backend.
// Providers should be safe for concurrent use.
type PushProvider interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, n *datastore.Notification) error
	SupportsCategory(category string) bool
	IsEnabled() bool
}

// Delivery error categories used as the error_category metric label.
const (
	errorCategoryNetwork    = "network"
	errorCategoryTimeout    = "timeout"
	errorCategoryValidation = "validation"
	errorCategoryProvider   = "provider_error"
)

// deliveryError lets providers attach a metrics category to a failed send.
type deliveryError struct {
	Err      error
	Category string
}

func (e *deliveryError) Error() string { return e.Err.Error() }
func (e *deliveryError) Unwrap() error { return e.Err }

// supportsCategory reports whether a category passes a provider's filter.
// An empty filter matches every category.
func supportsCategory(filter map[string]bool, category string) bool {
	if len(filter) == 0 {
		return true
	}
	return filter[category]
}

// categoryFilter converts a configured category list into a lookup set.
func categoryFilter(categories []string) map[string]bool {
	filter := make(map[string]bool, len(categories))
	for _, category := range categories {
		filter[category] = true
	}
	return filter
}
