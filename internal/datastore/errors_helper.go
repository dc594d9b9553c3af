// errors_helper.go: shared error construction for datastore operations.
package datastore

import (
	"github.com/hush-home/hushd/internal/errors"
)

// dbError wraps a database error with standard datastore context. Extra
// context is supplied as alternating key/value pairs.
func dbError(err error, operation, priority string, contextPairs ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(priority).
		Context("operation", operation)

	for i := 0; i+1 < len(contextPairs); i += 2 {
		if key, ok := contextPairs[i].(string); ok {
			builder.Context(key, contextPairs[i+1])
		}
	}

	return builder.Build()
}

// validationError reports invalid input to a datastore operation.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Priority(errors.PriorityMedium).
		Context("field", field).
		Context("value", value).
		Build()
}

// notFoundError wraps the not-found sentinel with lookup context.
func notFoundError(id string) error {
	return errors.New(ErrNotificationNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("operation", "get_notification").
		Context("id", id).
		Build()
}
