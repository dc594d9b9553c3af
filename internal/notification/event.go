package notification

import (
	"github.com/hush-home/hushd/internal/errors"
)

// Sources an event can enter the pipeline from, used as the source label on
// ingest metrics and logs.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
)

// Event is one incoming entity event awaiting classification and a delivery
// decision.
type Event struct {
	// EntityID identifies the entity that caused the event, such as
	// binary_sensor.front_door. Optional, classification falls back to
	// info without it.
	EntityID string
	// Message is the notification text. Required.
	Message string
	// Title is an optional notification title, stored and passed to push
	// providers.
	Title string
	// Category skips classification entirely when set. Must parse as a
	// known category.
	Category string
	// DeviceClass is the entity's current device class, the strongest
	// classification signal after explicit category and overrides.
	DeviceClass string
	// OriginalDeviceClass is the device class before user customization,
	// consulted when DeviceClass is empty.
	OriginalDeviceClass string
	// Data carries extra key/value payload from the ingest source. It is
	// not persisted, it only surfaces in debug logs.
	Data map[string]string
	// Source records which ingest path produced the event (api, mqtt, cli).
	Source string
}

// Validate checks that the event can be processed.
func (e *Event) Validate() error {
	if e.Message == "" {
		return errors.Newf("event message is required").
			Component("notification").
			Category(errors.CategoryValidation).
			Priority(errors.PriorityLow).
			Build()
	}
	return nil
}
