// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/policy"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Notification settings
	if err := validateNotificationSettings(&settings.Notification); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Push settings
	if err := validatePushSettings(&settings.Push); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate MQTT ingest settings
	if err := validateMQTTSettings(&settings.Ingest.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate WebServer settings
	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Security settings
	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Telemetry settings
	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Output settings
	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateNotificationSettings validates the classification and policy settings.
// Category and behavior strings are checked here, at load and save time, so a
// typo in the config file surfaces immediately instead of at classify time.
func validateNotificationSettings(settings *NotificationSettings) error {
	var errs []string

	// Check quiet hours window format, even while disabled, so enabling the
	// window later cannot surface a stale parse error
	if _, err := policy.ParseClock(settings.QuietHours.Start); err != nil {
		errs = append(errs, fmt.Sprintf("quiet hours start: %v", err))
	}
	if _, err := policy.ParseClock(settings.QuietHours.End); err != nil {
		errs = append(errs, fmt.Sprintf("quiet hours end: %v", err))
	}

	// Check that behavior keys are known categories and values known behaviors
	for category, behavior := range settings.Behaviors {
		if _, err := classify.ParseCategory(category); err != nil {
			errs = append(errs, fmt.Sprintf("behaviors: unknown category %q", category))
		}
		if _, err := policy.ParseBehavior(behavior); err != nil {
			errs = append(errs, fmt.Sprintf("behaviors: unknown behavior %q for category %q", behavior, category))
		}
	}

	// Check that override values are known categories
	for entityID, category := range settings.Overrides {
		if _, err := classify.ParseCategory(category); err != nil {
			errs = append(errs, fmt.Sprintf("overrides: unknown category %q for entity %q", category, entityID))
		}
	}

	// Check retention and dedup windows
	if settings.RetentionDays < 1 {
		errs = append(errs, "retention days must be at least 1")
	}
	if settings.DedupWindowMinutes < 1 {
		errs = append(errs, "dedup window minutes must be at least 1")
	}
	if settings.HourlyWindowMinutes < 1 {
		errs = append(errs, "hourly window minutes must be at least 1")
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("notification settings errors: %v", errs)
	}

	return nil
}

// validatePushSettings validates the push delivery settings
func validatePushSettings(settings *PushSettings) error {
	var errs []string

	for i := range settings.Targets {
		target := &settings.Targets[i]
		if target.Name == "" {
			errs = append(errs, fmt.Sprintf("push target %d: name is required", i))
		}
		if target.URL == "" {
			errs = append(errs, fmt.Sprintf("push target %q: url is required", target.Name))
		}
		for _, category := range target.Categories {
			if _, err := classify.ParseCategory(category); err != nil {
				errs = append(errs, fmt.Sprintf("push target %q: unknown category %q", target.Name, category))
			}
		}
	}

	for i := range settings.Webhooks {
		webhook := &settings.Webhooks[i]
		if webhook.Name == "" {
			errs = append(errs, fmt.Sprintf("webhook %d: name is required", i))
		}
		if webhook.URL == "" {
			errs = append(errs, fmt.Sprintf("webhook %q: url is required", webhook.Name))
		}
		switch strings.ToUpper(webhook.Method) {
		case "", "POST", "PUT", "PATCH":
		default:
			errs = append(errs, fmt.Sprintf("webhook %q: method must be POST, PUT or PATCH", webhook.Name))
		}
		if webhook.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Sprintf("webhook %q: timeout must be non-negative", webhook.Name))
		}
		switch strings.ToLower(webhook.Auth.Type) {
		case "", "none", "bearer", "basic", "custom":
		default:
			errs = append(errs, fmt.Sprintf("webhook %q: unknown auth type %q", webhook.Name, webhook.Auth.Type))
		}
		for _, category := range webhook.Categories {
			if _, err := classify.ParseCategory(category); err != nil {
				errs = append(errs, fmt.Sprintf("webhook %q: unknown category %q", webhook.Name, category))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("push settings errors: %v", errs)
	}

	return nil
}

// validateMQTTSettings validates the MQTT ingest settings
func validateMQTTSettings(settings *MQTTSettings) error {
	if settings.Enabled {
		if settings.Broker == "" {
			return errors.New("MQTT broker is required when MQTT ingest is enabled")
		}
		if settings.Topic == "" {
			return errors.New("MQTT topic is required when MQTT ingest is enabled")
		}
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled {
		// Check if port is provided when enabled
		if settings.WebServer.Port == "" {
			return errors.New("WebServer port is required when enabled")
		}
	}
	return nil
}

// validateSecuritySettings validates the security-specific settings
func validateSecuritySettings(settings *Security) error {
	if settings.BasicAuth.Enabled {
		if settings.BasicAuth.Username == "" {
			return errors.New("basic auth username is required when enabled")
		}
		if settings.BasicAuth.Password == "" {
			return errors.New("basic auth password is required when enabled")
		}
	}
	return nil
}

// validateTelemetrySettings validates the telemetry-specific settings
func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled {
		if settings.Listen == "" {
			return errors.New("telemetry listen address is required when enabled")
		}
		if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
			return fmt.Errorf("invalid telemetry listen address: %w", err)
		}
	}
	return nil
}

// validateOutputSettings validates the database output settings
func validateOutputSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("at least one database output must be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.New("SQLite database path is required when enabled")
	}
	return nil
}
