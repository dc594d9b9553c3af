// conf/update.go partial settings updates from the API
package conf

import (
	"fmt"
	"maps"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/policy"
)

// QuietHoursPatch is a partial update to the quiet hours window.
type QuietHoursPatch struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Start   *string `json:"start,omitempty"`
	End     *string `json:"end,omitempty"`
}

// ConfigPatch is a partial update to the notification settings. Nil fields
// leave the current value unchanged. The behavior and override maps replace
// the stored mapping wholesale when present.
type ConfigPatch struct {
	QuietHours          *QuietHoursPatch  `json:"quiet_hours,omitempty"`
	Behaviors           map[string]string `json:"behaviors,omitempty"`
	Overrides           map[string]string `json:"overrides,omitempty"`
	RetentionDays       *int              `json:"retention_days,omitempty"`
	DedupWindowMinutes  *int              `json:"dedup_window_minutes,omitempty"`
	HourlyWindowMinutes *int              `json:"hourly_window_minutes,omitempty"`
}

// Validate checks the patch fields before they are merged, so a bad patch
// is rejected without touching the live settings.
func (p *ConfigPatch) Validate() error {
	var errs []string

	if p.QuietHours != nil {
		if p.QuietHours.Start != nil {
			if _, err := policy.ParseClock(*p.QuietHours.Start); err != nil {
				errs = append(errs, fmt.Sprintf("quiet hours start: %v", err))
			}
		}
		if p.QuietHours.End != nil {
			if _, err := policy.ParseClock(*p.QuietHours.End); err != nil {
				errs = append(errs, fmt.Sprintf("quiet hours end: %v", err))
			}
		}
	}

	for category, behavior := range p.Behaviors {
		if _, err := classify.ParseCategory(category); err != nil {
			errs = append(errs, fmt.Sprintf("behaviors: unknown category %q", category))
		}
		if _, err := policy.ParseBehavior(behavior); err != nil {
			errs = append(errs, fmt.Sprintf("behaviors: unknown behavior %q for category %q", behavior, category))
		}
	}

	for entityID, category := range p.Overrides {
		if _, err := classify.ParseCategory(category); err != nil {
			errs = append(errs, fmt.Sprintf("overrides: unknown category %q for entity %q", category, entityID))
		}
	}

	if p.RetentionDays != nil && *p.RetentionDays < 1 {
		errs = append(errs, "retention days must be at least 1")
	}
	if p.DedupWindowMinutes != nil && *p.DedupWindowMinutes < 1 {
		errs = append(errs, "dedup window minutes must be at least 1")
	}
	if p.HourlyWindowMinutes != nil && *p.HourlyWindowMinutes < 1 {
		errs = append(errs, "hourly window minutes must be at least 1")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// Apply merges the patch into the notification settings.
func (p *ConfigPatch) Apply(settings *NotificationSettings) {
	if p.QuietHours != nil {
		if p.QuietHours.Enabled != nil {
			settings.QuietHours.Enabled = *p.QuietHours.Enabled
		}
		if p.QuietHours.Start != nil {
			settings.QuietHours.Start = *p.QuietHours.Start
		}
		if p.QuietHours.End != nil {
			settings.QuietHours.End = *p.QuietHours.End
		}
	}

	if p.Behaviors != nil {
		settings.Behaviors = maps.Clone(p.Behaviors)
	}
	if p.Overrides != nil {
		settings.Overrides = maps.Clone(p.Overrides)
	}

	if p.RetentionDays != nil {
		settings.RetentionDays = *p.RetentionDays
	}
	if p.DedupWindowMinutes != nil {
		settings.DedupWindowMinutes = *p.DedupWindowMinutes
	}
	if p.HourlyWindowMinutes != nil {
		settings.HourlyWindowMinutes = *p.HourlyWindowMinutes
	}
}

// UpdateNotificationSettings validates the patch, merges it into the live
// settings and persists the result to the config file.
func UpdateNotificationSettings(patch *ConfigPatch) (*Settings, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if settingsInstance == nil {
		return nil, errors.Newf("settings not loaded").
			Component("conf").
			Category(errors.CategoryState).
			Context("operation", "update-notification-settings").
			Build()
	}

	patch.Apply(&settingsInstance.Notification)

	configPath, err := FindConfigFile()
	if err != nil {
		return nil, fmt.Errorf("error finding config file: %w", err)
	}
	if err := SaveYAMLConfig(configPath, settingsInstance); err != nil {
		return nil, fmt.Errorf("error saving config: %w", err)
	}

	return settingsInstance, nil
}
