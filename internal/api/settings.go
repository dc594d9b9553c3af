// internal/api/settings.go runtime configuration endpoints.
package api

import (
	"maps"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/policy"
)

// QuietHoursView is the wire form of the quiet hours window.
type QuietHoursView struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// ConfigView is the sanitized notification configuration exposed over the
// API. Behaviors holds the effective mapping, defaults overlaid with any
// configured values, so clients never have to know the built-in defaults.
type ConfigView struct {
	QuietHours          QuietHoursView    `json:"quiet_hours"`
	Behaviors           map[string]string `json:"behaviors"`
	Overrides           map[string]string `json:"overrides"`
	RetentionDays       int               `json:"retention_days"`
	DedupWindowMinutes  int               `json:"dedup_window_minutes"`
	HourlyWindowMinutes int               `json:"hourly_window_minutes"`
}

// DeliveryTarget describes one configured delivery destination without its
// URL or credentials.
type DeliveryTarget struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Kind       string   `json:"kind"`
	Categories []string `json:"categories,omitempty"`
}

// ConfigResponse is the body of GET and PUT /config.
type ConfigResponse struct {
	Config  ConfigView       `json:"config"`
	Targets []DeliveryTarget `json:"targets"`
}

// GetConfig handles GET /api/v1/config.
func (c *Controller) GetConfig(ctx echo.Context) error {
	c.settingsMutex.RLock()
	view := configView(&c.Settings.Notification)
	c.settingsMutex.RUnlock()

	return ctx.JSON(http.StatusOK, ConfigResponse{
		Config:  view,
		Targets: c.deliveryTargets(),
	})
}

// UpdateConfig handles PUT /api/v1/config. The body is a partial patch; a
// patch that fails validation is rejected without touching the live
// settings. On success the merged configuration is persisted and returned.
func (c *Controller) UpdateConfig(ctx echo.Context) error {
	var patch conf.ConfigPatch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	view, err := c.applyConfigPatch(&patch)
	if err != nil {
		var ve conf.ValidationError
		if errors.As(err, &ve) {
			return c.HandleError(ctx, err, "Invalid configuration", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to save configuration", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, ConfigResponse{
		Config:  view,
		Targets: c.deliveryTargets(),
	})
}

// applyConfigPatch validates and merges the patch under the settings lock and
// returns the resulting view. deliveryTargets takes a read lock of its own,
// so it must run after this returns.
func (c *Controller) applyConfigPatch(patch *conf.ConfigPatch) (ConfigView, error) {
	c.settingsMutex.Lock()
	defer c.settingsMutex.Unlock()

	if c.DisableSaveSettings {
		if err := patch.Validate(); err != nil {
			return ConfigView{}, err
		}
		patch.Apply(&c.Settings.Notification)
	} else if _, err := conf.UpdateNotificationSettings(patch); err != nil {
		return ConfigView{}, err
	}

	return configView(&c.Settings.Notification), nil
}

// configView builds the sanitized view of the notification settings. The
// caller holds the settings lock.
func configView(n *conf.NotificationSettings) ConfigView {
	behaviors := make(map[string]string, len(policy.DefaultBehaviors()))
	for category, behavior := range policy.DefaultBehaviors() {
		behaviors[category.String()] = behavior.String()
	}
	maps.Copy(behaviors, n.Behaviors)

	overrides := maps.Clone(n.Overrides)
	if overrides == nil {
		overrides = map[string]string{}
	}

	return ConfigView{
		QuietHours: QuietHoursView{
			Enabled: n.QuietHours.Enabled,
			Start:   n.QuietHours.Start,
			End:     n.QuietHours.End,
		},
		Behaviors:           behaviors,
		Overrides:           overrides,
		RetentionDays:       n.RetentionDays,
		DedupWindowMinutes:  n.DedupWindowMinutes,
		HourlyWindowMinutes: n.HourlyWindowMinutes,
	}
}

// deliveryTargets lists the configured delivery destinations. Targets only
// change on config reload, so the list is cached.
func (c *Controller) deliveryTargets() []DeliveryTarget {
	if cached, found := c.responseCache.Get(targetsCacheKey); found {
		if targets, ok := cached.([]DeliveryTarget); ok {
			return targets
		}
	}

	c.settingsMutex.RLock()
	push := c.Settings.Push
	c.settingsMutex.RUnlock()

	targets := make([]DeliveryTarget, 0, len(push.Targets)+len(push.Webhooks))
	for i := range push.Targets {
		target := &push.Targets[i]
		name := target.Name
		if name == "" {
			// Fall back to the shoutrrr service scheme.
			if scheme, _, found := strings.Cut(target.URL, "://"); found {
				name = scheme
			}
		}
		targets = append(targets, DeliveryTarget{
			ID:         targetID("push", name),
			Label:      targetLabel(name),
			Kind:       "push",
			Categories: append([]string(nil), target.Categories...),
		})
	}
	for i := range push.Webhooks {
		webhook := &push.Webhooks[i]
		targets = append(targets, DeliveryTarget{
			ID:         targetID("webhook", webhook.Name),
			Label:      targetLabel(webhook.Name),
			Kind:       "webhook",
			Categories: append([]string(nil), webhook.Categories...),
		})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	c.responseCache.Set(targetsCacheKey, targets, targetsCacheTTL)
	return targets
}

// targetID builds a stable identifier for a delivery target.
func targetID(kind, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)
	return kind + ":" + slug
}

// targetLabel turns a configured target name into a display label, e.g.
// "mobile_phone" becomes "Mobile Phone". A cases.Caser is not safe for
// concurrent use, so one is constructed per call.
func targetLabel(name string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.English).String(cleaned)
}
