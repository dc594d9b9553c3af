package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/conf"
)

func TestGetConfig(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)
	controller.Settings.Notification.QuietHours = conf.QuietHoursSettings{
		Enabled: true,
		Start:   "22:00",
		End:     "07:00",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Config.QuietHours.Enabled)
	assert.Equal(t, "22:00", resp.Config.QuietHours.Start)
	assert.Equal(t, "07:00", resp.Config.QuietHours.End)
	assert.Equal(t, 7, resp.Config.RetentionDays)

	// Without configured overrides the effective behaviors are the defaults.
	assert.Equal(t, "always_notify", resp.Config.Behaviors["safety"])
	assert.Equal(t, "notify_respect_quiet", resp.Config.Behaviors["security"])
	assert.Equal(t, "notify_once_per_hour", resp.Config.Behaviors["device"])
	assert.Equal(t, "log_only", resp.Config.Behaviors["motion"])
	assert.Equal(t, "notify_with_dedup", resp.Config.Behaviors["info"])

	assert.Empty(t, resp.Targets)
}

func TestGetConfigBehaviorOverlay(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)
	controller.Settings.Notification.Behaviors = map[string]string{
		"motion": "notify_with_dedup",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// The configured value replaces the default, everything else stays.
	assert.Equal(t, "notify_with_dedup", resp.Config.Behaviors["motion"])
	assert.Equal(t, "always_notify", resp.Config.Behaviors["safety"])
}

func TestGetConfigTargets(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)
	controller.Settings.Push.Targets = []conf.PushTargetConfig{
		{Name: "mobile_phone", URL: "ntfy://ntfy.sh/hush", Categories: []string{"safety", "security"}},
		{URL: "telegram://token@telegram?chats=home"},
	}
	controller.Settings.Push.Webhooks = []conf.WebhookConfig{
		{Name: "Home Assistant", URL: "http://ha.local:8123/api/webhook/hush"},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Targets, 3)

	assert.Equal(t, DeliveryTarget{
		ID:         "push:mobile-phone",
		Label:      "Mobile Phone",
		Kind:       "push",
		Categories: []string{"safety", "security"},
	}, resp.Targets[0])

	// A nameless target falls back to its service scheme.
	assert.Equal(t, "push:telegram", resp.Targets[1].ID)
	assert.Equal(t, "Telegram", resp.Targets[1].Label)

	assert.Equal(t, "webhook:home-assistant", resp.Targets[2].ID)
	assert.Equal(t, "Home Assistant", resp.Targets[2].Label)
	assert.Equal(t, "webhook", resp.Targets[2].Kind)

	// Credentials and URLs must never leak into the response.
	assert.NotContains(t, rec.Body.String(), "ntfy.sh")
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestUpdateConfig(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)

	body := `{
		"quiet_hours": {"enabled": true, "start": "23:00", "end": "06:30"},
		"behaviors": {"motion": "always_notify"},
		"retention_days": 14
	}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Config.QuietHours.Enabled)
	assert.Equal(t, "23:00", resp.Config.QuietHours.Start)
	assert.Equal(t, "06:30", resp.Config.QuietHours.End)
	assert.Equal(t, "always_notify", resp.Config.Behaviors["motion"])
	assert.Equal(t, 14, resp.Config.RetentionDays)

	// The live settings were mutated, not just the response.
	assert.True(t, controller.Settings.Notification.QuietHours.Enabled)
	assert.Equal(t, 14, controller.Settings.Notification.RetentionDays)
}

func TestUpdateConfigPartialPreserves(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)
	controller.Settings.Notification.QuietHours = conf.QuietHoursSettings{
		Enabled: true,
		Start:   "22:00",
		End:     "07:00",
	}

	body := `{"retention_days": 30}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 30, controller.Settings.Notification.RetentionDays)
	assert.True(t, controller.Settings.Notification.QuietHours.Enabled, "Untouched fields keep their values")
	assert.Equal(t, "22:00", controller.Settings.Notification.QuietHours.Start)
}

func TestUpdateConfigRejectsInvalidPatch(t *testing.T) {
	e := echo.New()
	controller := getTestController(t, e)

	testCases := []struct {
		name string
		body string
	}{
		{"unknown behavior", `{"behaviors": {"motion": "sometimes"}}`},
		{"unknown category", `{"behaviors": {"urgent": "always_notify"}}`},
		{"bad clock", `{"quiet_hours": {"start": "25:00"}}`},
		{"bad retention", `{"retention_days": 0}`},
		{"bad override", `{"overrides": {"sensor.x": "loud"}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid configuration", resp.Message)
		})
	}

	// A rejected patch must not partially apply.
	assert.Equal(t, 7, controller.Settings.Notification.RetentionDays)
	assert.Empty(t, controller.Settings.Notification.Behaviors)
}
