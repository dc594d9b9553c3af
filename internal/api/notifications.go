// internal/api/notifications.go notification history, event ingest and
// classification diagnostics.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/notification"
)

// NotificationDTO is the wire form of one stored notification.
type NotificationDTO struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	Message        string `json:"message"`
	Title          string `json:"title,omitempty"`
	Category       string `json:"category"`
	EntityID       string `json:"entity_id,omitempty"`
	Delivered      bool   `json:"delivered"`
	CollapsedCount int    `json:"collapsed_count"`
}

// StatsDTO summarizes today's stored notifications.
type StatsDTO struct {
	Total          int64 `json:"total"`
	SafetyCount    int64 `json:"safety_count"`
	DeliveredCount int64 `json:"delivered_count"`
}

// NotificationsResponse is the body of GET /notifications.
type NotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Stats         StatsDTO          `json:"stats"`
}

// IngestRequest is the body of POST /notify, one incoming event.
type IngestRequest struct {
	EntityID            string            `json:"entity_id"`
	Message             string            `json:"message"`
	Title               string            `json:"title"`
	Category            string            `json:"category"`
	DeviceClass         string            `json:"device_class"`
	OriginalDeviceClass string            `json:"original_device_class"`
	Data                map[string]string `json:"data"`
}

// IngestResponse reports the pipeline outcome for one ingested event. ID and
// Category are empty when the event collapsed into an earlier record.
type IngestResponse struct {
	ID        string `json:"id,omitempty"`
	Category  string `json:"category,omitempty"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason"`
}

// ListNotifications handles GET /api/v1/notifications. It returns the most
// recent records newest first together with today's stats. The limit query
// parameter is clamped by the store.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
		}
		limit = parsed
	}

	records, err := c.DS.GetRecent(limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query notifications", storageStatus(err))
	}

	stats, err := c.todayStats()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query today's stats", storageStatus(err))
	}

	resp := NotificationsResponse{
		Notifications: make([]NotificationDTO, 0, len(records)),
		Stats:         stats,
	}
	for i := range records {
		resp.Notifications = append(resp.Notifications, toDTO(&records[i]))
	}

	return ctx.JSON(http.StatusOK, resp)
}

// IngestEvent handles POST /api/v1/notify, the notify entry point. The event
// runs through the full pipeline; a new record answers 201, a collapsed
// duplicate answers 200 without a record id.
func (c *Controller) IngestEvent(ctx echo.Context) error {
	var req IngestRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	service := notification.GetService()
	if service == nil {
		return c.HandleError(ctx, notification.ErrNotConfigured,
			"Notification service not configured", http.StatusServiceUnavailable)
	}

	event := notification.Event{
		EntityID:            strings.TrimSpace(req.EntityID),
		Message:             strings.TrimSpace(req.Message),
		Title:               strings.TrimSpace(req.Title),
		Category:            strings.TrimSpace(req.Category),
		DeviceClass:         strings.TrimSpace(req.DeviceClass),
		OriginalDeviceClass: strings.TrimSpace(req.OriginalDeviceClass),
		Data:                req.Data,
		Source:              notification.SourceAPI,
	}

	record, decision, err := service.ProcessEvent(ctx.Request().Context(), event)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to process event", ingestStatus(err))
	}

	// The aggregate changed, drop the cached stats.
	c.responseCache.Delete(statsCacheKey)

	resp := IngestResponse{
		Delivered: decision.Deliver,
		Reason:    decision.Reason,
	}
	if record == nil {
		// Duplicate, collapsed into the earlier record.
		return ctx.JSON(http.StatusOK, resp)
	}

	resp.ID = record.ID
	resp.Category = record.Category
	return ctx.JSON(http.StatusCreated, resp)
}

// ClassifyEntity handles GET /api/v1/classify, a diagnostic endpoint that
// runs the classifier without touching the pipeline or the store.
func (c *Controller) ClassifyEntity(ctx echo.Context) error {
	entityID := strings.TrimSpace(ctx.QueryParam("entity_id"))
	meta := &classify.Metadata{
		DeviceClass:         strings.TrimSpace(ctx.QueryParam("device_class")),
		OriginalDeviceClass: strings.TrimSpace(ctx.QueryParam("original_device_class")),
	}

	c.settingsMutex.RLock()
	overrides := c.Settings.Notification.Overrides
	c.settingsMutex.RUnlock()

	result, err := classify.ClassifyDetailed(entityID, meta, overrides)
	if err != nil {
		// Only an override holding an unknown category string errors.
		return c.HandleError(ctx, err, "Classification failed", http.StatusBadRequest)
	}

	return ctx.JSON(http.StatusOK, result)
}

// todayStats returns today's aggregate counts, cached briefly because the
// dashboard polls this together with every notification list request.
func (c *Controller) todayStats() (StatsDTO, error) {
	if cached, found := c.responseCache.Get(statsCacheKey); found {
		if stats, ok := cached.(StatsDTO); ok {
			return stats, nil
		}
	}

	raw, err := c.DS.GetTodayStats()
	if err != nil {
		return StatsDTO{}, err
	}

	stats := StatsDTO{
		Total:          raw.Total,
		SafetyCount:    raw.SafetyCount,
		DeliveredCount: raw.DeliveredCount,
	}
	c.responseCache.Set(statsCacheKey, stats, statsCacheTTL)
	return stats, nil
}

// toDTO converts a stored notification into its wire form.
func toDTO(n *datastore.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             n.ID,
		Timestamp:      n.Timestamp,
		Message:        n.Message,
		Title:          n.Title,
		Category:       n.Category,
		EntityID:       n.EntityID,
		Delivered:      n.Delivered,
		CollapsedCount: n.CollapsedCount,
	}
}

// storageStatus maps store errors to HTTP statuses: a closed store answers
// 503, everything else is a server error.
func storageStatus(err error) int {
	if errors.Is(err, datastore.ErrStoreNotOpen) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ingestStatus maps pipeline errors to HTTP statuses. Validation problems
// are the caller's fault, rate limiting answers 429, a closed store 503.
func ingestStatus(err error) int {
	switch {
	case errors.Is(err, datastore.ErrStoreNotOpen):
		return http.StatusServiceUnavailable
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryClassification):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryState):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
