// Package notification runs the event pipeline: classify the entity event,
// apply the delivery policy against stored history, record the outcome and
// fan accepted notifications out to push providers.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/observability/metrics"
	"github.com/hush-home/hushd/internal/policy"
)

// signalExplicit labels classifications skipped because the event carried
// its own category. The other signal labels come from the classifier.
const signalExplicit = "explicit"

const (
	// defaultRateLimitWindow is the time window for ingest rate limiting
	defaultRateLimitWindow = 1 * time.Minute
	// defaultRateLimitMaxEvents is the maximum number of events per window
	defaultRateLimitMaxEvents = 300
)

// Service processes incoming events into stored, optionally delivered
// notifications. Safe for concurrent use.
type Service struct {
	settings    *conf.Settings
	store       datastore.Interface
	metrics     *metrics.NotificationMetrics
	dispatcher  *pushDispatcher
	rateLimiter *RateLimiter
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewService wires the pipeline against an opened datastore. Metrics may be
// nil, one-shot CLI runs process events without a registry.
func NewService(settings *conf.Settings, store datastore.Interface, m *metrics.NotificationMetrics) (*Service, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if store == nil {
		return nil, errors.Newf("datastore is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		settings:    settings,
		store:       store,
		metrics:     m,
		rateLimiter: NewRateLimiter(defaultRateLimitWindow, defaultRateLimitMaxEvents),
		logger:      getLogger(),
		ctx:         ctx,
		cancel:      cancel,
	}

	if settings.Push.Enabled {
		service.dispatcher = newPushDispatcher(settings, m, service.logger)
		if service.dispatcher.providerCount() == 0 {
			service.logger.Warn("push delivery enabled but no providers registered")
		}
	}

	service.logger.Info("notification service initialized",
		"push_enabled", settings.Push.Enabled,
		"quiet_hours_enabled", settings.Notification.QuietHours.Enabled,
		"retention_days", settings.Notification.RetentionDays)

	return service, nil
}

// ProcessEvent runs one event through the pipeline. A duplicate collapses
// into the matched prior record and returns a nil notification, every other
// outcome inserts exactly one row whose delivered flag never changes again.
// Delivery to push providers happens in the background, its failures never
// surface here.
func (s *Service) ProcessEvent(ctx context.Context, event Event) (*datastore.Notification, policy.Decision, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, policy.Decision{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryCancellation).
			Build()
	}
	if err := event.Validate(); err != nil {
		return nil, policy.Decision{}, err
	}
	if !s.rateLimiter.Allow() {
		return nil, policy.Decision{}, errors.Newf("event rate limit exceeded").
			Component("notification").
			Category(errors.CategoryState).
			Context("window", defaultRateLimitWindow.String()).
			Build()
	}

	source := event.Source
	if source == "" {
		source = "unknown"
	}
	if s.metrics != nil {
		s.metrics.RecordEventReceived(source)
	}

	category, signal, err := s.resolveCategory(&event)
	if err != nil {
		return nil, policy.Decision{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordClassification(category.String(), signal)
	}

	behavior, err := policy.BehaviorFor(category, s.settings.Notification.Behaviors)
	if err != nil {
		return nil, policy.Decision{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryPolicy).
			Context("category", category.String()).
			Build()
	}

	quietSettings := s.settings.Notification.QuietHours
	quiet, err := policy.NewQuietHours(quietSettings.Enabled, quietSettings.Start, quietSettings.End)
	if err != nil {
		return nil, policy.Decision{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	windows := policy.DefaultWindows()
	if v := s.settings.Notification.DedupWindowMinutes; v > 0 {
		windows.Dedup = v
	}
	if v := s.settings.Notification.HourlyWindowMinutes; v > 0 {
		windows.Hourly = v
	}

	decision, err := policy.ShouldDeliver(time.Now(), behavior, event.Message, quiet, windows, s.store)
	if err != nil {
		return nil, policy.Decision{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryPolicy).
			Context("behavior", behavior.String()).
			Build()
	}
	if s.metrics != nil {
		s.metrics.RecordDecision(category.String(), behavior.String(), decision.Reason)
	}

	if decision.Reason == policy.ReasonDuplicate {
		// The lookup already incremented the matched record, no new row.
		s.logger.Debug("duplicate event collapsed",
			"entity", event.EntityID,
			"category", category.String(),
			"source", source)
		if s.metrics != nil {
			s.metrics.RecordProcessingDuration(time.Since(start))
		}
		return nil, decision, nil
	}

	record := &datastore.Notification{
		Category:  category.String(),
		Message:   event.Message,
		Title:     event.Title,
		EntityID:  event.EntityID,
		Delivered: decision.Deliver,
	}
	if err := s.store.Save(record); err != nil {
		return nil, decision, err
	}

	if decision.Deliver && s.dispatcher != nil {
		s.wg.Go(func() {
			// Delivery outlives the caller's request context.
			s.dispatcher.dispatch(s.ctx, record)
		})
	}

	s.logger.Debug("event processed",
		"id", record.ID,
		"category", category.String(),
		"behavior", behavior.String(),
		"reason", decision.Reason,
		"delivered", decision.Deliver,
		"source", source,
		"data_keys", len(event.Data))
	if s.metrics != nil {
		s.metrics.RecordProcessingDuration(time.Since(start))
	}

	return record, decision, nil
}

// resolveCategory returns the event's category and the signal that produced
// it. An explicit category on the event wins over classification.
func (s *Service) resolveCategory(event *Event) (classify.Category, string, error) {
	if event.Category != "" {
		category, err := classify.ParseCategory(event.Category)
		if err != nil {
			return "", "", errors.New(err).
				Component("notification").
				Category(errors.CategoryValidation).
				Context("category", event.Category).
				Build()
		}
		return category, signalExplicit, nil
	}

	meta := &classify.Metadata{
		DeviceClass:         event.DeviceClass,
		OriginalDeviceClass: event.OriginalDeviceClass,
	}
	result, err := classify.ClassifyDetailed(event.EntityID, meta, s.settings.Notification.Overrides)
	if err != nil {
		return "", "", errors.New(err).
			Component("notification").
			Category(errors.CategoryClassification).
			EntityContext(event.EntityID).
			Build()
	}
	return result.Category, result.Source, nil
}

// Stop drains in-flight deliveries and shuts the pipeline down. Each pending
// delivery is bounded by the per-attempt timeout, so Stop returns promptly
// even with an unresponsive provider.
func (s *Service) Stop() {
	s.logger.Info("notification service shutting down")

	s.wg.Wait()
	s.cancel()
	if s.dispatcher != nil {
		s.dispatcher.close()
	}

	s.logger.Info("notification service stopped")

	if err := CloseLogger(); err != nil {
		// Use fallback logging since our logger might be closed
		slog.Default().Error("failed to close notification logger", "error", err)
	}
}

// RateLimiter provides sliding window rate limiting for incoming events
type RateLimiter struct {
	window    time.Duration
	maxEvents int
	events    []time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(window time.Duration, maxEvents int) *RateLimiter {
	return &RateLimiter{
		window:    window,
		maxEvents: maxEvents,
		events:    make([]time.Time, 0, maxEvents),
	}
}

// Allow checks if an event is allowed based on rate limits
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	// Remove old events outside the window by reusing the slice
	validCount := 0
	for _, event := range r.events {
		if event.After(cutoff) {
			r.events[validCount] = event
			validCount++
		}
	}
	r.events = r.events[:validCount]

	if len(r.events) >= r.maxEvents {
		return false
	}

	r.events = append(r.events, now)
	return true
}

// Reset clears the rate limiter
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
