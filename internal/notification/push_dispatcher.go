package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/observability/metrics"
)

const (
	// defaultPushTimeout bounds one delivery attempt per provider
	defaultPushTimeout = 30 * time.Second

	// maxConcurrentDeliveries bounds the provider sends in flight across all
	// dispatch calls
	maxConcurrentDeliveries = 8
)

// pushDispatcher fans accepted notifications out to the configured providers.
// Each provider gets exactly one send attempt per notification, failures are
// logged and counted but never revisit the stored record.
type pushDispatcher struct {
	providers []PushProvider
	sem       *semaphore.Weighted
	metrics   *metrics.NotificationMetrics
	log       *slog.Logger
}

// newPushDispatcher builds providers from the push settings. Providers with
// invalid configuration are logged and skipped so one broken target cannot
// take delivery down for the rest.
func newPushDispatcher(settings *conf.Settings, m *metrics.NotificationMetrics, logger *slog.Logger) *pushDispatcher {
	pd := &pushDispatcher{
		sem:     semaphore.NewWeighted(maxConcurrentDeliveries),
		metrics: m,
		log:     logger,
	}

	for i := range settings.Push.Targets {
		pd.register(NewShoutrrrProvider(&settings.Push.Targets[i]))
	}
	for i := range settings.Push.Webhooks {
		prov, err := NewWebhookProvider(&settings.Push.Webhooks[i])
		if err != nil {
			pd.log.Error("webhook configuration invalid",
				"webhook", settings.Push.Webhooks[i].Name,
				"error", err)
			continue
		}
		pd.register(prov)
	}

	return pd
}

func (d *pushDispatcher) register(prov PushProvider) {
	if err := prov.ValidateConfig(); err != nil {
		d.log.Error("push provider config invalid",
			"provider", prov.GetName(),
			"error", err)
		return
	}
	d.providers = append(d.providers, prov)
	d.log.Info("registered push provider", "provider", prov.GetName())
}

// providerCount reports how many providers registered successfully.
func (d *pushDispatcher) providerCount() int {
	return len(d.providers)
}

// dispatch sends one notification to every matching provider and waits for
// the attempts to finish. The semaphore keeps slow providers from stacking
// up unbounded goroutines during event bursts.
func (d *pushDispatcher) dispatch(ctx context.Context, n *datastore.Notification) {
	if d.metrics != nil {
		d.metrics.DispatchStarted()
		defer d.metrics.DispatchFinished()
	}

	var wg sync.WaitGroup
	for _, prov := range d.providers {
		if !prov.IsEnabled() || !prov.SupportsCategory(n.Category) {
			continue
		}
		if err := d.sem.Acquire(ctx, 1); err != nil {
			// Shutdown while waiting for a slot, remaining providers
			// would fail the same way.
			d.log.Debug("dispatch aborted",
				"provider", prov.GetName(),
				"notification", n.ID,
				"error", err)
			break
		}
		wg.Go(func() {
			defer d.sem.Release(1)
			d.deliver(ctx, prov, n)
		})
	}
	wg.Wait()
}

// deliver runs one provider attempt and records the outcome.
func (d *pushDispatcher) deliver(ctx context.Context, prov PushProvider, n *datastore.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()

	name := prov.GetName()
	start := time.Now()
	err := prov.Send(sendCtx, n)
	duration := time.Since(start)

	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		if d.metrics != nil {
			d.metrics.RecordDelivery(name, status, duration)
			d.metrics.RecordDeliveryError(name, deliveryErrorCategory(err))
		}
		d.log.Error("push delivery failed",
			"provider", name,
			"notification", n.ID,
			"category", n.Category,
			"error", err)
		return
	}

	if d.metrics != nil {
		d.metrics.RecordDelivery(name, "success", duration)
	}
	d.log.Debug("push delivered",
		"provider", name,
		"notification", n.ID,
		"duration_ms", duration.Milliseconds())
}

// close releases provider resources, such as pooled HTTP connections.
func (d *pushDispatcher) close() {
	for _, prov := range d.providers {
		if closer, ok := prov.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// deliveryErrorCategory maps a failed send to its error_category label.
func deliveryErrorCategory(err error) string {
	var derr *deliveryError
	if errors.As(err, &derr) {
		return derr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorCategoryTimeout
	}
	return errorCategoryProvider
}
