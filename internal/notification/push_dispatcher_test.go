package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
)

// fakeProvider records sends for dispatcher tests.
type fakeProvider struct {
	name       string
	enabled    bool
	categories map[string]bool
	sendErr    error
	delay      time.Duration

	mu   sync.Mutex
	sent []*datastore.Notification
}

func (f *fakeProvider) GetName() string { return f.name }

func (f *fakeProvider) ValidateConfig() error { return nil }

func (f *fakeProvider) IsEnabled() bool { return f.enabled }

func (f *fakeProvider) SupportsCategory(category string) bool {
	return supportsCategory(f.categories, category)
}

func (f *fakeProvider) Send(ctx context.Context, n *datastore.Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.sendErr
}

func (f *fakeProvider) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestDispatcher(providers ...PushProvider) *pushDispatcher {
	return &pushDispatcher{
		providers: providers,
		sem:       semaphore.NewWeighted(maxConcurrentDeliveries),
		log:       getLogger(),
	}
}

func securityNotification() *datastore.Notification {
	return &datastore.Notification{
		ID:       "31c7b0a2-5ad1-4f2a-9f6e-2d9c1a2b3c4d",
		Category: "security",
		Message:  "Front door opened",
	}
}

func TestDispatchFansOutToMatchingProviders(t *testing.T) {
	t.Parallel()

	all := &fakeProvider{name: "all", enabled: true}
	securityOnly := &fakeProvider{name: "sec", enabled: true, categories: map[string]bool{"security": true}}
	disabled := &fakeProvider{name: "off", enabled: false}
	d := newTestDispatcher(all, securityOnly, disabled)

	d.dispatch(context.Background(), &datastore.Notification{
		ID:       "a1",
		Category: "safety",
		Message:  "Smoke detected",
	})

	assert.Equal(t, 1, all.sentCount())
	assert.Equal(t, 0, securityOnly.sentCount())
	assert.Equal(t, 0, disabled.sentCount())

	d.dispatch(context.Background(), securityNotification())

	assert.Equal(t, 2, all.sentCount())
	assert.Equal(t, 1, securityOnly.sentCount())
	assert.Equal(t, 0, disabled.sentCount())
}

func TestDispatchProviderFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	failing := &fakeProvider{name: "bad", enabled: true, sendErr: errors.NewStd("delivery refused")}
	healthy := &fakeProvider{name: "good", enabled: true}
	d := newTestDispatcher(failing, healthy)

	d.dispatch(context.Background(), securityNotification())

	assert.Equal(t, 1, failing.sentCount())
	assert.Equal(t, 1, healthy.sentCount())
}

func TestDispatchCancelledContext(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p", enabled: true}
	d := newTestDispatcher(prov)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.dispatch(ctx, securityNotification())

	assert.Equal(t, 0, prov.sentCount())
}

func TestDispatchWaitsForAllProviders(t *testing.T) {
	t.Parallel()

	providers := make([]PushProvider, 0, 4)
	fakes := make([]*fakeProvider, 0, 4)
	for i := 0; i < 4; i++ {
		f := &fakeProvider{
			name:    fmt.Sprintf("prov-%d", i),
			enabled: true,
			delay:   20 * time.Millisecond,
		}
		providers = append(providers, f)
		fakes = append(fakes, f)
	}
	d := newTestDispatcher(providers...)

	d.dispatch(context.Background(), securityNotification())

	// dispatch returns only after every attempt finished
	for _, f := range fakes {
		assert.Equal(t, 1, f.sentCount())
	}
}

func TestServiceStopDrainsDeliveries(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	service := newTestService(t, store, nil)

	slow := &fakeProvider{name: "slow", enabled: true, delay: 50 * time.Millisecond}
	service.dispatcher = newTestDispatcher(slow)

	_, decision, err := service.ProcessEvent(context.Background(), Event{
		EntityID:    "binary_sensor.kitchen_smoke",
		Message:     "Smoke detected",
		DeviceClass: "smoke",
		Source:      SourceAPI,
	})
	require.NoError(t, err)
	require.True(t, decision.Deliver)

	service.Stop()

	assert.Equal(t, 1, slow.sentCount())
}

func TestNewPushDispatcherSkipsInvalidProviders(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Push.Enabled = true
	settings.Push.Targets = []conf.PushTargetConfig{
		{Name: "broken", URL: ""},
	}
	settings.Push.Webhooks = []conf.WebhookConfig{
		{Name: "hook", URL: "https://example.com/hook"},
		{Name: "no-token", URL: "https://example.com/hook2", Auth: conf.WebhookAuthConfig{Type: "bearer"}},
	}

	d := newPushDispatcher(settings, nil, getLogger())

	assert.Equal(t, 1, d.providerCount())
}

func TestDeliveryErrorCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "tagged network error",
			err:  &deliveryError{Err: errors.NewStd("connection refused"), Category: errorCategoryNetwork},
			want: errorCategoryNetwork,
		},
		{
			name: "wrapped tagged error",
			err:  fmt.Errorf("send: %w", &deliveryError{Err: errors.NewStd("bad gateway"), Category: errorCategoryProvider}),
			want: errorCategoryProvider,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: errorCategoryTimeout,
		},
		{
			name: "untagged error",
			err:  errors.NewStd("weird failure"),
			want: errorCategoryProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, deliveryErrorCategory(tt.err))
		})
	}
}

func TestSupportsCategoryFilter(t *testing.T) {
	t.Parallel()

	assert.True(t, supportsCategory(nil, "safety"))
	assert.True(t, supportsCategory(map[string]bool{}, "info"))

	filter := categoryFilter([]string{"safety", "security"})
	assert.True(t, supportsCategory(filter, "safety"))
	assert.True(t, supportsCategory(filter, "security"))
	assert.False(t, supportsCategory(filter, "motion"))
}
