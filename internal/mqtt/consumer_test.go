package mqtt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/notification"
	"github.com/hush-home/hushd/internal/testutil"
)

// fakeClient implements Client without a broker.
type fakeClient struct {
	mu          sync.Mutex
	subscribed  map[string]MessageHandler
	connected   bool
	disconnects int

	connectCalled chan struct{}
	connectOnce   sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		subscribed:    make(map[string]MessageHandler),
		connectCalled: make(chan struct{}),
	}
}

func (f *fakeClient) Connect(_ context.Context) error {
	f.connectOnce.Do(func() { close(f.connectCalled) })

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeClient) TestConnection(_ context.Context, _ chan<- TestResult) {}

func ingestSettings(broker, topic string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Ingest.MQTT.Enabled = true
	settings.Ingest.MQTT.Broker = broker
	settings.Ingest.MQTT.Topic = topic
	return settings
}

func TestNewConsumerRequiresSink(t *testing.T) {
	t.Parallel()

	_, err := NewConsumer(ingestSettings("tcp://127.0.0.1:1883", ""), nil, nil)
	require.Error(t, err)
}

func TestNewConsumerRequiresBroker(t *testing.T) {
	t.Parallel()

	sink := func(context.Context, notification.Event) error { return nil }
	_, err := NewConsumer(ingestSettings("", ""), sink, nil)
	require.Error(t, err)
}

func TestNewConsumerDefaultsTopic(t *testing.T) {
	t.Parallel()

	sink := func(context.Context, notification.Event) error { return nil }
	consumer, err := NewConsumer(ingestSettings("tcp://127.0.0.1:1883", "  "), sink, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, consumer.Topic())

	consumer, err = NewConsumer(ingestSettings("tcp://127.0.0.1:1883", "home/events"), sink, nil)
	require.NoError(t, err)
	assert.Equal(t, "home/events", consumer.Topic())
}

func TestConsumerStartSubscribesAndConnects(t *testing.T) {
	t.Parallel()

	fake := newFakeClient()
	consumer := &Consumer{
		client: fake,
		topic:  "hushd/events",
		sink:   func(context.Context, notification.Event) error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, consumer.Start(ctx))
	testutil.WaitForChannel(t, fake.connectCalled, testutil.ShortTestTimeout, "connect was not attempted")

	fake.mu.Lock()
	_, hasHandler := fake.subscribed["hushd/events"]
	fake.mu.Unlock()
	assert.True(t, hasHandler, "subscription should be registered before connect")

	cancel()
	consumer.Stop()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Positive(t, fake.disconnects)
}

func TestConsumerHandleMessageFeedsSink(t *testing.T) {
	t.Parallel()

	received := make(chan notification.Event, 1)
	consumer := &Consumer{
		client: newFakeClient(),
		topic:  "hushd/events",
		sink: func(_ context.Context, event notification.Event) error {
			received <- event
			return nil
		},
	}

	consumer.handleMessage("hushd/events", []byte(`{
		"entity_id": " binary_sensor.smoke_kitchen ",
		"message": "Smoke detected",
		"device_class": "smoke"
	}`))

	require.Len(t, received, 1)
	event := <-received
	assert.Equal(t, "binary_sensor.smoke_kitchen", event.EntityID)
	assert.Equal(t, "Smoke detected", event.Message)
	assert.Equal(t, "smoke", event.DeviceClass)
	assert.Equal(t, notification.SourceMQTT, event.Source)
}

func TestConsumerDiscardsMalformedPayloads(t *testing.T) {
	t.Parallel()

	consumer := &Consumer{
		client: newFakeClient(),
		topic:  "hushd/events",
		sink: func(_ context.Context, event notification.Event) error {
			t.Errorf("sink called for malformed payload: %+v", event)
			return nil
		},
	}

	consumer.handleMessage("hushd/events", []byte(`{not json`))
	consumer.handleMessage("hushd/events", []byte(`{"entity_id":"sensor.x"}`)) // no message
	consumer.handleMessage("hushd/events", []byte(``))
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "full payload",
			payload: `{"entity_id":"lock.front_door","message":"Unlocked","title":"Door","category":"security","data":{"code_slot":"2"}}`,
		},
		{
			name:    "message only",
			payload: `{"message":"Water heater offline"}`,
		},
		{
			name:    "missing message",
			payload: `{"entity_id":"sensor.garage"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			payload: `]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, err := parseEvent([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, notification.SourceMQTT, event.Source)
			assert.NotEmpty(t, event.Message)
		})
	}
}
