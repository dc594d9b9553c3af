package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/notification"
	"github.com/hush-home/hushd/internal/observability/metrics"
)

// processTimeout bounds how long one inbound event may spend in the pipeline.
const processTimeout = 10 * time.Second

// EventSink consumes parsed events, typically the notification service's
// ProcessEvent wrapped to drop its result.
type EventSink func(ctx context.Context, event notification.Event) error

// eventPayload is the JSON wire format home automation publishes to the
// event topic. Only entity_id and message are expected; the rest are hints.
type eventPayload struct {
	EntityID            string            `json:"entity_id"`
	Message             string            `json:"message"`
	Title               string            `json:"title"`
	Category            string            `json:"category"`
	DeviceClass         string            `json:"device_class"`
	OriginalDeviceClass string            `json:"original_device_class"`
	Data                map[string]string `json:"data"`
}

// Consumer subscribes to the event topic and feeds parsed events into the
// sink. Connection losses are handled by the client; the consumer retries
// the initial connect itself so a broker that is down at startup does not
// keep events from flowing once it comes back.
type Consumer struct {
	client  Client
	topic   string
	sink    EventSink
	metrics *metrics.MQTTMetrics
	wg      sync.WaitGroup
}

// NewConsumer builds a consumer from the ingest settings. The metrics
// argument may be nil.
func NewConsumer(settings *conf.Settings, sink EventSink, m *metrics.MQTTMetrics) (*Consumer, error) {
	if sink == nil {
		return nil, errors.Newf("event sink is required").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	client, err := NewClient(settings, m)
	if err != nil {
		return nil, err
	}

	topic := strings.TrimSpace(settings.Ingest.MQTT.Topic)
	if topic == "" {
		topic = DefaultTopic
	}

	return &Consumer{
		client:  client,
		topic:   topic,
		sink:    sink,
		metrics: m,
	}, nil
}

// Topic returns the topic the consumer subscribes to.
func (c *Consumer) Topic() string { return c.topic }

// Client exposes the underlying MQTT client, used by connection tests.
func (c *Consumer) Client() Client { return c.client }

// Start registers the subscription and brings the connection up. A broker
// that cannot be reached yet is retried in the background, so Start only
// fails on misconfiguration.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.client.Subscribe(ctx, c.topic, c.handleMessage); err != nil {
		return err
	}

	c.wg.Go(func() { c.connectLoop(ctx) })

	getLogger().Info("MQTT consumer starting",
		"topic", c.topic)
	return nil
}

// Stop disconnects from the broker and waits for the connect loop to exit.
func (c *Consumer) Stop() {
	c.client.Disconnect()
	c.wg.Wait()
}

// connectLoop retries the initial connect until it succeeds or ctx ends.
// Once a connection is established the client's own reconnect handling
// takes over.
func (c *Consumer) connectLoop(ctx context.Context) {
	backoff := 5 * time.Second
	maxBackoff := 5 * time.Minute

	for {
		err := c.client.Connect(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		getLogger().Warn("MQTT connect failed, will retry",
			"error", err,
			"retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// handleMessage parses one inbound payload and runs it through the sink.
// Malformed payloads are logged and counted, never fatal.
func (c *Consumer) handleMessage(topic string, payload []byte) {
	if c.metrics != nil {
		c.metrics.IncrementMessagesReceived()
		c.metrics.ObserveMessageSize(float64(len(payload)))
		defer c.metrics.StartProcessingTimer().ObserveDuration()
	}

	event, err := parseEvent(payload)
	if err != nil {
		getLogger().Warn("discarding malformed event payload",
			"topic", topic,
			"payload_bytes", len(payload),
			"error", err)
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if err := c.sink(ctx, event); err != nil {
		getLogger().Error("event processing failed",
			"topic", topic,
			"entity_id", event.EntityID,
			"error", err)
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
	}
}

// parseEvent converts a wire payload into a pipeline event. Events without
// a message are rejected here so the malformed counter covers them.
func parseEvent(payload []byte) (notification.Event, error) {
	var p eventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return notification.Event{}, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTMessage).
			Build()
	}

	event := notification.Event{
		EntityID:            strings.TrimSpace(p.EntityID),
		Message:             strings.TrimSpace(p.Message),
		Title:               strings.TrimSpace(p.Title),
		Category:            strings.TrimSpace(p.Category),
		DeviceClass:         strings.TrimSpace(p.DeviceClass),
		OriginalDeviceClass: strings.TrimSpace(p.OriginalDeviceClass),
		Data:                p.Data,
		Source:              notification.SourceMQTT,
	}
	if err := event.Validate(); err != nil {
		return notification.Event{}, err
	}
	return event, nil
}
