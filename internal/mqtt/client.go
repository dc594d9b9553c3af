package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/observability/metrics"
	"github.com/hush-home/hushd/internal/privacy"
)

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	handlers        map[string]MessageHandler
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
}

// NewClient creates an MQTT client from the ingest settings. The metrics
// argument may be nil, for example in one-shot CLI runs.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) (Client, error) {
	ingest := settings.Ingest.MQTT
	if ingest.Broker == "" {
		return nil, errors.Newf("MQTT broker address is required").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cfg := DefaultConfig()
	cfg.Broker = ingest.Broker
	cfg.Username = ingest.Username
	cfg.Password = ingest.Password
	if ingest.Topic != "" {
		cfg.Topic = ingest.Topic
	}
	cfg.ClientID = ingest.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "hushd"
	}

	return &client{
		config:        cfg,
		handlers:      make(map[string]MessageHandler),
		reconnectStop: make(chan struct{}),
		metrics:       m,
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker. The broker
// hostname is resolved first so DNS problems surface as such instead of as
// opaque connect timeouts.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", since)
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		// url.Parse errors quote the raw URL, credentials included.
		return fmt.Errorf("invalid broker URL: %w", privacy.WrapError(err))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return dnsErr
			}
			return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	// Reconnects are owned by reconnectWithBackoff so there is exactly one
	// path that re-establishes the session and its subscriptions.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	if c.internalClient != nil {
		c.internalClient.Disconnect(0)
	}
	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}

	return nil
}

// Subscribe registers the handler for topic. When the connection is not up
// yet the subscription is only recorded; onConnect issues it on the broker
// after every successful connect.
func (c *client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if topic == "" {
		return fmt.Errorf("subscription topic is required")
	}
	if handler == nil {
		return fmt.Errorf("subscription handler is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = handler
	if c.internalClient == nil || !c.internalClient.IsConnected() {
		return nil
	}
	return c.subscribeLocked(topic, handler)
}

// subscribeLocked issues the broker subscription. Callers hold c.mu.
// QoS 1 gives at-least-once delivery; the pipeline's dedup window collapses
// the occasional redelivery.
func (c *client) subscribeLocked(topic string, handler MessageHandler) error {
	token := c.internalClient.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.config.SubscribeTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for topic %s: %w", topic, err)
	}
	return nil
}

// IsConnected returns true if the client is currently connected to the broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection and stops any pending reconnect attempts.
// Safe to call more than once.
func (c *client) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.reconnectStop)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		if c.metrics != nil {
			c.metrics.UpdateConnectionStatus(false)
		}
	}
}

func (c *client) onConnect(_ pahomqtt.Client) {
	getLogger().Info("connected to MQTT broker", "broker", privacy.SanitizeBrokerURL(c.config.Broker))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, handler := range c.handlers {
		if err := c.subscribeLocked(topic, handler); err != nil {
			getLogger().Error("failed to restore subscription",
				"topic", topic,
				"error", err)
			if c.metrics != nil {
				c.metrics.IncrementErrors()
			}
		}
	}
}

func (c *client) onConnectionLost(_ pahomqtt.Client, err error) {
	getLogger().Warn("connection to MQTT broker lost",
		"broker", privacy.SanitizeBrokerURL(c.config.Broker),
		"error", err)
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
		c.metrics.IncrementErrors()
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := c.config.ReconnectCooldown
	maxBackoff := 5 * time.Minute

	for {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			getLogger().Info("reconnected to MQTT broker", "broker", privacy.SanitizeBrokerURL(c.config.Broker))
			return
		}

		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		getLogger().Warn("failed to reconnect to MQTT broker",
			"broker", privacy.SanitizeBrokerURL(c.config.Broker),
			"error", err,
			"retry_in", backoff.String())

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
