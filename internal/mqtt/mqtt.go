// Package mqtt provides the MQTT ingest bridge. A Client wraps the paho
// connection with reconnect handling; a Consumer subscribes to the event
// topic and feeds parsed events into the notification pipeline.
package mqtt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hush-home/hushd/internal/logging"
)

// MessageHandler receives the raw payload of one inbound message.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for MQTT broker operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Subscribe registers a handler for the given topic. The subscription
	// is (re)issued automatically after every successful connect, so it is
	// safe to call before the connection is up.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// IsConnected reports whether the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection and stops reconnect attempts.
	Disconnect()

	// TestConnection runs a staged connectivity test against the broker,
	// streaming per-stage results through resultChan.
	TestConnection(ctx context.Context, resultChan chan<- TestResult)
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // default topic the consumer subscribes to

	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration

	ConnectTimeout    time.Duration
	SubscribeTimeout  time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		Topic:             DefaultTopic,
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// DefaultTopic is where home automation publishes events for hushd.
const DefaultTopic = "hushd/events"

var (
	fileLogger *slog.Logger
	levelVar   = new(slog.LevelVar)

	loggerCloser func() error
	loggerOnce   sync.Once
)

// InitializeFileLogger sets up the dedicated log file for MQTT ingest.
// Callers that skip it fall back to the shared structured logger.
func InitializeFileLogger(debug bool) {
	loggerOnce.Do(func() {
		if debug {
			levelVar.Set(slog.LevelDebug)
		} else {
			levelVar.Set(slog.LevelInfo)
		}

		logger, closer, err := logging.NewFileLogger("logs/mqtt.log", "mqtt", levelVar)
		if err != nil || logger == nil {
			fileLogger = slog.Default().With("service", "mqtt")
			return
		}

		fileLogger = logger
		loggerCloser = closer
	})
}

func getLogger() *slog.Logger {
	if fileLogger != nil {
		return fileLogger
	}
	if logger := logging.ForService("mqtt"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "mqtt")
}

// CloseLogger closes the log file and cleans up resources.
func CloseLogger() error {
	if loggerCloser != nil {
		return loggerCloser()
	}
	return nil
}
