// testing.go implements the staged broker connectivity test behind the
// /api/v1/mqtt/test endpoint.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// TestResult is one stage outcome of a connectivity test, streamed to the
// caller as the test progresses.
type TestResult struct {
	Success   bool   `json:"success"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	State     string `json:"state,omitempty"` // running, completed, failed, timeout
	Timestamp string `json:"timestamp,omitempty"`
}

// TestStage identifies a stage in the connectivity test.
type TestStage int

const (
	DNSResolution TestStage = iota
	TCPConnection
	MQTTConnection
	TopicSubscribe
)

func (s TestStage) String() string {
	switch s {
	case DNSResolution:
		return "DNS Resolution"
	case TCPConnection:
		return "TCP Connection"
	case MQTTConnection:
		return "MQTT Connection"
	case TopicSubscribe:
		return "Topic Subscribe"
	default:
		return "Unknown Stage"
	}
}

// Per-stage timeouts. The MQTT stage gets longer because the paho connect
// includes the protocol handshake.
const (
	dnsTimeout       = 5 * time.Second
	tcpTimeout       = 5 * time.Second
	mqttTimeout      = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

type networkTest func(context.Context) error

// runNetworkTest executes one stage with its timeout and shapes the outcome
// into a TestResult.
func runNetworkTest(ctx context.Context, stage TestStage, test networkTest) TestResult {
	resultChan := make(chan error, 1)

	go func() {
		resultChan <- test(ctx)
	}()

	select {
	case <-ctx.Done():
		return TestResult{
			Success: false,
			Stage:   stage.String(),
			Error:   "operation timeout",
			Message: fmt.Sprintf("%s timed out", stage),
		}
	case err := <-resultChan:
		if err != nil {
			return TestResult{
				Success: false,
				Stage:   stage.String(),
				Error:   err.Error(),
				Message: fmt.Sprintf("Failed %s", stage),
			}
		}
	}

	return TestResult{
		Success: true,
		Stage:   stage.String(),
		Message: fmt.Sprintf("Completed %s", stage),
	}
}

// TestConnection runs the staged connectivity test: DNS resolution (skipped
// for IP brokers), a raw TCP dial, the MQTT connect handshake, and finally a
// subscribe to the configured event topic, which also verifies broker ACLs.
// Each stage result is sent on resultChan; a failed stage ends the test.
func (c *client) TestConnection(ctx context.Context, resultChan chan<- TestResult) {
	send := func(result TestResult) {
		if result.State == "" {
			errText := strings.ToLower(result.Error)
			switch {
			case strings.Contains(errText, "timeout") || strings.Contains(errText, "deadline exceeded"):
				result.State = "timeout"
			case result.Error != "":
				result.State = "failed"
			case result.Success:
				result.State = "completed"
			default:
				result.State = "running"
			}
		}
		result.Timestamp = time.Now().Format(time.RFC3339)

		select {
		case <-ctx.Done():
		case resultChan <- result:
		}
	}

	if err := ctx.Err(); err != nil {
		send(TestResult{
			Stage:   "Test Setup",
			Message: "Test cancelled",
			Error:   err.Error(),
			State:   "timeout",
		})
		return
	}

	runStage := func(stage TestStage, test func() TestResult) bool {
		send(TestResult{
			Stage:   stage.String(),
			Message: fmt.Sprintf("Running %s test...", stage),
			State:   "running",
		})

		result := test()
		send(result)
		return result.Success
	}

	brokerHost := extractHost(c.config.Broker)

	if !isIPAddress(brokerHost) {
		if !runStage(DNSResolution, func() TestResult {
			return c.testDNSStage(ctx, brokerHost)
		}) {
			return
		}
	}

	if !runStage(TCPConnection, func() TestResult {
		return c.testTCPStage(ctx)
	}) {
		return
	}

	if !runStage(MQTTConnection, func() TestResult {
		return c.testMQTTStage(ctx)
	}) {
		return
	}

	runStage(TopicSubscribe, func() TestResult {
		return c.testSubscribeStage(ctx)
	})
}

func (c *client) testDNSStage(ctx context.Context, brokerHost string) TestResult {
	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	return runNetworkTest(dnsCtx, DNSResolution, func(ctx context.Context) error {
		_, err := net.DefaultResolver.LookupHost(ctx, brokerHost)
		return err
	})
}

func (c *client) testTCPStage(ctx context.Context) TestResult {
	tcpCtx, cancel := context.WithTimeout(ctx, tcpTimeout)
	defer cancel()

	return runNetworkTest(tcpCtx, TCPConnection, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", extractHostPort(c.config.Broker))
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

func (c *client) testMQTTStage(ctx context.Context) TestResult {
	if c.IsConnected() {
		return TestResult{
			Success: true,
			Stage:   MQTTConnection.String(),
			Message: "Already connected to MQTT broker",
		}
	}

	mqttCtx, cancel := context.WithTimeout(ctx, mqttTimeout)
	defer cancel()

	return runNetworkTest(mqttCtx, MQTTConnection, func(ctx context.Context) error {
		return c.Connect(ctx)
	})
}

// testSubscribeStage subscribes with a discarding handler. hushd only
// consumes, so a successful subscription is the whole job.
func (c *client) testSubscribeStage(ctx context.Context) TestResult {
	subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	return runNetworkTest(subCtx, TopicSubscribe, func(ctx context.Context) error {
		topic := c.config.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		return c.Subscribe(ctx, topic, func(string, []byte) {})
	})
}

// isIPAddress reports whether host, possibly carrying a scheme prefix, is a
// literal IP address.
func isIPAddress(host string) bool {
	if _, rest, found := strings.Cut(host, "://"); found {
		host = rest
	}

	// IPv6 in brackets.
	if strings.HasPrefix(host, "[") {
		end := strings.LastIndex(host, "]")
		if end == -1 {
			return false
		}
		host = host[1:end]
	} else if strings.Contains(host, ":") && strings.Count(host, ":") <= 1 {
		// IPv4 or hostname with a port.
		host = strings.Split(host, ":")[0]
	}

	return net.ParseIP(host) != nil
}

// extractHost returns the bare hostname of a broker address.
func extractHost(broker string) string {
	if _, rest, found := strings.Cut(broker, "://"); found {
		broker = rest
	}
	if idx := strings.LastIndexByte(broker, '@'); idx >= 0 {
		broker = broker[idx+1:]
	}

	if strings.HasPrefix(broker, "[") {
		end := strings.LastIndex(broker, "]")
		if end == -1 {
			return broker
		}
		return broker[1:end]
	}

	if strings.Count(broker, ":") <= 1 {
		if i := strings.LastIndexByte(broker, ':'); i != -1 {
			return broker[:i]
		}
	}
	// Raw IPv6 or plain hostname.
	return broker
}

// extractHostPort returns host:port for dialing, defaulting to 1883.
func extractHostPort(broker string) string {
	if _, rest, found := strings.Cut(broker, "://"); found {
		broker = rest
	}
	if idx := strings.LastIndexByte(broker, '@'); idx >= 0 {
		broker = broker[idx+1:]
	}

	if strings.HasPrefix(broker, "[") {
		if strings.Contains(broker, "]:") {
			return broker
		}
		if strings.HasSuffix(broker, "]") {
			return broker + ":1883"
		}
		return broker
	}

	if strings.Count(broker, ":") > 1 {
		// Raw IPv6 without a port.
		return "[" + broker + "]:1883"
	}

	if !strings.Contains(broker, ":") {
		return broker + ":1883"
	}

	return broker
}
