// internal/api/mqtt.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hush-home/hushd/internal/mqtt"
	"github.com/hush-home/hushd/internal/privacy"
)

// mqttTestTimeout bounds the whole staged connectivity test.
const mqttTestTimeout = 20 * time.Second

// MQTTStatus describes the ingest bridge configuration and connectivity.
// The broker address is stripped of credentials before it leaves the API.
type MQTTStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Topic     string `json:"topic"`
	ClientID  string `json:"client_id"`
}

// GetMQTTStatus handles GET /api/v1/mqtt/status.
func (c *Controller) GetMQTTStatus(ctx echo.Context) error {
	c.settingsMutex.RLock()
	ingest := c.Settings.Ingest.MQTT
	clientID := ingest.ClientID
	if clientID == "" {
		clientID = c.Settings.Main.Name
	}
	connectedFn := c.mqttConnected
	c.settingsMutex.RUnlock()

	if clientID == "" {
		clientID = "hushd"
	}
	topic := strings.TrimSpace(ingest.Topic)
	if topic == "" {
		topic = mqtt.DefaultTopic
	}

	status := MQTTStatus{
		Enabled:  ingest.Enabled,
		Broker:   privacy.SanitizeBrokerURL(ingest.Broker),
		Topic:    topic,
		ClientID: clientID,
	}
	if connectedFn != nil {
		status.Connected = connectedFn()
	}

	return ctx.JSON(http.StatusOK, status)
}

// TestMQTTConnection handles POST /api/v1/mqtt/test. It runs the staged
// connectivity test against the configured broker on a throwaway client and
// streams each stage result as one JSON line.
func (c *Controller) TestMQTTConnection(ctx echo.Context) error {
	c.settingsMutex.RLock()
	enabled := c.Settings.Ingest.MQTT.Enabled
	broker := c.Settings.Ingest.MQTT.Broker
	c.settingsMutex.RUnlock()

	if !enabled {
		return ctx.JSON(http.StatusOK, mqtt.TestResult{
			Success: false,
			Stage:   "Test Setup",
			Message: "MQTT ingest is not enabled",
			State:   "failed",
		})
	}
	if broker == "" {
		return c.HandleError(ctx, fmt.Errorf("broker address is empty"),
			"MQTT broker not configured", http.StatusBadRequest)
	}

	client, err := mqtt.NewClient(c.Settings, nil)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create MQTT client", http.StatusInternalServerError)
	}

	testCtx, cancel := context.WithTimeout(ctx.Request().Context(), mqttTestTimeout)
	defer cancel()

	ctx.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx.Response().WriteHeader(http.StatusOK)

	resultChan := make(chan mqtt.TestResult)
	go func() {
		defer close(resultChan)
		client.TestConnection(testCtx, resultChan)
		client.Disconnect()
	}()

	// Stream stage results as they arrive. When the response write fails the
	// context cancellation on return unblocks the producer.
	encoder := json.NewEncoder(ctx.Response())
	for result := range resultChan {
		if err := encoder.Encode(result); err != nil {
			c.Debug("Error encoding MQTT test result: %v", err)
			return nil
		}
		ctx.Response().Flush()
	}

	return nil
}
