package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			metrics, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if metrics == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			if metrics.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if metrics.Notification == nil {
				t.Error("metrics.Notification is nil")
			}
			if metrics.Datastore == nil {
				t.Error("metrics.Datastore is nil")
			}
			if metrics.MQTT == nil {
				t.Error("metrics.MQTT is nil")
			}
			if metrics.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
		}()
	}

	wg.Wait()
}

// TestNotificationMetricsRecording verifies recorded values are visible
// through the collector.
func TestNotificationMetricsRecording(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.Notification.RecordEventReceived("mqtt")
	m.Notification.RecordEventReceived("mqtt")
	m.Notification.RecordEventReceived("api")
	m.Notification.RecordClassification("safety", "pattern")
	m.Notification.RecordDecision("safety", "always_notify", "delivered")
	m.Notification.RecordDelivery("shoutrrr", "success", 120*time.Millisecond)

	metric := &dto.Metric{}
	counter, err := m.Notification.EventsReceivedTotal.GetMetricWithLabelValues("mqtt")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.Counter.GetValue(); got != 2 {
		t.Errorf("mqtt events received = %v, want 2", got)
	}
}

// TestHTTPActiveRequestsGauge verifies the in-flight gauge moves with
// request start and finish.
func TestHTTPActiveRequestsGauge(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.HTTP.RequestStarted()
	m.HTTP.RequestStarted()
	if got := m.HTTP.GetActiveRequests(); got != 2 {
		t.Errorf("active requests = %v, want 2", got)
	}

	m.HTTP.RequestFinished()
	if got := m.HTTP.GetActiveRequests(); got != 1 {
		t.Errorf("active requests after finish = %v, want 1", got)
	}
}

// TestMetricsHandler verifies the scrape endpoint serves the registered
// metric families.
func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.MQTT.IncrementMessagesReceived()
	m.Datastore.RecordDbOperation("insert", "notifications", "success")

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("scrape returned status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, family := range []string{
		"mqtt_messages_received_total",
		"datastore_db_operations_total",
	} {
		if !strings.Contains(body, family) {
			t.Errorf("scrape output missing %s", family)
		}
	}
}

// TestDatastoreMetricsConcurrentRecording verifies counters are safe under
// concurrent updates.
func TestDatastoreMetricsConcurrentRecording(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	const perGoroutine = 100
	const numGoroutines = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range perGoroutine {
				m.Datastore.RecordDbOperation("insert", "notifications", "success")
			}
		}()
	}
	wg.Wait()

	// Labels render alphabetically in the exposition format.
	mux := http.NewServeMux()
	m.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	want := `datastore_db_operations_total{operation="insert",status="success",table="notifications"} 1000`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("scrape output missing %q", want)
	}
}
