package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	// Ensure no telemetry reporter is installed
	SetTelemetryReporter(nil)

	// Create an error - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderSetsMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("lookup failed for %s", "sensor.front_door").
		Component("classify").
		Category(CategoryValidation).
		Priority(PriorityHigh).
		Context("source", "override").
		Build()

	if ee.GetComponent() != "classify" {
		t.Errorf("Expected component 'classify', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryValidation {
		t.Errorf("Expected category validation, got '%s'", ee.Category)
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("Expected priority high, got '%s'", ee.GetPriority())
	}
	if ee.GetContext()["source"] != "override" {
		t.Errorf("Expected context source=override, got %v", ee.GetContext())
	}
}

func TestInvalidPriorityFallsBack(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Priority("urgent").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Expected invalid priority to fall back to medium, got '%s'", ee.GetPriority())
	}
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	sentinel := Newf("store not open").Category(CategoryState).Build()
	wrapped := Newf("save failed").Category(CategoryState).Build()

	if !Is(wrapped, sentinel) {
		t.Error("Expected errors sharing a category to match via Is")
	}
	if !IsCategory(wrapped, CategoryState) {
		t.Error("Expected IsCategory to report state category")
	}
	if IsCategory(wrapped, CategoryDatabase) {
		t.Error("Did not expect database category match")
	}
}

func TestEntityContextKeepsDomainOnly(t *testing.T) {
	t.Parallel()

	ee := Newf("classification failed").EntityContext("binary_sensor.kitchen_smoke").Build()
	got, ok := ee.GetContext()["entity_domain"].(string)
	if !ok || got != "binary_sensor" {
		t.Errorf("Expected entity_domain 'binary_sensor', got %v", ee.GetContext()["entity_domain"])
	}
	if strings.Contains(fmt.Sprint(ee.GetContext()), "kitchen_smoke") {
		t.Error("Entity name must not leak into error context")
	}
}

func TestBasicScrub(t *testing.T) {
	t.Parallel()

	scrubbed := basicScrub("Error at https://hooks.example.com/push?token=abc123")
	if strings.Contains(scrubbed, "abc123") {
		t.Errorf("Token still present after scrubbing: %s", scrubbed)
	}

	scrubbed = basicScrub("MQTT auth failed: password=hunter2")
	if strings.Contains(scrubbed, "hunter2") {
		t.Errorf("Password still present after scrubbing: %s", scrubbed)
	}

	scrubbed = basicScrub("duplicate check failed for binary_sensor.bedroom_motion")
	if strings.Contains(scrubbed, "bedroom_motion") {
		t.Errorf("Entity name still present after scrubbing: %s", scrubbed)
	}
	if !strings.Contains(scrubbed, "binary_sensor.[ENTITY]") {
		t.Errorf("Expected domain to survive scrubbing, got: %s", scrubbed)
	}
}

func BenchmarkBuildFastPath(b *testing.B) {
	SetTelemetryReporter(nil)
	err := fmt.Errorf("benchmark error")

	for b.Loop() {
		_ = New(err).Component("datastore").Category(CategoryDatabase).Build()
	}
}
