package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/classify"
)

// dedupRecorder is a DedupLookup that records how it was called.
type dedupRecorder struct {
	duplicate   bool
	err         error
	calls       int
	lastMessage string
	lastWindow  int
}

func (d *dedupRecorder) IsDuplicate(message string, windowMinutes int) (bool, error) {
	d.calls++
	d.lastMessage = message
	d.lastWindow = windowMinutes
	return d.duplicate, d.err
}

func clock(hour, minute int) time.Time {
	return time.Date(2025, 3, 15, hour, minute, 0, 0, time.UTC)
}

func TestParseBehavior(t *testing.T) {
	valid := map[string]Behavior{
		"always_notify":        AlwaysNotify,
		"notify_respect_quiet": NotifyRespectQuiet,
		"notify_once_per_hour": NotifyOncePerHour,
		"log_only":             LogOnly,
		"notify_with_dedup":    NotifyWithDedup,
		" Always_Notify ":      AlwaysNotify,
	}
	for input, want := range valid {
		got, err := ParseBehavior(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	for _, input := range []string{"", "shout_loudly", "notify", "once_per_hour"} {
		_, err := ParseBehavior(input)
		require.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, ErrInvalidBehavior, "input %q", input)
	}
}

func TestDefaultBehaviors(t *testing.T) {
	defaults := DefaultBehaviors()
	assert.Equal(t, AlwaysNotify, defaults[classify.CategorySafety])
	assert.Equal(t, NotifyRespectQuiet, defaults[classify.CategorySecurity])
	assert.Equal(t, NotifyOncePerHour, defaults[classify.CategoryDevice])
	assert.Equal(t, LogOnly, defaults[classify.CategoryMotion])
	assert.Equal(t, NotifyWithDedup, defaults[classify.CategoryInfo])

	// Mutating the returned map must not leak into later calls.
	defaults[classify.CategoryMotion] = AlwaysNotify
	assert.Equal(t, LogOnly, DefaultBehaviors()[classify.CategoryMotion])
}

func TestBehaviorFor(t *testing.T) {
	behavior, err := BehaviorFor(classify.CategoryMotion, nil)
	require.NoError(t, err)
	assert.Equal(t, LogOnly, behavior)

	configured := map[string]string{"motion": "always_notify"}
	behavior, err = BehaviorFor(classify.CategoryMotion, configured)
	require.NoError(t, err)
	assert.Equal(t, AlwaysNotify, behavior)

	// Categories absent from the configured map keep their defaults.
	behavior, err = BehaviorFor(classify.CategorySafety, configured)
	require.NoError(t, err)
	assert.Equal(t, AlwaysNotify, behavior)

	_, err = BehaviorFor(classify.CategoryMotion, map[string]string{"motion": "shout_loudly"})
	assert.ErrorIs(t, err, ErrInvalidBehavior)

	_, err = BehaviorFor(classify.Category("weather"), nil)
	assert.ErrorIs(t, err, classify.ErrInvalidCategory)
}

func TestParseClock(t *testing.T) {
	valid := map[string]int{
		"00:00":   0,
		"07:00":   420,
		"22:00":   1320,
		"23:59":   1439,
		" 08:30 ": 510,
	}
	for input, want := range valid {
		got, err := ParseClock(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	for _, input := range []string{"", "25:00", "12:60", "7am", "nope"} {
		_, err := ParseClock(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestNewQuietHours(t *testing.T) {
	quiet, err := NewQuietHours(true, "22:00", "07:00")
	require.NoError(t, err)
	assert.Equal(t, QuietHours{Enabled: true, Start: 1320, End: 420}, quiet)

	_, err = NewQuietHours(true, "25:00", "07:00")
	assert.ErrorContains(t, err, "quiet hours start")

	_, err = NewQuietHours(true, "22:00", "nope")
	assert.ErrorContains(t, err, "quiet hours end")
}

func TestQuietHoursActive(t *testing.T) {
	overnight := QuietHours{Enabled: true, Start: 22 * 60, End: 7 * 60}
	sameDay := QuietHours{Enabled: true, Start: 14 * 60, End: 16 * 60}

	tests := []struct {
		name   string
		window QuietHours
		now    time.Time
		want   bool
	}{
		{"overnight start is inclusive", overnight, clock(22, 0), true},
		{"overnight before midnight", overnight, clock(23, 30), true},
		{"overnight after midnight", overnight, clock(2, 0), true},
		{"overnight last quiet minute", overnight, clock(6, 59), true},
		{"overnight end is exclusive", overnight, clock(7, 0), false},
		{"overnight minute before start", overnight, clock(21, 59), false},
		{"overnight midday", overnight, clock(12, 0), false},
		{"same day start is inclusive", sameDay, clock(14, 0), true},
		{"same day last quiet minute", sameDay, clock(15, 59), true},
		{"same day end is exclusive", sameDay, clock(16, 0), false},
		{"same day minute before start", sameDay, clock(13, 59), false},
		{"equal start and end never quiet", QuietHours{Enabled: true, Start: 600, End: 600}, clock(10, 0), false},
		{"disabled window never quiet", QuietHours{Enabled: false, Start: 22 * 60, End: 7 * 60}, clock(23, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.window.Active(tt.now))
		})
	}
}

func TestShouldDeliverAlwaysNotify(t *testing.T) {
	// Quiet hours active and a duplicate on record, neither matters.
	dedup := &dedupRecorder{duplicate: true}
	quiet := QuietHours{Enabled: true, Start: 22 * 60, End: 7 * 60}

	decision, err := ShouldDeliver(clock(23, 0), AlwaysNotify, "Smoke detected", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.True(t, decision.Deliver)
	assert.Equal(t, ReasonDelivered, decision.Reason)
	assert.Zero(t, dedup.calls, "always_notify must not consult the dedup lookup")
}

func TestShouldDeliverLogOnly(t *testing.T) {
	dedup := &dedupRecorder{}

	decision, err := ShouldDeliver(clock(12, 0), LogOnly, "Motion in hallway", QuietHours{}, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.False(t, decision.Deliver)
	assert.Equal(t, ReasonLogOnly, decision.Reason)
	assert.Zero(t, dedup.calls, "log_only must not consult the dedup lookup")
}

func TestShouldDeliverRespectQuiet(t *testing.T) {
	dedup := &dedupRecorder{}
	quiet := QuietHours{Enabled: true, Start: 22 * 60, End: 7 * 60}

	decision, err := ShouldDeliver(clock(23, 0), NotifyRespectQuiet, "Front door opened", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.False(t, decision.Deliver)
	assert.Equal(t, ReasonQuietHours, decision.Reason)

	decision, err = ShouldDeliver(clock(12, 0), NotifyRespectQuiet, "Front door opened", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.True(t, decision.Deliver)
	assert.Equal(t, ReasonDelivered, decision.Reason)
	assert.Zero(t, dedup.calls, "notify_respect_quiet must not consult the dedup lookup")
}

func TestShouldDeliverWithDedup(t *testing.T) {
	quiet := QuietHours{Enabled: true, Start: 22 * 60, End: 7 * 60}

	// Quiet hours win before the lookup runs.
	dedup := &dedupRecorder{duplicate: true}
	decision, err := ShouldDeliver(clock(23, 0), NotifyWithDedup, "Update available", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.Equal(t, ReasonQuietHours, decision.Reason)
	assert.Zero(t, dedup.calls)

	// Outside quiet hours a duplicate suppresses delivery.
	decision, err = ShouldDeliver(clock(12, 0), NotifyWithDedup, "Update available", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.False(t, decision.Deliver)
	assert.Equal(t, ReasonDuplicate, decision.Reason)
	assert.Equal(t, 1, dedup.calls)
	assert.Equal(t, "Update available", dedup.lastMessage)
	assert.Equal(t, 5, dedup.lastWindow)

	// A fresh message goes through.
	dedup = &dedupRecorder{}
	decision, err = ShouldDeliver(clock(12, 0), NotifyWithDedup, "Update available", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.True(t, decision.Deliver)
	assert.Equal(t, ReasonDelivered, decision.Reason)
	assert.Equal(t, 5, dedup.lastWindow)
}

func TestShouldDeliverOncePerHour(t *testing.T) {
	// Once-per-hour ignores quiet hours but collapses repeats.
	quiet := QuietHours{Enabled: true, Start: 22 * 60, End: 7 * 60}

	dedup := &dedupRecorder{}
	decision, err := ShouldDeliver(clock(23, 0), NotifyOncePerHour, "Sensor battery low", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.True(t, decision.Deliver)
	assert.Equal(t, ReasonDelivered, decision.Reason)
	assert.Equal(t, 60, dedup.lastWindow)

	dedup = &dedupRecorder{duplicate: true}
	decision, err = ShouldDeliver(clock(23, 0), NotifyOncePerHour, "Sensor battery low", quiet, DefaultWindows(), dedup)
	require.NoError(t, err)
	assert.False(t, decision.Deliver)
	assert.Equal(t, ReasonDuplicate, decision.Reason)
}

func TestShouldDeliverConfiguredWindows(t *testing.T) {
	windows := Windows{Dedup: 3, Hourly: 120}

	dedup := &dedupRecorder{}
	_, err := ShouldDeliver(clock(12, 0), NotifyWithDedup, "msg", QuietHours{}, windows, dedup)
	require.NoError(t, err)
	assert.Equal(t, 3, dedup.lastWindow)

	_, err = ShouldDeliver(clock(12, 0), NotifyOncePerHour, "msg", QuietHours{}, windows, dedup)
	require.NoError(t, err)
	assert.Equal(t, 120, dedup.lastWindow)
}

func TestShouldDeliverUnknownBehavior(t *testing.T) {
	_, err := ShouldDeliver(clock(12, 0), Behavior("shout_loudly"), "msg", QuietHours{}, DefaultWindows(), &dedupRecorder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBehavior)
}

func TestShouldDeliverLookupError(t *testing.T) {
	dedup := &dedupRecorder{err: errors.New("database is closed")}

	_, err := ShouldDeliver(clock(12, 0), NotifyWithDedup, "msg", QuietHours{}, DefaultWindows(), dedup)
	require.Error(t, err)
	assert.ErrorContains(t, err, "duplicate lookup")
}
