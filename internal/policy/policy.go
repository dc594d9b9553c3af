// Package policy decides whether a classified notification is delivered.
// The evaluator is a pure function over the configured behavior, the quiet
// hours window, and a duplicate lookup supplied by the caller.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/hush-home/hushd/internal/classify"
	"github.com/hush-home/hushd/internal/errors"
)

// Behavior is the configured delivery policy for a category.
type Behavior string

const (
	// AlwaysNotify delivers unconditionally, bypassing quiet hours and
	// duplicate collapsing.
	AlwaysNotify Behavior = "always_notify"
	// NotifyRespectQuiet delivers unless the quiet hours window is active.
	NotifyRespectQuiet Behavior = "notify_respect_quiet"
	// NotifyOncePerHour collapses repeats of the same message within an hour.
	NotifyOncePerHour Behavior = "notify_once_per_hour"
	// LogOnly records the notification without ever delivering it.
	LogOnly Behavior = "log_only"
	// NotifyWithDedup respects quiet hours and collapses repeats within a
	// short window.
	NotifyWithDedup Behavior = "notify_with_dedup"
)

// ErrInvalidBehavior is returned when a string does not name a known
// delivery behavior.
var ErrInvalidBehavior = errors.NewStd("invalid behavior")

// ParseBehavior converts a string into a Behavior. Matching is
// case-insensitive and ignores surrounding whitespace; unknown values are
// rejected rather than mapped to a default.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(strings.ToLower(strings.TrimSpace(s))) {
	case AlwaysNotify:
		return AlwaysNotify, nil
	case NotifyRespectQuiet:
		return NotifyRespectQuiet, nil
	case NotifyOncePerHour:
		return NotifyOncePerHour, nil
	case LogOnly:
		return LogOnly, nil
	case NotifyWithDedup:
		return NotifyWithDedup, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBehavior, s)
	}
}

// String returns the wire form of the behavior.
func (b Behavior) String() string {
	return string(b)
}

// defaultBehaviors maps each category to the behavior used when the
// configuration does not override it.
var defaultBehaviors = map[classify.Category]Behavior{
	classify.CategorySafety:   AlwaysNotify,
	classify.CategorySecurity: NotifyRespectQuiet,
	classify.CategoryDevice:   NotifyOncePerHour,
	classify.CategoryMotion:   LogOnly,
	classify.CategoryInfo:     NotifyWithDedup,
}

// DefaultBehaviors returns a copy of the built-in category to behavior
// mapping.
func DefaultBehaviors() map[classify.Category]Behavior {
	out := make(map[classify.Category]Behavior, len(defaultBehaviors))
	for category, behavior := range defaultBehaviors {
		out[category] = behavior
	}
	return out
}

// BehaviorFor resolves the behavior for a category from a configured
// mapping, falling back to the category default when the mapping has no
// entry. A configured value that does not name a known behavior is an
// error, not a silent fallback.
func BehaviorFor(category classify.Category, configured map[string]string) (Behavior, error) {
	if raw, ok := configured[category.String()]; ok {
		return ParseBehavior(raw)
	}
	behavior, ok := defaultBehaviors[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", classify.ErrInvalidCategory, category)
	}
	return behavior, nil
}

// ParseClock parses a "HH:MM" clock time into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// QuietHours is a daily suppression window expressed in minutes after
// midnight. Start is inclusive and End is exclusive; a window whose end
// precedes its start spans midnight.
type QuietHours struct {
	Enabled bool
	Start   int
	End     int
}

// NewQuietHours builds a quiet window from "HH:MM" start and end strings.
func NewQuietHours(enabled bool, start, end string) (QuietHours, error) {
	startMinutes, err := ParseClock(start)
	if err != nil {
		return QuietHours{}, fmt.Errorf("quiet hours start: %w", err)
	}
	endMinutes, err := ParseClock(end)
	if err != nil {
		return QuietHours{}, fmt.Errorf("quiet hours end: %w", err)
	}
	return QuietHours{Enabled: enabled, Start: startMinutes, End: endMinutes}, nil
}

// Active reports whether the local clock time of now falls inside an
// enabled quiet window. A window with equal start and end matches nothing.
func (q QuietHours) Active(now time.Time) bool {
	if !q.Enabled || q.Start == q.End {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	if q.Start > q.End {
		// Overnight window such as 22:00 to 07:00.
		return minutes >= q.Start || minutes < q.End
	}
	return minutes >= q.Start && minutes < q.End
}

// DedupLookup reports whether an identical message was recorded within the
// trailing window. A hit is expected to increment the matched record's
// collapse counter as a side effect.
type DedupLookup interface {
	IsDuplicate(message string, windowMinutes int) (bool, error)
}

// Windows holds the duplicate collapsing window lengths in minutes.
type Windows struct {
	Dedup  int
	Hourly int
}

// DefaultWindows returns the standard five minute dedup window and sixty
// minute once-per-hour window.
func DefaultWindows() Windows {
	return Windows{Dedup: 5, Hourly: 60}
}

// Reasons attached to delivery decisions.
const (
	ReasonDelivered  = "delivered"
	ReasonLogOnly    = "log_only"
	ReasonQuietHours = "quiet_hours"
	ReasonDuplicate  = "duplicate"
)

// Decision is the outcome of evaluating the delivery policy for one
// notification.
type Decision struct {
	Deliver bool
	Reason  string
}

// ShouldDeliver evaluates the delivery ladder for one notification. Fixed
// behaviors short-circuit first, then the quiet window is checked for the
// behaviors that honor it, then the duplicate lookup runs for the behaviors
// that collapse repeats. The lookup is never consulted for behaviors that
// do not need it.
func ShouldDeliver(now time.Time, behavior Behavior, message string, quiet QuietHours, windows Windows, dedup DedupLookup) (Decision, error) {
	switch behavior {
	case AlwaysNotify:
		return Decision{Deliver: true, Reason: ReasonDelivered}, nil
	case LogOnly:
		return Decision{Deliver: false, Reason: ReasonLogOnly}, nil
	case NotifyRespectQuiet, NotifyWithDedup, NotifyOncePerHour:
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidBehavior, behavior)
	}

	if behavior == NotifyRespectQuiet || behavior == NotifyWithDedup {
		if quiet.Active(now) {
			return Decision{Deliver: false, Reason: ReasonQuietHours}, nil
		}
	}

	if behavior == NotifyWithDedup || behavior == NotifyOncePerHour {
		window := windows.Dedup
		if behavior == NotifyOncePerHour {
			window = windows.Hourly
		}
		duplicate, err := dedup.IsDuplicate(message, window)
		if err != nil {
			return Decision{}, fmt.Errorf("duplicate lookup: %w", err)
		}
		if duplicate {
			return Decision{Deliver: false, Reason: ReasonDuplicate}, nil
		}
	}

	return Decision{Deliver: true, Reason: ReasonDelivered}, nil
}
