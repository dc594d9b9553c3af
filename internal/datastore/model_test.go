package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Timestamps are stored as strings and compared with SQL string operators,
// so the formatted form must sort exactly like the instants it encodes.
func TestTimestampStringOrderMatchesTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 11, 59, 59, 0, time.UTC)
	instants := []time.Time{
		base,
		base.Add(1 * time.Nanosecond),
		base.Add(999 * time.Millisecond),
		base.Add(1 * time.Second),
		base.Add(1 * time.Minute),
		base.Add(24 * time.Hour),
	}

	for i := 1; i < len(instants); i++ {
		earlier := FormatTimestamp(instants[i-1])
		later := FormatTimestamp(instants[i])
		assert.Less(t, earlier, later,
			"formatted %v should sort before %v", instants[i-1], instants[i])
	}
}

func TestTimestampFixedWidth(t *testing.T) {
	t.Parallel()

	// Sub-second zeros must not be trimmed, a shorter string would break
	// lexicographic ordering against full-width values.
	whole := FormatTimestamp(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	fractional := FormatTimestamp(time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC))
	assert.Len(t, whole, len(fractional))
	assert.Equal(t, "2025-06-01T12:00:00.000000000Z", whole)
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	original := time.Date(2025, 6, 1, 23, 30, 15, 42, time.UTC)
	parsed, err := ParseTimestamp(FormatTimestamp(original))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(original))
}

func TestFormatTimestampConvertsToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2025, 6, 1, 14, 0, 0, 0, loc)
	assert.Equal(t, "2025-06-01T12:00:00.000000000Z", FormatTimestamp(local))
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseTimestamp("not-a-timestamp")
	assert.Error(t, err)
}
