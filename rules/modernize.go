//go:build ruleguard

// Package gorules holds custom ruleguard rules run through golangci-lint.
// They flag patterns with a modern replacement in the Go version this
// project targets.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MinMaxBuiltin flags math.Min/Max with float conversions where the
// built-in min/max (Go 1.21+) works directly on integers.
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
		`int64(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b) instead of math.Min with float conversions (Go 1.21+)").
		Suggest("min($a, $b)")

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
		`int64(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b) instead of math.Max with float conversions (Go 1.21+)").
		Suggest("max($a, $b)")
}

// SortSlices flags the old sort package helpers that the generic slices
// package replaced.
func SortSlices(m dsl.Matcher) {
	m.Match(
		`sort.Ints($s)`,
		`sort.Strings($s)`,
		`sort.Float64s($s)`,
	).
		Report("use slices.Sort($s) (Go 1.21+)").
		Suggest("slices.Sort($s)")

	m.Match(
		`sort.IntsAreSorted($s)`,
		`sort.StringsAreSorted($s)`,
	).
		Report("use slices.IsSorted($s) (Go 1.21+)").
		Suggest("slices.IsSorted($s)")
}

// CollectMapKeys flags manual key/value collection loops that
// slices.Collect over maps.Keys/maps.Values (Go 1.23+) replaces.
func CollectMapKeys(m dsl.Matcher) {
	m.Match(
		`for $k := range $m { $keys = append($keys, $k) }`,
		`for $k, _ := range $m { $keys = append($keys, $k) }`,
	).
		Report("use slices.Collect(maps.Keys($m)) to collect map keys (Go 1.23+)")

	m.Match(
		`for _, $v := range $m { $values = append($values, $v) }`,
	).
		Report("use slices.Collect(maps.Values($m)) to collect map values (Go 1.23+)")
}

// TimeLayoutConstants flags magic layout strings that have named
// constants since Go 1.20. Timestamps move through the event pipeline
// and the history store as formatted strings, so layouts show up a lot.
func TimeLayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report("use $t.Format(time.DateTime) instead of a magic layout string (Go 1.20+)").
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(`time.Parse("2006-01-02 15:04:05", $s)`).
		Report("use time.Parse(time.DateTime, $s) instead of a magic layout string (Go 1.20+)").
		Suggest(`time.Parse(time.DateTime, $s)`)

	m.Match(`$t.Format("2006-01-02")`).
		Report("use $t.Format(time.DateOnly) instead of a magic layout string (Go 1.20+)").
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report("use time.Parse(time.DateOnly, $s) instead of a magic layout string (Go 1.20+)").
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(`$t.Format("15:04:05")`).
		Report("use $t.Format(time.TimeOnly) instead of a magic layout string (Go 1.20+)").
		Suggest(`$t.Format(time.TimeOnly)`)

	m.Match(`time.Parse("15:04:05", $s)`).
		Report("use time.Parse(time.TimeOnly, $s) instead of a magic layout string (Go 1.20+)").
		Suggest(`time.Parse(time.TimeOnly, $s)`)
}
