//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done dance that sync.WaitGroup.Go
// (Go 1.25+) replaces. The daemon's worker shutdown relies on wg.Go, so
// keep new goroutines on the same pattern.
//
// Old:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// New:
//
//	wg.Go(work)
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of the Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")

	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func with defer $wg.Done() (Go 1.25+)")
}

// TimerChannelLen flags len/cap checks on timer and ticker channels.
// Since Go 1.23 these channels are unbuffered, so the checks always
// return 0; use a non-blocking select instead.
func TimerChannelLen(m dsl.Matcher) {
	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Timer")).
		Report("timer channels are unbuffered in Go 1.23+, len/cap is always 0; use a non-blocking select")

	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Ticker")).
		Report("ticker channels are unbuffered in Go 1.23+, len/cap is always 0; use a non-blocking select")
}

// DeferredTimeSince flags time.Since passed directly as a defer
// argument, where it is evaluated at defer time and always reports ~0.
// Delivery latency measurements are the usual place this sneaks in.
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn(time.Since($start), $*_)`,
		`defer $fn($_, time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap the call in func() { ... }")
}
