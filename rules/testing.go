//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// BenchmarkLoop flags the pre-1.24 benchmark loop styles. b.Loop keeps
// setup out of the measurement and stops the compiler from optimizing
// the body away.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(
		`for $i := 0; $i < $b.N; $i++ { $*_ }`,
		`for $i := range $b.N { $*_ }`,
	).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... } (Go 1.24+); declare $i separately if the body needs it")

	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... } (Go 1.24+)").
		Suggest("for $b.Loop() { $body }")
}

// TestContext flags context.Background/TODO in test files. t.Context
// (Go 1.24+) is canceled when the test finishes, which actually tears
// down consumers and dispatchers started by the test.
func TestContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests, it is canceled automatically when the test completes (Go 1.24+)")

	m.Match(
		`$fn(context.Background(), $*args)`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests instead of context.Background()/TODO() (Go 1.24+)")
}
