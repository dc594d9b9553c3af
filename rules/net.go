//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// JoinHostPort flags fmt.Sprintf host:port assembly. net.JoinHostPort
// brackets IPv6 addresses, Sprintf does not, and broker addresses from
// user config can be either. Only integer ports are flagged; "%s:%s" is
// too common for cache keys and identifiers.
func JoinHostPort(m dsl.Matcher) {
	m.Match(
		`fmt.Sprintf("%s:%d", $host, $port)`,
		`fmt.Sprintf("%v:%d", $host, $port)`,
	).
		Report("use net.JoinHostPort($host, strconv.Itoa($port)) for host:port, it handles IPv6 correctly")
}

// UseBeforeErrorCheck flags a result being used between the call that
// produced it and its error check. The value may be nil when err is
// non-nil.
func UseBeforeErrorCheck(m dsl.Matcher) {
	m.Match(
		`$c, $err := net.Dial($*_); $_ := $c.$method($*_); if $err != nil { $*_ }`,
		`$f, $err := os.Open($*_); $_ := $f.$method($*_); if $err != nil { $*_ }`,
		`$f, $err := os.OpenFile($*_); $_ := $f.$method($*_); if $err != nil { $*_ }`,
	).
		Report("potential nil dereference: check $err before using the result")
}
