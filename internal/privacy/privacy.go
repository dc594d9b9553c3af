// Package privacy anonymizes the sensitive data that flows through hushd
// before it can reach logs or telemetry: entity IDs name rooms and devices
// in someone's home, broker URLs embed credentials, and push service URLs
// carry API tokens. It also owns the anonymous system ID used to group
// telemetry without identifying an install.
package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Any scheme qualifies: push targets use provider schemes such as
	// telegram:// or ntfy://, brokers use tcp:// and mqtts://.
	urlPattern = regexp.MustCompile(`\b[a-z][a-z0-9+.-]*://\S+`)

	// Entity IDs follow domain.object_id with a fixed domain vocabulary,
	// so matching on known domains avoids scrubbing file names and hosts.
	entityPattern = regexp.MustCompile(`\b(` + strings.Join(entityDomains, "|") + `)\.[a-z0-9][a-z0-9_]*\b`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// entityDomains lists the entity domains whose object IDs get anonymized.
// The domain itself survives scrubbing, it is generic vocabulary and the
// classifier keys on it, but "bedroom_window" does not.
var entityDomains = []string{
	"alarm_control_panel", "binary_sensor", "button", "camera", "climate",
	"cover", "device_tracker", "fan", "humidifier", "input_boolean",
	"light", "lock", "media_player", "number", "person", "remote",
	"scene", "script", "select", "sensor", "siren", "switch", "update",
	"vacuum", "valve", "water_heater", "weather", "zone",
}

// ScrubMessage anonymizes free-form text before it leaves the process.
// URLs collapse to stable hashes and entity object IDs are replaced while
// their domain is kept, so scrubbed messages still group and categorize.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	return entityPattern.ReplaceAllStringFunc(message, AnonymizeEntityID)
}

// AnonymizeEntityID keeps the entity domain and replaces the object ID
// with a short consistent hash: "sensor.bedroom_window" becomes
// "sensor.id-68b1a2c3". The same entity always maps to the same token.
func AnonymizeEntityID(entityID string) string {
	domain, objectID, found := strings.Cut(entityID, ".")
	if !found {
		return entityID
	}
	hash := sha256.Sum256([]byte(objectID))
	return fmt.Sprintf("%s.id-%x", domain, hash[:4])
}

// AnonymizeURL reduces a URL to a stable hash that preserves its shape
// for debugging. Scheme, host category, port and path structure feed the
// hash, credentials and concrete names do not survive.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string

	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}

	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	normalized := strings.Join(normalizedParts, ":")
	hash := sha256.Sum256([]byte(normalized))

	return fmt.Sprintf("url-%x", hash[:12])
}

// SanitizeBrokerURL strips credentials and path from a broker address,
// leaving scheme, host and port for log and UI display. Unlike
// AnonymizeURL the host stays readable, broker addresses are the user's
// own LAN and useful for troubleshooting, credentials are not.
func SanitizeBrokerURL(source string) string {
	rest := source
	prefix := ""
	if idx := strings.Index(source, "://"); idx >= 0 {
		prefix = source[:idx+3]
		rest = source[idx+3:]
	}

	// Authority ends at the first slash. Credentials end at the last @
	// before it, so passwords containing @ are handled.
	authority := rest
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		authority = rest[:idx]
	}
	if idx := strings.LastIndexByte(authority, '@'); idx >= 0 {
		authority = authority[idx+1:]
	}

	return prefix + authority
}

// GenerateSystemID creates an anonymous install identifier, twelve hex
// characters formatted XXXX-XXXX-XXXX. It carries no host information.
func GenerateSystemID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	id := hex.EncodeToString(bytes)
	formatted := fmt.Sprintf("%s-%s-%s", id[0:4], id[4:8], id[8:12])

	return strings.ToUpper(formatted), nil
}

// IsValidSystemID checks the XXXX-XXXX-XXXX hex format.
func IsValidSystemID(id string) bool {
	if len(id) != 14 {
		return false
	}
	if id[4] != '-' || id[9] != '-' {
		return false
	}
	for i, char := range id {
		if i == 4 || i == 9 {
			continue
		}
		if !isHexChar(char) {
			return false
		}
	}
	return true
}

// categorizeHost buckets a hostname without preserving it. Knowing the
// target was a private IP versus a public domain is enough for debugging.
func categorizeHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return "localhost"
	}

	if isPrivateIP(host) {
		return "private-ip"
	}

	if isIPAddress(host) {
		return "public-ip"
	}

	// Domain names keep only the TLD.
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}

	return "unknown-host"
}

// anonymizePath keeps the shape of a URL path while hashing the segments
// that could carry tokens or names.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	segments := strings.Split(path, "/")
	var anonymizedSegments []string

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		switch {
		case isCommonEndpointName(segment):
			anonymizedSegments = append(anonymizedSegments, "endpoint")
		case isNumeric(segment):
			anonymizedSegments = append(anonymizedSegments, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			anonymizedSegments = append(anonymizedSegments, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}

	return strings.Join(anonymizedSegments, "/")
}

// isPrivateIP matches RFC1918 IPv4 ranges plus the local IPv6 prefixes.
func isPrivateIP(host string) bool {
	privateRanges := []string{
		"10.", "172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.", "172.22.", "172.23.",
		"172.24.", "172.25.", "172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"192.168.", "169.254.",
		"fc00:", "fd00:",
		"fe80:",
		"::1",
		"ff00:", "ff01:", "ff02:",
	}

	for _, prefix := range privateRanges {
		if strings.HasPrefix(strings.ToLower(host), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	if ipv4Pattern.MatchString(host) {
		return true
	}
	// IPv6 contains colons.
	return strings.Contains(host, ":")
}

// isCommonEndpointName reports whether a path segment is generic API
// vocabulary that is safe to keep as a category.
func isCommonEndpointName(segment string) bool {
	commonNames := []string{"api", "webhook", "hook", "notify", "push", "send", "message", "event"}
	segment = strings.ToLower(segment)

	for _, name := range commonNames {
		if strings.Contains(segment, name) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isHexChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}
