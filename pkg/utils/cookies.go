package utils

import (
	"net/url"
	"strings"
)

// ParseCookieHeader parses a semicolon-delimited Cookie header value into a
// name/value map. Nameless or valueless fragments are skipped and values are
// URL-decoded when possible. It deliberately avoids any HTTP library cookie
// type so callers can validate handshakes from a raw header string.
func ParseCookieHeader(header string) map[string]string {
	cookies := make(map[string]string)
	if header == "" {
		return cookies
	}

	for _, part := range strings.Split(header, ";") {
		name, value, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" || !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}

	return cookies
}
