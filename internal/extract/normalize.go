package extract

import (
	"net/url"
	"strings"
)

const defaultScheme = "https://"

// Normalize trims raw, prepends https:// when no http(s) scheme is present and
// checks that the result parses as an absolute URL with a host.
// It returns false for anything it cannot make sense of.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = defaultScheme + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() || u.Host == "" || u.Hostname() == "" {
		return "", false
	}
	return s, true
}
