// Package classify decides which URLs are stream candidates.
package classify

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	PolicyBlocklist = "blocklist"
	PolicyKeyword   = "keyword"
)

// Policy decides whether a normalized URL is eligible for storage.
type Policy interface {
	Name() string
	Eligible(rawURL string) bool
}

// New returns the policy registered under name. An empty name selects the blocklist policy.
func New(name string, rules Rules) (Policy, error) {
	rules = rules.lowered()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyBlocklist:
		return &Blocklist{domains: rules.BlockedDomains}, nil
	case PolicyKeyword:
		return &Keyword{
			blocklist:  Blocklist{domains: rules.BlockedDomains},
			exts:       rules.StreamExts,
			keywords:   rules.StreamKeywords,
			indicators: rules.VideoIndicators,
		}, nil
	default:
		return nil, fmt.Errorf("unknown classifier policy %q", name)
	}
}

// Blocklist accepts every http(s) URL whose hostname does not contain a blocked domain.
type Blocklist struct {
	domains []string
}

func (b *Blocklist) Name() string { return PolicyBlocklist }

func (b *Blocklist) Eligible(rawURL string) bool {
	u, ok := parse(rawURL)
	if !ok {
		return false
	}
	return !b.blocked(strings.ToLower(u.Hostname()))
}

// blocked uses substring matching, so "t.me" also blocks hosts like "art.media".
func (b *Blocklist) blocked(host string) bool {
	for _, d := range b.domains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// Keyword is the stricter heuristic: after the blocklist, a URL must end in a
// stream file extension, or carry both a stream keyword and a quality indicator.
type Keyword struct {
	blocklist  Blocklist
	exts       []string
	keywords   []string
	indicators []string
}

func (k *Keyword) Name() string { return PolicyKeyword }

func (k *Keyword) Eligible(rawURL string) bool {
	u, ok := parse(rawURL)
	if !ok {
		return false
	}
	if k.blocklist.blocked(strings.ToLower(u.Hostname())) {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range k.exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	full := strings.ToLower(rawURL)
	return containsAny(full, k.keywords) && containsAny(full, k.indicators)
}

func parse(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
