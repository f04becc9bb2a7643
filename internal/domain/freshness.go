package domain

import (
	"sort"
	"strings"
	"time"
)

// ActiveWindow is how long a link counts as active after creation.
const ActiveWindow = 24 * time.Hour

// IsActive reports whether l is younger than ActiveWindow at now.
// The comparison is strict: a link exactly ActiveWindow old is inactive.
// Links with an unparseable timestamp are active.
func IsActive(l Link, now time.Time) bool {
	ts, err := ParseTimestamp(l.Timestamp)
	if err != nil {
		return true
	}
	return now.Sub(ts) < ActiveWindow
}

// Active returns the active subset of links, newest first.
// Records with a corrupt timestamp are kept and sorted after the valid ones.
func Active(links []Link, now time.Time) []Link {
	active := make([]Link, 0, len(links))
	for _, l := range links {
		if IsActive(l, now) {
			active = append(active, l)
		}
	}
	SortByRecency(active)
	return active
}

// CountActive returns the badge count.
func CountActive(links []Link, now time.Time) int {
	n := 0
	for _, l := range links {
		if IsActive(l, now) {
			n++
		}
	}
	return n
}

// SortByRecency sorts links by timestamp, newest first, in place.
func SortByRecency(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		ti, errI := ParseTimestamp(links[i].Timestamp)
		tj, errJ := ParseTimestamp(links[j].Timestamp)
		switch {
		case errI != nil && errJ != nil:
			return false
		case errI != nil:
			return false
		case errJ != nil:
			return true
		}
		return ti.After(tj)
	})
}

// Filter keeps links whose url, description or sport contains query,
// case-insensitively. An empty query keeps everything.
func Filter(links []Link, query string) []Link {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return links
	}
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if strings.Contains(strings.ToLower(l.URL), query) ||
			strings.Contains(strings.ToLower(l.Description), query) ||
			strings.Contains(strings.ToLower(string(l.Sport)), query) {
			out = append(out, l)
		}
	}
	return out
}
