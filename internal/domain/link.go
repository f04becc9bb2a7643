package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Sport is the category a link is filed under.
type Sport string

const (
	SportCricket  Sport = "Cricket"
	SportFootball Sport = "Football"
	SportTennis   Sport = "Tennis"
	SportOther    Sport = "Other"
)

// Sports lists every known category in display order.
var Sports = []Sport{SportCricket, SportFootball, SportTennis, SportOther}

// Source tags where a link came from.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

const (
	// MaxDescriptionLen is the maximum description length, in characters.
	MaxDescriptionLen = 100

	// DefaultAutoDescription is used when an auto-discovered link has no message context.
	DefaultAutoDescription = "Extracted from Telegram"
	// DefaultManualDescription is used when a manual add carries no description.
	DefaultManualDescription = "Added manually"
)

var (
	ErrLinkExists    = errors.New("link already exists")
	ErrInvalidURL    = errors.New("invalid url")
	ErrUnknownSport  = errors.New("unknown sport")
	ErrUnknownSource = errors.New("unknown source")
)

// Link is the persisted unit: one discovered or manually entered stream URL.
//
// URL is the unique key of the collection. Timestamp and Source are set once
// at creation and never changed afterwards.
type Link struct {
	// URL is the normalized absolute URL.
	URL string `json:"url"`

	// Sport defaults to Other for auto-discovered links.
	Sport Sport `json:"sport"`

	// Description is free text, at most MaxDescriptionLen characters.
	Description string `json:"description"`

	// Timestamp is the creation time as an RFC 3339 string. It is kept as a
	// string so that a corrupt record survives a load/save round trip.
	Timestamp string `json:"timestamp"`

	Source Source `json:"source"`
}

// NewAutoLink builds a link for a URL accepted by the ingestion pipeline.
func NewAutoLink(url, context string, now time.Time) Link {
	desc := TruncateDescription(strings.TrimSpace(context))
	if desc == "" {
		desc = DefaultAutoDescription
	}
	return Link{
		URL:         url,
		Sport:       SportOther,
		Description: desc,
		Timestamp:   FormatTimestamp(now),
		Source:      SourceAuto,
	}
}

// NewManualLink builds a link entered by the user. The url must already be normalized.
func NewManualLink(url string, sport Sport, description string, now time.Time) (Link, error) {
	if url == "" {
		return Link{}, ErrInvalidURL
	}
	if sport == "" {
		sport = SportOther
	}
	if !sport.Valid() {
		return Link{}, fmt.Errorf("%w: %s", ErrUnknownSport, sport)
	}
	desc := TruncateDescription(strings.TrimSpace(description))
	if desc == "" {
		desc = DefaultManualDescription
	}
	return Link{
		URL:         url,
		Sport:       sport,
		Description: desc,
		Timestamp:   FormatTimestamp(now),
		Source:      SourceManual,
	}, nil
}

// Valid reports whether s is one of the known categories.
func (s Sport) Valid() bool {
	for _, known := range Sports {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	return s == SourceAuto || s == SourceManual
}

// ParseSport resolves a category name case-insensitively.
func ParseSport(name string) (Sport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SportOther, nil
	}
	for _, known := range Sports {
		if strings.EqualFold(name, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSport, name)
}

// TruncateDescription cuts s to MaxDescriptionLen runes.
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDescriptionLen])
}

// FormatTimestamp renders t the way links store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a stored link timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ContainsURL reports whether links already hold url (exact match).
func ContainsURL(links []Link, url string) bool {
	for _, l := range links {
		if l.URL == url {
			return true
		}
	}
	return false
}
