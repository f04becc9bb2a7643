package domain

import (
	"strings"
	"testing"
	"time"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timestamp string
		want      bool
	}{
		{
			name:      "one hour old",
			timestamp: FormatTimestamp(now.Add(-1 * time.Hour)),
			want:      true,
		},
		{
			name:      "twenty five hours old",
			timestamp: FormatTimestamp(now.Add(-25 * time.Hour)),
			want:      false,
		},
		{
			name:      "exactly at the window boundary",
			timestamp: FormatTimestamp(now.Add(-ActiveWindow)),
			want:      false,
		},
		{
			name:      "just inside the window",
			timestamp: FormatTimestamp(now.Add(-ActiveWindow + time.Second)),
			want:      true,
		},
		{
			name:      "corrupt timestamp fails open",
			timestamp: "yesterday-ish",
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsActive(Link{URL: "https://a.com", Timestamp: tt.timestamp}, now)
			if got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActiveSortsNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	links := []Link{
		{URL: "https://old.com", Timestamp: FormatTimestamp(now.Add(-30 * time.Hour))},
		{URL: "https://broken.com", Timestamp: "not-a-time"},
		{URL: "https://two.com", Timestamp: FormatTimestamp(now.Add(-2 * time.Hour))},
		{URL: "https://one.com", Timestamp: FormatTimestamp(now.Add(-1 * time.Hour))},
	}

	active := Active(links, now)

	want := []string{"https://one.com", "https://two.com", "https://broken.com"}
	if len(active) != len(want) {
		t.Fatalf("Active() returned %d links, want %d", len(active), len(want))
	}
	for i, url := range want {
		if active[i].URL != url {
			t.Errorf("Active()[%d] = %s, want %s", i, active[i].URL, url)
		}
	}

	if got := CountActive(links, now); got != 3 {
		t.Errorf("CountActive() = %d, want 3", got)
	}
}

func TestFilter(t *testing.T) {
	links := []Link{
		{URL: "https://cricket.tv/live", Sport: SportCricket, Description: "India vs Australia"},
		{URL: "https://foot.example/stream", Sport: SportFootball, Description: "Derby"},
		{URL: "https://misc.example/x", Sport: SportOther, Description: "Tennis final replay"},
	}

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 3},
		{query: "CRICKET", want: 1},
		{query: "derby", want: 1},
		{query: "tennis", want: 1},
		{query: "example", want: 2},
		{query: "nothing", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := Filter(links, tt.query); len(got) != tt.want {
				t.Errorf("Filter(%q) returned %d links, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestNewAutoLinkDefaults(t *testing.T) {
	now := time.Now()

	link := NewAutoLink("https://sportsite.tv/live/1080", "", now)
	if link.Sport != SportOther {
		t.Errorf("Sport = %s, want %s", link.Sport, SportOther)
	}
	if link.Source != SourceAuto {
		t.Errorf("Source = %s, want %s", link.Source, SourceAuto)
	}
	if link.Description != DefaultAutoDescription {
		t.Errorf("Description = %q, want placeholder", link.Description)
	}

	long := strings.Repeat("é", 150)
	link = NewAutoLink("https://a.com", long, now)
	if n := len([]rune(link.Description)); n != MaxDescriptionLen {
		t.Errorf("description length = %d, want %d", n, MaxDescriptionLen)
	}
}

func TestNewManualLink(t *testing.T) {
	now := time.Now()

	link, err := NewManualLink("https://a.com", "", "  ", now)
	if err != nil {
		t.Fatalf("NewManualLink() error = %v", err)
	}
	if link.Sport != SportOther || link.Description != DefaultManualDescription || link.Source != SourceManual {
		t.Errorf("unexpected defaults: %+v", link)
	}

	if _, err := NewManualLink("https://a.com", Sport("Hockey"), "", now); err == nil {
		t.Error("NewManualLink() with unknown sport should fail")
	}
	if _, err := NewManualLink("", SportTennis, "", now); err == nil {
		t.Error("NewManualLink() with empty url should fail")
	}
}

func TestParseSport(t *testing.T) {
	if s, err := ParseSport("football"); err != nil || s != SportFootball {
		t.Errorf("ParseSport(football) = %v, %v", s, err)
	}
	if s, err := ParseSport(""); err != nil || s != SportOther {
		t.Errorf("ParseSport(\"\") = %v, %v", s, err)
	}
	if _, err := ParseSport("curling"); err == nil {
		t.Error("ParseSport(curling) should fail")
	}
}
