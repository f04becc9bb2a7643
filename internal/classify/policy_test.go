package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBlocklistPolicy(t *testing.T) {
	policy, err := New(PolicyBlocklist, DefaultRules())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://t.me/foo", want: false},
		{url: "https://web.telegram.org/k/#@channel", want: false},
		{url: "https://X.COM/status/1", want: false},
		{url: "https://m.youtube.com/watch?v=1", want: false},
		{url: "https://example.com/stream", want: true},
		{url: "http://sportsite.tv/live/1080", want: true},
		{url: "ftp://example.com/file", want: false},
		{url: "https://", want: false},
		{url: "::not a url", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := policy.Eligible(tt.url); got != tt.want {
				t.Errorf("Eligible(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestKeywordPolicy(t *testing.T) {
	policy, err := New(PolicyKeyword, DefaultRules())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "hls playlist", url: "https://cdn.example/match/index.m3u8", want: true},
		{name: "uppercase extension", url: "https://cdn.example/match/FEED.MPD", want: true},
		{name: "keyword and indicator", url: "https://sportsite.tv/live/1080", want: true},
		{name: "keyword only", url: "https://example.com/stream", want: false},
		{name: "indicator only", url: "https://example.com/1080", want: false},
		{name: "blocked even with extension", url: "https://t.me/file.mp4", want: false},
		{name: "plain page", url: "https://news.example/article", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Eligible(tt.url); got != tt.want {
				t.Errorf("Eligible(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewUnknownPolicy(t *testing.T) {
	if _, err := New("magic", DefaultRules()); err == nil {
		t.Error("New() with unknown policy should fail")
	}
	p, err := New("", DefaultRules())
	if err != nil || p.Name() != PolicyBlocklist {
		t.Errorf("New(\"\") = %v, %v, want blocklist", p, err)
	}
}

func TestLoadRules(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rules.yaml")

	content := `blocked_domains:
  - Example.com
  - "  "
stream_keywords: [match]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if len(rules.BlockedDomains) != 1 || rules.BlockedDomains[0] != "example.com" {
		t.Errorf("BlockedDomains = %v, want [example.com]", rules.BlockedDomains)
	}
	if len(rules.StreamKeywords) != 1 || rules.StreamKeywords[0] != "match" {
		t.Errorf("StreamKeywords = %v, want [match]", rules.StreamKeywords)
	}
	if len(rules.StreamExts) != len(DefaultRules().StreamExts) {
		t.Errorf("StreamExts should keep defaults, got %v", rules.StreamExts)
	}

	policy, err := New(PolicyBlocklist, rules)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if policy.Eligible("https://cdn.example.com/live") {
		t.Error("overridden blocklist should reject example.com")
	}
	if !policy.Eligible("https://t.me/foo") {
		t.Error("overridden blocklist should no longer reject t.me")
	}
}

func TestLoadRulesErrors(t *testing.T) {
	if _, err := LoadRules("/nonexistent/rules.yaml"); err == nil {
		t.Error("LoadRules() with missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("blocked_domains: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Error("LoadRules() with invalid yaml should fail")
	}

	rules, err := LoadRules("")
	if err != nil || len(rules.BlockedDomains) != 7 {
		t.Errorf("LoadRules(\"\") = %v, %v, want defaults", rules, err)
	}
}
