package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the word lists the policies match against.
type Rules struct {
	BlockedDomains  []string `yaml:"blocked_domains"`
	StreamExts      []string `yaml:"stream_extensions"`
	StreamKeywords  []string `yaml:"stream_keywords"`
	VideoIndicators []string `yaml:"video_indicators"`
}

// DefaultRules returns the built-in lists.
func DefaultRules() Rules {
	return Rules{
		BlockedDomains: []string{
			"t.me",
			"telegram.org",
			"x.com",
			"twitter.com",
			"instagram.com",
			"facebook.com",
			"youtube.com",
		},
		StreamExts:      []string{".m3u8", ".mpd", ".mp4", ".mkv", ".ts"},
		StreamKeywords:  []string{"stream", "live", "watch", "embed", "play", "video", "hls", "dash"},
		VideoIndicators: []string{"1080", "720", "480", "hd", "4k", "fhd"},
	}
}

// LoadRules reads a YAML rules file. Lists missing from the file keep their
// default value; an empty path returns the defaults.
//
// Example:
//
//	blocked_domains: [t.me, telegram.org]
//	stream_keywords: [stream, live]
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules yaml: %w", err)
	}

	if override.BlockedDomains != nil {
		rules.BlockedDomains = override.BlockedDomains
	}
	if override.StreamExts != nil {
		rules.StreamExts = override.StreamExts
	}
	if override.StreamKeywords != nil {
		rules.StreamKeywords = override.StreamKeywords
	}
	if override.VideoIndicators != nil {
		rules.VideoIndicators = override.VideoIndicators
	}

	return rules.lowered(), nil
}

func (r Rules) lowered() Rules {
	return Rules{
		BlockedDomains:  lowerAll(r.BlockedDomains),
		StreamExts:      lowerAll(r.StreamExts),
		StreamKeywords:  lowerAll(r.StreamKeywords),
		VideoIndicators: lowerAll(r.VideoIndicators),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
