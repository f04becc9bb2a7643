// Package ingest turns discovered URLs into stored links.
package ingest

import (
	"github.com/MrSnakeDoc/streamlinks/internal/classify"
	"github.com/MrSnakeDoc/streamlinks/internal/extract"
)

// Candidate is a normalized, eligible URL waiting to be stored.
type Candidate struct {
	URL string
	// Context is the message text the URL was found in, if known.
	Context string
}

// Candidates normalizes and classifies raw URL strings. Rejected and
// ineligible inputs are dropped, and each URL appears at most once, in the
// order it was first seen.
func Candidates(raws []string, context string, policy classify.Policy) []Candidate {
	out := make([]Candidate, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		url, ok := extract.Normalize(raw)
		if !ok {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		if !policy.Eligible(url) {
			continue
		}
		out = append(out, Candidate{URL: url, Context: context})
	}
	return out
}

// TextCandidates extracts URLs from free text and runs them through Candidates.
func TextCandidates(text, context string, policy classify.Policy) []Candidate {
	return Candidates(extract.CollectURLs(text), context, policy)
}

// Merge concatenates candidate batches, keeping the first occurrence of each URL.
func Merge(batches ...[]Candidate) []Candidate {
	var out []Candidate
	seen := make(map[string]struct{})
	for _, batch := range batches {
		for _, c := range batch {
			if _, dup := seen[c.URL]; dup {
				continue
			}
			seen[c.URL] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
