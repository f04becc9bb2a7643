// Package extract finds and normalizes URLs in message text and page markup.
package extract

import (
	"iter"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// urlPattern is the URL grammar: http or https scheme followed by non-whitespace.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// URLs returns the URL-looking substrings of text in order of appearance.
// Duplicates are kept. The sequence is lazy: matching stops when the consumer stops.
func URLs(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for {
			loc := urlPattern.FindStringIndex(rest)
			if loc == nil {
				return
			}
			if !yield(rest[loc[0]:loc[1]]) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// CollectURLs drains URLs(text) into a slice.
func CollectURLs(text string) []string {
	var out []string
	for u := range URLs(text) {
		out = append(out, u)
	}
	return out
}

// Anchors reads link targets from the anchor elements under sel.
// An href is used only when it is an absolute http(s) URL; anchors without
// one (relative paths, mailto:, tg:// and the like) fall back to their
// visible text, which is scanned with the same grammar as URLs.
func Anchors(sel *goquery.Selection) []string {
	var out []string
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := webHref(a); ok {
			out = append(out, href)
			return
		}
		for u := range URLs(a.Text()) {
			out = append(out, u)
		}
	})
	return out
}

func webHref(a *goquery.Selection) (string, bool) {
	href, ok := a.Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", false
	}
	// url.Parse lowercases the scheme; Normalize expects it that way
	return u.Scheme + href[len(u.Scheme):], true
}
