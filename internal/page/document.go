package page

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/streamlinks/internal/extract"
)

// ErrSelectorMiss means the expected page structure is not there (yet).
var ErrSelectorMiss = errors.New("selector matched nothing")

const (
	// DefaultContainerSelector matches the message list of Telegram Web (K and A clients).
	DefaultContainerSelector = `.bubbles-inner, .messages-container, [class*="MessageList"]`
	// DefaultMessageSelector matches one message inside the container.
	DefaultMessageSelector = `[data-mid], .message, [class*="bubble"], [role="article"]`
)

// Message is one chat message found in the container.
type Message struct {
	// Key identifies the message across snapshots.
	Key string
	// Text is the visible text of the message.
	Text string
	// URLs holds the anchor targets and text URLs of the message, unnormalized.
	URLs []string
}

// Document is a parsed snapshot.
type Document struct {
	doc *goquery.Document
}

// Parse parses an HTML (or plain text) snapshot.
func Parse(snap *Snapshot) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(snap.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Text returns the visible text of the body, scripts and styles excluded.
// Text nodes are separated by whitespace so that a URL never runs into the
// text of the next element.
func (d *Document) Text() string {
	root := d.doc.Find("body")
	if root.Length() == 0 {
		root = d.doc.Selection
	}
	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

// Messages returns the messages under the first element matching container.
// It returns ErrSelectorMiss when no container exists.
func (d *Document) Messages(container, message string) ([]Message, error) {
	box := d.doc.Find(container).First()
	if box.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSelectorMiss, container)
	}

	var out []Message
	box.Find(message).Each(func(i int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(textOf(sel)), " ")

		urls := extract.Anchors(sel)
		urls = append(urls, extract.CollectURLs(text)...)

		out = append(out, Message{
			Key:  messageKey(sel),
			Text: text,
			URLs: urls,
		})
	})
	return out, nil
}

// messageKey prefers the message id Telegram puts on each bubble and falls
// back to a hash of the markup.
func messageKey(sel *goquery.Selection) string {
	if mid, ok := sel.Attr("data-mid"); ok && mid != "" {
		return "mid:" + mid
	}
	outer, err := goquery.OuterHtml(sel)
	if err != nil {
		outer = sel.Text()
	}
	return "h:" + strconv.FormatUint(xxhash.Sum64String(outer), 16)
}

func textOf(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
			return
		}
		if n.Data == "br" {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}
