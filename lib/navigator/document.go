package navigator

import (
	"bytes"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/pthm/hxnav/lib/payload"
)

// Window is the long-lived client state that survives in-place navigation
// and is discarded by a document load. Markers are arbitrary key/value pairs
// the application (or a test) stores on it.
type Window struct {
	mu      sync.Mutex
	markers map[string]string
}

func newWindow() *Window {
	return &Window{markers: make(map[string]string)}
}

// SetMarker stores a marker on the window.
func (w *Window) SetMarker(key, value string) {
	w.mu.Lock()
	w.markers[key] = value
	w.mu.Unlock()
}

// Marker returns a marker stored on the window.
func (w *Window) Marker(key string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.markers[key]
	return v, ok
}

// Document is the page currently displayed.
type Document struct {
	// URL is the page location, never a payload endpoint.
	URL *url.URL

	// Status is the HTTP status of the response the document came from.
	Status int

	// Head holds the head tags of the page.
	Head []payload.HeadTag

	// Data is the raw page data of the last applied payload. It is nil for
	// documents produced by a document load.
	Data []byte

	dom *goquery.Document
}

// Path returns the document path.
func (d *Document) Path() string {
	return d.URL.Path
}

// Title returns the content of the title head tag.
func (d *Document) Title() string {
	for _, t := range d.Head {
		if t.Name == "title" {
			return t.Content
		}
	}
	return ""
}

// Find runs a CSS selector against the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// HTML returns the serialized document.
func (d *Document) HTML() string {
	h, err := d.dom.Html()
	if err != nil {
		return ""
	}
	return h
}

// Text returns the visible body text with runs of whitespace collapsed.
func (d *Document) Text() string {
	body := d.dom.Find("body").Clone()
	body.Find("script, style, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// parseDocument parses a full HTML document, taking its head tags from the
// parsed head element.
func parseDocument(u *url.URL, status int, b []byte) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return &Document{URL: u, Status: status, Head: headTags(dom.Find("head")), dom: dom}, nil
}

// renderedDocument builds the document for an applied payload from the
// HTML the application view produced.
func renderedDocument(u *url.URL, status int, p *payload.Payload, body []byte) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{URL: u, Status: status, Head: p.Head, Data: p.Data, dom: dom}, nil
}

func headTags(head *goquery.Selection) []payload.HeadTag {
	var tags []payload.HeadTag
	head.Children().Each(func(_ int, s *goquery.Selection) {
		tag := payload.HeadTag{Name: goquery.NodeName(s)}
		for _, a := range s.Nodes[0].Attr {
			tag.Attrs = append(tag.Attrs, payload.Attr{Name: a.Key, Value: a.Val})
		}
		if tag.Name == "title" {
			tag.Content = s.Text()
		}
		tags = append(tags, tag)
	})
	return tags
}
