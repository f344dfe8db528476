// Package navigator is a headless client for the content payload protocol.
//
// A Navigator holds a Window and the Document displayed in it. Link clicks
// and form submissions fetch the target page's content payload and apply it
// in place: the application view renders the page from the payload data and
// the Window survives. Whenever the payload cannot be applied (wrong content
// type, undecodable bytes, a compatibility key mismatch) the navigator falls
// back to a genuine document load, which replaces the Window.
//
// The HTTP status of a payload response plays no part in that decision. A
// structurally valid payload served with 404 is applied like any other.
package navigator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/payload"
)

// MaxRedirects bounds the payload redirects followed for one navigation.
const MaxRedirects = 10

// ErrNoSuchElement is returned when a click target cannot be found in the
// current document.
var ErrNoSuchElement = errors.New("navigator: no such element")

// ErrNoDocument is returned when navigating before a document was opened.
var ErrNoDocument = errors.New("navigator: no document loaded")

// State is the navigation state.
type State int

const (
	Idle State = iota
	Requesting
	Validating
	Applying
	FallingBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Validating:
		return "validating"
	case Applying:
		return "applying"
	case FallingBack:
		return "falling-back"
	}
	return "unknown"
}

// Outcome reports how a navigation ended.
type Outcome int

const (
	// OutcomeApplied means the payload was applied in place.
	OutcomeApplied Outcome = iota + 1
	// OutcomeFellBack means the payload was rejected and the page was
	// loaded as a new document.
	OutcomeFellBack
	// OutcomeLoaded means a document load was requested directly, by Open
	// or by a cross-origin navigation.
	OutcomeLoaded
	// OutcomeSuperseded means a newer navigation started before this one
	// finished. The document was left untouched.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeFellBack:
		return "fell-back"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeSuperseded:
		return "superseded"
	}
	return "unknown"
}

// App renders a page from its content payload on the client.
type App interface {
	View(loc *url.URL, p *payload.Payload) templ.Component
}

// AppFunc adapts a function to the App interface.
type AppFunc func(loc *url.URL, p *payload.Payload) templ.Component

// View calls f.
func (f AppFunc) View(loc *url.URL, p *payload.Payload) templ.Component {
	return f(loc, p)
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithHTTPClient sets the client used for every fetch. Its redirect policy
// applies to document loads; payload fetches never follow redirects on
// their own.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Navigator) {
		n.client = c
	}
}

// WithCompatibilityKey sets the key payloads must carry to be applied.
func WithCompatibilityKey(key uint32) Option {
	return func(n *Navigator) {
		n.key = key
	}
}

// WithLogger sets the logger for fallbacks and superseded navigations.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = l
	}
}

// WithTransitionHook registers a function called on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(n *Navigator) {
		n.hook = fn
	}
}

// Navigator drives navigation for a single window. At most one navigation
// is active: starting a new one cancels the previous one, whose result is
// discarded.
type Navigator struct {
	app    App
	key    uint32
	logger *slog.Logger
	hook   func(from, to State)

	client        *http.Client // document loads
	payloadClient *http.Client // payload fetches, redirects surfaced

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
	win    *Window
	doc    *Document
}

// New creates a navigator rendering applied payloads with app.
func New(app App, opts ...Option) *Navigator {
	n := &Navigator{
		app: app,
		key: payload.CompatibilityKey,
		win: newWindow(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.client == nil {
		jar, _ := cookiejar.New(nil)
		n.client = &http.Client{Jar: jar}
	}
	pc := *n.client
	pc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	n.payloadClient = &pc
	return n
}

// State returns the current navigation state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Window returns the current window.
func (n *Navigator) Window() *Window {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.win
}

// Document returns the displayed document, or nil before Open.
func (n *Navigator) Document() *Document {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.doc
}

// Open loads rawURL as a new document.
func (n *Navigator) Open(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("navigator: open %q: %w", rawURL, err)
	}
	ctx, gen := n.begin(ctx)
	_, err = n.documentLoad(ctx, gen, loadRequest{method: http.MethodGet, url: u}, OutcomeLoaded)
	return err
}

// ClickLink clicks the first anchor whose text is text.
func (n *Navigator) ClickLink(ctx context.Context, text string) (Outcome, error) {
	doc := n.Document()
	if doc == nil {
		return 0, ErrNoDocument
	}
	a := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == text
	}).First()
	if a.Length() == 0 {
		return 0, fmt.Errorf("%w: link %q", ErrNoSuchElement, text)
	}
	return n.Navigate(ctx, linkIntent(a))
}

// ClickButton clicks the first submit button whose text (or value, for
// inputs) is text, submitting its form.
func (n *Navigator) ClickButton(ctx context.Context, text string) (Outcome, error) {
	doc := n.Document()
	if doc == nil {
		return 0, ErrNoDocument
	}
	btn := doc.Find(`button, input[type="submit"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "input" {
			return s.AttrOr("value", "") == text
		}
		t := strings.ToLower(s.AttrOr("type", "submit"))
		return t == "submit" && strings.TrimSpace(s.Text()) == text
	}).First()
	if btn.Length() == 0 {
		return 0, fmt.Errorf("%w: button %q", ErrNoSuchElement, text)
	}
	form := btn.Closest("form")
	if form.Length() == 0 {
		return 0, fmt.Errorf("%w: form for button %q", ErrNoSuchElement, text)
	}
	in, err := formIntent(form, btn, doc.URL)
	if err != nil {
		return 0, fmt.Errorf("navigator: submit: %w", err)
	}
	return n.Navigate(ctx, in)
}

// Submit submits the first form matching selector without a submit button.
func (n *Navigator) Submit(ctx context.Context, selector string) (Outcome, error) {
	doc := n.Document()
	if doc == nil {
		return 0, ErrNoDocument
	}
	form := doc.Find(selector).Filter("form").First()
	if form.Length() == 0 {
		return 0, fmt.Errorf("%w: form %q", ErrNoSuchElement, selector)
	}
	in, err := formIntent(form, nil, doc.URL)
	if err != nil {
		return 0, fmt.Errorf("navigator: submit: %w", err)
	}
	return n.Navigate(ctx, in)
}

// Navigate performs in. Same-origin targets are fetched as content
// payloads; anything else is loaded as a new document.
func (n *Navigator) Navigate(ctx context.Context, in Intent) (Outcome, error) {
	doc := n.Document()
	if doc == nil {
		return 0, ErrNoDocument
	}
	target, err := doc.URL.Parse(in.Href)
	if err != nil {
		return 0, fmt.Errorf("navigator: navigate %q: %w", in.Href, err)
	}
	target.Fragment = ""
	method := in.method()

	ctx, gen := n.begin(ctx)
	original := loadRequest{method: method, url: target, body: in.Body, contentType: in.ContentType}
	if !sameOrigin(doc.URL, target) {
		return n.documentLoad(ctx, gen, original, OutcomeLoaded)
	}

	n.transition(gen, Requesting)
	resp, page, err := n.fetchPayload(ctx, original)
	if err != nil {
		if n.superseded(gen) {
			return n.drop(gen, target)
		}
		var fb *fallbackError
		if errors.As(err, &fb) {
			return n.fallBack(ctx, gen, fb.load, fb.reason)
		}
		// page is the redirect destination once a hop was followed.
		return n.fallBack(ctx, gen, page, err)
	}
	defer resp.Body.Close()

	n.transition(gen, Validating)
	p, err := n.validate(resp)
	if err != nil {
		if n.superseded(gen) {
			return n.drop(gen, target)
		}
		return n.fallBack(ctx, gen, page, err)
	}

	n.transition(gen, Applying)
	next, err := n.render(ctx, page.url, resp.StatusCode, p)
	if err != nil {
		return n.fallBack(ctx, gen, page, err)
	}
	if !n.commit(gen, next, false) {
		return n.drop(gen, target)
	}
	return OutcomeApplied, nil
}

// fetchPayload performs the original-method fetch of the payload endpoint
// and follows same-origin redirects with GETs to the destination's payload
// endpoint. It returns the final response and the page it belongs to.
func (n *Navigator) fetchPayload(ctx context.Context, original loadRequest) (*http.Response, loadRequest, error) {
	page := original
	for hops := 0; ; hops++ {
		resp, err := n.do(ctx, n.payloadClient, page.method, endpointURL(page.url, page.method == http.MethodPost), page.body, page.contentType)
		if err != nil {
			return nil, page, err
		}
		loc := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || loc == "" {
			return resp, page, nil
		}
		drain(resp)

		dest, err := resp.Request.URL.Parse(loc)
		if err != nil {
			return nil, page, &fallbackError{load: page, reason: fmt.Errorf("bad redirect location %q: %w", loc, err)}
		}
		dest.Fragment = ""
		if p, ok := payload.PagePath(dest.Path); ok {
			dest.Path, dest.RawPath = p, ""
		}
		next := loadRequest{method: http.MethodGet, url: dest}
		switch {
		case !sameOrigin(page.url, dest):
			return nil, page, &fallbackError{load: next, reason: errors.New("cross-origin redirect")}
		case dest.String() == page.url.String():
			return nil, page, &fallbackError{load: next, reason: errors.New("redirect to the same page")}
		case hops+1 > MaxRedirects:
			return nil, page, &fallbackError{load: next, reason: errors.New("too many redirects")}
		}
		page = next
	}
}

// validate checks that resp carries an applicable payload. The status code
// is not inspected.
func (n *Navigator) validate(resp *http.Response) (*payload.Payload, error) {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != payload.ContentType {
		return nil, fmt.Errorf("%w: content type %q", payload.ErrPayloadInvalid, resp.Header.Get("Content-Type"))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload.Open(b, n.key)
}

func (n *Navigator) render(ctx context.Context, loc *url.URL, status int, p *payload.Payload) (*Document, error) {
	c := n.app.View(loc, p)
	if c == nil {
		return nil, errors.New("view returned no component")
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("render view: %w", err)
	}
	return renderedDocument(loc, status, p, buf.Bytes())
}

// begin starts a navigation, cancelling the one in flight.
func (n *Navigator) begin(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	n.cancel = cancel
	gen := n.gen
	n.mu.Unlock()
	return ctx, gen
}

func (n *Navigator) superseded(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen != gen
}

func (n *Navigator) transition(gen uint64, to State) {
	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return
	}
	from := n.state
	n.state = to
	hook := n.hook
	n.mu.Unlock()
	if hook != nil && from != to {
		hook(from, to)
	}
}

// commit displays doc if gen is still the active navigation. A document
// load also replaces the window.
func (n *Navigator) commit(gen uint64, doc *Document, load bool) bool {
	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return false
	}
	n.doc = doc
	if load {
		n.win = newWindow()
	}
	n.mu.Unlock()
	n.transition(gen, Idle)
	return true
}

func (n *Navigator) drop(gen uint64, target *url.URL) (Outcome, error) {
	n.logger.Debug("navigator: navigation superseded", "url", target.String(), "generation", gen)
	return OutcomeSuperseded, nil
}

func (n *Navigator) do(ctx context.Context, c *http.Client, method string, u *url.URL, body []byte, contentType string) (*http.Response, error) {
	var r io.Reader
	if method != http.MethodGet && method != http.MethodHead {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	if r != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(req)
}

func endpointURL(page *url.URL, post bool) *url.URL {
	u := *page
	u.Path = payload.EndpointPath(page.Path, post)
	u.RawPath = ""
	return &u
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
