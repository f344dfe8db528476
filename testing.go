package hxnav

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pthm/hxnav/lib/cookie"
	"github.com/pthm/hxnav/lib/payload"
)

// TestResult holds the outcome of dispatching a request in tests.
//
// Provides convenience methods for asserting on the body, headers, status
// and decoded content payload.
type TestResult struct {
	Body       string
	StatusCode int
	Headers    http.Header
	Request    *CanonicalRequest
	Response   *Response
}

// TestRequestBuilder provides a fluent interface for building test requests.
//
//	result := hxnav.NewTestRequest("POST", "/api/greet").
//	    WithFormData("first", "Dillon").
//	    WithSignedCookie("session", "abc", "secret").
//	    Execute(dispatcher)
type TestRequestBuilder struct {
	method   string
	url      string
	body     string
	hasBody  bool
	formData url.Values
	headers  http.Header
	secrets  []string
	ctx      context.Context
}

// NewTestRequest creates a new test request builder. Relative URLs are
// resolved against http://example.com.
func NewTestRequest(method, rawURL string) *TestRequestBuilder {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://example.com" + rawURL
	}
	return &TestRequestBuilder{
		method:   method,
		url:      rawURL,
		formData: url.Values{},
		headers:  http.Header{},
		ctx:      context.Background(),
	}
}

// WithBody sets a raw body and its content type.
func (b *TestRequestBuilder) WithBody(contentType, body string) *TestRequestBuilder {
	b.body = body
	b.hasBody = true
	if contentType != "" {
		b.headers.Set("Content-Type", contentType)
	}
	return b
}

// WithFormData adds a URL-encoded form field to the body.
func (b *TestRequestBuilder) WithFormData(key, value string) *TestRequestBuilder {
	b.formData.Add(key, value)
	return b
}

// WithHeader adds a header to the request.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers.Add(key, value)
	return b
}

// WithCookie adds a raw cookie pair to the Cookie header.
func (b *TestRequestBuilder) WithCookie(name, value string) *TestRequestBuilder {
	if cur := b.headers.Get("Cookie"); cur != "" {
		b.headers.Set("Cookie", cur+"; "+name+"="+value)
	} else {
		b.headers.Set("Cookie", name+"="+value)
	}
	return b
}

// WithSignedCookie signs value with secret and adds it. The secret is also
// added to the keyring used to normalize the request.
func (b *TestRequestBuilder) WithSignedCookie(name, value, secret string) *TestRequestBuilder {
	b.secrets = append(b.secrets, secret)
	return b.WithCookie(name, cookie.Sign(value, secret))
}

// WithSecrets adds secrets to the normalizer keyring without adding cookies.
func (b *TestRequestBuilder) WithSecrets(secrets ...string) *TestRequestBuilder {
	b.secrets = append(b.secrets, secrets...)
	return b
}

// WithContext sets the context for the request.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// Fields returns the adapter fields for the built request.
func (b *TestRequestBuilder) Fields() Fields {
	var body io.Reader
	h := b.headers.Clone()
	switch {
	case b.hasBody:
		body = strings.NewReader(b.body)
	case len(b.formData) > 0:
		body = strings.NewReader(b.formData.Encode())
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	case b.method != http.MethodGet && b.method != http.MethodHead:
		body = strings.NewReader("")
	}
	return Fields{Method: b.method, URL: b.url, Header: h, Body: body}
}

// Canonical normalizes the built request.
func (b *TestRequestBuilder) Canonical() *CanonicalRequest {
	n := &Normalizer{Keyring: NewKeyring(b.secrets...)}
	return n.Normalize(b.Fields())
}

// Execute dispatches the request.
func (b *TestRequestBuilder) Execute(d *Dispatcher) *TestResult {
	req := b.Canonical()
	resp := d.Dispatch(b.ctx, req)
	return &TestResult{
		Body:       string(resp.Body),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Request:    req,
		Response:   resp,
	}
}

// TestDispatch dispatches a bodyless request against renderer with a
// default dispatcher.
//
//	result := hxnav.TestDispatch(app, "GET", "/pages/content-payload?page=2")
//	if !result.IsPayload() { ... }
func TestDispatch(r Renderer, method, rawURL string, opts ...Option) *TestResult {
	return NewTestRequest(method, rawURL).Execute(New(r, opts...))
}

// BodyContains checks if the body contains a substring.
func (r *TestResult) BodyContains(substr string) bool {
	return strings.Contains(r.Body, substr)
}

// BodyContainsAll checks if the body contains all the given substrings.
func (r *TestResult) BodyContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.Body, s) {
			return false
		}
	}
	return true
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// IsPayload checks if the response is a content payload.
func (r *TestResult) IsPayload() bool {
	return r.Headers.Get("Content-Type") == payload.ContentType && r.Headers.Get(PayloadHeader) != ""
}

// Payload decodes the response body as a content payload.
func (r *TestResult) Payload() (*payload.Payload, error) {
	return payload.Decode(r.Response.Body)
}
