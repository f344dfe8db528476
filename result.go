package hxnav

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/payload"
)

// Kind identifies which variant a RenderResult holds.
type Kind int

const (
	// KindHTML is a full HTML document assembled from the shell.
	KindHTML Kind = iota + 1
	// KindBytes is a content payload for in-place navigation.
	KindBytes
	// KindAPI is a raw response passed through unmodified.
	KindAPI
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindBytes:
		return "bytes"
	case KindAPI:
		return "api-response"
	default:
		return "unknown"
	}
}

// RenderResult is returned by a Renderer. It is a tagged union of the three
// response kinds plus the HTTP details common to all of them.
//
// RenderResult is a value-type builder; every modifier returns a copy:
//
//	// HTML document
//	return hxnav.HTML(head, body).Status(http.StatusCreated), nil
//
//	// Content payload, encoded by the dispatcher with its compatibility key
//	return hxnav.Page(data, titleTag), nil
//
//	// Content payload for a missing page, applied in place by the client
//	return hxnav.Page(notFoundData).NotFound(), nil
//
//	// API response
//	return hxnav.Text("Hello").Header("Cache-Control", "no-store"), nil
type RenderResult struct {
	kind    Kind
	headers http.Header
	status  int

	// html
	head string
	body string

	// bytes
	payload   []byte
	pageData  any
	pageHead  []payload.HeadTag
	encoded   bool
	is404     bool
	cacheable bool

	// api-response
	apiBody  string
	isBase64 bool
}

// HTML creates a document result. head and body are injected into the
// dispatcher's shell at its head and body placeholders.
func HTML(head, body string) RenderResult {
	return RenderResult{kind: KindHTML, head: head, body: body}
}

// HTMLComponent renders templ components for the head and body of a
// document result. Either component may be nil.
func HTMLComponent(ctx context.Context, head, body templ.Component) (RenderResult, error) {
	h, err := renderComponent(ctx, head)
	if err != nil {
		return RenderResult{}, fmt.Errorf("render head: %w", err)
	}
	b, err := renderComponent(ctx, body)
	if err != nil {
		return RenderResult{}, fmt.Errorf("render body: %w", err)
	}
	return HTML(h, b), nil
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Bytes creates a content payload result from an already-encoded payload.
func Bytes(p []byte) RenderResult {
	return RenderResult{kind: KindBytes, payload: p, encoded: true}
}

// Page creates a content payload result. data is msgpack-encoded and framed
// by the dispatcher using its compatibility key.
func Page(data any, head ...payload.HeadTag) RenderResult {
	return RenderResult{kind: KindBytes, pageData: data, pageHead: head}
}

// API creates a raw response with body passed through unmodified.
func API(body string) RenderResult {
	return RenderResult{kind: KindAPI, apiBody: body}
}

// APIBase64 creates a raw response for binary data. The body is carried
// base64-encoded and decoded by adapters that write raw bytes.
func APIBase64(data []byte) RenderResult {
	return RenderResult{
		kind:     KindAPI,
		apiBody:  base64.StdEncoding.EncodeToString(data),
		isBase64: true,
	}
}

// Text creates a text/plain API response.
func Text(body string) RenderResult {
	return API(body).Header("Content-Type", "text/plain")
}

// JSON creates an application/json API response.
func JSON(v any) (RenderResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return RenderResult{}, err
	}
	return API(string(b)).Header("Content-Type", "application/json"), nil
}

// Redirect creates an empty API response redirecting to location. status
// defaults to 302 when zero.
func Redirect(location string, status int) RenderResult {
	if status == 0 {
		status = http.StatusFound
	}
	return API("").Header("Location", location).Status(status)
}

// Header sets a response header, replacing existing values.
func (r RenderResult) Header(key, value string) RenderResult {
	r.headers = r.cloneHeaders()
	r.headers.Set(key, value)
	return r
}

// AddHeader appends a response header value.
func (r RenderResult) AddHeader(key, value string) RenderResult {
	r.headers = r.cloneHeaders()
	r.headers.Add(key, value)
	return r
}

// SetCookie appends a Set-Cookie header.
func (r RenderResult) SetCookie(c *http.Cookie) RenderResult {
	if v := c.String(); v != "" {
		return r.AddHeader("Set-Cookie", v)
	}
	return r
}

// Status sets the HTTP status code. Zero means 200.
func (r RenderResult) Status(code int) RenderResult {
	r.status = code
	return r
}

// NotFound marks the result as a not-found page. The dispatcher forces the
// status to 404 whatever else was set.
func (r RenderResult) NotFound() RenderResult {
	r.is404 = true
	return r
}

// Cacheable allows a CachedRenderer to store the result.
func (r RenderResult) Cacheable() RenderResult {
	r.cacheable = true
	return r
}

func (r RenderResult) cloneHeaders() http.Header {
	if r.headers == nil {
		return http.Header{}
	}
	return r.headers.Clone()
}

// GetKind returns the result variant.
func (r RenderResult) GetKind() Kind {
	return r.kind
}

// GetStatus returns the HTTP status code (0 means not set, use default 200).
func (r RenderResult) GetStatus() int {
	return r.status
}

// GetHeaders returns a copy of the response headers.
func (r RenderResult) GetHeaders() http.Header {
	return r.cloneHeaders()
}

// GetHead returns the head fragment of an HTML result.
func (r RenderResult) GetHead() string {
	return r.head
}

// GetBody returns the body fragment of an HTML result.
func (r RenderResult) GetBody() string {
	return r.body
}

// GetAPIBody returns the body of an API result.
func (r RenderResult) GetAPIBody() string {
	return r.apiBody
}

// IsBase64Encoded reports whether an API body is base64-encoded.
func (r RenderResult) IsBase64Encoded() bool {
	return r.isBase64
}

// Is404 reports whether the result was marked NotFound.
func (r RenderResult) Is404() bool {
	return r.is404
}

// IsCacheable reports whether the result was marked Cacheable.
func (r RenderResult) IsCacheable() bool {
	return r.cacheable
}

// EncodePayload returns the framed payload bytes of a bytes result, encoding
// page data with key when the result was built with Page.
func (r RenderResult) EncodePayload(key uint32) ([]byte, error) {
	if r.kind != KindBytes {
		return nil, fmt.Errorf("hxnav: %s result has no payload", r.kind)
	}
	if r.encoded {
		return r.payload, nil
	}
	return payload.Marshal(key, r.pageData, r.pageHead)
}
