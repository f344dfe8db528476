package hxnav

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/pthm/hxnav/lib/payload"
)

// HeaderField is a single request header with all of its values, in the
// order they were received.
type HeaderField struct {
	Name   string
	Values []string
}

// FormPart is one part of a multipart/form-data body.
type FormPart struct {
	Name        string
	Filename    string // empty for plain fields
	ContentType string
	Data        []byte
}

// Value returns the part's data as a string.
func (p FormPart) Value() string {
	return string(p.Data)
}

// CanonicalRequest is the runtime-independent view of an inbound request
// handed to the renderer.
//
// It is created once per request by a Normalizer and is read-only afterwards:
// accessors return copies so a renderer cannot alter what other code sees.
type CanonicalRequest struct {
	id          string
	method      string
	rawURL      string
	url         *url.URL
	headers     []HeaderField
	cookies     map[string]string
	body        *string
	query       map[string][]string
	multipart   []FormPart
	requestTime int64
}

// ID returns the request's unique identifier.
func (r *CanonicalRequest) ID() string { return r.id }

// Method returns the HTTP method.
func (r *CanonicalRequest) Method() string { return r.method }

// RawURL returns the absolute request URL as received.
func (r *CanonicalRequest) RawURL() string { return r.rawURL }

// URL returns a parsed copy of the request URL.
func (r *CanonicalRequest) URL() *url.URL {
	u := *r.url
	return &u
}

// Path returns the URL path.
func (r *CanonicalRequest) Path() string { return r.url.Path }

// RequestTime returns the time the request was normalized, in epoch
// milliseconds.
func (r *CanonicalRequest) RequestTime() int64 { return r.requestTime }

// Headers returns all headers, sorted by canonical name. Arrival order is
// not preserved: runtime adapters hand over an http.Header, which has
// already lost it. Values of a repeated header keep their order.
func (r *CanonicalRequest) Headers() []HeaderField {
	out := make([]HeaderField, len(r.headers))
	for i, h := range r.headers {
		out[i] = HeaderField{Name: h.Name, Values: append([]string(nil), h.Values...)}
	}
	return out
}

// HeaderValues returns every value of the named header.
func (r *CanonicalRequest) HeaderValues(name string) []string {
	name = http.CanonicalHeaderKey(name)
	for _, h := range r.headers {
		if h.Name == name {
			return append([]string(nil), h.Values...)
		}
	}
	return nil
}

// Header returns the first value of the named header.
func (r *CanonicalRequest) Header(name string) string {
	if v := r.HeaderValues(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Cookies returns the verified cookie values. Cookies whose signature could
// not be verified are absent.
func (r *CanonicalRequest) Cookies() map[string]string {
	out := make(map[string]string, len(r.cookies))
	for k, v := range r.cookies {
		out[k] = v
	}
	return out
}

// Cookie returns a verified cookie value.
func (r *CanonicalRequest) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// Body returns the buffered request body, or nil for GET/HEAD requests and
// bodies that could not be read.
func (r *CanonicalRequest) Body() *string {
	if r.body == nil {
		return nil
	}
	b := *r.body
	return &b
}

// QueryParams returns the multi-valued query parameters. It is never nil.
func (r *CanonicalRequest) QueryParams() map[string][]string {
	out := make(map[string][]string, len(r.query))
	for k, v := range r.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Query returns the first value of a query parameter.
func (r *CanonicalRequest) Query(name string) string {
	if v := r.query[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// MultipartFormData returns the parsed multipart parts, or nil when the
// request was not multipart.
func (r *CanonicalRequest) MultipartFormData() []FormPart {
	if r.multipart == nil {
		return nil
	}
	out := make([]FormPart, len(r.multipart))
	for i, p := range r.multipart {
		p.Data = append([]byte(nil), p.Data...)
		out[i] = p
	}
	return out
}

// ContentType returns the media type of the body without parameters.
func (r *CanonicalRequest) ContentType() string {
	mt, _, err := mime.ParseMediaType(r.Header("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// FormValue looks up a field in the query string, then a URL-encoded body,
// then multipart fields.
func (r *CanonicalRequest) FormValue(name string) (string, bool) {
	if v, ok := r.query[name]; ok && len(v) > 0 {
		return v[0], true
	}
	if r.body != nil && r.ContentType() == "application/x-www-form-urlencoded" {
		if vals, err := url.ParseQuery(*r.body); err == nil {
			if v, ok := vals[name]; ok && len(v) > 0 {
				return v[0], true
			}
		}
	}
	for _, p := range r.multipart {
		if p.Name == name && p.Filename == "" {
			return p.Value(), true
		}
	}
	return "", false
}

// DecodeJSON decodes a JSON body into v.
func (r *CanonicalRequest) DecodeJSON(v any) error {
	if r.body == nil {
		return errors.New("hxnav: request has no body")
	}
	return json.NewDecoder(strings.NewReader(*r.body)).Decode(v)
}

// IsContentPayload reports whether the request addresses a page's content
// payload endpoint.
func (r *CanonicalRequest) IsContentPayload() bool {
	_, ok := payload.PagePath(r.url.Path)
	return ok
}

// PagePath returns the page path the request is for, with any payload
// endpoint suffix removed.
func (r *CanonicalRequest) PagePath() string {
	p, _ := payload.PagePath(r.url.Path)
	return p
}
