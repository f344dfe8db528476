package hxnav

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBodyBytes limits how much of a request body is buffered.
const DefaultMaxBodyBytes = 10 << 20

// Fields is what a runtime adapter extracts from its native request before
// normalization.
type Fields struct {
	Method string
	URL    string // absolute URL
	Header http.Header
	Body   io.Reader // may be nil
}

// FieldsFromHTTP extracts Fields from a net/http server request.
//
// The absolute URL is rebuilt from the Host header and the scheme, honouring
// X-Forwarded-Proto when present.
func FieldsFromHTTP(r *http.Request) Fields {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}

	raw := r.URL.String()
	if !r.URL.IsAbs() {
		host := r.Host
		if host == "" {
			host = r.URL.Host
		}
		uri := r.RequestURI
		if uri == "" {
			uri = r.URL.RequestURI()
		}
		raw = scheme + "://" + host + uri
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return Fields{
		Method: r.Method,
		URL:    raw,
		Header: header,
		Body:   r.Body,
	}
}

// Normalizer turns adapter Fields into a CanonicalRequest.
//
// Normalization never fails: malformed input degrades the affected field to
// nil or empty. A Normalizer is safe for concurrent use.
type Normalizer struct {
	// Keyring verifies signed cookies. With no keyring no cookie can be
	// verified and the cookie map is always empty.
	Keyring *Keyring

	// MaxBodyBytes limits body buffering. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives debug output about degraded fields.
	Logger *slog.Logger
}

// Normalize builds the canonical request.
func (n *Normalizer) Normalize(f Fields) *CanonicalRequest {
	logger := n.logger()
	id := newRequestID()

	u, err := url.Parse(f.URL)
	if err != nil {
		logger.Debug("normalize: unparseable url", "request_id", id, "url", f.URL, "error", err)
		u = &url.URL{Path: "/"}
	}

	req := &CanonicalRequest{
		id:          id,
		method:      f.Method,
		rawURL:      f.URL,
		url:         u,
		headers:     normalizeHeaders(f.Header),
		cookies:     n.verifyCookies(f.Header, id),
		query:       parseQuery(u.RawQuery),
		requestTime: n.now().UnixMilli(),
	}

	if f.Method != http.MethodGet && f.Method != http.MethodHead && f.Body != nil {
		body, err := n.readBody(f.Body)
		if err != nil {
			logger.Debug("normalize: body dropped", "request_id", id, "error", err)
		} else {
			req.body = &body
		}
	}

	if req.body != nil {
		req.multipart = parseMultipart(f.Header.Get("Content-Type"), *req.body)
	}

	return req
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Normalizer) readBody(r io.Reader) (string, error) {
	limit := n.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > limit {
		return "", errBodyTooLarge
	}
	return string(b), nil
}

// verifyCookies splits every Cookie header on ";" and keeps only values
// whose signature verifies.
func (n *Normalizer) verifyCookies(h http.Header, id string) map[string]string {
	cookies := map[string]string{}
	if n.Keyring.Len() == 0 {
		return cookies
	}
	for _, line := range h.Values("Cookie") {
		for _, pair := range strings.Split(line, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				continue
			}
			if unescaped, err := url.PathUnescape(value); err == nil {
				value = unescaped
			}
			plain, err := verifyCookie(n.Keyring, value)
			if err != nil {
				n.logger().Debug("normalize: cookie dropped", "request_id", id, "cookie", name, "error", err)
				continue
			}
			cookies[name] = plain
		}
	}
	return cookies
}

func normalizeHeaders(h http.Header) []HeaderField {
	fields := make([]HeaderField, 0, len(h))
	for name, values := range h {
		fields = append(fields, HeaderField{
			Name:   http.CanonicalHeaderKey(name),
			Values: append([]string(nil), values...),
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func parseQuery(raw string) map[string][]string {
	// ParseQuery keeps the pairs it could parse even when it reports an error.
	vals, _ := url.ParseQuery(raw)
	out := make(map[string][]string, len(vals))
	for k, v := range vals {
		out[k] = v
	}
	return out
}

func parseMultipart(contentType, body string) []FormPart {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "multipart/form-data" || params["boundary"] == "" {
		return nil
	}
	mr := multipart.NewReader(strings.NewReader(body), params["boundary"])
	parts := []FormPart{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return parts
		}
		if err != nil {
			return nil
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p); err != nil {
			return nil
		}
		parts = append(parts, FormPart{
			Name:        p.FormName(),
			Filename:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Data:        buf.Bytes(),
		})
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
