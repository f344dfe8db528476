// Package hxnavlambda runs an hxnav dispatcher behind API Gateway proxy
// integrations.
//
//	d := hxnav.New(app)
//	h := hxnavlambda.NewHandler(d, &hxnav.Normalizer{Keyring: kr})
//	lambda.Start(h.Invoke)
package hxnavlambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pthm/hxnav"
)

// Handler serves API Gateway proxy events through a dispatcher.
type Handler struct {
	dispatcher *hxnav.Dispatcher
	normalizer *hxnav.Normalizer
}

// NewHandler creates a handler. A nil normalizer drops every cookie.
func NewHandler(d *hxnav.Dispatcher, n *hxnav.Normalizer) *Handler {
	if n == nil {
		n = &hxnav.Normalizer{}
	}
	return &Handler{dispatcher: d, normalizer: n}
}

// Invoke handles one proxy event. It never returns an error: renderer
// failures are already error pages in the response.
func (h *Handler) Invoke(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req := h.normalizer.Normalize(ToFields(ev))
	return FromResponse(h.dispatcher.Dispatch(ctx, req)), nil
}

// Start runs the handler in the Lambda runtime. It does not return.
func (h *Handler) Start() {
	lambda.Start(h.Invoke)
}

// ToFields extracts hxnav Fields from a proxy event.
//
// The absolute URL is built from the Host header (or the request context's
// domain name) and X-Forwarded-Proto, defaulting to https. A base64 body
// that fails to decode yields a body reader that errors, which the
// normalizer degrades to an absent body.
func ToFields(ev events.APIGatewayProxyRequest) hxnav.Fields {
	header := http.Header{}
	for k, vs := range ev.MultiValueHeaders {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	for k, v := range ev.Headers {
		if header.Get(k) == "" {
			header.Set(k, v)
		}
	}

	scheme := "https"
	if p := header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	host := header.Get("Host")
	if host == "" {
		host = ev.RequestContext.DomainName
	}

	u := url.URL{Scheme: scheme, Host: host, Path: ev.Path}
	if q := query(ev); len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	f := hxnav.Fields{
		Method: ev.HTTPMethod,
		URL:    u.String(),
		Header: header,
	}
	switch {
	case ev.IsBase64Encoded:
		b, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			f.Body = errReader{fmt.Errorf("hxnavlambda: decoding body: %w", err)}
		} else {
			f.Body = bytes.NewReader(b)
		}
	case ev.Body != "":
		f.Body = strings.NewReader(ev.Body)
	}
	return f
}

func query(ev events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for k, vs := range ev.MultiValueQueryStringParameters {
		q[k] = append(q[k], vs...)
	}
	for k, v := range ev.QueryStringParameters {
		if _, ok := q[k]; !ok {
			q.Set(k, v)
		}
	}
	return q
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

var _ io.Reader = errReader{}

// FromResponse translates a dispatcher response into a proxy response.
//
// Headers go to MultiValueHeaders so repeated Set-Cookie values survive.
// Bodies that are already base64 are passed through; binary bodies such as
// content payloads are base64-encoded.
func FromResponse(resp *hxnav.Response) events.APIGatewayProxyResponse {
	out := events.APIGatewayProxyResponse{
		StatusCode:        resp.StatusCode,
		MultiValueHeaders: map[string][]string{},
	}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusOK
	}
	for k, vs := range resp.Header {
		out.MultiValueHeaders[k] = append([]string(nil), vs...)
	}

	switch {
	case resp.IsBase64Encoded:
		out.Body = string(resp.Body)
		out.IsBase64Encoded = true
	case isBinary(resp.Header.Get("Content-Type"), resp.Body):
		out.Body = base64.StdEncoding.EncodeToString(resp.Body)
		out.IsBase64Encoded = true
	default:
		out.Body = string(resp.Body)
	}
	return out
}

func isBinary(contentType string, body []byte) bool {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/octet-stream" || strings.HasPrefix(mt, "image/") {
		return true
	}
	return !utf8.Valid(body)
}
