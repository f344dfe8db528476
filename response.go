package hxnav

import (
	"encoding/base64"
	"net/http"
)

// Response is the runtime-agnostic HTTP response produced by the
// dispatcher. Runtime adapters translate it into their native type.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// IsBase64Encoded is set when Body holds base64 text that must be
	// decoded before being sent as raw bytes.
	IsBase64Encoded bool
}

// RawBody returns the body as bytes to send on the wire, decoding base64
// bodies. A body that fails to decode is returned as-is.
func (r *Response) RawBody() []byte {
	if !r.IsBase64Encoded {
		return r.Body
	}
	b, err := base64.StdEncoding.DecodeString(string(r.Body))
	if err != nil {
		return r.Body
	}
	return b
}

// Send writes the response to a net/http ResponseWriter. Multi-valued
// headers such as Set-Cookie are preserved.
func (r *Response) Send(w http.ResponseWriter) error {
	h := w.Header()
	for k, vs := range r.Header {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.RawBody())
	return err
}
