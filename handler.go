package hxnav

import (
	"log/slog"
	"net/http"
)

// Handler is the net/http runtime adapter: it normalizes each request,
// dispatches it and writes the response.
//
//	d := hxnav.New(app, hxnav.WithDev(true))
//	h := hxnav.NewHandler(d, &hxnav.Normalizer{Keyring: hxnav.NewKeyring(secret)})
//	http.Handle("/", h)
type Handler struct {
	dispatcher *Dispatcher
	normalizer *Normalizer

	// OnWriteError is called when writing the response fails, typically
	// because the client went away. Defaults to a debug log line.
	OnWriteError func(r *http.Request, err error)
}

// NewHandler creates a handler. A nil normalizer uses a zero Normalizer,
// which drops every cookie.
func NewHandler(d *Dispatcher, n *Normalizer) *Handler {
	if n == nil {
		n = &Normalizer{}
	}
	h := &Handler{dispatcher: d, normalizer: n}
	h.OnWriteError = func(r *http.Request, err error) {
		slog.Default().Debug("write response", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	return h
}

// Dispatcher returns the handler's dispatcher.
func (h *Handler) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := h.normalizer.Normalize(FieldsFromHTTP(r))
	resp := h.dispatcher.Dispatch(r.Context(), req)
	if err := resp.Send(w); err != nil && h.OnWriteError != nil {
		h.OnWriteError(r, err)
	}
}
