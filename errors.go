package hxnav

import (
	"errors"

	"github.com/pthm/hxnav/lib/cookie"
	"github.com/pthm/hxnav/lib/payload"
)

// Sentinel errors for rendering and request handling.
var (
	ErrNotFound          = errors.New("hxnav: resource not found")
	ErrRenderFailure     = errors.New("hxnav: render failed")
	ErrUnexpectedPayload = errors.New("hxnav: content payload returned for a non-payload request")
	ErrCookieUntrusted   = errors.New("hxnav: cookie signature not trusted")

	errBodyTooLarge = errors.New("hxnav: request body exceeds limit")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRenderFailure checks if err came from a failed render.
func IsRenderFailure(err error) bool {
	return errors.Is(err, ErrRenderFailure)
}

// IsPayloadInvalid checks if err marks a content payload that must not be applied.
func IsPayloadInvalid(err error) bool {
	return errors.Is(err, payload.ErrPayloadInvalid)
}

// IsCookieUntrusted checks if err is a cookie verification failure.
func IsCookieUntrusted(err error) bool {
	return errors.Is(err, ErrCookieUntrusted) ||
		errors.Is(err, cookie.ErrSignatureInvalid) ||
		errors.Is(err, cookie.ErrInvalidFormat)
}
