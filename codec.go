package hxnav

import (
	"fmt"

	"github.com/pthm/hxnav/lib/cookie"
)

// Keyring is an alias for cookie.Keyring for convenience.
type Keyring = cookie.Keyring

// NewKeyring creates a cookie keyring. The first secret signs new values;
// all of them verify.
func NewKeyring(secrets ...string) *Keyring {
	return cookie.NewKeyring(secrets...)
}

// verifyCookie unsigns a cookie value, wrapping any failure in
// ErrCookieUntrusted.
func verifyCookie(kr *Keyring, signed string) (string, error) {
	v, err := kr.Unsign(signed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCookieUntrusted, err)
	}
	return v, nil
}
