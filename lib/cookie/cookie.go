// Package cookie signs and verifies cookie values with HMAC-SHA256.
//
// A signed value has the form
//
//	<value>.<base64(HMAC-SHA256(secret, value))>
//
// using standard base64 with the padding stripped. Verification failure is an
// ordinary outcome: callers drop the cookie instead of failing the request.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrInvalidFormat is returned when a signed value has no signature part.
	ErrInvalidFormat = errors.New("cookie: invalid signed value format")

	// ErrSignatureInvalid is returned when the signature does not match.
	ErrSignatureInvalid = errors.New("cookie: signature verification failed")

	// ErrNoSecrets is returned by a Keyring with no secrets configured.
	ErrNoSecrets = errors.New("cookie: no secrets configured")
)

// Sign returns value with its HMAC signature appended.
func Sign(value, secret string) string {
	return value + "." + signature(value, secret)
}

// Unsign verifies a value produced by Sign and returns the original value.
//
// The signature is split off at the last '.', so values may themselves
// contain dots.
func Unsign(signed, secret string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i < 0 {
		return "", ErrInvalidFormat
	}
	value := signed[:i]
	got := signed[i+1:]

	expected := signature(value, secret)
	if !hmac.Equal([]byte(got), []byte(expected)) {
		return "", ErrSignatureInvalid
	}
	return value, nil
}

func signature(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

// Keyring holds an ordered list of secrets.
//
// New values are signed with the first secret; verification accepts any of
// them, so a secret can be rotated by prepending the replacement and keeping
// the old one until outstanding cookies expire.
//
// A Keyring is immutable and safe for concurrent use.
type Keyring struct {
	secrets []string
}

// NewKeyring creates a keyring. Empty secrets are ignored.
func NewKeyring(secrets ...string) *Keyring {
	kr := &Keyring{}
	for _, s := range secrets {
		if s != "" {
			kr.secrets = append(kr.secrets, s)
		}
	}
	return kr
}

// Len returns the number of usable secrets.
func (kr *Keyring) Len() int {
	if kr == nil {
		return 0
	}
	return len(kr.secrets)
}

// Sign signs value with the primary secret.
func (kr *Keyring) Sign(value string) (string, error) {
	if kr.Len() == 0 {
		return "", ErrNoSecrets
	}
	return Sign(value, kr.secrets[0]), nil
}

// Unsign verifies signed against every secret in order.
func (kr *Keyring) Unsign(signed string) (string, error) {
	if kr.Len() == 0 {
		return "", ErrNoSecrets
	}
	err := ErrSignatureInvalid
	for _, secret := range kr.secrets {
		var value string
		value, err = Unsign(signed, secret)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, ErrInvalidFormat) {
			return "", err
		}
	}
	return "", err
}
