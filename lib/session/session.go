// Package session keeps small key/value sessions in a signed cookie.
//
// Session data is msgpack-encoded, base64url-encoded and signed with a
// cookie.Keyring. Flash values survive exactly one read: they are returned by
// Get and dropped from the next cookie written.
package session

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/pthm/hxnav/lib/cookie"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultName is the cookie name used when none is configured.
const DefaultName = "hxnav_session"

type data struct {
	Values map[string]string `msgpack:"v,omitempty"`
	Flash  map[string]string `msgpack:"f,omitempty"`
}

// Session is a decoded session. It is not safe for concurrent use; each
// request loads its own.
type Session struct {
	values    map[string]string
	flash     map[string]string // flash values read from the request
	nextFlash map[string]string // flash values set during this request
}

// New returns an empty session.
func New() *Session {
	return &Session{
		values:    map[string]string{},
		flash:     map[string]string{},
		nextFlash: map[string]string{},
	}
}

// Load reads the session stored under name.
//
// cookies must already hold verified plaintext (signature checks happen
// during request normalization), so a missing, unsigned or undecodable
// session cookie simply yields an empty session.
func Load(cookies map[string]string, name string) *Session {
	s := New()
	raw, ok := cookies[name]
	if !ok || raw == "" {
		return s
	}
	packed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return s
	}
	var d data
	if err := msgpack.Unmarshal(packed, &d); err != nil {
		return s
	}
	for k, v := range d.Values {
		s.values[k] = v
	}
	for k, v := range d.Flash {
		s.flash[k] = v
	}
	return s
}

// Get returns the flash value for key if present, otherwise the stored value.
func (s *Session) Get(key string) (string, bool) {
	if v, ok := s.flash[key]; ok {
		return v, true
	}
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value.
func (s *Session) Set(key, value string) {
	s.values[key] = value
}

// Unset removes a stored value.
func (s *Session) Unset(key string) {
	delete(s.values, key)
}

// Flash stores a value that is readable on the next request only.
func (s *Session) Flash(key, value string) {
	s.nextFlash[key] = value
}

// Options controls the attributes of the written cookie.
type Options struct {
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Encode returns the unsigned cookie value for the session's next state.
func (s *Session) Encode() (string, error) {
	d := data{Values: s.values}
	if len(s.nextFlash) > 0 {
		d.Flash = s.nextFlash
	}
	packed, err := msgpack.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(packed), nil
}

// Cookie returns the signed Set-Cookie value carrying the session.
func (s *Session) Cookie(name string, kr *cookie.Keyring, opts Options) (*http.Cookie, error) {
	value, err := s.Encode()
	if err != nil {
		return nil, err
	}
	signed, err := kr.Sign(value)
	if err != nil {
		return nil, fmt.Errorf("session: sign: %w", err)
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	c := &http.Cookie{
		Name:     name,
		Value:    signed,
		Path:     path,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: sameSite,
	}
	if opts.MaxAge > 0 {
		c.MaxAge = int(opts.MaxAge / time.Second)
	}
	return c, nil
}
