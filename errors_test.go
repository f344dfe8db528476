package hxnav

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pthm/hxnav/lib/cookie"
	"github.com/pthm/hxnav/lib/payload"
)

func TestSentinelErrors(t *testing.T) {
	// Verify sentinel errors are distinct
	errs := []error{
		ErrNotFound,
		ErrRenderFailure,
		ErrUnexpectedPayload,
		ErrCookieUntrusted,
	}

	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("wrapped: %w", ErrNotFound), true},
		{"other error", errors.New("other error"), false},
		{"ErrRenderFailure", ErrRenderFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsNotFound(tt.err)
			if result != tt.expect {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, result, tt.expect)
			}
		})
	}
}

func TestIsPayloadInvalid(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"truncated", payload.ErrTruncated, true},
		{"malformed", payload.ErrMalformed, true},
		{"incompatible", fmt.Errorf("open: %w", payload.ErrIncompatible), true},
		{"not found", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPayloadInvalid(tt.err); got != tt.expect {
				t.Errorf("IsPayloadInvalid(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsCookieUntrusted(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrCookieUntrusted", ErrCookieUntrusted, true},
		{"signature", cookie.ErrSignatureInvalid, true},
		{"format", cookie.ErrInvalidFormat, true},
		{"other", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCookieUntrusted(tt.err); got != tt.expect {
				t.Errorf("IsCookieUntrusted(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestVerifyCookieWrapsErrors(t *testing.T) {
	kr := NewKeyring("secret")

	_, err := verifyCookie(kr, "value.bad-signature")
	if !errors.Is(err, ErrCookieUntrusted) {
		t.Errorf("error = %v, want ErrCookieUntrusted", err)
	}
	if !errors.Is(err, cookie.ErrSignatureInvalid) {
		t.Errorf("error = %v, want wrapped ErrSignatureInvalid", err)
	}

	v, err := verifyCookie(kr, cookie.Sign("value", "secret"))
	if err != nil || v != "value" {
		t.Errorf("verifyCookie() = %q, %v", v, err)
	}
}
