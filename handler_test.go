package hxnav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pthm/hxnav/lib/cookie"
)

func TestHandlerServeHTTP(t *testing.T) {
	r := RendererFunc(func(ctx context.Context, req *CanonicalRequest) (RenderResult, error) {
		v, _ := req.Cookie("session")
		body := ""
		if req.Body() != nil {
			body = *req.Body()
		}
		return Text(req.Method() + " " + req.RawURL() + " " + v + " " + body).
			SetCookie(&http.Cookie{Name: "a", Value: "1"}).
			SetCookie(&http.Cookie{Name: "b", Value: "2"}), nil
	})
	h := NewHandler(New(r), &Normalizer{Keyring: NewKeyring("secret")})

	req := httptest.NewRequest(http.MethodPost, "/submit?x=1", strings.NewReader("payload"))
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Sign("user", "secret")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	want := "POST http://example.com/submit?x=1 user payload"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if got := rec.Header().Values("Set-Cookie"); len(got) != 2 {
		t.Errorf("Set-Cookie = %v, want both cookies", got)
	}
}

func TestHandlerNilNormalizerDropsCookies(t *testing.T) {
	r := RendererFunc(func(ctx context.Context, req *CanonicalRequest) (RenderResult, error) {
		if len(req.Cookies()) != 0 {
			return RenderResult{}, errors.New("cookies should be empty")
		}
		return Text("ok"), nil
	})
	h := NewHandler(New(r, WithLogger(quietLogger())), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: cookie.Sign("user", "secret")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if h.Dispatcher() == nil {
		t.Error("Dispatcher() = nil")
	}
}

func TestHandlerDecodesBase64Bodies(t *testing.T) {
	h := NewHandler(New(fixed(APIBase64([]byte{0xff, 0x00, 0x10}), nil)), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bin", nil))

	if got := rec.Body.Bytes(); len(got) != 3 || got[0] != 0xff || got[2] != 0x10 {
		t.Errorf("body = %v, want raw bytes", got)
	}
}

func TestHandlerPayloadOverHTTP(t *testing.T) {
	h := NewHandler(New(fixed(Page(map[string]int{"page": 2}), nil)), nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pages/content-payload?page=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "application/octet-stream" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get(PayloadHeader) == "" {
		t.Error("payload marker header missing")
	}
	b, _ := io.ReadAll(resp.Body)
	if len(b) < 8 {
		t.Errorf("payload too short: %d bytes", len(b))
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestHandlerOnWriteError(t *testing.T) {
	h := NewHandler(New(fixed(Text("x"), nil)), nil)
	var got error
	h.OnWriteError = func(r *http.Request, err error) { got = err }

	h.ServeHTTP(failingWriter{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil {
		t.Error("OnWriteError was not called")
	}
}
