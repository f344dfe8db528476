package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/config"
	"github.com/pthm/hxnav/lib/cookie"
	"github.com/pthm/hxnav/lib/payload"
	"github.com/pthm/hxnav/lib/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	router, err := newRouter(cfg, quietLogger())
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestRouterOperationalEndpoints(t *testing.T) {
	srv := testServer(t, config.Default())

	resp, body := get(t, srv.Client(), srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("/healthz = %d %q", resp.StatusCode, body)
	}

	get(t, srv.Client(), srv.URL+"/")
	resp, body = get(t, srv.Client(), srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "hxnav_renders_total") {
		t.Error("/metrics does not expose render counters")
	}
}

func TestRouterServesDemo(t *testing.T) {
	cfg := config.Default()
	cfg.CompatibilityKey = 7
	srv := testServer(t, cfg)

	resp, body := get(t, srv.Client(), srv.URL+"/hello")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "<h1>Hello</h1>") {
		t.Errorf("/hello = %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, srv.Client(), srv.URL+"/hello/content-payload")
	if resp.Header.Get(hxnav.PayloadHeader) != "7" {
		t.Errorf("%s = %q, want 7", hxnav.PayloadHeader, resp.Header.Get(hxnav.PayloadHeader))
	}
	if _, err := payload.Open([]byte(body), 7); err != nil {
		t.Errorf("payload.Open() error = %v", err)
	}
}

func TestRouterDevSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Dev = true
	srv := testServer(t, cfg)

	resp, _ := get(t, srv.Client(), srv.URL+"/api/session")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/session = %d", resp.StatusCode)
	}
	var signed string
	for _, c := range resp.Cookies() {
		if c.Name == session.DefaultName {
			signed = c.Value
		}
	}
	if signed == "" {
		t.Fatal("no session cookie set")
	}
	if _, err := cookie.Unsign(signed, devSecret); err != nil {
		t.Errorf("session cookie not signed with the dev secret: %v", err)
	}
}

func TestRouterCustomShell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.html")
	shell := "<html><head><!-- hxnav:head --></head><body class=\"custom\"><!-- hxnav:body --></body></html>"
	if err := os.WriteFile(path, []byte(shell), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Shell = path
	cfg.Cache.Enabled = true
	srv := testServer(t, cfg)

	_, body := get(t, srv.Client(), srv.URL+"/hello")
	if !strings.Contains(body, `<body class="custom">`) {
		t.Errorf("body = %q, want custom shell", body)
	}
}

func TestRouterMissingShell(t *testing.T) {
	cfg := config.Default()
	cfg.Shell = filepath.Join(t.TempDir(), "missing.html")
	if _, err := newRouter(cfg, quietLogger()); err == nil {
		t.Error("newRouter() should fail when the shell file is missing")
	}
}

func TestRouterRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 1
	srv := testServer(t, cfg)

	if resp, _ := get(t, srv.Client(), srv.URL+"/hello"); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}
	resp, _ := get(t, srv.Client(), srv.URL+"/hello")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp, _ := get(t, srv.Client(), srv.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz should not be limited, got %d", resp.StatusCode)
	}
}

func TestSignArgs(t *testing.T) {
	if err := runSign([]string{"-secret", "s"}); err == nil {
		t.Error("sign without a value should fail")
	}
	if err := runSign([]string{"value"}); err == nil {
		t.Error("sign without a secret should fail")
	}
}

func TestUnsign(t *testing.T) {
	signed := cookie.Sign("user=42", "old")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"matching secret", []string{"-secret", "old", signed}, false},
		{"rotated secrets", []string{"-secret", "new", "-secret", "old", signed}, false},
		{"wrong secret", []string{"-secret", "new", signed}, true},
		{"tampered", []string{"-secret", "old", strings.Replace(signed, "42", "43", 1)}, true},
		{"no value", []string{"-secret", "old"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runUnsign(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("runUnsign() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecretList(t *testing.T) {
	var s secretList
	s.Set("a")
	s.Set("b")
	if s.String() != "a,b" {
		t.Errorf("String() = %q", s.String())
	}
}
