package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/payload"
	"github.com/pthm/hxnav/lib/session"
)

const secret = "demo-secret"

func dispatcher() *hxnav.Dispatcher {
	return hxnav.New(New(hxnav.NewKeyring(secret)),
		hxnav.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

func TestGreetEncodings(t *testing.T) {
	var mp bytes.Buffer
	mw := multipart.NewWriter(&mp)
	mw.WriteField("first", "Dillon")
	mw.Close()

	tests := []struct {
		name string
		req  *hxnav.TestRequestBuilder
	}{
		{"query", hxnav.NewTestRequest(http.MethodGet, "/api/greet?first=Dillon")},
		{"json", hxnav.NewTestRequest(http.MethodPost, "/api/greet").WithBody("application/json", `{"first":"Dillon"}`)},
		{"url-encoded", hxnav.NewTestRequest(http.MethodPost, "/api/greet").WithFormData("first", "Dillon")},
		{"multipart", hxnav.NewTestRequest(http.MethodPost, "/api/greet").WithBody(mw.FormDataContentType(), mp.String())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.req.Execute(dispatcher())

			if !result.IsOK() {
				t.Errorf("StatusCode = %d, want 200", result.StatusCode)
			}
			if !result.HasHeader("Content-Type", "text/plain") {
				t.Errorf("Content-Type = %q, want text/plain", result.GetHeader("Content-Type"))
			}
			if result.Body != "Hello Dillon" {
				t.Errorf("Body = %q, want %q", result.Body, "Hello Dillon")
			}
		})
	}
}

func TestGreetMissingField(t *testing.T) {
	result := hxnav.NewTestRequest(http.MethodGet, "/api/greet").Execute(dispatcher())
	if !result.HasStatus(http.StatusBadRequest) {
		t.Errorf("StatusCode = %d, want 400", result.StatusCode)
	}
}

func TestRequestTestRawBody(t *testing.T) {
	tests := []struct {
		name string
		req  *hxnav.TestRequestBuilder
		want any
	}{
		{"GET has null body", hxnav.NewTestRequest(http.MethodGet, "/api/request-test"), nil},
		{"POST keeps body", hxnav.NewTestRequest(http.MethodPost, "/api/request-test").WithBody("text/plain", "abc"), "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.req.Execute(dispatcher())
			if !result.HasHeader("Content-Type", "application/json") {
				t.Fatalf("Content-Type = %q", result.GetHeader("Content-Type"))
			}

			var got map[string]any
			if err := json.Unmarshal([]byte(result.Body), &got); err != nil {
				t.Fatalf("json.Unmarshal() error = %v, body %q", err, result.Body)
			}
			raw, present := got["rawBody"]
			if !present {
				t.Fatal("rawBody missing from dump")
			}
			if raw != tt.want {
				t.Errorf("rawBody = %#v, want %#v", raw, tt.want)
			}
		})
	}
}

func TestRequestTestDumpsCanonicalFields(t *testing.T) {
	result := hxnav.NewTestRequest(http.MethodGet, "/api/request-test?a=1&a=2").
		WithSignedCookie("theme", "dark", secret).
		WithCookie("forged", "light.bad").
		Execute(dispatcher())

	var got struct {
		Method  string              `json:"method"`
		URL     string              `json:"url"`
		Cookies map[string]string   `json:"cookies"`
		Query   map[string][]string `json:"query"`
		Parts   []partDump          `json:"multipartFormData"`
	}
	if err := json.Unmarshal([]byte(result.Body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Method != "GET" || got.URL != "http://example.com/api/request-test?a=1&a=2" {
		t.Errorf("method/url = %q %q", got.Method, got.URL)
	}
	if len(got.Query["a"]) != 2 {
		t.Errorf("query = %v", got.Query)
	}
	if got.Cookies["theme"] != "dark" {
		t.Errorf("cookies = %v", got.Cookies)
	}
	if _, ok := got.Cookies["forged"]; ok {
		t.Error("forged cookie should be dropped")
	}
	if got.Parts != nil {
		t.Errorf("multipartFormData = %v, want null", got.Parts)
	}
}

func TestSessionCounter(t *testing.T) {
	d := dispatcher()

	first := hxnav.NewTestRequest(http.MethodGet, "/api/session").Execute(d)
	setCookie := first.Headers.Get("Set-Cookie")
	if setCookie == "" {
		t.Fatal("session cookie not set")
	}
	parsed := (&http.Response{Header: http.Header{"Set-Cookie": {setCookie}}}).Cookies()
	if len(parsed) != 1 {
		t.Fatalf("invalid Set-Cookie header %q", setCookie)
	}
	c := parsed[0]
	if c.Name != session.DefaultName || !c.HttpOnly {
		t.Errorf("cookie = %+v", c)
	}

	second := hxnav.NewTestRequest(http.MethodGet, "/api/session").
		WithSecrets(secret).
		WithCookie(c.Name, c.Value).
		Execute(d)

	var got struct {
		Count  int    `json:"count"`
		Notice string `json:"notice"`
	}
	if err := json.Unmarshal([]byte(second.Body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || got.Notice != "visit 1" {
		t.Errorf("second visit = %+v, want count 2 with notice from visit 1", got)
	}
}

func TestDocumentRoutes(t *testing.T) {
	tests := []struct {
		url    string
		status int
		text   string
	}{
		{"/", http.StatusOK, "hxnav demo"},
		{"/pages?page=2", http.StatusOK, "Current page: 2"},
		{"/pages?page=nope", http.StatusOK, "Current page: 1"},
		{"/form", http.StatusOK, "Submit"},
		{"/hello", http.StatusOK, "<h1>Hello</h1>"},
		{"/broken", http.StatusOK, "Broken page"},
		{"/missing", http.StatusNotFound, "Page not found"},
		{"/api/nope", http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := hxnav.NewTestRequest(http.MethodGet, tt.url).Execute(dispatcher())
			if !result.HasStatus(tt.status) {
				t.Errorf("StatusCode = %d, want %d", result.StatusCode, tt.status)
			}
			if !result.BodyContains(tt.text) {
				t.Errorf("Body = %q, want it to contain %q", result.Body, tt.text)
			}
		})
	}
}

func TestPayloadRoutes(t *testing.T) {
	result := hxnav.NewTestRequest(http.MethodGet, "/pages/content-payload?page=2").Execute(dispatcher())
	if !result.IsPayload() {
		t.Fatalf("not a payload: %v", result.Headers)
	}
	p, err := result.Payload()
	if err != nil {
		t.Fatal(err)
	}
	var data PageData
	if err := payload.UnmarshalData(p, &data); err != nil {
		t.Fatal(err)
	}
	if data.Route != RoutePages || data.Page != 2 {
		t.Errorf("data = %+v", data)
	}

	missing := hxnav.NewTestRequest(http.MethodGet, "/missing/content-payload?from=nav").Execute(dispatcher())
	if !missing.HasStatus(http.StatusNotFound) || !missing.IsPayload() {
		t.Errorf("missing payload: status %d, headers %v", missing.StatusCode, missing.Headers)
	}

	broken := hxnav.NewTestRequest(http.MethodGet, "/broken/content-payload").Execute(dispatcher())
	if !broken.HasStatus(http.StatusInternalServerError) {
		t.Errorf("broken payload status = %d", broken.StatusCode)
	}
	if _, err := payload.Open(broken.Response.Body, payload.CompatibilityKey); err == nil {
		t.Error("broken payload should not decode")
	}
}

func TestFormPostRedirects(t *testing.T) {
	for _, path := range []string{"/form", "/form/content-payload/"} {
		result := hxnav.NewTestRequest(http.MethodPost, path).Execute(dispatcher())
		if !result.HasStatus(http.StatusSeeOther) {
			t.Errorf("%s: StatusCode = %d, want 303", path, result.StatusCode)
		}
		if loc := result.GetHeader("Location"); loc != "http://example.com/hello" {
			t.Errorf("%s: Location = %q", path, loc)
		}
	}
}

func TestBoomPanics(t *testing.T) {
	result := hxnav.NewTestRequest(http.MethodGet, "/boom").Execute(dispatcher())
	if !result.HasStatus(http.StatusInternalServerError) {
		t.Errorf("StatusCode = %d, want 500", result.StatusCode)
	}
}

func TestViewMatchesServerBody(t *testing.T) {
	app := New(nil)
	data := PageData{Route: RoutePages, Page: 2}
	b, err := payload.Marshal(payload.CompatibilityKey, data, Head(data))
	if err != nil {
		t.Fatal(err)
	}
	p, err := payload.Decode(b)
	if err != nil {
		t.Fatal(err)
	}

	var client, server bytes.Buffer
	loc, _ := url.Parse("http://example.com/pages?page=2")
	if err := app.View(loc, p).Render(context.Background(), &client); err != nil {
		t.Fatal(err)
	}
	if err := Body(data).Render(context.Background(), &server); err != nil {
		t.Fatal(err)
	}
	if client.String() != server.String() {
		t.Errorf("client view differs from server body:\n%s\n%s", client.String(), server.String())
	}
	if !strings.Contains(client.String(), "Current page: 2") {
		t.Errorf("view = %q", client.String())
	}
}

func TestViewRejectsBadData(t *testing.T) {
	b, _ := payload.Marshal(payload.CompatibilityKey, "not page data", nil)
	p, _ := payload.Decode(b)
	var buf bytes.Buffer
	if err := New(nil).View(nil, p).Render(context.Background(), &buf); err == nil {
		t.Error("View should fail on data that is not PageData")
	}
}
