package navigator

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseForm(t *testing.T, markup string) *goquery.Selection {
	t.Helper()
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	form := dom.Find("form").First()
	if form.Length() == 0 {
		t.Fatal("no form in markup")
	}
	return form
}

func TestFormIntent(t *testing.T) {
	base, _ := url.Parse("http://example.com/current?old=1#frag")

	tests := []struct {
		name       string
		markup     string
		button     string
		wantMethod string
		wantHref   string
		wantBody   string
	}{
		{
			name:       "get replaces the query",
			markup:     `<form action="/pages?x=1"><input type="hidden" name="page" value="2"><button>Go</button></form>`,
			button:     "button",
			wantMethod: http.MethodGet,
			wantHref:   "http://example.com/pages?page=2",
		},
		{
			name:       "missing action targets the current page",
			markup:     `<form><input name="q" value="a b"><button>Go</button></form>`,
			button:     "button",
			wantMethod: http.MethodGet,
			wantHref:   "http://example.com/current?q=a+b",
		},
		{
			name:       "post carries a URL-encoded body",
			markup:     `<form method="POST" action="/save"><input name="title" value="x"><textarea name="body">hello</textarea><button>Save</button></form>`,
			button:     "button",
			wantMethod: http.MethodPost,
			wantHref:   "http://example.com/save",
			wantBody:   "body=hello&title=x",
		},
		{
			name: "successful controls only",
			markup: `<form method="post" action="/f">
				<input type="checkbox" name="a" value="1" checked>
				<input type="checkbox" name="b" value="2">
				<input type="radio" name="c" checked>
				<input name="d" value="skip" disabled>
				<input type="submit" name="other" value="Other">
				<input type="file" name="upload">
				<input value="nameless">
				<select name="e"><option value="x">X</option><option value="y" selected>Y</option></select>
				<select name="f"><option>first</option><option>second</option></select>
				<button name="action" value="save">Save</button>
			</form>`,
			button:     "button",
			wantMethod: http.MethodPost,
			wantHref:   "http://example.com/f",
			wantBody:   "a=1&action=save&c=on&e=y&f=first",
		},
		{
			name:       "button overrides action and method",
			markup:     `<form method="post" action="/a"><input name="k" value="v"><button formaction="/b" formmethod="get">Go</button></form>`,
			button:     "button",
			wantMethod: http.MethodGet,
			wantHref:   "http://example.com/b?k=v",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := parseForm(t, tt.markup)
			in, err := formIntent(form, form.Find(tt.button).First(), base)
			if err != nil {
				t.Fatalf("formIntent() error = %v", err)
			}
			if in.method() != tt.wantMethod {
				t.Errorf("method = %q, want %q", in.method(), tt.wantMethod)
			}
			if in.Href != tt.wantHref {
				t.Errorf("Href = %q, want %q", in.Href, tt.wantHref)
			}
			if string(in.Body) != tt.wantBody {
				t.Errorf("Body = %q, want %q", in.Body, tt.wantBody)
			}
			if tt.wantMethod == http.MethodPost && in.ContentType != "application/x-www-form-urlencoded" {
				t.Errorf("ContentType = %q", in.ContentType)
			}
		})
	}
}

func TestFormIntentMultipart(t *testing.T) {
	base, _ := url.Parse("http://example.com/")
	form := parseForm(t, `<form method="post" enctype="multipart/form-data" action="/up"><input name="first" value="Dillon"></form>`)

	in, err := formIntent(form, nil, base)
	if err != nil {
		t.Fatal(err)
	}
	mt, params, err := mime.ParseMediaType(in.ContentType)
	if err != nil || mt != "multipart/form-data" {
		t.Fatalf("ContentType = %q", in.ContentType)
	}
	mr := multipart.NewReader(bytes.NewReader(in.Body), params["boundary"])
	p, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	v, _ := io.ReadAll(p)
	if p.FormName() != "first" || string(v) != "Dillon" {
		t.Errorf("part = %s=%q", p.FormName(), v)
	}
}

func TestIntentMethodDefaultsToGet(t *testing.T) {
	tests := map[string]string{
		"":       http.MethodGet,
		"get":    http.MethodGet,
		"post":   http.MethodPost,
		"DELETE": http.MethodGet,
	}
	for m, want := range tests {
		if got := (Intent{Method: m}).method(); got != want {
			t.Errorf("Intent{Method: %q}.method() = %q, want %q", m, got, want)
		}
	}
}

func TestIntentIsAbsolute(t *testing.T) {
	tests := map[string]bool{
		"/hello":                 false,
		"hello?x=1":              false,
		"//example.com/x":        false,
		"http://example.com/x":   true,
		"https://other.test":     true,
		"mailto:someone@example": false,
	}
	for href, want := range tests {
		if got := (Intent{Href: href}).IsAbsolute(); got != want {
			t.Errorf("Intent{Href: %q}.IsAbsolute() = %v, want %v", href, got, want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	page, _ := url.Parse("http://example.com/pages?page=2")
	if got := endpointURL(page, false).String(); got != "http://example.com/pages/content-payload?page=2" {
		t.Errorf("endpointURL(GET) = %q", got)
	}
	form, _ := url.Parse("http://example.com/form")
	if got := endpointURL(form, true).String(); got != "http://example.com/form/content-payload/" {
		t.Errorf("endpointURL(POST) = %q", got)
	}
	if page.Path != "/pages" {
		t.Error("endpointURL modified its argument")
	}
}
