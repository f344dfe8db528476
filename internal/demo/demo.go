// Package demo is a small page-rendering application used by the CLI and
// the navigation tests. It serves documents, content payloads and API
// responses from the same routes.
package demo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/payload"
)

// Routes served by the demo.
const (
	RouteIndex    = "index"
	RoutePages    = "pages"
	RouteForm     = "form"
	RouteHello    = "hello"
	RouteBroken   = "broken"
	RouteNotFound = "not-found"
)

// PageData is the page state shared by the server render and the client
// view.
type PageData struct {
	Route string `msgpack:"r"`
	Page  int    `msgpack:"p,omitempty"`
}

// App is the demo renderer.
type App struct {
	keyring *hxnav.Keyring
}

// New creates the demo app. keyring signs the session cookie served by
// /api/session.
func New(keyring *hxnav.Keyring) *App {
	return &App{keyring: keyring}
}

// Render implements hxnav.Renderer.
func (a *App) Render(ctx context.Context, req *hxnav.CanonicalRequest) (hxnav.RenderResult, error) {
	path := req.PagePath()
	if strings.HasPrefix(path, "/api/") {
		return a.api(req)
	}

	switch path {
	case "/boom":
		panic("demo: /boom always panics")
	case "/broken":
		if req.IsContentPayload() {
			return hxnav.API("\x00\x00garbage").
				Header("Content-Type", payload.ContentType).
				Status(http.StatusInternalServerError), nil
		}
	case "/form":
		if req.Method() == http.MethodPost {
			u := req.URL()
			return hxnav.Redirect(u.Scheme+"://"+u.Host+"/hello", http.StatusSeeOther), nil
		}
	}

	data, found := pageData(path, req)
	var res hxnav.RenderResult
	if req.IsContentPayload() {
		res = hxnav.Page(data, Head(data)...)
	} else {
		var err error
		res, err = hxnav.HTMLComponent(ctx, hxnav.Head(Head(data)...), Body(data))
		if err != nil {
			return hxnav.RenderResult{}, err
		}
	}
	if !found {
		return res.NotFound(), nil
	}
	if data.Route == RouteIndex || data.Route == RouteHello {
		res = res.Cacheable()
	}
	return res, nil
}

// View renders a page on the client from its content payload.
func (a *App) View(loc *url.URL, p *payload.Payload) templ.Component {
	var data PageData
	if err := payload.UnmarshalData(p, &data); err != nil {
		return templ.ComponentFunc(func(context.Context, io.Writer) error {
			return fmt.Errorf("demo: page data: %w", err)
		})
	}
	return Body(data)
}

func pageData(path string, req *hxnav.CanonicalRequest) (PageData, bool) {
	switch path {
	case "/":
		return PageData{Route: RouteIndex}, true
	case "/pages":
		page, err := strconv.Atoi(req.Query("page"))
		if err != nil || page < 1 {
			page = 1
		}
		return PageData{Route: RoutePages, Page: page}, true
	case "/form":
		return PageData{Route: RouteForm}, true
	case "/hello":
		return PageData{Route: RouteHello}, true
	case "/broken":
		return PageData{Route: RouteBroken}, true
	}
	return PageData{Route: RouteNotFound}, false
}
