// Package hxnavecho provides Echo framework integration for hxnav.
//
// Mount a dispatcher onto an Echo instance or group:
//
//	e := echo.New()
//	d := hxnav.New(app)
//	hxnavecho.Mount(e, d, hxnavecho.WithKeyring(hxnav.NewKeyring(secret)))
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	hxnavecho.MountGroup(g, d)
package hxnavecho

import (
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxnav"
)

// Option configures Mount, MountGroup and Handler.
type Option func(*options)

type options struct {
	normalizer *hxnav.Normalizer
	path       string
}

// WithKeyring sets the keyring used to verify signed cookies. Without one,
// every cookie is dropped.
func WithKeyring(kr *hxnav.Keyring) Option {
	return func(o *options) {
		o.normalizer.Keyring = kr
	}
}

// WithNormalizer replaces the request normalizer.
func WithNormalizer(n *hxnav.Normalizer) Option {
	return func(o *options) {
		o.normalizer = n
	}
}

// WithPath sets the URL path prefix the dispatcher is mounted under.
// Defaults to "/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

func newOptions(opts []Option) *options {
	o := &options{normalizer: &hxnav.Normalizer{}, path: "/"}
	for _, opt := range opts {
		opt(o)
	}
	if !strings.HasSuffix(o.path, "/") {
		o.path += "/"
	}
	return o
}

// Mount routes every method under the configured prefix to the dispatcher.
//
//	e := echo.New()
//	hxnavecho.Mount(e, d, hxnavecho.WithPath("/site"))
func Mount(e *echo.Echo, d *hxnav.Dispatcher, opts ...Option) {
	o := newOptions(opts)
	e.Any(o.path+"*", handler(d, o.normalizer))
}

// MountGroup mounts the dispatcher on an Echo group, so pages share the
// group's middleware (auth, logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	hxnavecho.MountGroup(g, d)
func MountGroup(g *echo.Group, d *hxnav.Dispatcher, opts ...Option) {
	o := newOptions(opts)
	g.Any(o.path+"*", handler(d, o.normalizer))
}

// Handler returns an Echo handler that dispatches the request. Use it to
// attach the dispatcher to individual routes.
func Handler(d *hxnav.Dispatcher, opts ...Option) echo.HandlerFunc {
	return handler(d, newOptions(opts).normalizer)
}

func handler(d *hxnav.Dispatcher, n *hxnav.Normalizer) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		req := n.Normalize(hxnav.FieldsFromHTTP(r))
		resp := d.Dispatch(r.Context(), req)
		if err := resp.Send(c.Response()); err != nil {
			c.Logger().Debugf("hxnav: write response: %v", err)
		}
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxnavecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
