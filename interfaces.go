package hxnav

import "context"

// Renderer is the page-rendering application behind the dispatcher.
//
// It owns route classification: for every canonical request it decides
// whether to answer with an HTML document, a content payload or an API
// response. The dispatcher treats it as opaque.
//
// Example:
//
//	func (a *App) Render(ctx context.Context, req *hxnav.CanonicalRequest) (hxnav.RenderResult, error) {
//	    if strings.HasPrefix(req.Path(), "/api/") {
//	        return a.api(ctx, req)
//	    }
//	    data := a.loadPage(req.PagePath())
//	    if req.IsContentPayload() {
//	        return hxnav.Page(data, head...), nil
//	    }
//	    return hxnav.HTMLComponent(ctx, headTmpl(data), pageTmpl(data))
//	}
//
// Returning an error (or panicking) produces a 500 page. Returning an error
// that wraps ErrNotFound produces a 404 page. Render may be called
// concurrently and must not rely on shared mutable state without its own
// synchronization.
type Renderer interface {
	Render(ctx context.Context, req *CanonicalRequest) (RenderResult, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, req *CanonicalRequest) (RenderResult, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req *CanonicalRequest) (RenderResult, error) {
	return f(ctx, req)
}
