// Package hxnav dispatches requests to a page-rendering application and
// serves the three kinds of response it can produce: a full HTML document,
// a binary content payload for in-place client navigation, or a raw API
// response.
//
// # Core Concepts
//
// A runtime adapter turns its native request into Fields. A Normalizer turns
// Fields into a read-only CanonicalRequest: the body is buffered, query
// parameters are parsed as multi-valued, multipart bodies are split into
// parts, and signed cookies are verified. Cookies that fail verification
// are dropped, never reported.
//
// The application implements Renderer and decides, per request, which kind
// of RenderResult to return:
//
//	func (a *App) Render(ctx context.Context, req *hxnav.CanonicalRequest) (hxnav.RenderResult, error) {
//	    if req.IsContentPayload() {
//	        return hxnav.Page(data, hxnav.Title("Docs")), nil
//	    }
//	    return hxnav.HTMLComponent(ctx, hxnav.Head(hxnav.Title("Docs")), page(data))
//	}
//
// The Dispatcher maps the result to a runtime-agnostic Response:
//   - html: head and body are injected into the shell, text/html
//   - bytes: application/octet-stream plus the X-Hxnav-Payload marker
//   - api-response: passed through unmodified
//
// Results marked NotFound always answer 404. Renderer errors and panics are
// caught at the dispatcher and become a 500 HTML page; WithDev adds the
// message and stack trace to it.
//
// # Content Payloads
//
// Every page path has a payload endpoint, "<path>/content-payload". The
// client runtime in lib/navigator fetches it to navigate without reloading
// the document, and falls back to a full document load whenever the payload
// does not decode or carries a different compatibility key (see
// lib/payload). HTTP status is not part of that decision: a valid payload
// with status 404 is applied in place.
//
// # Runtime Adapters
//
// Handler adapts net/http. adapters/echo mounts a handler on an Echo
// instance and adapters/lambda serves API Gateway proxy events. Adapters
// never see renderer failures; they only translate a Response.
//
// # Caching
//
// CachedRenderer is an explicitly scoped cache in front of a Renderer.
// Results marked Cacheable are stored per method, URL and vary headers,
// with at most one concurrent render per key and explicit invalidation.
package hxnav
