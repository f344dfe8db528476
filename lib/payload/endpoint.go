package payload

import "strings"

// Segment is the final path segment that addresses a page's payload.
const Segment = "content-payload"

// ContentType is the media type of a payload response.
const ContentType = "application/octet-stream"

// EndpointPath returns the payload endpoint for a page path.
//
//	/         -> /content-payload
//	/blog/a   -> /blog/a/content-payload
//	/blog/a/  -> /blog/a/content-payload
//
// With trailingSlash the result ends in "/", which is the form used by
// POST submissions.
func EndpointPath(pagePath string, trailingSlash bool) string {
	p := strings.TrimRight(pagePath, "/")
	p += "/" + Segment
	if trailingSlash {
		p += "/"
	}
	return p
}

// PagePath maps a payload endpoint back to its page path. The second result
// reports whether path addressed a payload endpoint at all.
func PagePath(path string) (string, bool) {
	p := strings.TrimSuffix(path, "/")
	if p != "/"+Segment && !strings.HasSuffix(p, "/"+Segment) {
		return path, false
	}
	page := strings.TrimSuffix(p, Segment)
	if page != "/" {
		page = strings.TrimSuffix(page, "/")
	}
	if page == "" {
		page = "/"
	}
	return page, true
}
