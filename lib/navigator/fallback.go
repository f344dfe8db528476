package navigator

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// loadRequest is a request for a page, as opposed to its payload endpoint.
type loadRequest struct {
	method      string
	url         *url.URL
	body        []byte
	contentType string
}

// fallbackError carries the page a failed payload fetch should fall back
// to, which differs from the original intent after a redirect.
type fallbackError struct {
	load   loadRequest
	reason error
}

func (e *fallbackError) Error() string {
	return fmt.Sprintf("fall back to %s: %v", e.load.url, e.reason)
}

func (e *fallbackError) Unwrap() error {
	return e.reason
}

// fallBack abandons in-place navigation and loads the page as a new
// document. Only the page itself is requested: the original method and body
// when no redirect happened, a GET of the destination otherwise.
func (n *Navigator) fallBack(ctx context.Context, gen uint64, page loadRequest, reason error) (Outcome, error) {
	n.logger.Debug("navigator: falling back to document load",
		"method", page.method,
		"url", page.url.String(),
		"reason", reason,
	)
	n.transition(gen, FallingBack)
	return n.documentLoad(ctx, gen, page, OutcomeFellBack)
}

// documentLoad fetches page as a full document, following redirects with the
// client's own policy, and replaces the window on success.
func (n *Navigator) documentLoad(ctx context.Context, gen uint64, page loadRequest, outcome Outcome) (Outcome, error) {
	resp, err := n.do(ctx, n.client, page.method, page.url, page.body, page.contentType)
	if err != nil {
		if n.superseded(gen) {
			return n.drop(gen, page.url)
		}
		n.transition(gen, Idle)
		return 0, fmt.Errorf("navigator: load %s: %w", page.url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if n.superseded(gen) {
			return n.drop(gen, page.url)
		}
		n.transition(gen, Idle)
		return 0, fmt.Errorf("navigator: read %s: %w", page.url, err)
	}

	final := page.url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	doc, err := parseDocument(final, resp.StatusCode, b)
	if err != nil {
		n.transition(gen, Idle)
		return 0, fmt.Errorf("navigator: parse %s: %w", final, err)
	}
	if !n.commit(gen, doc, true) {
		return n.drop(gen, page.url)
	}
	return outcome, nil
}
