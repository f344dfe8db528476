package hxnav

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheOptions configures a CachedRenderer.
type CacheOptions struct {
	// Vary lists request headers whose values become part of the cache key.
	Vary []string

	// TTL bounds how long an entry is served. Zero keeps entries until they
	// are invalidated.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type cacheEntry struct {
	result  RenderResult
	expires time.Time
}

// CachedRenderer wraps a Renderer with a keyed, explicitly invalidated
// result cache.
//
// Only GET and HEAD results the renderer marked Cacheable are stored, and
// never content payloads or results that set cookies. Concurrent misses for
// the same key share a single render. A fill that was in flight when the
// cache was invalidated returns its result to its callers but does not store
// it.
type CachedRenderer struct {
	next Renderer
	opts CacheOptions

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64 // bumped by every invalidation
	group   singleflight.Group
}

// NewCachedRenderer wraps next with a cache.
func NewCachedRenderer(next Renderer, opts CacheOptions) *CachedRenderer {
	vary := make([]string, len(opts.Vary))
	for i, h := range opts.Vary {
		vary[i] = http.CanonicalHeaderKey(h)
	}
	opts.Vary = vary
	return &CachedRenderer{
		next:    next,
		opts:    opts,
		entries: make(map[string]cacheEntry),
	}
}

// Key returns the cache key for req.
func (c *CachedRenderer) Key(req *CanonicalRequest) string {
	var sb strings.Builder
	sb.WriteString(req.Method())
	sb.WriteByte(' ')
	sb.WriteString(req.RawURL())
	for _, h := range c.opts.Vary {
		sb.WriteByte('\n')
		sb.WriteString(h)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(req.HeaderValues(h), ","))
	}
	return sb.String()
}

// Render serves req from the cache or renders it.
func (c *CachedRenderer) Render(ctx context.Context, req *CanonicalRequest) (RenderResult, error) {
	if !cacheableRequest(req) {
		metricCache.WithLabelValues("bypass").Inc()
		return c.next.Render(ctx, req)
	}

	key := c.Key(req)
	if res, ok := c.lookup(key); ok {
		metricCache.WithLabelValues("hit").Inc()
		return res, nil
	}

	// Shared fills outlive the caller that started them.
	fillCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		gen := c.generation()
		res, err := c.next.Render(fillCtx, req)
		if err != nil {
			return RenderResult{}, err
		}
		if storable(res) {
			c.store(key, res, gen)
		}
		return res, nil
	})
	if shared {
		metricCache.WithLabelValues("shared").Inc()
	} else {
		metricCache.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return RenderResult{}, err
	}
	return v.(RenderResult), nil
}

// Invalidate removes the entry stored under key.
func (c *CachedRenderer) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gen++
	c.mu.Unlock()
	c.group.Forget(key)
}

// InvalidateURL removes every entry for rawURL, whatever its method or vary
// header values.
func (c *CachedRenderer) InvalidateURL(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.entries {
		_, rest, _ := strings.Cut(key, " ")
		u, _, _ := strings.Cut(rest, "\n")
		if u == rawURL {
			delete(c.entries, key)
			c.group.Forget(key)
		}
	}
}

// Purge drops every entry.
func (c *CachedRenderer) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.entries {
		c.group.Forget(key)
	}
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries.
func (c *CachedRenderer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachedRenderer) lookup(key string) (RenderResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return RenderResult{}, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return RenderResult{}, false
	}
	return e.result, true
}

func (c *CachedRenderer) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// store saves res unless the cache was invalidated since gen was read.
func (c *CachedRenderer) store(key string, res RenderResult, gen uint64) {
	e := cacheEntry{result: res}
	if c.opts.TTL > 0 {
		e.expires = c.now().Add(c.opts.TTL)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[key] = e
}

func (c *CachedRenderer) now() time.Time {
	if c.opts.Now != nil {
		return c.opts.Now()
	}
	return time.Now()
}

func cacheableRequest(req *CanonicalRequest) bool {
	m := req.Method()
	return (m == http.MethodGet || m == http.MethodHead) && !req.IsContentPayload()
}

func storable(res RenderResult) bool {
	if !res.IsCacheable() || res.GetKind() == KindBytes {
		return false
	}
	return len(res.GetHeaders().Values("Set-Cookie")) == 0
}
