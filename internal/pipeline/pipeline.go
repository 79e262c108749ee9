// Package pipeline implements the per-request state machine described
// in the proxy's design: PARSE -> LOOKUP -> (SERVE_HIT | FETCH -> BUFFER
// -> STORE_AND_SERVE) -> terminal, plus the typed errors it can end in.
package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/vshong/cacheproxy/internal/cache"
	"github.com/vshong/cacheproxy/internal/logging"
)

const proxyUserAgent = "cacheproxy/1.0"

var schemeRE = regexp.MustCompile(`(?i)^https?://`)

// Pipeline handles /proxy requests, one Handle call per request (calls
// may run concurrently): validate, consult the cache, and on a miss
// fetch from origin, buffer the full body, store it, and reply.
type Pipeline struct {
	cache  *cache.LRUCache
	client *http.Client
}

// New builds a Pipeline backed by c, using client to reach origins.
func New(c *cache.LRUCache, client *http.Client) *Pipeline {
	return &Pipeline{cache: c, client: client}
}

// NewHTTPClient builds the shared outbound client. timeout is used as the
// client's overall deadline for each fetch (connect, response headers and
// the full body read), as the wait for response headers, and as the idle
// lifetime of pooled connections. It is not an idle timeout on the body:
// it is not reset as bytes arrive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       timeout,
		},
	}
}

// Handle runs one request through PARSE -> LOOKUP -> FETCH/SERVE_HIT ->
// STORE_AND_SERVE, writing the outcome to w.
func (p *Pipeline) Handle(w http.ResponseWriter, r *http.Request) {
	reqID := xid.New().String()
	log := logging.WithFields(logging.Fields{"request_id": reqID, "phase": "PARSE"})

	raw := r.URL.Query().Get("targetUrl")
	key, perr := normalizeTargetURL(raw)
	if perr != nil {
		log.Debugf("validation failed: %v", perr)
		WriteError(w, perr)
		return
	}

	log = log.WithFields(logging.Fields{"phase": "LOOKUP", "cache_key": key})
	if entry, hit := p.cache.Find(key); hit {
		log.Debug("cache hit")
		serveHit(w, key, entry)
		return
	}

	log = log.WithFields(logging.Fields{"phase": "FETCH"})
	// Detached from r.Context(): a client disconnect cancels the write
	// phase only, never an in-flight fetch that's about to populate the
	// cache for the next request. p.client's own Timeout still bounds it.
	resp, body, perr := p.fetch(context.WithoutCancel(r.Context()), key)
	if perr != nil {
		log.Errorf("origin fetch failed: %v", perr)
		WriteError(w, perr)
		return
	}

	log = log.WithFields(logging.Fields{"phase": "STORE_AND_SERVE"})
	p.storeAndServe(w, log, key, resp, body)
}

// normalizeTargetURL implements Phase 1: validation and normalization.
func normalizeTargetURL(raw string) (string, *Error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", BadRequest("No target URL provided")
	}

	// Tolerance for a client accidentally re-wrapping the value in
	// another /proxy?targetUrl= prefix.
	const wrapPrefix = "/proxy?targetUrl="
	if idx := strings.Index(v, wrapPrefix); idx != -1 {
		v = v[idx+len(wrapPrefix):]
		if decoded, err := url.QueryUnescape(v); err == nil {
			v = decoded
		}
		v = strings.TrimSpace(v)
	}

	if !schemeRE.MatchString(v) {
		v = "http://" + v
	}
	v = strings.TrimRight(v, "/")

	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return "", BadRequest("Invalid target URL")
	}
	return u.String(), nil
}

// fetch implements Phase 3: the outbound GET to the cache key and the
// full in-memory buffering of its body.
func (p *Pipeline) fetch(ctx context.Context, key string) (*http.Response, []byte, *Error) {
	u, err := url.Parse(key)
	if err != nil {
		return nil, nil, BadRequest("Invalid target URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, nil, BadGateway(err.Error())
	}
	req.Host = u.Host
	req.Header.Set("User-Agent", proxyUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, BadGateway(err.Error())
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, BadGateway(err.Error())
	}

	return resp, body, nil
}

// serveHit implements Phase 2's hit branch.
func serveHit(w http.ResponseWriter, key string, entry cache.CacheEntry) {
	h := w.Header()
	h.Set("Content-Type", "text/html")
	h.Set("X-Cache", "HIT")
	h.Set("X-Cache-Date", entry.InsertedAt.Format(time.RFC3339))
	h.Set("X-Cache-Lookup", key)
	w.WriteHeader(http.StatusOK)
	w.Write(entry.Data)
}

// storeAndServe implements Phase 4: insert into the cache (outside any
// error path reaching the client) and reply with the origin's status,
// merged headers, and body.
func (p *Pipeline) storeAndServe(w http.ResponseWriter, log *logging.Entry, key string, resp *http.Response, body []byte) {
	insertPanicked := false
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				insertPanicked = true
				log.Errorf("cache insert panic for %s: %v", key, rec)
			}
		}()
		p.cache.Add(body, key)
	}()

	h := w.Header()
	h.Set("Content-Type", "text/html")
	for name, values := range resp.Header {
		h.Del(name)
		for _, v := range values {
			h.Add(name, v)
		}
	}
	h.Set("X-Cache", "MISS")
	h.Set("X-Cache-Lookup", key)
	if insertPanicked {
		h.Set("X-Cache-Error", "Failed to cache response")
	}

	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}
