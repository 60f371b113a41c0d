// Package gateway is the client's offline cache: an http.RoundTripper that
// answers backend traffic from the network or from local caches, plus the
// install/activate lifecycle that keeps those caches current.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/existflow/narodplus/internal/logger"
)

// DefaultAPIPrefixes are served network-first.
var DefaultAPIPrefixes = []string{"/api", "/auth", "/subscriptions", "/qr", "/qr-code"}

// Gateway intercepts same-origin GET requests.
type Gateway struct {
	origin   *url.URL
	network  http.RoundTripper
	caches   CacheStorage
	prefixes []string
	bus      EventBus.Bus
	now      func() time.Time
	log      *logger.Logger

	mu      sync.RWMutex
	active  *Worker
	waiting *Worker
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAPIPrefixes replaces the network-first path prefixes.
func WithAPIPrefixes(prefixes []string) Option {
	return func(g *Gateway) {
		if len(prefixes) > 0 {
			g.prefixes = append([]string(nil), prefixes...)
		}
	}
}

// WithBus publishes lifecycle events on bus.
func WithBus(bus EventBus.Bus) Option {
	return func(g *Gateway) { g.bus = bus }
}

// WithClock overrides the time source for cached entries.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a gateway for origin. A nil network uses http.DefaultTransport.
// Until a worker is registered and active, every request passes through.
func New(origin string, network http.RoundTripper, caches CacheStorage, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway origin must be absolute: %q", origin)
	}
	if network == nil {
		network = http.DefaultTransport
	}

	g := &Gateway{
		origin:   u,
		network:  network,
		caches:   caches,
		prefixes: append([]string(nil), DefaultAPIPrefixes...),
		now:      time.Now,
		log:      logger.WithFields(logger.F("component", "gateway")),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bus == nil {
		g.bus = EventBus.New()
	}
	return g, nil
}

// Origin returns the origin whose requests are intercepted.
func (g *Gateway) Origin() *url.URL {
	u := *g.origin
	return &u
}

// Bus returns the bus lifecycle events are published on.
func (g *Gateway) Bus() EventBus.Bus {
	return g.bus
}

// Caches returns the underlying cache storage.
func (g *Gateway) Caches() CacheStorage {
	return g.caches
}

// RoundTrip implements http.RoundTripper.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	w := g.controller()
	if w == nil || !g.intercepts(req) {
		return g.network.RoundTrip(req)
	}
	if g.isAPI(req.URL.Path) {
		return g.networkFirst(req, w)
	}
	return g.cacheFirst(req, w)
}

func (g *Gateway) controller() *Worker {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

func (g *Gateway) intercepts(req *http.Request) bool {
	if req.Method != http.MethodGet && req.Method != "" {
		return false
	}
	return sameOrigin(req.URL, g.origin)
}

func (g *Gateway) isAPI(path string) bool {
	for _, p := range g.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(hostPort(a), hostPort(b))
}

func hostPort(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return host + ":" + port
}

// networkFirst stores every network response in the runtime cache; on network
// failure the exact cached request is served, and a miss returns the network
// error unchanged.
func (g *Gateway) networkFirst(req *http.Request, w *Worker) (*http.Response, error) {
	ctx := req.Context()
	key := RequestKey(req.URL)

	resp, err := g.network.RoundTrip(req)
	if err == nil {
		entry, bufErr := bufferResponse(resp, g.now())
		if bufErr == nil {
			g.store(ctx, w.RuntimeName, key, entry)
			return resp, nil
		}
		err = bufErr
	}

	entry, ok, matchErr := g.caches.Match(ctx, key)
	if matchErr != nil {
		g.log.Warn("Cache lookup failed", logger.F("key", key), logger.Err(matchErr))
	}
	if !ok {
		g.log.Debug("Network failed with no cached copy", logger.F("key", key), logger.Err(err))
		return nil, err
	}
	g.log.Info("Serving cached response while offline", logger.F("key", key), logger.Err(err))
	return entry.Response(req), nil
}

// cacheFirst serves any cached copy; otherwise it fetches and caches only 200s.
func (g *Gateway) cacheFirst(req *http.Request, w *Worker) (*http.Response, error) {
	ctx := req.Context()
	key := RequestKey(req.URL)

	entry, ok, err := g.caches.Match(ctx, key)
	if err != nil {
		g.log.Warn("Cache lookup failed", logger.F("key", key), logger.Err(err))
	}
	if ok {
		return entry.Response(req), nil
	}

	resp, err := g.network.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	entry, err = bufferResponse(resp, g.now())
	if err != nil {
		return nil, err
	}
	g.store(ctx, w.RuntimeName, key, entry)
	return resp, nil
}

func (g *Gateway) store(ctx context.Context, cacheName, key string, entry Entry) {
	cache, err := g.caches.Open(ctx, cacheName)
	if err == nil {
		err = cache.Put(ctx, key, entry)
	}
	if err != nil {
		g.log.Warn("Failed to cache response", logger.F("cache", cacheName), logger.F("key", key), logger.Err(err))
	}
}
