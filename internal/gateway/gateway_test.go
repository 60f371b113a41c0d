package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/existflow/narodplus/internal/db"
)

var errOffline = errors.New("network unreachable")

// switchable fails every request while offline is set.
type switchable struct {
	base    http.RoundTripper
	offline atomic.Bool
	calls   atomic.Int32
}

func (s *switchable) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	if s.offline.Load() {
		return nil, errOffline
	}
	return s.base.RoundTrip(req)
}

type backend struct {
	*httptest.Server
	hits atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/qr/today/", func(w http.ResponseWriter, r *http.Request) {
		n := b.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"code-%d"}`, n)
	})
	mux.HandleFunc("/broken.css", func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := b.hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "asset %s #%d", r.URL.Path, n)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func newGateway(t *testing.T, b *backend, caches CacheStorage, opts ...Option) (*Gateway, *switchable) {
	t.Helper()
	net := &switchable{base: b.Client().Transport}
	g, err := New(b.URL, net, caches, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, net
}

func get(t *testing.T, g *Gateway, url string) (*http.Response, string, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := g.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body), nil
}

func TestNetworkFirstServesCacheWhenOffline(t *testing.T) {
	b := newBackend(t)
	g, net := newGateway(t, b, NewMemoryStorage())
	if err := g.Register(context.Background(), NewWorker("v1", []string{"/"})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, online, err := get(t, g, b.URL+"/qr/today/abc")
	if err != nil {
		t.Fatalf("online GET: %v", err)
	}
	if online != `{"token":"code-2"}` {
		t.Fatalf("unexpected online body %q", online)
	}

	net.offline.Store(true)
	resp, offline, err := get(t, g, b.URL+"/qr/today/abc")
	if err != nil {
		t.Fatalf("offline GET should be served from cache: %v", err)
	}
	if offline != online {
		t.Fatalf("offline body %q, want %q", offline, online)
	}
	if resp.Header.Get(HeaderCache) != "hit" {
		t.Fatalf("expected cache marker header")
	}

	if _, _, err := get(t, g, b.URL+"/qr/today/other"); !errors.Is(err, errOffline) {
		t.Fatalf("cache miss should propagate the network error, got %v", err)
	}
}

func TestNetworkFirstPrefersNetwork(t *testing.T) {
	b := newBackend(t)
	g, _ := newGateway(t, b, NewMemoryStorage())
	if err := g.Register(context.Background(), NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, first, _ := get(t, g, b.URL+"/qr/today/abc")
	_, second, _ := get(t, g, b.URL+"/qr/today/abc")
	if first == second {
		t.Fatalf("network-first must not serve a cached copy while online: %q", first)
	}
}

func TestCacheFirstCachesOnlyOK(t *testing.T) {
	b := newBackend(t)
	g, net := newGateway(t, b, NewMemoryStorage())
	if err := g.Register(context.Background(), NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, first, _ := get(t, g, b.URL+"/app.js")
	_, second, _ := get(t, g, b.URL+"/app.js")
	if first != second {
		t.Fatalf("cache-first should reuse the cached asset: %q vs %q", first, second)
	}

	resp, _, _ := get(t, g, b.URL+"/broken.css")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	before := net.calls.Load()
	get(t, g, b.URL+"/broken.css")
	if net.calls.Load() != before+1 {
		t.Fatalf("failed responses must not be cached")
	}

	net.offline.Store(true)
	_, offline, err := get(t, g, b.URL+"/app.js")
	if err != nil || offline != first {
		t.Fatalf("cached asset offline: %q err=%v", offline, err)
	}
}

func TestPassThrough(t *testing.T) {
	b := newBackend(t)
	caches := NewMemoryStorage()
	g, _ := newGateway(t, b, caches)
	ctx := context.Background()
	if err := g.Register(ctx, NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, b.URL+"/qr/generate", strings.NewReader(`{}`))
	resp, err := g.RoundTrip(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "elsewhere")
	}))
	defer other.Close()
	req, _ = http.NewRequest(http.MethodGet, other.URL+"/qr/today/x", nil)
	resp, err = g.RoundTrip(req)
	if err != nil {
		t.Fatalf("cross-origin GET: %v", err)
	}
	resp.Body.Close()

	keys, _ := caches.Keys(ctx)
	for _, name := range keys {
		c, _ := caches.Open(ctx, name)
		entries, _ := c.Keys(ctx)
		if len(entries) != 0 {
			t.Fatalf("pass-through requests must not be cached, %s has %v", name, entries)
		}
	}
}

func TestUncontrolledGatewayPassesThrough(t *testing.T) {
	b := newBackend(t)
	g, net := newGateway(t, b, NewMemoryStorage())

	get(t, g, b.URL+"/qr/today/abc")
	net.offline.Store(true)
	if _, _, err := get(t, g, b.URL+"/qr/today/abc"); !errors.Is(err, errOffline) {
		t.Fatalf("nothing should be cached before activation, got %v", err)
	}
}

func TestInstallPrecachesManifest(t *testing.T) {
	b := newBackend(t)
	caches := NewMemoryStorage()
	g, net := newGateway(t, b, caches)

	w := NewWorker("v1", nil)
	if err := g.Register(context.Background(), w); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if int(b.hits.Load()) != len(DefaultManifest) {
		t.Fatalf("expected %d precache fetches, got %d", len(DefaultManifest), b.hits.Load())
	}

	net.offline.Store(true)
	_, body, err := get(t, g, b.URL+"/manifest.json")
	if err != nil || !strings.HasPrefix(body, "asset /manifest.json") {
		t.Fatalf("precached asset offline: %q err=%v", body, err)
	}
}

func TestInstallFailsOnMissingAsset(t *testing.T) {
	b := newBackend(t)
	g, _ := newGateway(t, b, NewMemoryStorage())

	err := g.Register(context.Background(), NewWorker("v1", []string{"/", "/missing.png"}))
	if err == nil {
		t.Fatalf("expected install failure")
	}
	st, _ := g.Status(context.Background())
	if st.Active != "" {
		t.Fatalf("failed install must not activate, got %+v", st)
	}
}

func TestActivationPrunesUnknownCaches(t *testing.T) {
	b := newBackend(t)
	caches := NewMemoryStorage()
	ctx := context.Background()
	if _, err := caches.Open(ctx, "narod-v0"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := caches.Open(ctx, "something-else"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	bus := EventBus.New()
	var changed []string
	if err := bus.Subscribe(TopicControllerChange, func(v string) { changed = append(changed, v) }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	g, _ := newGateway(t, b, caches, WithBus(bus))
	if err := g.Register(ctx, NewWorker("v1", []string{"/"})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	get(t, g, b.URL+"/qr/today/abc")

	names, _ := caches.Keys(ctx)
	want := []string{"narod-v1", "narod-runtime-v1"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("caches after activation: %v, want %v", names, want)
	}
	if len(changed) != 1 || changed[0] != "v1" {
		t.Fatalf("expected one controller change, got %v", changed)
	}
}

func TestSkipWaitingMessage(t *testing.T) {
	b := newBackend(t)
	g, _ := newGateway(t, b, NewMemoryStorage())
	ctx := context.Background()

	if err := g.Register(ctx, NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register v1: %v", err)
	}
	v2 := NewWorker("v2", []string{})
	v2.SkipWaiting = false
	if err := g.Register(ctx, v2); err != nil {
		t.Fatalf("Register v2: %v", err)
	}

	st, _ := g.Status(ctx)
	if st.Active != "v1" || st.Waiting != "v2" {
		t.Fatalf("expected v2 waiting behind v1, got %+v", st)
	}

	if err := g.PostMessage(ctx, Message{Type: "PING"}); err != nil {
		t.Fatalf("unknown message: %v", err)
	}
	st, _ = g.Status(ctx)
	if st.Active != "v1" {
		t.Fatalf("unknown messages must be ignored, got %+v", st)
	}

	if err := g.PostMessage(ctx, Message{Type: MessageSkipWaiting}); err != nil {
		t.Fatalf("skip waiting: %v", err)
	}
	st, _ = g.Status(ctx)
	if st.Active != "v2" || st.Waiting != "" {
		t.Fatalf("expected v2 active, got %+v", st)
	}

	if err := g.Register(ctx, NewWorker("v2", []string{"/missing.png"})); err != nil {
		t.Fatalf("re-registering the active version is a no-op: %v", err)
	}
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "gateway.db")
	ctx := context.Background()

	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	g, _ := newGateway(t, b, NewSQLiteStorage(database))
	if err := g.Register(ctx, NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, online, err := get(t, g, b.URL+"/qr/today/abc")
	if err != nil {
		t.Fatalf("online GET: %v", err)
	}
	database.Close()

	database, err = db.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer database.Close()

	g2, net := newGateway(t, b, NewSQLiteStorage(database))
	if err := g2.Register(ctx, NewWorker("v1", []string{})); err != nil {
		t.Fatalf("Register after reopen: %v", err)
	}
	net.offline.Store(true)
	resp, offline, err := get(t, g2, b.URL+"/qr/today/abc")
	if err != nil {
		t.Fatalf("offline GET after reopen: %v", err)
	}
	if offline != online || resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("restored entry: %q %v", offline, resp.Header)
	}
}

func TestSQLiteStorageDeleteCascades(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer database.Close()
	ctx := context.Background()
	s := NewSQLiteStorage(database)

	c, _ := s.Open(ctx, "old")
	if err := c.Put(ctx, "k", Entry{Status: 200, Body: []byte("x")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, _ := s.Has(ctx, "old"); !ok {
		t.Fatalf("expected cache to exist")
	}
	if deleted, err := s.Delete(ctx, "old"); err != nil || !deleted {
		t.Fatalf("Delete: %v %v", deleted, err)
	}
	if _, ok, _ := s.Match(ctx, "k"); ok {
		t.Fatalf("entries should go with their cache")
	}
	if deleted, _ := s.Delete(ctx, "old"); deleted {
		t.Fatalf("second delete should report false")
	}
}
