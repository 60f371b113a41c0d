package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/existflow/narodplus/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Lifecycle topics published on the gateway bus. Both carry the worker version.
const (
	TopicInstalled        = "gateway:installed"
	TopicControllerChange = "gateway:controllerchange"
)

// MessageSkipWaiting force-activates a waiting worker.
const MessageSkipWaiting = "SKIP_WAITING"

// DefaultManifest is the core shell precached on install.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/icons/icon-192x192.png",
	"/icons/icon-512x512.png",
}

// Worker is one version of the gateway logic and the caches it owns.
type Worker struct {
	ID           string
	Version      string
	PrecacheName string
	RuntimeName  string
	Manifest     []string
	// SkipWaiting activates the worker right after install even when an
	// older version is in control.
	SkipWaiting bool
}

// NewWorker names the caches after version.
func NewWorker(version string, manifest []string) *Worker {
	if manifest == nil {
		manifest = DefaultManifest
	}
	return &Worker{
		ID:           uuid.NewString(),
		Version:      version,
		PrecacheName: "narod-" + version,
		RuntimeName:  "narod-runtime-" + version,
		Manifest:     append([]string(nil), manifest...),
		SkipWaiting:  true,
	}
}

func (w *Worker) knownCaches() map[string]bool {
	return map[string]bool{w.PrecacheName: true, w.RuntimeName: true}
}

// Message is a control message posted by the hosting application.
type Message struct {
	Type string `json:"type" validate:"required"`
}

// Status describes the registration.
type Status struct {
	Active  string   `json:"active,omitempty"`
	Waiting string   `json:"waiting,omitempty"`
	Caches  []string `json:"caches"`
}

// Register installs w and then activates it, or parks it as waiting when a
// different version is in control and w does not skip waiting. Registering
// the active version again is a no-op.
func (g *Gateway) Register(ctx context.Context, w *Worker) error {
	g.mu.RLock()
	current := g.active
	g.mu.RUnlock()
	if current != nil && current.Version == w.Version {
		return nil
	}

	log := g.log.WithFields(logger.F("worker", w.ID), logger.F("version", w.Version))
	log.Info("Installing gateway worker")
	if err := g.install(ctx, w); err != nil {
		log.Error("Gateway install failed", logger.Err(err))
		return err
	}
	g.bus.Publish(TopicInstalled, w.Version)

	if current == nil || w.SkipWaiting {
		return g.activate(ctx, w)
	}

	g.mu.Lock()
	g.waiting = w
	g.mu.Unlock()
	log.Info("Gateway worker waiting", logger.F("active", current.Version))
	return nil
}

// install precaches the manifest concurrently. Any failed asset fails the install.
func (g *Gateway) install(ctx context.Context, w *Worker) error {
	cache, err := g.caches.Open(ctx, w.PrecacheName)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, path := range w.Manifest {
		path := path
		eg.Go(func() error {
			return g.precache(egCtx, cache, path)
		})
	}
	return eg.Wait()
}

func (g *Gateway) precache(ctx context.Context, cache Cache, path string) error {
	ref, err := g.origin.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid precache path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return err
	}

	resp, err := g.network.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fmt.Errorf("precache %s: unexpected status %d", path, resp.StatusCode)
	}

	entry, err := bufferResponse(resp, g.now())
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	return cache.Put(ctx, RequestKey(req.URL), entry)
}

// activate prunes caches w does not know and makes w the controller.
func (g *Gateway) activate(ctx context.Context, w *Worker) error {
	names, err := g.caches.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}
	known := w.knownCaches()
	for _, name := range names {
		if known[name] {
			continue
		}
		g.log.Info("Deleting old cache", logger.F("cache", name))
		if _, err := g.caches.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete cache %s: %w", name, err)
		}
	}

	g.mu.Lock()
	g.active = w
	if g.waiting == w {
		g.waiting = nil
	}
	g.mu.Unlock()

	g.log.Info("Gateway worker activated", logger.F("version", w.Version))
	g.bus.Publish(TopicControllerChange, w.Version)
	return nil
}

// PostMessage handles a control message. Unknown types are ignored.
func (g *Gateway) PostMessage(ctx context.Context, msg Message) error {
	if msg.Type != MessageSkipWaiting {
		g.log.Debug("Ignoring gateway message", logger.F("type", msg.Type))
		return nil
	}

	g.mu.RLock()
	w := g.waiting
	g.mu.RUnlock()
	if w == nil {
		return nil
	}
	return g.activate(ctx, w)
}

// Status reports the active and waiting versions and the cache names.
func (g *Gateway) Status(ctx context.Context) (Status, error) {
	names, err := g.caches.Keys(ctx)
	if err != nil {
		return Status{}, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	st := Status{Caches: names}
	if st.Caches == nil {
		st.Caches = []string{}
	}
	if g.active != nil {
		st.Active = g.active.Version
	}
	if g.waiting != nil {
		st.Waiting = g.waiting.Version
	}
	return st, nil
}

