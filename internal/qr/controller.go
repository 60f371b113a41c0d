// Package qr drives the redemption screen: it keeps a currently valid token
// for the active subscription, degrades to a locally synthesized token when
// the backend is unreachable, and limits how long the code stays visible.
package qr

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/apperr"
	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/model"
	"github.com/existflow/narodplus/internal/storage"
	"golang.org/x/sync/errgroup"
)

// TopicUpdated is published (without arguments) after every state change.
const TopicUpdated = "qr:updated"

// FallbackDateLayout is the date part of a synthesized code.
const FallbackDateLayout = "Mon Jan 02 2006"

// FallbackValidity is how long a synthesized code is held.
const FallbackValidity = 24 * time.Hour

// RefreshPrompt is shown before a manual refresh.
const RefreshPrompt = "The current QR code will stop working. Refresh?"

// ErrTokenMissing is returned when the backend answers without a token.
var ErrTokenMissing = errors.New("token not received from server")

// Backend is the part of the API client the controller uses.
type Backend interface {
	TodayToken(ctx context.Context, subscriptionID string) (*api.TodayTokenResponse, error)
	Usages(ctx context.Context, subscriptionID string) (*api.UsageResponse, error)
	MySubscriptions(ctx context.Context, userID string) ([]json.RawMessage, error)
	CreateSubscription(ctx context.Context, req api.CreateSubscriptionRequest) (json.RawMessage, error)
	GenerateQR(ctx context.Context, req api.GenerateQRRequest) (*api.GenerateQRResponse, error)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer func(prompt string) bool

// AutoConfirm approves without asking.
func AutoConfirm(string) bool { return true }

// Config tunes the controller.
type Config struct {
	MaxTokenLength    int
	RevealSeconds     int
	ExpiryCheck       time.Duration
	DefaultDailyLimit int
}

// DefaultConfig matches the stock client.
func DefaultConfig() Config {
	return Config{
		MaxTokenLength:    2000,
		RevealSeconds:     model.DefaultRevealSeconds,
		ExpiryCheck:       time.Minute,
		DefaultDailyLimit: model.DefaultMaxUsagesPerDay,
	}
}

// ConfigFrom fills unset values from DefaultConfig.
func ConfigFrom(cfg config.QRConfig) Config {
	c := DefaultConfig()
	if cfg.MaxTokenLength > 0 {
		c.MaxTokenLength = cfg.MaxTokenLength
	}
	if cfg.RevealSeconds > 0 {
		c.RevealSeconds = cfg.RevealSeconds
	}
	if cfg.ExpiryCheck > 0 {
		c.ExpiryCheck = cfg.ExpiryCheck
	}
	if cfg.DefaultDailyLimit > 0 {
		c.DefaultDailyLimit = cfg.DefaultDailyLimit
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSalt overrides the random suffix of synthesized codes.
func WithSalt(salt func() string) Option {
	return func(c *Controller) { c.salt = salt }
}

// Controller owns the token, reveal and usage state of one screen.
type Controller struct {
	store   *storage.Store
	session *storage.Session
	backend Backend
	bus     EventBus.Bus
	cfg     Config
	now     func() time.Time
	salt    func() string
	log     *logger.Logger

	watchOnce sync.Once

	mu         sync.Mutex
	state      State
	sub        *model.Subscription
	token      *model.QRToken
	tokenErr   error
	stats      *model.UsageStats
	reveal     model.RevealState
	generation uint64
	refreshing bool
	refreshSeq uint64
}

// New creates a controller. Updates go out on a bus of its own, so they can
// be published from inside a session change handler.
func New(store *storage.Store, backend Backend, cfg Config, opts ...Option) *Controller {
	if cfg.MaxTokenLength <= 0 || cfg.RevealSeconds <= 0 || cfg.ExpiryCheck <= 0 || cfg.DefaultDailyLimit <= 0 {
		cfg = ConfigFrom(config.QRConfig{
			MaxTokenLength:    cfg.MaxTokenLength,
			RevealSeconds:     cfg.RevealSeconds,
			ExpiryCheck:       cfg.ExpiryCheck,
			DefaultDailyLimit: cfg.DefaultDailyLimit,
		})
	}

	c := &Controller{
		store:   store,
		session: store.Session(),
		backend: backend,
		bus:     EventBus.New(),
		cfg:     cfg,
		now:     time.Now,
		salt:    randomSalt,
		log:     logger.WithFields(logger.F("component", "qr")),
		reveal:  model.DefaultRevealState(cfg.RevealSeconds),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bus returns the bus TopicUpdated is published on.
func (c *Controller) Bus() EventBus.Bus {
	return c.bus
}

func randomSalt() string {
	s := strconv.FormatUint(rand.Uint64(), 36)
	if len(s) > 6 {
		s = s[:6]
	}
	return s
}

func (c *Controller) changed() {
	c.bus.Publish(TopicUpdated)
}

// Mount loads the subscription from the store and, if it is active, fetches
// a token and the usage stats concurrently.
func (c *Controller) Mount(ctx context.Context) {
	c.watchOnce.Do(func() {
		c.session.OnChange(func(authed bool) {
			if !authed {
				c.signOut()
			}
		})
	})

	if !c.session.Authenticated() {
		c.mu.Lock()
		c.state = StateUnauthenticated
		c.mu.Unlock()
		c.changed()
		return
	}

	sub, ok := c.store.Subscription(ctx)
	if !ok || sub.ID == "" {
		c.mu.Lock()
		c.generation++
		c.state = StateNoSubscription
		c.sub = nil
		c.token = nil
		c.mu.Unlock()
		c.changed()
		return
	}

	if !c.activate(sub) {
		return
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c.Fetch(egCtx)
		return nil
	})
	eg.Go(func() error {
		c.RefreshUsage(egCtx)
		return nil
	})
	_ = eg.Wait()
}

// SubscriptionChanged switches to sub. Fetches issued for the previous
// subscription are discarded when they complete.
func (c *Controller) SubscriptionChanged(ctx context.Context, sub model.Subscription) {
	if c.activate(sub) {
		c.Fetch(ctx)
	}
}

// activate records sub and reports whether it is currently active.
func (c *Controller) activate(sub model.Subscription) bool {
	now := c.now()

	c.mu.Lock()
	if c.sub == nil || c.sub.ID != sub.ID {
		c.token = nil
		c.tokenErr = nil
		c.stats = nil
	}
	c.generation++
	s := sub
	c.sub = &s
	c.state = StateCheckingActivity
	active := sub.Active(now)
	if !active {
		c.state = StateExpired
	}
	c.mu.Unlock()

	c.changed()
	return active
}

func (c *Controller) signOut() {
	c.mu.Lock()
	c.generation++
	c.state = StateUnauthenticated
	c.sub = nil
	c.token = nil
	c.tokenErr = nil
	c.stats = nil
	c.refreshing = false
	c.mu.Unlock()

	c.log.Info("Session ended, clearing QR state")
	c.changed()
}

// Fetch requests today's token. A failure degrades to a synthesized token
// and a non-fatal error flag. It reports whether the result was applied; a
// result is dropped when a newer fetch or subscription change was issued
// after this one.
func (c *Controller) Fetch(ctx context.Context) bool {
	c.mu.Lock()
	if c.sub == nil {
		c.mu.Unlock()
		return false
	}
	sub := *c.sub
	c.generation++
	gen := c.generation
	c.state = StateFetchingToken
	c.mu.Unlock()
	c.changed()

	token, err := c.fetchToken(ctx, sub)
	if err != nil {
		c.log.Warn("Token fetch failed, using fallback code",
			logger.F("subscription", sub.ID), logger.Err(err))
		token = c.fallback(sub)
		err = apperr.Wrap(apperr.KindNetwork, "qr.Fetch", "could not generate the QR code", err)
	}

	return c.apply(ctx, gen, token, err)
}

// apply makes token current unless a newer fetch was issued. Server-issued
// tokens are mirrored to the store; a failed write only logs.
func (c *Controller) apply(ctx context.Context, gen uint64, token model.QRToken, fetchErr error) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.log.Debug("Discarding stale token response", logger.F("generation", gen))
		return false
	}
	c.token = &token
	c.tokenErr = fetchErr
	c.state = StateTokenReady
	c.reveal = model.DefaultRevealState(c.cfg.RevealSeconds)
	c.mu.Unlock()

	if !token.Fallback && !c.store.SaveQRToken(ctx, token) {
		c.log.Warn("Failed to mirror QR token", logger.F("subscription", token.SubscriptionID))
	}
	c.changed()
	return true
}

func (c *Controller) fetchToken(ctx context.Context, sub model.Subscription) (model.QRToken, error) {
	resp, err := c.backend.TodayToken(ctx, sub.ID)
	if err != nil {
		return model.QRToken{}, err
	}
	if resp.Token.Empty() {
		return model.QRToken{}, ErrTokenMissing
	}
	return c.tokenFrom(sub, resp.Token, resp.ValidFrom, resp.ValidTo, resp.SubscriptionID), nil
}

// tokenFrom normalizes a backend token. Oversized codes are replaced by the
// subscription id; missing or unreadable validity bounds default to a 24h
// window from now.
func (c *Controller) tokenFrom(sub model.Subscription, value api.TokenValue, validFrom, validTo, subID string) model.QRToken {
	now := c.now()
	code := value.Canonical()
	if len(code) > c.cfg.MaxTokenLength {
		code = sub.ID
	}
	if subID == "" {
		subID = sub.ID
	}

	from, err := model.ParseTime(validFrom)
	if err != nil || from.IsZero() {
		from = now
	}
	to, err := model.ParseTime(validTo)
	if err != nil || to.IsZero() {
		to = now.Add(FallbackValidity)
	}

	return model.QRToken{Code: code, ValidFrom: from, ValidTo: to, SubscriptionID: subID}
}

func (c *Controller) fallback(sub model.Subscription) model.QRToken {
	now := c.now()
	return model.QRToken{
		Code:           sub.ID + "_" + now.Format(FallbackDateLayout) + "_" + c.salt(),
		ValidFrom:      now,
		ValidTo:        now.Add(FallbackValidity),
		SubscriptionID: sub.ID,
		Fallback:       true,
	}
}

// RefreshToken replaces the held token after confirmation. Unlike Fetch it
// never falls back: a failure is returned and the held token is kept. A
// declined confirmation is a no-op. refreshed is false when the request was
// declined or superseded by a newer fetch.
func (c *Controller) RefreshToken(ctx context.Context, confirm Confirmer) (refreshed bool, err error) {
	const op = "qr.RefreshToken"

	c.mu.Lock()
	if c.sub == nil {
		c.mu.Unlock()
		return false, apperr.New(apperr.KindValidation, op, "subscription data not found")
	}
	sub := *c.sub
	c.mu.Unlock()

	if confirm == nil || !confirm(RefreshPrompt) {
		return false, nil
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.refreshSeq++
	seq := c.refreshSeq
	c.refreshing = true
	c.mu.Unlock()
	c.changed()

	defer func() {
		c.mu.Lock()
		if seq == c.refreshSeq {
			c.refreshing = false
		}
		c.mu.Unlock()
		c.changed()
	}()

	token, err := c.fetchToken(ctx, sub)
	if err != nil {
		c.log.Error("Manual refresh failed", logger.F("subscription", sub.ID), logger.Err(err))
		return false, apperr.Wrap(apperr.KindNetwork, op, "failed to refresh the QR code", err)
	}
	return c.apply(ctx, gen, token, nil), nil
}

// CheckExpiry is the expiry watcher body: it fetches a new token once the
// held one has expired, and moves to StateExpired when the subscription has.
func (c *Controller) CheckExpiry(ctx context.Context) bool {
	now := c.now()

	c.mu.Lock()
	if c.sub == nil || c.token == nil || c.state != StateTokenReady {
		c.mu.Unlock()
		return false
	}
	if !c.sub.Active(now) {
		c.generation++
		c.state = StateExpired
		c.mu.Unlock()
		c.changed()
		return false
	}
	expired := c.token.Expired(now)
	c.mu.Unlock()

	if !expired {
		return false
	}
	c.log.Info("Token expired, fetching a new one")
	return c.Fetch(ctx)
}

// Tick is the reveal countdown body, run once per second. The code hides
// when the countdown reaches zero.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.token == nil || !c.reveal.Visible {
		c.mu.Unlock()
		return
	}
	c.reveal.Countdown--
	if c.reveal.Countdown <= 0 {
		c.reveal.Countdown = 0
		c.reveal.Visible = false
	}
	c.mu.Unlock()
	c.changed()
}

// Reveal shows the code again with a full countdown.
func (c *Controller) Reveal() {
	c.mu.Lock()
	c.reveal = model.DefaultRevealState(c.cfg.RevealSeconds)
	c.mu.Unlock()
	c.changed()
}

// Hide masks the code without discarding it.
func (c *Controller) Hide() {
	c.mu.Lock()
	c.reveal.Visible = false
	c.mu.Unlock()
	c.changed()
}

// Run drives the expiry watcher and the reveal countdown until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	expiry := time.NewTicker(c.cfg.ExpiryCheck)
	defer expiry.Stop()
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expiry.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.CheckExpiry(ctx)
			}()
		case <-countdown.C:
			c.Tick()
		}
	}
}
