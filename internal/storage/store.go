package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/existflow/narodplus/internal/logger"
)

// SchemaVersion is written into every envelope. Envelopes from before
// versioning decode as version 0.
const SchemaVersion = 1

// reservedPrefix marks store-internal keys that Clear leaves alone.
const reservedPrefix = "__"

const saltKey = reservedPrefix + "salt"

// envelope is the persisted form of every value.
type envelope struct {
	Version   int             `json:"v"`
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt,omitempty"`
}

// Store is the durable client-side state store. No method returns an error:
// backend failures are logged and reported as false/absent so callers can
// fall back unconditionally.
type Store struct {
	backend Backend
	sealer  *sealer
	bus     EventBus.Bus
	session *Session
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBus shares an event bus with other components.
func WithBus(bus EventBus.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// New wraps backend. A non-empty passphrase enables at-rest sealing; the
// salt is created on first use and kept under a reserved key.
func New(ctx context.Context, backend Backend, passphrase string, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		now:     time.Now,
		log:     logger.WithFields(logger.F("component", "storage")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = EventBus.New()
	}

	if passphrase != "" {
		salt, err := s.loadSalt(ctx)
		if err != nil {
			return nil, err
		}
		sl, err := newSealer(passphrase, salt)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}

	s.session = newSession(s.bus, s.IsAuthenticated(ctx))
	return s, nil
}

func (s *Store) loadSalt(ctx context.Context) ([]byte, error) {
	raw, ok, err := s.backend.Get(ctx, saltKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return base64.StdEncoding.DecodeString(string(raw))
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	if err := s.backend.Put(ctx, saltKey, []byte(base64.StdEncoding.EncodeToString(salt))); err != nil {
		return nil, err
	}
	return salt, nil
}

// Bus returns the event bus the store publishes session changes on.
func (s *Store) Bus() EventBus.Bus {
	return s.bus
}

// Session returns the read-only view of the authentication state.
func (s *Store) Session() *Session {
	return s.session
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Save stores value under key.
func (s *Store) Save(ctx context.Context, key string, value any) bool {
	return s.put(ctx, key, value, 0)
}

// SaveWithOptions stores value under key; it reads as absent once ttl has elapsed.
func (s *Store) SaveWithOptions(ctx context.Context, key string, value any, ttl time.Duration) bool {
	return s.put(ctx, key, value, ttl)
}

func (s *Store) put(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("Failed to encode value", logger.F("key", key), logger.Err(err))
		return false
	}

	now := s.now()
	env := envelope{Version: SchemaVersion, Value: raw, Timestamp: now.UnixMilli()}
	if ttl > 0 {
		env.ExpiresAt = now.Add(ttl).UnixMilli()
	}

	data, err := json.Marshal(env)
	if err != nil {
		s.log.Warn("Failed to encode envelope", logger.F("key", key), logger.Err(err))
		return false
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			s.log.Warn("Failed to seal value", logger.F("key", key), logger.Err(err))
			return false
		}
	}

	if err := s.backend.Put(ctx, key, data); err != nil {
		s.log.Error("Failed to save value", logger.F("key", key), logger.Err(err))
		return false
	}
	return true
}

// Get decodes the value under key into out. It returns false when the key is
// absent, expired, null, unreadable, or does not decode into out.
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	env, ok := s.load(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		s.log.Warn("Failed to decode value", logger.F("key", key), logger.Err(err))
		return false
	}
	return true
}

// GetItem is Get for values saved with a ttl. It exists for parity with
// SaveWithOptions; expiry is honoured by Get as well.
func (s *Store) GetItem(ctx context.Context, key string, out any) bool {
	return s.Get(ctx, key, out)
}

// Timestamp returns when key was last written.
func (s *Store) Timestamp(ctx context.Context, key string) (time.Time, bool) {
	env, ok := s.load(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(env.Timestamp), true
}

func (s *Store) load(ctx context.Context, key string) (envelope, bool) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Error("Failed to read value", logger.F("key", key), logger.Err(err))
		return envelope{}, false
	}
	if !ok {
		return envelope{}, false
	}

	if s.sealer != nil {
		if data, err = s.sealer.open(data); err != nil {
			s.log.Warn("Failed to open sealed value", logger.F("key", key), logger.Err(err))
			return envelope{}, false
		}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn("Corrupt envelope", logger.F("key", key), logger.Err(err))
		return envelope{}, false
	}

	if env.ExpiresAt > 0 && s.now().UnixMilli() > env.ExpiresAt {
		s.log.Debug("Value expired", logger.F("key", key))
		_ = s.backend.Delete(ctx, key)
		return envelope{}, false
	}

	if len(env.Value) == 0 || bytes.Equal(env.Value, []byte("null")) {
		return envelope{}, false
	}
	return env, true
}

// Remove deletes key. Removing an absent key succeeds.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Error("Failed to remove value", logger.F("key", key), logger.Err(err))
		return false
	}
	if key == KeyAuthToken {
		s.publishSession(ctx)
	}
	return true
}

// Clear removes every stored value. It is idempotent.
func (s *Store) Clear(ctx context.Context) bool {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.log.Error("Failed to list keys", logger.Err(err))
		return false
	}

	ok := true
	for _, k := range keys {
		if strings.HasPrefix(k, reservedPrefix) {
			continue
		}
		if err := s.backend.Delete(ctx, k); err != nil {
			s.log.Error("Failed to clear key", logger.F("key", k), logger.Err(err))
			ok = false
		}
	}
	s.publishSession(ctx)
	return ok
}

func (s *Store) publishSession(ctx context.Context) {
	s.bus.Publish(TopicSessionChanged, s.IsAuthenticated(ctx))
}
