package storage

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/existflow/narodplus/internal/model"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, Backend) {
	t.Helper()
	b := NewMemory()
	s, err := New(context.Background(), b, "", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, b
}

func TestSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	values := []any{
		"plain string",
		map[string]any{"nested": map[string]any{"n": 1.5, "list": []any{"a", true}}},
		[]any{1.0, "two", nil},
	}
	for i, v := range values {
		key := "k" + string(rune('0'+i))
		if !s.Save(ctx, key, v) {
			t.Fatalf("Save %d failed", i)
		}
		out := reflect.New(reflect.TypeOf(v))
		if !s.Get(ctx, key, out.Interface()) {
			t.Fatalf("Get %d failed", i)
		}
		if !reflect.DeepEqual(out.Elem().Interface(), v) {
			t.Fatalf("round trip %d: got %#v want %#v", i, out.Elem().Interface(), v)
		}
	}

	user := model.UserProfile{ID: "u1", FullName: "Ivan", Phone: "+7900"}
	if !s.SaveUserData(ctx, user) {
		t.Fatalf("SaveUserData failed")
	}
	got, ok := s.UserData(ctx)
	if !ok || got != user {
		t.Fatalf("UserData: %+v ok=%v", got, ok)
	}
	var id string
	if !s.Get(ctx, KeyUserID, &id) || id != "u1" {
		t.Fatalf("user id not mirrored: %q", id)
	}
}

func TestEnvelopeCarriesSchemaVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s, b := newTestStore(t, WithClock(func() time.Time { return now }))

	s.Save(ctx, "k", "v")
	raw, ok, _ := b.Get(ctx, "k")
	if !ok {
		t.Fatalf("missing raw value")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Version != SchemaVersion || env.Timestamp != now.UnixMilli() {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	ts, ok := s.Timestamp(ctx, "k")
	if !ok || !ts.Equal(time.UnixMilli(now.UnixMilli())) {
		t.Fatalf("Timestamp: %v ok=%v", ts, ok)
	}
}

func TestLegacyEnvelopeWithoutVersionIsReadable(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)
	_ = b.Put(ctx, KeyAuthToken, []byte(`{"value":"legacy-token","timestamp":1700000000000}`))

	token, ok := s.AuthToken(ctx)
	if !ok || token != "legacy-token" {
		t.Fatalf("AuthToken: %q ok=%v", token, ok)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)
	s.Save(ctx, "a", 1)
	s.SaveAuthToken(ctx, "tok")

	if !s.Clear(ctx) {
		t.Fatalf("first Clear failed")
	}
	first, _ := b.Keys(ctx)
	if !s.Clear(ctx) {
		t.Fatalf("second Clear failed")
	}
	second, _ := b.Keys(ctx)
	if len(first) != 0 || len(second) != 0 {
		t.Fatalf("expected empty store, got %v then %v", first, second)
	}
	if s.IsAuthenticated(ctx) {
		t.Fatalf("expected unauthenticated after clear")
	}
}

func TestIsAuthenticatedIsPresenceOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if s.IsAuthenticated(ctx) {
		t.Fatalf("empty store should not be authenticated")
	}
	s.SaveAuthToken(ctx, "not.a.jwt")
	if !s.IsAuthenticated(ctx) {
		t.Fatalf("any present token counts")
	}
	s.SaveAuthToken(ctx, "")
	if s.IsAuthenticated(ctx) {
		t.Fatalf("empty token does not count")
	}
	s.Save(ctx, KeyAuthToken, nil)
	if s.IsAuthenticated(ctx) {
		t.Fatalf("null token does not count")
	}
}

func TestSubscriptionUnwrapsNesting(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	wrapped := map[string]any{
		"status": "ok",
		"subscription": map[string]any{
			"id": "sub-1", "planName": "Plus",
			"startDate": "2024-01-01T00:00:00Z", "endDate": "2024-01-31T00:00:00Z",
		},
	}
	s.SaveSubscription(ctx, wrapped)
	sub, ok := s.Subscription(ctx)
	if !ok || sub.ID != "sub-1" || sub.PlanName != "Plus" {
		t.Fatalf("nested: %+v ok=%v", sub, ok)
	}

	s.SaveSubscription(ctx, map[string]any{"id": "sub-2", "name": "Basic", "startDate": "2024-01-01", "endDate": "2024-02-01"})
	sub, ok = s.Subscription(ctx)
	if !ok || sub.ID != "sub-2" || sub.PlanName != "Basic" {
		t.Fatalf("flat: %+v ok=%v", sub, ok)
	}
}

func TestSaveWithOptionsExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, b := newTestStore(t, WithClock(func() time.Time { return now }))

	s.SaveWithOptions(ctx, "otp", "1234", time.Minute)
	var v string
	if !s.GetItem(ctx, "otp", &v) || v != "1234" {
		t.Fatalf("expected fresh item, got %q", v)
	}

	now = now.Add(2 * time.Minute)
	if s.GetItem(ctx, "otp", &v) {
		t.Fatalf("expected expired item to be absent")
	}
	if _, ok, _ := b.Get(ctx, "otp"); ok {
		t.Fatalf("expired item should be deleted")
	}
}

func TestClearAllRemovesSessionKeysOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.SaveAuthToken(ctx, "tok")
	s.SaveUserData(ctx, model.UserProfile{ID: "u"})
	s.Save(ctx, "prefs", "dark")
	s.SaveQRToken(ctx, model.QRToken{Code: "code", SubscriptionID: "sub-1"})
	if token, ok := s.QRToken(ctx); !ok || token.Code != "code" {
		t.Fatalf("QRToken = %+v %v", token, ok)
	}

	if !s.ClearAll(ctx) {
		t.Fatalf("ClearAll failed")
	}
	if s.IsAuthenticated(ctx) {
		t.Fatalf("token should be gone")
	}
	if _, ok := s.QRToken(ctx); ok {
		t.Fatalf("QR token should be gone")
	}
	var prefs string
	if !s.Get(ctx, "prefs", &prefs) {
		t.Fatalf("non-session key should survive ClearAll")
	}
}

func TestSealedStore(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()

	s, err := New(ctx, b, "correct horse")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SaveAuthToken(ctx, "secret-token")

	raw, _, _ := b.Get(ctx, KeyAuthToken)
	if json.Valid(raw) {
		t.Fatalf("sealed value should not be plain JSON: %s", raw)
	}

	reopened, err := New(ctx, b, "correct horse")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if token, ok := reopened.AuthToken(ctx); !ok || token != "secret-token" {
		t.Fatalf("reopened AuthToken: %q ok=%v", token, ok)
	}

	wrong, err := New(ctx, b, "wrong")
	if err != nil {
		t.Fatalf("wrong passphrase New: %v", err)
	}
	if wrong.IsAuthenticated(ctx) {
		t.Fatalf("wrong passphrase must read as absent")
	}

	if !s.Clear(ctx) {
		t.Fatalf("Clear failed")
	}
	if _, ok, _ := b.Get(ctx, saltKey); !ok {
		t.Fatalf("Clear must keep the salt")
	}
}

type brokenBackend struct{}

var errBroken = errors.New("disk on fire")

func (brokenBackend) Put(context.Context, string, []byte) error { return errBroken }
func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBroken }
func (brokenBackend) Delete(context.Context, string) error { return errBroken }
func (brokenBackend) Keys(context.Context) ([]string, error) { return nil, errBroken }
func (brokenBackend) Close() error { return nil }

func TestStoreAbsorbsBackendFailures(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, brokenBackend{}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if s.Save(ctx, "k", "v") {
		t.Fatalf("Save should report failure")
	}
	var v string
	if s.Get(ctx, "k", &v) {
		t.Fatalf("Get should report absence")
	}
	if s.Remove(ctx, "k") || s.Clear(ctx) || s.ClearAll(ctx) {
		t.Fatalf("mutations should report failure")
	}
	if s.IsAuthenticated(ctx) {
		t.Fatalf("broken store is not authenticated")
	}
	if _, ok := s.Subscription(ctx); ok {
		t.Fatalf("broken store has no subscription")
	}
}

func TestSessionFollowsStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	session := s.Session()

	var events []bool
	session.OnChange(func(authed bool) { events = append(events, authed) })

	s.SaveAuthToken(ctx, "tok")
	s.SaveAuthToken(ctx, "tok2")
	if !session.Authenticated() {
		t.Fatalf("session should be authenticated")
	}
	s.RemoveAuthToken(ctx)
	if session.Authenticated() {
		t.Fatalf("session should be logged out")
	}

	if !reflect.DeepEqual(events, []bool{true, false}) {
		t.Fatalf("unexpected events: %v", events)
	}
}
