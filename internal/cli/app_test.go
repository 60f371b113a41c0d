package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/qr"
	"github.com/golang-jwt/jwt/v5"
)

func testConfig(serverURL string) *config.Config {
	c := config.DefaultConfig()
	c.ServerURL = serverURL
	c.Storage.Driver = "memory"
	c.Storage.PassphraseEnv = ""
	c.Gateway.Persist = false
	return c
}

func TestOpenAppWiresGatewayAndStore(t *testing.T) {
	var sawToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawToken = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"code","validFrom":"2024-01-01","validTo":"2099-01-01","subscriptionId":"sub-1"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	app, err := openApp(ctx, testConfig(srv.URL))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer app.Close()

	st, err := app.Gateway.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Active != "v1" {
		t.Fatalf("gateway worker not active: %+v", st)
	}

	app.Store.SaveAuthToken(ctx, "jwt-token")
	resp, err := app.API.TodayToken(ctx, "sub-1")
	if err != nil {
		t.Fatalf("TodayToken: %v", err)
	}
	if resp.Token.Canonical() != "code" || sawToken != "Bearer jwt-token" {
		t.Fatalf("token = %q, auth header = %q", resp.Token.Canonical(), sawToken)
	}
}

func TestOpenAppWithoutSession(t *testing.T) {
	ctx := context.Background()
	app, err := openApp(ctx, testConfig("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer app.Close()

	if _, err := app.requireSession(ctx); err == nil {
		t.Fatalf("requireSession should fail without a token")
	}
	app.QR.Mount(ctx)
	if got := app.QR.Snapshot().State; got != qr.StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", got)
	}
}

func TestTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	claims, err := tokenClaims(signed)
	if err != nil {
		t.Fatalf("tokenClaims: %v", err)
	}
	got, err := claims.GetExpirationTime()
	if err != nil || got == nil || !got.Time.Equal(exp) {
		t.Fatalf("exp = %v (%v), want %v", got, err, exp)
	}
	if sub, _ := claims.GetSubject(); sub != "user-1" {
		t.Fatalf("sub = %q", sub)
	}

	if _, err := tokenClaims("opaque-session-token"); err == nil {
		t.Fatalf("a non-JWT token should not decode")
	}
}
