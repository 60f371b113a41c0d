package storage

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/model"
)

// Fixed keys of the client-side layout.
const (
	KeyAuthToken        = "auth_token"
	KeyUserID           = "user_id"
	KeyRefreshToken     = "refresh_token"
	KeyUserData         = "user_data"
	KeySubscriptionData = "subscription_data"
	KeyBiometricEnabled = "biometric_enabled"
	KeyQRToken          = "qr_token"
)

// SessionKeys is everything ClearAll removes on logout.
var SessionKeys = []string{
	KeyAuthToken,
	KeyUserID,
	KeyRefreshToken,
	KeyUserData,
	KeySubscriptionData,
	KeyBiometricEnabled,
	KeyQRToken,
}

// SaveAuthToken stores the bearer token and notifies session subscribers.
func (s *Store) SaveAuthToken(ctx context.Context, token string) bool {
	ok := s.Save(ctx, KeyAuthToken, token)
	if ok {
		s.publishSession(ctx)
	}
	return ok
}

// AuthToken returns the stored bearer token.
func (s *Store) AuthToken(ctx context.Context) (string, bool) {
	var token string
	if !s.Get(ctx, KeyAuthToken, &token) || token == "" {
		return "", false
	}
	return token, true
}

// RemoveAuthToken deletes the bearer token.
func (s *Store) RemoveAuthToken(ctx context.Context) bool {
	return s.Remove(ctx, KeyAuthToken)
}

// IsAuthenticated reports whether a token is present. The token content is
// not inspected; the backend decides whether it is still valid.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.AuthToken(ctx)
	return ok
}

// SaveUserData stores the profile returned at login/registration.
func (s *Store) SaveUserData(ctx context.Context, user model.UserProfile) bool {
	if !s.Save(ctx, KeyUserData, user) {
		return false
	}
	return s.Save(ctx, KeyUserID, user.ID)
}

// UserData returns the stored profile.
func (s *Store) UserData(ctx context.Context) (model.UserProfile, bool) {
	var user model.UserProfile
	if !s.Get(ctx, KeyUserData, &user) {
		return model.UserProfile{}, false
	}
	return user, true
}

// SaveSubscription stores a subscription payload as received, including
// payloads that wrap the entity in a "subscription" field.
func (s *Store) SaveSubscription(ctx context.Context, payload any) bool {
	return s.Save(ctx, KeySubscriptionData, payload)
}

// Subscription returns the stored subscription, unwrapping one level of
// {"subscription": {...}} nesting.
func (s *Store) Subscription(ctx context.Context) (model.Subscription, bool) {
	var raw json.RawMessage
	if !s.Get(ctx, KeySubscriptionData, &raw) {
		return model.Subscription{}, false
	}

	var wrapper struct {
		Subscription json.RawMessage `json:"subscription"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil &&
		len(wrapper.Subscription) > 0 && !bytes.Equal(wrapper.Subscription, []byte("null")) {
		raw = wrapper.Subscription
	}

	var sub model.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		s.log.Warn("Stored subscription is unreadable", logger.Err(err))
		return model.Subscription{}, false
	}
	return sub, true
}

// SaveQRToken mirrors the held redemption code and its validity window.
func (s *Store) SaveQRToken(ctx context.Context, token model.QRToken) bool {
	return s.Save(ctx, KeyQRToken, token)
}

// QRToken returns the last mirrored redemption code.
func (s *Store) QRToken(ctx context.Context) (model.QRToken, bool) {
	var token model.QRToken
	if !s.Get(ctx, KeyQRToken, &token) || token.Code == "" {
		return model.QRToken{}, false
	}
	return token, true
}

// ClearAll removes the fixed session keys (logout).
func (s *Store) ClearAll(ctx context.Context) bool {
	ok := true
	for _, k := range SessionKeys {
		if err := s.backend.Delete(ctx, k); err != nil {
			s.log.Error("Failed to clear key", logger.F("key", k), logger.Err(err))
			ok = false
		}
	}
	s.publishSession(ctx)
	return ok
}
