package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/existflow/narodplus/internal/model"
)

// Login authenticates with email or phone and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	const op = "api.Login"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, op, http.MethodPost, []string{"auth", "login"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	const op = "api.Register"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, op, http.MethodPost, []string{"auth", "register"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestVerificationCode asks the backend to send a one-time code.
func (c *Client) RequestVerificationCode(ctx context.Context, req VerificationCodeRequest) error {
	const op = "api.RequestVerificationCode"
	if err := c.check(op, req); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, []string{"auth", "verification-otp"}, req, nil)
}

// VerifyOTP checks a one-time code.
func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) error {
	const op = "api.VerifyOTP"
	if err := c.check(op, req); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, []string{"auth", "verify-otp"}, req, nil)
}

// TodayToken fetches today's redemption token for a subscription.
func (c *Client) TodayToken(ctx context.Context, subscriptionID string) (*TodayTokenResponse, error) {
	const op = "api.TodayToken"
	if err := c.check(op, struct {
		ID string `validate:"required"`
	}{subscriptionID}); err != nil {
		return nil, err
	}
	var out TodayTokenResponse
	if err := c.do(ctx, op, http.MethodGet, []string{"qr", "today", subscriptionID}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateQR asks the backend to issue a token.
func (c *Client) GenerateQR(ctx context.Context, req GenerateQRRequest) (*GenerateQRResponse, error) {
	const op = "api.GenerateQR"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var out GenerateQRResponse
	if err := c.do(ctx, op, http.MethodPost, []string{"qr", "generate"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Usages fetches the redemption history of a subscription.
func (c *Client) Usages(ctx context.Context, subscriptionID string) (*UsageResponse, error) {
	const op = "api.Usages"
	if err := c.check(op, struct {
		ID string `validate:"required"`
	}{subscriptionID}); err != nil {
		return nil, err
	}
	var out UsageResponse
	if err := c.do(ctx, op, http.MethodGet, []string{"qr", "usages", subscriptionID}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubscription subscribes the user to the current plan. The raw entity
// is returned so it can be stored as received.
func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (json.RawMessage, error) {
	const op = "api.CreateSubscription"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.do(ctx, op, http.MethodPost, []string{"subscriptions", "create"}, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MySubscriptions lists the user's subscriptions, raw.
func (c *Client) MySubscriptions(ctx context.Context, userID string) ([]json.RawMessage, error) {
	const op = "api.MySubscriptions"
	if err := c.check(op, struct {
		UserID string `validate:"required"`
	}{userID}); err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, []string{"subscriptions", "my-subscriptions", userID}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscriptionPlan fetches the plan on sale.
func (c *Client) SubscriptionPlan(ctx context.Context) (*model.Plan, error) {
	const op = "api.SubscriptionPlan"
	var out model.Plan
	if err := c.do(ctx, op, http.MethodGet, []string{"subscriptions", "plan"}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment starts a provider payment and returns the confirmation redirect.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error) {
	const op = "api.CreatePayment"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var out model.Payment
	if err := c.do(ctx, op, http.MethodPost, []string{"payments", "create"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
