package api

import (
	"encoding/json"

	"github.com/existflow/narodplus/internal/model"
)

// Requests carry validate tags; they are checked before any network call.

type LoginRequest struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	Password     string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	FullName    string `json:"fullName" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Gender      string `json:"gender" validate:"required,oneof=male female"`
	Password    string `json:"password" validate:"required"`
	AcceptTerms bool   `json:"acceptTerms" validate:"eq=true"`
	Code        string `json:"code,omitempty"`
}

type VerificationCodeRequest struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	Method       string `json:"method" validate:"required,oneof=sms mail"`
}

type VerifyOTPRequest struct {
	Target string `json:"target" validate:"required"`
	OTP    string `json:"otp" validate:"required"`
}

type GenerateQRRequest struct {
	UserID         string `json:"userId" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type CreateSubscriptionRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type CreatePaymentRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
	UserEmail      string `json:"userEmail,omitempty" validate:"omitempty,email"`
	RedirectURL    string `json:"redirectUrl" validate:"required,url"`
}

// AuthResponse is returned by login and registration. Subscription is only
// present on login and is kept raw for the store.
type AuthResponse struct {
	AccessToken  string            `json:"access_token"`
	User         model.UserProfile `json:"user"`
	Subscription json.RawMessage   `json:"subscription,omitempty"`
}

// HasSubscription reports whether login returned a non-null subscription.
func (r *AuthResponse) HasSubscription() bool {
	return len(r.Subscription) > 0 && string(r.Subscription) != "null"
}

type TodayTokenResponse struct {
	Token          TokenValue `json:"token"`
	ValidFrom      string     `json:"validFrom"`
	ValidTo        string     `json:"validTo"`
	SubscriptionID string     `json:"subscriptionId"`
	DailyLimit     int        `json:"dailyLimit"`
	UsageCount     int        `json:"usageCount"`
	RemainingUses  int        `json:"remainingUses"`
	IsUsed         bool       `json:"isUsed"`
	QRWithPrefix   string     `json:"qrWithPrefix,omitempty"`
}

type GenerateQRResponse struct {
	Token          TokenValue `json:"token"`
	ValidFrom      string     `json:"validFrom"`
	ValidTo        string     `json:"validTo"`
	IsUsed         bool       `json:"isUsed"`
	SubscriptionID string     `json:"subscriptionId"`
}

type UsageRecord struct {
	UsedAt   string `json:"usedAt"`
	Location string `json:"location,omitempty"`
}

type UsageResponse struct {
	UsageCount     int           `json:"usageCount"`
	RemainingUses  int           `json:"remainingUses"`
	DailyLimit     int           `json:"dailyLimit"`
	AvailableCount int           `json:"avalibleUsageCount"`
	Usages         []UsageRecord `json:"usages"`
}
