package model

import "time"

// DefaultRevealSeconds is how long a revealed code stays on screen
const DefaultRevealSeconds = 10

// QRToken is the redemption code currently held for a subscription
type QRToken struct {
	Code           string    `json:"code"`
	ValidFrom      time.Time `json:"validFrom"`
	ValidTo        time.Time `json:"validTo"`
	SubscriptionID string    `json:"subscriptionId"`
	Fallback       bool      `json:"fallback,omitempty"` // synthesized locally, not server-verifiable
}

// Current reports validFrom <= now <= validTo
func (t *QRToken) Current(now time.Time) bool {
	return !now.Before(t.ValidFrom) && !now.After(t.ValidTo)
}

// Expired reports now >= validTo
func (t *QRToken) Expired(now time.Time) bool {
	return !now.Before(t.ValidTo)
}

// Usage is one redemption event reported by the backend
type Usage struct {
	UsedAt   time.Time `json:"usedAt"`
	Location string    `json:"location,omitempty"`
}

// UsageStats is recomputed from the backend history on every fetch
type UsageStats struct {
	TotalUsages     int     `json:"totalUsages"`
	UsagesToday     int     `json:"usagesToday"`
	UsagesThisWeek  int     `json:"usagesThisWeek"`
	UsagesThisMonth int     `json:"usagesThisMonth"`
	MaxUsagesPerDay int     `json:"maxUsagesPerDay"`
	RemainingUses   int     `json:"remainingUses"`
	History         []Usage `json:"history"`
}

// LimitReached reports whether today's allowance is used up
func (u *UsageStats) LimitReached() bool {
	return u.UsagesToday >= u.MaxUsagesPerDay
}

// RevealState is the shoulder-surfing guard around the displayed code
type RevealState struct {
	Visible   bool `json:"visible"`
	Countdown int  `json:"countdown"`
}

// DefaultRevealState is visible with a full countdown
func DefaultRevealState(seconds int) RevealState {
	if seconds <= 0 {
		seconds = DefaultRevealSeconds
	}
	return RevealState{Visible: true, Countdown: seconds}
}
