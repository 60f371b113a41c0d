package qr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/apperr"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/model"
)

// PickActive returns the first subscription that ends after now and is
// flagged active, together with its raw form.
func PickActive(raws []json.RawMessage, now time.Time) (model.Subscription, json.RawMessage, bool) {
	for _, raw := range raws {
		var sub model.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		if sub.EndDate.After(now) && sub.IsActive {
			return sub, raw, true
		}
	}
	return model.Subscription{}, nil, false
}

// SyncSubscription reloads the user's subscriptions and mirrors the active one
// into the store. When the backend is unreachable, a stored subscription
// that has not ended yet is kept. A changed subscription is switched to.
func (c *Controller) SyncSubscription(ctx context.Context, userID string) (model.Subscription, bool, error) {
	const op = "qr.SyncSubscription"
	now := c.now()

	raws, err := c.backend.MySubscriptions(ctx, userID)
	if err != nil {
		stored, ok := c.store.Subscription(ctx)
		if ok && stored.EndDate.After(now) {
			c.log.Warn("Subscription sync failed, keeping stored subscription", logger.Err(err))
			return stored, true, nil
		}
		return model.Subscription{}, false, apperr.Wrap(apperr.KindNetwork, op, "failed to load subscriptions", err)
	}

	sub, raw, ok := PickActive(raws, now)
	if !ok {
		return model.Subscription{}, false, nil
	}
	if !c.store.SaveSubscription(ctx, raw) {
		c.log.Warn("Failed to persist active subscription", logger.F("subscription", sub.ID))
	}

	c.mu.Lock()
	switched := c.sub == nil || c.sub.ID != sub.ID
	mounted := c.state != StateUninitialized && c.state != StateUnauthenticated
	c.mu.Unlock()
	if switched && mounted {
		c.SubscriptionChanged(ctx, sub)
	}
	return sub, true, nil
}

// ErrAlreadySubscribed is returned by Subscribe when an active subscription exists.
var ErrAlreadySubscribed = apperr.New(apperr.KindValidation, "qr.Subscribe",
	"an active subscription already exists; wait for it to end before buying a new one")

// Subscribe buys the current plan for userID, stores the new subscription and
// asks the backend to issue its first code. Issuing the code is best effort;
// the screen fetches one anyway.
func (c *Controller) Subscribe(ctx context.Context, userID string) (model.Subscription, error) {
	const op = "qr.Subscribe"

	if existing, ok := c.store.Subscription(ctx); ok && existing.EndDate.After(c.now()) && existing.IsActive {
		return model.Subscription{}, ErrAlreadySubscribed
	}

	raw, err := c.backend.CreateSubscription(ctx, api.CreateSubscriptionRequest{UserID: userID})
	if err != nil {
		return model.Subscription{}, apperr.Wrap(apperr.KindBackend, op, "failed to create subscription", err)
	}

	var sub model.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return model.Subscription{}, apperr.Wrap(apperr.KindBackend, op, "unreadable subscription", err)
	}
	c.store.SaveSubscription(ctx, raw)

	if _, err := c.backend.GenerateQR(ctx, api.GenerateQRRequest{UserID: userID, SubscriptionID: sub.ID}); err != nil {
		c.log.Warn("QR generation failed, will retry on the QR screen", logger.Err(err))
	}

	c.mu.Lock()
	mounted := c.state != StateUninitialized && c.state != StateUnauthenticated
	c.mu.Unlock()
	if mounted {
		c.SubscriptionChanged(ctx, sub)
	}
	return sub, nil
}
