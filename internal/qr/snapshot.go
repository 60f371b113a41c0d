package qr

import "github.com/existflow/narodplus/internal/model"

// Snapshot is a read-only copy of the controller state for presentation.
type Snapshot struct {
	State        State
	Subscription *model.Subscription
	Token        *model.QRToken
	// Degraded is set when Token was synthesized because the fetch failed.
	Degraded     bool
	Error        string
	Stats        *model.UsageStats
	Reveal       model.RevealState
	Refreshing   bool
	DaysLeft     int
	ExpiryLabel  string
	LimitReached bool
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      c.state,
		Reveal:     c.reveal,
		Refreshing: c.refreshing,
		Degraded:   c.tokenErr != nil,
	}
	if c.tokenErr != nil {
		snap.Error = "Could not generate the QR code"
	}
	if c.sub != nil {
		sub := *c.sub
		snap.Subscription = &sub
		snap.DaysLeft = sub.DaysLeft(now)
		snap.ExpiryLabel = sub.ExpiryLabel(now)
	}
	if c.token != nil {
		token := *c.token
		snap.Token = &token
	}
	if c.stats != nil {
		stats := *c.stats
		stats.History = append([]model.Usage(nil), c.stats.History...)
		snap.Stats = &stats
		snap.LimitReached = stats.LimitReached()
	}
	return snap
}
