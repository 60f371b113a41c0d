package qr

import (
	"context"
	"time"

	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/model"
)

// Usage windows are counted back from local midnight.
const (
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// RefreshUsage reloads usage stats for the current subscription. On failure
// the stats assume no usage against the subscription's daily limit.
func (c *Controller) RefreshUsage(ctx context.Context) {
	c.mu.Lock()
	if c.sub == nil {
		c.mu.Unlock()
		return
	}
	sub := *c.sub
	c.mu.Unlock()

	var stats model.UsageStats
	resp, err := c.backend.Usages(ctx, sub.ID)
	if err != nil {
		c.log.Warn("Usage stats unavailable, using defaults",
			logger.F("subscription", sub.ID), logger.Err(err))
		stats = DefaultStats(sub, c.cfg.DefaultDailyLimit)
	} else {
		stats = ComputeStats(resp, sub, c.cfg.DefaultDailyLimit, c.now())
	}

	c.mu.Lock()
	if c.sub == nil || c.sub.ID != sub.ID {
		c.mu.Unlock()
		return
	}
	c.stats = &stats
	c.mu.Unlock()
	c.changed()
}

func dailyLimit(sub model.Subscription, fallback int) int {
	if sub.MaxUsagesPerDay > 0 {
		return sub.MaxUsagesPerDay
	}
	return fallback
}

// DefaultStats assumes zero usage.
func DefaultStats(sub model.Subscription, fallbackLimit int) model.UsageStats {
	limit := dailyLimit(sub, fallbackLimit)
	return model.UsageStats{
		MaxUsagesPerDay: limit,
		RemainingUses:   limit,
		History:         []model.Usage{},
	}
}

// ComputeStats counts the history into today/week/month windows ending at now.
// Entries with an unreadable timestamp stay in the history but are not counted.
func ComputeStats(resp *api.UsageResponse, sub model.Subscription, fallbackLimit int, now time.Time) model.UsageStats {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.Add(-weekWindow)
	monthAgo := today.Add(-monthWindow)

	stats := model.UsageStats{
		TotalUsages:     resp.UsageCount,
		MaxUsagesPerDay: resp.DailyLimit,
		RemainingUses:   resp.RemainingUses,
		History:         make([]model.Usage, 0, len(resp.Usages)),
	}
	if stats.MaxUsagesPerDay <= 0 {
		stats.MaxUsagesPerDay = dailyLimit(sub, fallbackLimit)
	}

	for _, u := range resp.Usages {
		usedAt, err := model.ParseTime(u.UsedAt)
		stats.History = append(stats.History, model.Usage{UsedAt: usedAt, Location: u.Location})
		if err != nil || usedAt.IsZero() {
			continue
		}
		if !usedAt.Before(today) {
			stats.UsagesToday++
		}
		if !usedAt.Before(weekAgo) {
			stats.UsagesThisWeek++
		}
		if !usedAt.Before(monthAgo) {
			stats.UsagesThisMonth++
		}
	}
	return stats
}
