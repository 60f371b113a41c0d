package qr

import (
	"context"
	"testing"
	"time"

	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/model"
)

func TestComputeStatsWindows(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, time.Local)
	at := func(daysAgo int, hour int) string {
		d := time.Date(2024, 3, 20, hour, 0, 0, 0, time.Local).Add(-time.Duration(daysAgo) * 24 * time.Hour)
		return d.Format(time.RFC3339)
	}

	resp := &api.UsageResponse{
		UsageCount:    12,
		RemainingUses: 2,
		DailyLimit:    5,
		Usages: []api.UsageRecord{
			// today
			{UsedAt: at(0, 0)},
			{UsedAt: at(0, 9)},
			{UsedAt: at(0, 14), Location: "Pyaterochka"},
			// earlier this week
			{UsedAt: at(1, 23)},
			{UsedAt: at(7, 0)},
			// earlier this month
			{UsedAt: at(8, 12)},
			{UsedAt: at(12, 12)},
			{UsedAt: at(20, 12)},
			{UsedAt: at(29, 12)},
			{UsedAt: at(30, 0)},
			// older
			{UsedAt: at(31, 12)},
			{UsedAt: "not a date"},
		},
	}

	stats := ComputeStats(resp, model.Subscription{MaxUsagesPerDay: 3}, 5, now)

	if stats.UsagesToday != 3 || stats.UsagesThisWeek != 5 || stats.UsagesThisMonth != 10 {
		t.Fatalf("windows = %d/%d/%d, want 3/5/10", stats.UsagesToday, stats.UsagesThisWeek, stats.UsagesThisMonth)
	}
	if stats.TotalUsages != 12 || stats.RemainingUses != 2 || stats.MaxUsagesPerDay != 5 {
		t.Fatalf("backend counters not carried over: %+v", stats)
	}
	if len(stats.History) != len(resp.Usages) || stats.History[2].Location != "Pyaterochka" {
		t.Fatalf("history should keep every entry: %+v", stats.History)
	}
	if stats.LimitReached() {
		t.Fatalf("3 of 5 is not the limit, but stats report %+v", stats)
	}
}

func TestComputeStatsLimitFallback(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, time.Local)
	stats := ComputeStats(&api.UsageResponse{}, model.Subscription{MaxUsagesPerDay: 3}, 5, now)
	if stats.MaxUsagesPerDay != 3 {
		t.Fatalf("missing daily limit should come from the subscription, got %d", stats.MaxUsagesPerDay)
	}
	stats = ComputeStats(&api.UsageResponse{}, model.Subscription{}, 5, now)
	if stats.MaxUsagesPerDay != 5 {
		t.Fatalf("missing daily limit should default, got %d", stats.MaxUsagesPerDay)
	}
}

func TestUsageFailureUsesDefaults(t *testing.T) {
	h := newHarness(t, activeSub())
	h.fb.today = returns("code")
	h.c.Mount(h.ctx)

	stats := h.c.Snapshot().Stats
	if stats == nil {
		t.Fatalf("expected default stats")
	}
	if stats.MaxUsagesPerDay != 3 || stats.RemainingUses != 3 || stats.UsagesToday != 0 || len(stats.History) != 0 {
		t.Fatalf("default stats = %+v", stats)
	}

	h.fb.usages = func(context.Context, string) (*api.UsageResponse, error) {
		return &api.UsageResponse{
			DailyLimit: 3,
			Usages: []api.UsageRecord{
				{UsedAt: "2024-01-15T08:00:00"},
				{UsedAt: "2024-01-15T09:00:00"},
				{UsedAt: "2024-01-15T10:00:00"},
			},
		}, nil
	}
	h.c.RefreshUsage(h.ctx)
	if snap := h.c.Snapshot(); !snap.LimitReached {
		t.Fatalf("three uses of three should reach the limit: %+v", snap.Stats)
	}
}
