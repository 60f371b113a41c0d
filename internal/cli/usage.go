package cli

import (
	"fmt"
	"time"

	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/model"
	"github.com/existflow/narodplus/internal/qr"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show how often the code was used",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().IntP("limit", "n", 10, "Number of history entries to show (0 = all)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, ok := app.Store.Subscription(ctx)
	if !ok || sub.ID == "" {
		fmt.Println("📭 No subscription stored.")
		return nil
	}

	now := time.Now()
	var stats model.UsageStats
	resp, err := app.API.Usages(ctx, sub.ID)
	if err != nil {
		logger.Warn("Usage stats unavailable", logger.Err(err))
		fmt.Println("⚠️  Could not load usage, showing defaults")
		stats = qr.DefaultStats(sub, cfg.QR.DefaultDailyLimit)
	} else {
		stats = qr.ComputeStats(resp, sub, cfg.QR.DefaultDailyLimit, now)
	}

	fmt.Printf("Today       %d / %d\n", stats.UsagesToday, stats.MaxUsagesPerDay)
	fmt.Printf("This week   %d\n", stats.UsagesThisWeek)
	fmt.Printf("This month  %d\n", stats.UsagesThisMonth)
	fmt.Printf("Total       %d\n", stats.TotalUsages)
	fmt.Printf("Remaining   %d\n", stats.RemainingUses)
	if stats.LimitReached() {
		fmt.Println("⚠️  Daily limit reached")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	history := stats.History
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	if len(history) > 0 {
		fmt.Println()
	}
	for _, u := range history {
		when := "unknown time"
		if !u.UsedAt.IsZero() {
			when = u.UsedAt.Local().Format("02.01.2006 15:04")
		}
		fmt.Printf("  %-17s  %s\n", when, u.Location)
	}
	return nil
}
