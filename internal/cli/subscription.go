package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/narodplus/internal/model"
	"github.com/spf13/cobra"
)

var subscriptionCmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Manage your subscription",
	Long: `Show, sync or buy the subscription that unlocks the daily discount code.

Examples:
  narod subscription           # Show the stored subscription
  narod subscription sync      # Reload it from the server
  narod subscription plan      # Show the plan on sale
  narod subscription create    # Subscribe to the plan`,
	RunE: runSubscriptionShow,
}

var subscriptionSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reload the active subscription from the server",
	RunE:  runSubscriptionSync,
}

var subscriptionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Subscribe to the current plan",
	RunE:  runSubscriptionCreate,
}

var subscriptionPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the plan on sale",
	RunE:  runSubscriptionPlan,
}

func init() {
	subscriptionCmd.AddCommand(subscriptionSyncCmd)
	subscriptionCmd.AddCommand(subscriptionCreateCmd)
	subscriptionCmd.AddCommand(subscriptionPlanCmd)
}

func printSubscription(sub model.Subscription, now time.Time) {
	status := "✅"
	if !sub.Active(now) || !sub.IsActive {
		status = "⚠️ "
	}
	fmt.Printf("%s %s  %s\n", status, sub.PlanName, sub.ExpiryLabel(now))
	fmt.Printf("   %s - %s  •  %d uses per day\n",
		sub.StartDate.Local().Format("02.01.2006"),
		sub.EndDate.Local().Format("02.01.2006"),
		sub.MaxUsagesPerDay)
}

func runSubscriptionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	sub, ok := app.Store.Subscription(ctx)
	if !ok || sub.ID == "" {
		fmt.Println("📭 No subscription stored. Run 'narod subscription sync' or 'narod subscription create'.")
		return nil
	}
	printSubscription(sub, time.Now())
	return nil
}

func runSubscriptionSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, err := app.requireSession(ctx)
	if err != nil {
		return err
	}

	fmt.Println("🔄 Loading subscriptions...")
	sub, ok, err := app.QR.SyncSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("📭 No active subscription.")
		return nil
	}
	printSubscription(sub, time.Now())
	return nil
}

func runSubscriptionCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, err := app.requireSession(ctx)
	if err != nil {
		return err
	}

	fmt.Println("🔄 Subscribing...")
	sub, err := app.QR.Subscribe(ctx, userID)
	if err != nil {
		return err
	}
	printSubscription(sub, time.Now())
	fmt.Println("Run 'narod' to see your code.")
	return nil
}

func runSubscriptionPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	plan, err := app.API.SubscriptionPlan(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📦 %s  %s ₽ / %d days\n", plan.Name, plan.Price, plan.DurationDays)
	if plan.Description != "" {
		fmt.Println("   " + plan.Description)
	}
	if plan.MaxUsagesPerDay > 0 {
		fmt.Printf("   up to %d uses per day\n", plan.MaxUsagesPerDay)
	}
	if len(plan.Features) > 0 {
		fmt.Println("   • " + strings.Join(plan.Features, "\n   • "))
	}
	return nil
}
