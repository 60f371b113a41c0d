package cli

import (
	"fmt"

	"github.com/existflow/narodplus/internal/api"
	"github.com/spf13/cobra"
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Start a payment for the current plan",
	Long: `Create a payment for the plan on sale and print the provider link
to complete it in a browser.`,
	RunE: runPay,
}

func init() {
	payCmd.Flags().String("redirect-url", "", "Where the provider sends you after paying (defaults to the server URL)")
}

func runPay(cmd *cobra.Command, args []string) error {
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
	user, _ := app.Store.UserData(ctx)
	if user.Phone == "" {
		return fmt.Errorf("not enough user data to pay, sign in again")
	}

	plan, err := app.API.SubscriptionPlan(ctx)
	if err != nil {
		return err
	}

	redirect, _ := cmd.Flags().GetString("redirect-url")
	if redirect == "" {
		redirect = app.API.BaseURL()
	}

	fmt.Printf("🔄 Creating payment for %s (%s ₽)...\n", plan.Name, plan.Price)
	payment, err := app.API.CreatePayment(ctx, api.CreatePaymentRequest{
		SubscriptionID: plan.ID,
		UserID:         userID,
		UserEmail:      user.Email,
		RedirectURL:    redirect,
	})
	if err != nil {
		return err
	}
	if payment.ConfirmationURL == "" {
		return fmt.Errorf("the server did not return a payment link")
	}

	fmt.Println("💳 Complete the payment here:")
	fmt.Println(payment.ConfirmationURL)
	return nil
}
