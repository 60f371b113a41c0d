package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/existflow/narodplus/internal/api"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Sign in to Народный+ and manage the session stored on this device.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with phone or email",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	RunE:  runStatus,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().String("login", "", "Phone or email")
	registerCmd.Flags().String("verify", "", "Confirm the phone or email first with a one-time code (sms or mail)")
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	value, _ := reader.ReadString('\n')
	return strings.TrimSpace(value)
}

func promptPassword(label string) string {
	fmt.Print(label)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(passwordBytes)
}

// completeAuth persists what login or registration returned.
func completeAuth(ctx context.Context, app *App, resp *api.AuthResponse) error {
	if !app.Store.SaveAuthToken(ctx, resp.AccessToken) {
		return fmt.Errorf("failed to store the session")
	}
	if !app.Store.SaveUserData(ctx, resp.User) {
		logger.Warn("Failed to store user data", logger.F("user", resp.User.ID))
	}

	if resp.HasSubscription() {
		app.Store.SaveSubscription(ctx, resp.Subscription)
		return nil
	}
	if resp.User.ID == "" {
		return nil
	}
	if _, _, err := app.QR.SyncSubscription(ctx, resp.User.ID); err != nil {
		logger.Warn("Subscription sync after sign in failed", logger.Err(err))
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	reader := bufio.NewReader(os.Stdin)
	login, _ := cmd.Flags().GetString("login")
	if login == "" {
		login = prompt(reader, "Phone or email: ")
	}
	password := promptPassword("Password: ")

	fmt.Println("🔄 Signing in...")
	resp, err := app.API.Login(ctx, api.LoginRequest{EmailOrPhone: login, Password: password})
	if err != nil {
		return err
	}
	if err := completeAuth(ctx, app, resp); err != nil {
		return err
	}

	fmt.Printf("✅ Signed in as %s\n", displayName(resp))
	return nil
}

func displayName(resp *api.AuthResponse) string {
	if resp.User.FullName != "" {
		return resp.User.FullName
	}
	if resp.User.Phone != "" {
		return resp.User.Phone
	}
	return resp.User.Email
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.Store.IsAuthenticated(ctx) {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Println("🔄 Signing out...")
	if !app.Store.ClearAll(ctx) {
		return fmt.Errorf("failed to clear the session")
	}

	fmt.Println("✅ Signed out.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	reader := bufio.NewReader(os.Stdin)

	req := api.RegisterRequest{
		FullName: prompt(reader, "Full name: "),
		Phone:    prompt(reader, "Phone: "),
		Email:    prompt(reader, "Email (optional): "),
		Gender:   strings.ToLower(prompt(reader, "Gender (male/female): ")),
	}

	req.Password = promptPassword("Password: ")
	if confirm := promptPassword("Confirm Password: "); req.Password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	method, _ := cmd.Flags().GetString("verify")
	if method != "" {
		target := req.Phone
		if method == "mail" {
			target = req.Email
		}
		fmt.Printf("📬 Sending a code to %s...\n", target)
		if err := app.API.RequestVerificationCode(ctx, api.VerificationCodeRequest{EmailOrPhone: target, Method: method}); err != nil {
			return err
		}
		req.Code = prompt(reader, "Code: ")
		if err := app.API.VerifyOTP(ctx, api.VerifyOTPRequest{Target: target, OTP: req.Code}); err != nil {
			return err
		}
	}

	answer := strings.ToLower(prompt(reader, "Accept the terms of service? (y/N): "))
	req.AcceptTerms = answer == "y" || answer == "yes"

	fmt.Println("🔄 Creating account...")
	resp, err := app.API.Register(ctx, req)
	if err != nil {
		return err
	}
	if err := completeAuth(ctx, app, resp); err != nil {
		return err
	}

	fmt.Println("✅ Account created and signed in!")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	token, ok := app.Store.AuthToken(ctx)
	if !ok || token == "" {
		fmt.Println("Not signed in.")
		return nil
	}

	if user, ok := app.Store.UserData(ctx); ok {
		fmt.Printf("👤 %s (%s)\n", user.FullName, user.Phone)
	}

	claims, err := tokenClaims(token)
	if err != nil {
		fmt.Println("🔑 Session token stored (not a readable JWT)")
		return nil
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		left := time.Until(exp.Time).Round(time.Minute)
		if left <= 0 {
			fmt.Printf("⚠️  Session expired at %s, sign in again\n", exp.Local().Format("02.01.2006 15:04"))
		} else {
			fmt.Printf("🔑 Session valid until %s (%s left)\n", exp.Local().Format("02.01.2006 15:04"), left)
		}
	}
	return nil
}

// tokenClaims decodes the session token without verifying it; only the
// backend holds the key.
func tokenClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
