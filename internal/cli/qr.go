package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/qr"
	"github.com/existflow/narodplus/internal/tui"
	"github.com/spf13/cobra"
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Show today's discount code",
	Long: `Open the QR screen. With --plain the code is printed once instead.

Examples:
  narod qr               # Interactive screen
  narod qr --plain       # Print the code and exit
  narod qr refresh       # Replace the current code`,
	RunE: runQR,
}

var qrRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the current code with a new one",
	RunE:  runQRRefresh,
}

func init() {
	qrCmd.AddCommand(qrRefreshCmd)

	qrCmd.Flags().Bool("plain", false, "Print the code once instead of opening the screen")
	qrRefreshCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func runQR(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")
	if !plain {
		return runQRScreen(cmd, args)
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.QR.Mount(ctx)
	fmt.Println(tui.RenderSnapshot(app.QR.Snapshot()))
	return nil
}

// confirmOnStdin asks a y/N question on the terminal
func confirmOnStdin(question string) bool {
	fmt.Printf("%s (y/N): ", question)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func runQRRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.QR.Mount(ctx)
	if snap := app.QR.Snapshot(); snap.State == qr.StateUnauthenticated {
		return fmt.Errorf("not signed in, run 'narod auth login' first")
	}

	yes, _ := cmd.Flags().GetBool("yes")
	confirm := qr.Confirmer(confirmOnStdin)
	if yes || !cfg.ConfirmRefresh {
		confirm = qr.AutoConfirm
	}

	refreshed, err := app.QR.RefreshToken(ctx, confirm)
	if err != nil {
		return err
	}
	if !refreshed {
		fmt.Println("Aborted.")
		return nil
	}

	logger.Info("QR code refreshed from the command line")
	fmt.Println("✅ New code issued")
	fmt.Println(tui.RenderSnapshot(app.QR.Snapshot()))
	return nil
}
