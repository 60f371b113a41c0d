package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/server"
	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run and control the offline cache gateway",
	Long: `The gateway forwards requests to the server and keeps cached copies so
the app keeps working offline.

Examples:
  narod gateway serve                    # Start the gateway front
  narod gateway status                   # Show active and waiting versions
  narod gateway message skip-waiting     # Activate a waiting version`,
}

var gatewayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway front",
	RunE:  runGatewayServe,
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running gateway's versions and caches",
	RunE:  runGatewayStatus,
}

var gatewayMessageCmd = &cobra.Command{
	Use:       "message [skip-waiting]",
	Short:     "Send a control message to the running gateway",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"skip-waiting"},
	RunE:      runGatewayMessage,
}

func init() {
	gatewayCmd.AddCommand(gatewayServeCmd)
	gatewayCmd.AddCommand(gatewayStatusCmd)
	gatewayCmd.AddCommand(gatewayMessageCmd)

	gatewayCmd.PersistentFlags().String("listen", "", "Gateway address (defaults to gateway.listen in the config)")
}

func listenAddr(cmd *cobra.Command) string {
	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr = cfg.Gateway.Listen
	}
	return addr
}

func runGatewayServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx, cfg, cfg.Gateway.Precache)
	if err != nil {
		return err
	}
	defer app.Close()

	_ = app.Gateway.Bus().SubscribeAsync(gateway.TopicControllerChange, func(version string) {
		fmt.Printf("🔁 Gateway %s now in control\n", version)
	}, false)

	srv := server.New(app.Gateway)
	addr := listenAddr(cmd)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()
	fmt.Printf("🌐 Gateway listening on %s, forwarding to %s\n", addr, app.Gateway.Origin())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", logger.Err(err))
		return err
	}
	fmt.Println("Gateway stopped.")
	return nil
}

func gatewayURL(cmd *cobra.Command, path string) string {
	return "http://" + listenAddr(cmd) + server.ControlPrefix + path
}

func printGatewayStatus(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway answered %s", resp.Status)
	}
	var st gateway.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("failed to read gateway status: %w", err)
	}

	active := st.Active
	if active == "" {
		active = "none"
	}
	fmt.Printf("Active:  %s\n", active)
	if st.Waiting != "" {
		fmt.Printf("Waiting: %s\n", st.Waiting)
	}
	fmt.Printf("Caches:  %v\n", st.Caches)
	return nil
}

func runGatewayStatus(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, gatewayURL(cmd, "/status"), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway not reachable: %w", err)
	}
	return printGatewayStatus(resp)
}

func runGatewayMessage(cmd *cobra.Command, args []string) error {
	var msg gateway.Message
	switch args[0] {
	case "skip-waiting":
		msg.Type = gateway.MessageSkipWaiting
	default:
		return fmt.Errorf("unknown message %q", args[0])
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, gatewayURL(cmd, "/message"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway not reachable: %w", err)
	}
	return printGatewayStatus(resp)
}
