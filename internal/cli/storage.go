package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage data stored on this device",
}

var storageClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored data",
	Long: `Remove the session stored on this device. With --all every stored
value is removed, with --caches the offline caches are dropped too.`,
	RunE: runStorageClear,
}

func init() {
	storageCmd.AddCommand(storageClearCmd)

	storageClearCmd.Flags().Bool("all", false, "Remove every stored value, not only the session")
	storageClearCmd.Flags().Bool("caches", false, "Also drop the offline caches")
	storageClearCmd.Flags().Bool("force", false, "Do not ask for confirmation")
}

func runStorageClear(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	caches, _ := cmd.Flags().GetBool("caches")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		fmt.Printf("Are you sure you want to clear data? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if all {
		fmt.Println("🧹 Clearing all stored data...")
		if !app.Store.Clear(ctx) {
			return fmt.Errorf("failed to clear stored data")
		}
	} else {
		fmt.Println("🧹 Clearing the session...")
		if !app.Store.ClearAll(ctx) {
			return fmt.Errorf("failed to clear the session")
		}
	}

	if caches {
		names, err := app.Gateway.Caches().Keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to list caches: %w", err)
		}
		for _, name := range names {
			if _, err := app.Gateway.Caches().Delete(ctx, name); err != nil {
				return fmt.Errorf("failed to delete cache %s: %w", name, err)
			}
		}
		fmt.Printf("Dropped %d caches.\n", len(names))
	}

	fmt.Println("Done.")
	return nil
}
