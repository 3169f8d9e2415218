package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/discoverdb/internal/app"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh genres, catalogs and trending lists",
	Long: `Refresh runs the genre, catalog and trending fetches for every
content type. Lists still within the cache TTL are served from the store.
The outcome is posted to Discord when a webhook is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		if err := application.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
