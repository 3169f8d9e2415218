package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varoOP/discoverdb/internal/app"
	"github.com/varoOP/discoverdb/internal/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search <type> <query>",
	Short: "Search titles and cache the hits",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType, err := domain.ParseContentType(args[0])
		if err != nil {
			return err
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		results, err := application.Content().SearchContent(cmd.Context(), contentType, strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		for _, c := range results {
			fmt.Printf("%-8d %-10s %s\n", c.ID, c.ExternalID, c.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
