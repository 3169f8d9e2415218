package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/varoOP/discoverdb/internal/app"
	"github.com/varoOP/discoverdb/internal/domain"
)

var detailsCmd = &cobra.Command{
	Use:   "details <type> <external-id>",
	Short: "Print the full details of one title",
	Args:  cobra.ExactArgs(2),
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

		details, err := application.Content().GetContentDetails(cmd.Context(), args[1], contentType)
		if err != nil {
			return fmt.Errorf("details failed: %w", err)
		}
		if details == nil {
			return fmt.Errorf("%s %s not found", contentType, args[1])
		}

		return printJSON(details)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(detailsCmd)
}
