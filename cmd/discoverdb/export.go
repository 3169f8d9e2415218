package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/discoverdb/internal/app"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the stored catalog to a YAML snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := "snapshot.yaml"
		if len(args) == 1 {
			output = args[0]
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		snapshot, err := application.Export(cmd.Context(), output)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		for _, c := range snapshot.Catalogs {
			fmt.Printf("%s: %d\n", c.Type, len(c.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
