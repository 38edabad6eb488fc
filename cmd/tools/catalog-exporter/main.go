// cmd/tools/catalog-exporter/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"consult-intake/internal/intake/steps"
	"consult-intake/pkg/catalog"
)

const defaultPath = "configs/step-catalog.json"

func main() {
	rootCmd := &cobra.Command{
		Use:          "catalog-exporter",
		Short:        "Export and check the wizard step catalogue",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the step catalogue generated from the step table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			cat := steps.Default().Catalog(time.Now())
			if err := catalog.Validate(cat); err != nil {
				return fmt.Errorf("compiled step table is invalid: %w", err)
			}
			if err := catalog.SaveCatalog(cat, path); err != nil {
				return fmt.Errorf("exporting catalogue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d steps to %s\n", len(cat.Steps), path)
			return nil
		},
	}
	cmd.Flags().StringP("path", "p", defaultPath, "Output path for the step catalogue")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a catalogue file against the step table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			if err := validateFile(path); err != nil {
				return fmt.Errorf("catalogue validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Catalogue validation passed.")
			return nil
		},
	}
	cmd.Flags().StringP("path", "p", defaultPath, "Path to the step catalogue to check")
	return cmd
}

// validateFile checks the file's own structure, then that it still matches
// the compiled step table.
func validateFile(path string) error {
	cat, err := catalog.LoadCatalog(path)
	if err != nil {
		return fmt.Errorf("failed to load catalogue: %w", err)
	}
	if err := catalog.Validate(cat); err != nil {
		return err
	}
	if err := catalog.Diff(steps.Default().Catalog(time.Now()), cat); err != nil {
		return fmt.Errorf("out of date, re-run export: %w", err)
	}
	return nil
}
