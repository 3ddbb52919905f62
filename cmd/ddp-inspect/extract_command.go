package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d3i-infra/port-google-home/internal/infrastructure/export/xlsx"
)

func newExtractCommand(opts *inspectOptions) *cobra.Command {
	var xlsxPath string
	var sheet string

	cmd := &cobra.Command{
		Use:   "extract <archive.zip>",
		Short: "Print the normalized interaction table of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, ref, err := opts.pipelineFor(args[0])
			if err != nil {
				return err
			}

			result := pipeline.Validator.Validate(cmd.Context(), ref)
			if !result.Recognized() {
				return fmt.Errorf("archive %s not recognized: %s", ref, result.Status)
			}
			table := pipeline.Extractor.Extract(cmd.Context(), ref, result)

			if xlsxPath == "" {
				return writeJSON(cmd, table)
			}

			f, err := os.Create(xlsxPath)
			if err != nil {
				return fmt.Errorf("create xlsx: %w", err)
			}
			if err := xlsx.WriteTable(f, sheet, table); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close xlsx: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(table), xlsxPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the table to this XLSX file instead of stdout")
	cmd.Flags().StringVar(&sheet, "sheet", "Google Home", "Sheet name for --xlsx")
	return cmd
}
