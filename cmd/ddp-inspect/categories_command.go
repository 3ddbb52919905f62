package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d3i-infra/port-google-home/internal/bootstrap"
)

func newCategoriesCommand(opts *inspectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories [id]",
		Short: "Show the recognized archive categories in match order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := bootstrap.LoadRegistry(opts.categoriesPath)
			if err != nil {
				return fmt.Errorf("load category registry: %w", err)
			}
			if len(args) == 0 {
				return writeJSON(cmd, reg.Categories())
			}
			category, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown category %q", args[0])
			}
			return writeJSON(cmd, category)
		},
	}
}
