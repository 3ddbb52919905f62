package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/d3i-infra/port-google-home/internal/bootstrap"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/archive/ziparchive"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/storage/localfs"
	"github.com/d3i-infra/port-google-home/internal/observability/logging"
)

type inspectOptions struct {
	categoriesPath string
	logLevel       string
}

func newRootCommand() *cobra.Command {
	opts := &inspectOptions{}

	rootCmd := &cobra.Command{
		Use:           "ddp-inspect",
		Short:         "Validate and extract Google Home data download packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.categoriesPath, "categories", "", "Category table YAML (defaults to the built-in table)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level written to stderr")

	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newExtractCommand(opts))
	rootCmd.AddCommand(newSimulateCommand(opts))
	rootCmd.AddCommand(newCategoriesCommand(opts))
	rootCmd.AddCommand(newDonationsCommand())
	return rootCmd
}

// pipelineFor serves a single local archive through the same storage,
// opener and pipeline the API uses.
func (o *inspectOptions) pipelineFor(path string) (bootstrap.Pipeline, string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return bootstrap.Pipeline{}, "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return bootstrap.Pipeline{}, "", fmt.Errorf("inspect archive: %w", err)
	}
	if info.IsDir() {
		return bootstrap.Pipeline{}, "", fmt.Errorf("%s is a directory", absPath)
	}

	storage, err := localfs.New(filepath.Dir(absPath))
	if err != nil {
		return bootstrap.Pipeline{}, "", err
	}
	categories, err := bootstrap.LoadRegistry(o.categoriesPath)
	if err != nil {
		return bootstrap.Pipeline{}, "", fmt.Errorf("load category registry: %w", err)
	}

	logger := o.logger()
	pipeline := bootstrap.NewPipeline(ziparchive.New(storage, info.Size()+1), categories, nil, logger)
	return pipeline, filepath.Base(absPath), nil
}

func (o *inspectOptions) logger() *slog.Logger {
	return logging.NewJSONLoggerTo(os.Stderr, "ddp-inspect", o.logLevel)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
