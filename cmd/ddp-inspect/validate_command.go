package main

import (
	"github.com/spf13/cobra"
)

type validationOutput struct {
	Archive  string `json:"archive"`
	Status   string `json:"status"`
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

func newValidateCommand(opts *inspectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <archive.zip>",
		Short: "Report which category an archive matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, ref, err := opts.pipelineFor(args[0])
			if err != nil {
				return err
			}

			result := pipeline.Validator.Validate(cmd.Context(), ref)
			out := validationOutput{Archive: ref, Status: result.Status.String()}
			if result.Recognized() {
				out.Category = result.Category.ID
				out.Language = string(result.Category.Language)
				out.Format = string(result.Category.Format)
			}
			return writeJSON(cmd, out)
		},
	}
}
