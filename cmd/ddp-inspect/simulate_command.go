package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d3i-infra/port-google-home/internal/bootstrap"
	"github.com/d3i-infra/port-google-home/internal/config"
	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/usecase"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/sink/logsink"
	"github.com/d3i-infra/port-google-home/internal/observability/logging"
)

// scriptedHost answers every prompt the way a participant with one archive
// would: submit it once, then consent or decline, then skip questionnaires.
type scriptedHost struct {
	archiveRef string
	decline    bool
	submitted  bool
}

func (h *scriptedHost) Render(_ context.Context, cmd domain.Command) (domain.Response, error) {
	render, ok := cmd.(domain.RenderCommand)
	if !ok {
		return domain.PayloadVoid{}, nil
	}
	page, ok := render.Page.(domain.DonationPage)
	if !ok {
		return domain.PayloadVoid{}, nil
	}

	switch body := page.Body.(type) {
	case domain.FileInputPrompt:
		if h.submitted {
			return domain.PayloadFalse{}, nil
		}
		h.submitted = true
		return domain.PayloadString{Value: h.archiveRef}, nil
	case domain.ConfirmPrompt:
		return domain.PayloadFalse{}, nil
	case domain.ConsentFormPrompt:
		if h.decline {
			return domain.PayloadFalse{}, nil
		}
		return consentPayload(body)
	default:
		return domain.PayloadVoid{}, nil
	}
}

func consentPayload(body domain.ConsentFormPrompt) (domain.Response, error) {
	tables := make(map[string]json.RawMessage, len(body.Tables))
	for _, table := range body.Tables {
		frame, err := domain.DataFrameJSON(table.Headers, table.Rows)
		if err != nil {
			return nil, err
		}
		tables[table.ID] = json.RawMessage(frame)
	}
	raw, err := json.Marshal([]map[string]json.RawMessage{tables})
	if err != nil {
		return nil, fmt.Errorf("marshal consent payload: %w", err)
	}
	return domain.PayloadJSON{Value: string(raw)}, nil
}

func newSimulateCommand(opts *inspectOptions) *cobra.Command {
	var decline bool
	var endOrder string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "simulate <archive.zip>",
		Short: "Run the donation flow against an archive and print every donation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, ref, err := opts.pipelineFor(args[0])
			if err != nil {
				return err
			}

			flowOpts := bootstrap.FlowOptions(config.Config{
				FlowEmitStatusEvents: true,
				FlowEndOrder:         endOrder,
			})
			donations := logging.NewJSONLoggerTo(cmd.OutOrStdout(), "ddp-inspect", "info")
			telemetry, logger := logging.NewSessionLogger(opts.logger(), sessionID)

			flow := usecase.NewFlow(sessionID, usecase.FlowDeps{
				Platforms: []usecase.Platform{{
					Name:      "Google Home",
					Validator: pipeline.Validator,
					Extractor: pipeline.Extractor,
				}},
				Sink:      logsink.New(donations),
				Telemetry: telemetry,
				Logger:    logger,
			}, flowOpts)

			host := &scriptedHost{archiveRef: ref, decline: decline}
			return usecase.Drive(cmd.Context(), flow, host)
		},
	}

	cmd.Flags().BoolVar(&decline, "decline", false, "Decline the consent form")
	cmd.Flags().StringVar(&endOrder, "end-order", string(usecase.RenderThenExit), "Closing order: render_then_exit or exit_then_render")
	cmd.Flags().StringVar(&sessionID, "session", "inspect", "Session id used in donation keys")
	return cmd
}
