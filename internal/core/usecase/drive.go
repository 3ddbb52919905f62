package usecase

import (
	"context"
	"fmt"

	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

// Drive runs a flow to completion against a synchronous host: every command
// is rendered and its response fed back until the final closing command has
// been rendered.
func Drive(ctx context.Context, flow *Flow, host ports.Host) error {
	cmd, err := flow.Start(ctx)
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := host.Render(ctx, cmd)
		if err != nil {
			return fmt.Errorf("render %T: %w", cmd, err)
		}
		if flow.State() == StateEnd {
			return nil
		}
		cmd, err = flow.Resume(ctx, resp)
		if err != nil {
			return err
		}
	}
}
