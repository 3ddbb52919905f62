package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/d3i-infra/port-google-home/internal/config"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
	"github.com/d3i-infra/port-google-home/internal/core/usecase"
	natssink "github.com/d3i-infra/port-google-home/internal/infrastructure/sink/nats"
	"github.com/d3i-infra/port-google-home/internal/observability/logging"
	"github.com/d3i-infra/port-google-home/internal/observability/metrics"
)

type Worker struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.DonationQueue
	Recorder *usecase.RecordDonationUseCase
	Metrics  *metrics.WorkerMetrics

	app *App
}

// NewWorker wires the NATS consumer that persists donation events.
func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	app := &App{Config: cfg, Logger: logger}

	guard := newGuard(cfg, logger, nil)
	repo, err := app.openRepository(ctx, cfg, guard)
	if err != nil {
		app.Close()
		return nil, err
	}

	queue, err := natssink.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natssink.Options{Logger: logger})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init donation queue: %w", err)
	}
	app.closeFns = append(app.closeFns, queue.Close)

	return &Worker{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Recorder: usecase.NewRecordDonationUseCase(repo),
		Metrics:  metrics.NewWorkerMetrics("worker"),
		app:      app,
	}, nil
}

func (w *Worker) Close() {
	w.app.Close()
}
