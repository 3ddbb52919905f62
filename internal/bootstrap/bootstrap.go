package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d3i-infra/port-google-home/internal/config"
	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
	"github.com/d3i-infra/port-google-home/internal/core/usecase"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/archive/ziparchive"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/extractor/markup"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/extractor/recordlist"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/registry"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/repository/postgres"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/resilience"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/sink/logsink"
	natssink "github.com/d3i-infra/port-google-home/internal/infrastructure/sink/nats"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/storage/localfs"
	"github.com/d3i-infra/port-google-home/internal/observability/logging"
	"github.com/d3i-infra/port-google-home/internal/observability/metrics"
)

// Pipeline is the validate and extract pair shared by every platform.
type Pipeline struct {
	Validator *usecase.ValidateArchiveUseCase
	Extractor *usecase.ExtractTableUseCase
}

func NewPipeline(opener ports.ArchiveOpener, categories ports.CategoryRegistry, observer ports.FlowObserver, logger *slog.Logger) Pipeline {
	extractors := map[domain.Format]ports.InteractionExtractor{
		domain.FormatMarkup:     markup.New(logger),
		domain.FormatRecordList: recordlist.New(logger),
	}
	return Pipeline{
		Validator: usecase.NewValidateArchiveUseCase(opener, categories, logger),
		Extractor: usecase.NewExtractTableUseCase(opener, extractors, usecase.NewNormalizer(nil), observer, logger),
	}
}

// LoadRegistry reads the category table from path, or the embedded default
// when path is empty.
func LoadRegistry(path string) (*registry.Registry, error) {
	if strings.TrimSpace(path) == "" {
		return registry.Default()
	}
	return registry.Load(path)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Uploader *usecase.UploadArchiveUseCase
	Sessions *usecase.SessionManager
	Metrics  *metrics.HTTPServerMetrics

	closeFns []func()
}

// NewAPI wires the donation flow host: storage, category registry, the
// extraction pipeline and the configured donation sink.
func NewAPI(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app := &App{Config: cfg, Logger: logger, Metrics: httpMetrics}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	categories, err := LoadRegistry(cfg.CategoriesPath)
	if err != nil {
		return nil, fmt.Errorf("load category registry: %w", err)
	}

	guard := newGuard(cfg, logger, httpMetrics.FlowMetrics)
	sink, err := app.newSink(ctx, cfg, guard, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	pipeline := NewPipeline(ziparchive.New(storage, cfg.MaxUploadBytes), categories, httpMetrics.FlowMetrics, logger)
	platforms := make([]usecase.Platform, 0, len(cfg.FlowPlatforms))
	for _, name := range cfg.FlowPlatforms {
		platforms = append(platforms, usecase.Platform{
			Name:      name,
			Validator: pipeline.Validator,
			Extractor: pipeline.Extractor,
		})
	}

	app.Uploader = usecase.NewUploadArchiveUseCase(storage)
	app.Sessions = usecase.NewSessionManager(usecase.SessionManagerDeps{
		Platforms: platforms,
		Sink:      sink,
		Observer:  httpMetrics.FlowMetrics,
		Archives:  app.Uploader,
		Telemetry: func(sessionID string) (usecase.TelemetryLog, *slog.Logger) {
			return logging.NewSessionLogger(logger, sessionID)
		},
		Logger:  logger,
		IdleTTL: time.Duration(cfg.SessionIdleTTLSeconds) * time.Second,
	}, FlowOptions(cfg))
	httpMetrics.TrackActiveSessions(app.Sessions.Active)

	logger.Info("api_bootstrapped",
		"donation_sink", cfg.DonationSink,
		"platforms", len(platforms),
		"categories", len(categories.Categories()),
	)
	return app, nil
}

// FlowOptions maps the flow settings from config.
func FlowOptions(cfg config.Config) usecase.FlowOptions {
	opts := usecase.DefaultFlowOptions()
	opts.EmitStatusEvents = cfg.FlowEmitStatusEvents
	if cfg.FlowFileExtensions != "" {
		opts.FileExtensions = cfg.FlowFileExtensions
	}
	if usecase.EndOrder(cfg.FlowEndOrder) == usecase.ExitThenRender {
		opts.EndOrder = usecase.ExitThenRender
	}
	return opts
}

func (a *App) newSink(ctx context.Context, cfg config.Config, guard *resilience.Guard, logger *slog.Logger) (ports.DonationSink, error) {
	switch cfg.DonationSink {
	case "log":
		return logsink.New(logger.With("component", "donation_sink")), nil
	case "postgres":
		repo, err := a.openRepository(ctx, cfg, guard)
		if err != nil {
			return nil, err
		}
		return usecase.NewRepositorySink(repo), nil
	case "nats", "":
		queue, err := natssink.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natssink.Options{
			Guard:  guard,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init donation queue: %w", err)
		}
		a.closeFns = append(a.closeFns, queue.Close)
		return queue, nil
	default:
		return nil, fmt.Errorf("unknown donation sink %q", cfg.DonationSink)
	}
}

func (a *App) openRepository(ctx context.Context, cfg config.Config, guard *resilience.Guard) (*postgres.DonationRepository, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	repo := postgres.NewDonationRepository(db, guard)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func newGuard(cfg config.Config, logger *slog.Logger, flowMetrics *metrics.FlowMetrics) *resilience.Guard {
	policy := resilience.DefaultPolicy()
	policy.Logger = logger
	policy.Retry.Attempts = cfg.SinkRetryMaxAttempts
	if cfg.SinkRetryBudgetMS > 0 {
		policy.Retry.Budget = time.Duration(cfg.SinkRetryBudgetMS) * time.Millisecond
	}
	policy.Breaker.Enabled = cfg.SinkBreakerEnabled
	if flowMetrics != nil {
		policy.OnStateChange = flowMetrics.ObserveBreakerState
	}
	return resilience.NewGuard(policy)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
