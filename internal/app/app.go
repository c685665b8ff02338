package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"StockAgent/internal/api"
	"StockAgent/internal/config"
	"StockAgent/internal/domain"
	"StockAgent/internal/fetch"
	"StockAgent/internal/infrastructure/llm"
	"StockAgent/internal/infrastructure/scheduler"
	"StockAgent/internal/infrastructure/storage"
	"StockAgent/internal/infrastructure/stream"
	"StockAgent/internal/infrastructure/telegram"
	"StockAgent/internal/infrastructure/youtube"
	"StockAgent/internal/logging"
	"StockAgent/internal/ports"
	"StockAgent/internal/prompt"
	"StockAgent/internal/usecase"
)

// Application wires configuration to use cases and owns the database
// handle for the process lifetime.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
	repo   *storage.Repository

	model    ports.ModelClient
	prompts  *prompt.Renderer
	notifier ports.Notifier
}

// New connects storage, applies migrations, and builds the shared
// components every run mode needs.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}

	version, err := storage.RunMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate storage: %w", err)
	}
	baseLogger.Info("storage ready", "schema_version", version)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	} else {
		baseLogger.Warn("telegram bot token missing, alerts disabled")
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		repo:     storage.NewRepository(db),
		model:    llm.NewOllamaClient(cfg.Ollama),
		prompts:  prompt.NewRenderer(cfg.Agent.VideoBodyLimit, cfg.Agent.MessageBodyLimit),
		notifier: notifier,
	}, nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.db.Close()
}

func (a *Application) buildPipeline() *usecase.Pipeline {
	registry := fetch.NewRegistry()
	registry.Register(youtube.NewFetcher(nil, a.cfg.Agent.TranscriptLangs,
		a.logger.With("component", "fetcher.youtube")))

	return usecase.NewPipeline(usecase.PipelineDeps{
		Registry: a.repo,
		Fetchers: registry,
		Contents: a.repo,
		Model:    a.model,
		Prompts:  a.prompts,
		Notifier: a.notifier,
		Pacing:   a.cfg.Agent.PacingDelay(),
		Logger:   a.logger.With("component", "pipeline"),
	})
}

// RunAgent starts the polling pipeline on the configured interval and
// blocks until ctx is cancelled.
func (a *Application) RunAgent(ctx context.Context) error {
	pipeline := a.buildPipeline()

	driver := scheduler.NewIntervalScheduler(a.cfg.Agent.CycleInterval())
	runner := usecase.NewCycleRunner(driver, pipeline, a.logger.With("component", "scheduler"))

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(stopCtx)
	}()

	<-ctx.Done()
	return nil
}

// RunOnce executes a single polling cycle and exits, for cron-style
// operation.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.buildPipeline().RunCycle(ctx)
}

// RunStream subscribes to live telegram channel posts and blocks until
// ctx is cancelled.
func (a *Application) RunStream(ctx context.Context) error {
	sources, err := a.repo.ListActive(ctx, domain.PlatformTelegram)
	if err != nil {
		return fmt.Errorf("load stream sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no active telegram sources registered")
	}

	pipeline := usecase.NewStreamPipeline(usecase.StreamPipelineDeps{
		Contents:         a.repo,
		Model:            a.model,
		Prompts:          a.prompts,
		Notifier:         a.notifier,
		MinMessageLength: a.cfg.Agent.MinMessageLength,
		Logger:           a.logger.With("component", "stream_pipeline"),
	})

	listener := stream.NewListener(a.cfg.Agent.StreamAPIToken, a.cfg.Agent.StreamPollSeconds,
		a.logger.With("component", "stream.telegram"))

	return listener.Run(ctx, sources, pipeline.Handle)
}

// RunDigest generates today's aggregate report once.
func (a *Application) RunDigest(ctx context.Context) error {
	digest := usecase.NewDigest(usecase.DigestDeps{
		Contents:  a.repo,
		Summaries: a.repo,
		Model:     a.model,
		Prompts:   a.prompts,
		Notifier:  a.notifier,
		Logger:    a.logger.With("component", "digest"),
	})

	return digest.Run(ctx)
}

// RunAPI serves the read-only dashboard API until ctx is cancelled.
func (a *Application) RunAPI(ctx context.Context) error {
	handler := api.NewHandler(a.repo, a.repo, a.repo, a.logger.With("component", "api"))
	server := &http.Server{
		Addr:         ":" + a.cfg.API.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "port", a.cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
