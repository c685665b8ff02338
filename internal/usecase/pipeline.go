package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"StockAgent/internal/analysis"
	"StockAgent/internal/domain"
	"StockAgent/internal/fetch"
	"StockAgent/internal/ports"
	"StockAgent/internal/prompt"
)

// PipelineDeps wires all driven adapters into the polling driver.
type PipelineDeps struct {
	Registry ports.SourceRegistry
	Fetchers *fetch.Registry
	Contents ports.ContentRepository
	Model    ports.ModelClient
	Prompts  *prompt.Renderer
	Notifier ports.Notifier
	Pacing   time.Duration
	Logger   *slog.Logger
}

// Pipeline is the polling-regime driver: one cycle visits every active
// feed source in listing order, strictly sequentially, and processes at
// most one new item per source.
type Pipeline struct {
	registry ports.SourceRegistry
	fetchers *fetch.Registry
	contents ports.ContentRepository
	model    ports.ModelClient
	prompts  *prompt.Renderer
	notifier ports.Notifier
	pacing   time.Duration
	logger   *slog.Logger

	// sleep is swappable so tests run without real pacing delays.
	sleep func(ctx context.Context, d time.Duration)
}

// NewPipeline constructs the polling driver.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		registry: deps.Registry,
		fetchers: deps.Fetchers,
		contents: deps.Contents,
		model:    deps.Model,
		prompts:  deps.Prompts,
		notifier: deps.Notifier,
		pacing:   deps.Pacing,
		logger:   deps.Logger,
		sleep:    sleepCtx,
	}
}

// RunCycle processes every active youtube source once. Only the registry
// read is cycle-fatal; any per-source failure is logged and the cycle
// moves on to the next source.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	sources, err := p.registry.ListActive(ctx, domain.PlatformYouTube)
	if err != nil {
		return fmt.Errorf("list active sources: %w", err)
	}
	p.info("cycle started", "sources", len(sources))

	for _, src := range sources {
		notified, err := p.processSource(ctx, src)
		if err != nil {
			p.warn("source failed", "source", src.Name, "error", err)
			continue
		}
		if notified {
			p.sleep(ctx, p.pacing)
		}
	}

	p.info("cycle finished")
	return nil
}

// processSource drives one source through fetch, dedup, analysis,
// extraction, persistence and notification. The returned bool reports
// whether an alert went out, which is when pacing applies.
func (p *Pipeline) processSource(ctx context.Context, src domain.Source) (bool, error) {
	fetcher, err := p.fetchers.Resolve(src.Platform)
	if err != nil {
		return false, err
	}

	candidate, err := fetcher.LatestCandidate(ctx, src)
	if err != nil {
		return false, fmt.Errorf("fetch latest: %w", err)
	}
	if candidate == nil {
		p.debug("no entries", "source", src.Name)
		return false, nil
	}

	// Dedup before the expensive body fetch and model call. The lookup
	// uses the exact external id the fetcher produced.
	seen, err := p.contents.Seen(ctx, src.Platform, candidate.ExternalID)
	if err != nil {
		return false, fmt.Errorf("seen check: %w", err)
	}
	if seen {
		p.debug("already processed", "source", src.Name, "external_id", candidate.ExternalID)
		return false, nil
	}
	p.info("new item", "source", src.Name, "title", candidate.Title)

	body, err := fetcher.FetchBody(ctx, *candidate)
	if err != nil {
		return false, fmt.Errorf("fetch body: %w", err)
	}
	if body == "" {
		p.info("no body obtainable, skipping", "source", src.Name, "external_id", candidate.ExternalID)
		return false, nil
	}

	rendered, err := p.prompts.Video(candidate.Title, body)
	if err != nil {
		return false, err
	}

	raw, err := p.model.Chat(ctx, rendered)
	if err != nil {
		return false, fmt.Errorf("model call: %w", err)
	}

	result, err := analysis.Extract(raw)
	if errors.Is(err, analysis.ErrNotRelevant) {
		p.info("not finance-relevant, suppressed", "source", src.Name, "external_id", candidate.ExternalID)
		return false, nil
	}
	if err != nil {
		// Raw text is kept in the log for diagnosing the model's output;
		// no second extraction heuristic is attempted.
		p.warn("extraction failed", "source", src.Name, "error", err, "raw", raw)
		return false, nil
	}

	item := domain.ContentItem{
		ExternalID:     candidate.ExternalID,
		SourceName:     src.Name,
		Title:          candidate.Title,
		AnalysisBody:   result.Body,
		SentimentScore: result.SentimentScore,
		Platform:       src.Platform,
		SourceURL:      candidate.URL,
		Tickers:        result.Tickers,
	}

	id, err := p.contents.Insert(ctx, item)
	if errors.Is(err, domain.ErrDuplicate) {
		p.warn("duplicate insert, another run won the race", "external_id", candidate.ExternalID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("persist item: %w", err)
	}
	item.ID = id
	p.info("analysis stored", "source", src.Name, "id", id, "score", result.SentimentScore)

	if p.notifier != nil {
		if err := p.notifier.NotifyItem(ctx, item); err != nil {
			p.warn("notify failed", "source", src.Name, "error", err)
		}
	}

	return true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
