package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"StockAgent/internal/analysis"
	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
	"StockAgent/internal/prompt"
)

const digestWindow = 24 * time.Hour

// DigestDeps wires the daily-report job.
type DigestDeps struct {
	Contents  ports.ContentRepository
	Summaries ports.SummaryRepository
	Model     ports.ModelClient
	Prompts   *prompt.Renderer
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Digest aggregates the last day's analyses into one buy/sell strategy
// row and pushes the report alert.
type Digest struct {
	contents  ports.ContentRepository
	summaries ports.SummaryRepository
	model     ports.ModelClient
	prompts   *prompt.Renderer
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewDigest constructs the daily-report job.
func NewDigest(deps DigestDeps) *Digest {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Digest{
		contents:  deps.Contents,
		summaries: deps.Summaries,
		model:     deps.Model,
		prompts:   deps.Prompts,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		now:       now,
	}
}

// Run generates and stores today's summary. Nothing collected in the
// window is not an error; the job simply reports and exits.
func (d *Digest) Run(ctx context.Context) error {
	now := d.now()

	items, err := d.contents.CreatedSince(ctx, now.Add(-digestWindow))
	if err != nil {
		return fmt.Errorf("load day's items: %w", err)
	}
	if len(items) == 0 {
		d.info("no data collected today, skipping report")
		return nil
	}
	d.info("generating daily report", "items", len(items))

	rendered, err := d.prompts.Digest(items)
	if err != nil {
		return err
	}

	raw, err := d.model.Chat(ctx, rendered)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	summary, err := analysis.ExtractDigest(raw)
	if err != nil {
		d.warn("digest extraction failed", "error", err, "raw", raw)
		return fmt.Errorf("extract digest: %w", err)
	}

	year, month, day := now.Date()
	summary.ReportDate = time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	id, err := d.summaries.InsertSummary(ctx, summary)
	if errors.Is(err, domain.ErrDuplicate) {
		d.warn("report already exists for today, skipping alert")
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}
	summary.ID = id
	d.info("daily report stored", "id", id, "buy", summary.BuyStock, "sell", summary.SellStock)

	if d.notifier != nil {
		if err := d.notifier.NotifyDigest(ctx, summary); err != nil {
			d.warn("digest notify failed", "error", err)
		}
	}

	return nil
}

func (d *Digest) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Digest) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
