package ports

import (
	"context"
	"time"

	"StockAgent/internal/domain"
)

// SourceRegistry reads the set of monitored sources from storage.
type SourceRegistry interface {
	ListActive(ctx context.Context, platform domain.Platform) ([]domain.Source, error)
}

// ContentRepository persists analyzed items and answers dedup lookups.
type ContentRepository interface {
	Seen(ctx context.Context, platform domain.Platform, externalID string) (bool, error)
	Insert(ctx context.Context, item domain.ContentItem) (int64, error)
	Recent(ctx context.Context, limit int) ([]domain.ContentItem, error)
	CreatedSince(ctx context.Context, since time.Time) ([]domain.ContentItem, error)
}

// SummaryRepository stores the once-per-date digest rows.
type SummaryRepository interface {
	InsertSummary(ctx context.Context, summary domain.DailySummary) (int64, error)
	LatestSummary(ctx context.Context) (*domain.DailySummary, error)
}

// Fetcher resolves the latest candidate item for a source in two phases,
// so the dedup check can run between them and short-circuit the expensive
// body retrieval. LatestCandidate returns (nil, nil) when the source has
// no entries; FetchBody returns "" when no body is obtainable. Neither
// case is retried within a cycle.
type Fetcher interface {
	Platform() domain.Platform
	LatestCandidate(ctx context.Context, source domain.Source) (*domain.CandidateItem, error)
	FetchBody(ctx context.Context, candidate domain.CandidateItem) (string, error)
}

// ModelClient submits a rendered prompt to a text-generation model and
// returns the raw reply text.
type ModelClient interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Notifier pushes a formatted alert to the outbound chat. Best effort:
// callers log and swallow its errors.
type Notifier interface {
	NotifyItem(ctx context.Context, item domain.ContentItem) error
	NotifyDigest(ctx context.Context, summary domain.DailySummary) error
}

// Scheduler triggers recurring pipeline cycles.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
