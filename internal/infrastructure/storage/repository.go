package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
)

const uniqueViolationCode = "23505"

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository bundles all Postgres-backed persistence for the agent:
// source registry, analyzed-content store, and daily summaries.
type Repository struct {
	db *sql.DB
}

var (
	_ ports.SourceRegistry    = (*Repository)(nil)
	_ ports.ContentRepository = (*Repository)(nil)
	_ ports.SummaryRepository = (*Repository)(nil)
)

// NewRepository wires a sql.DB implementation.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns enabled sources for a platform in listing order.
// For telegram sources the channel identifier is classified here, once.
func (r *Repository) ListActive(ctx context.Context, platform domain.Platform) ([]domain.Source, error) {
	query, args, err := builder.
		Select("id", "platform", "identifier", "name", "is_active").
		From("sources").
		Where(sq.Eq{"platform": string(platform), "is_active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.Platform, &src.Identifier, &src.Name, &src.Active); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if src.Platform == domain.PlatformTelegram {
			ref, err := domain.ParseChannelRef(src.Identifier)
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", src.ID, err)
			}
			src.Channel = ref
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}

// Seen reports whether an analysis for (platform, externalID) exists.
func (r *Repository) Seen(ctx context.Context, platform domain.Platform, externalID string) (bool, error) {
	query, args, err := builder.
		Select("1").
		From("content_items").
		Where(sq.Eq{"platform": string(platform), "external_id": externalID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build seen query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// Insert persists one analyzed item and returns its row id. A race with
// another run on the same external id surfaces as ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, item domain.ContentItem) (int64, error) {
	query, args, err := builder.
		Insert("content_items").
		Columns("external_id", "platform", "source_name", "title",
			"analysis_body", "sentiment_score", "source_url", "tickers").
		Values(item.ExternalID, string(item.Platform), item.SourceName, item.Title,
			item.AnalysisBody, item.SentimentScore, item.SourceURL, pq.Array(item.Tickers)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("item %s: %w", item.ExternalID, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert item: %w", err)
	}

	return id, nil
}

// Recent returns the newest items, creation time descending.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := contentSelect().
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	return r.queryItems(ctx, query, args...)
}

// CreatedSince returns items created at or after the given time, oldest
// first, for the digest job.
func (r *Repository) CreatedSince(ctx context.Context, since time.Time) ([]domain.ContentItem, error) {
	query, args, err := contentSelect().
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build since query: %w", err)
	}

	return r.queryItems(ctx, query, args...)
}

func contentSelect() sq.SelectBuilder {
	return builder.
		Select("id", "external_id", "platform", "source_name", "title",
			"analysis_body", "sentiment_score", "source_url", "tickers", "created_at").
		From("content_items")
}

func (r *Repository) queryItems(ctx context.Context, query string, args ...any) ([]domain.ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		var (
			item  domain.ContentItem
			score sql.NullInt64
			url   sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ExternalID, &item.Platform, &item.SourceName,
			&item.Title, &item.AnalysisBody, &score, &url, pq.Array(&item.Tickers), &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		// Legacy rows may carry no score; the read API contract fills 50.
		item.SentimentScore = 50
		if score.Valid {
			item.SentimentScore = int(score.Int64)
		}
		item.SourceURL = url.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// InsertSummary stores the per-date digest row; a second run on the same
// date surfaces as ErrDuplicate.
func (r *Repository) InsertSummary(ctx context.Context, summary domain.DailySummary) (int64, error) {
	query, args, err := builder.
		Insert("daily_summary").
		Columns("report_date", "buy_stock", "buy_reason", "sell_stock", "sell_reason").
		Values(summary.ReportDate, summary.BuyStock, summary.BuyReason,
			summary.SellStock, summary.SellReason).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build summary insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("summary %s: %w", summary.ReportDate.Format("2006-01-02"), domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert summary: %w", err)
	}

	return id, nil
}

// LatestSummary returns the most recent digest row, or nil when none
// exists yet.
func (r *Repository) LatestSummary(ctx context.Context) (*domain.DailySummary, error) {
	query, args, err := builder.
		Select("id", "report_date", "buy_stock", "buy_reason", "sell_stock", "sell_reason").
		From("daily_summary").
		OrderBy("report_date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	var (
		summary    domain.DailySummary
		buy, buyR  sql.NullString
		sell, selR sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.ID, &summary.ReportDate, &buy, &buyR, &sell, &selR)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	summary.BuyStock = buy.String
	summary.BuyReason = buyR.String
	summary.SellStock = sell.String
	summary.SellReason = selR.String
	return &summary, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
