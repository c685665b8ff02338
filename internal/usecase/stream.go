package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"unicode/utf8"

	"StockAgent/internal/analysis"
	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
	"StockAgent/internal/prompt"
)

// StreamPipelineDeps wires the event-driven driver.
type StreamPipelineDeps struct {
	Contents         ports.ContentRepository
	Model            ports.ModelClient
	Prompts          *prompt.Renderer
	Notifier         ports.Notifier
	MinMessageLength int
	Logger           *slog.Logger
}

// StreamPipeline is the event-driven driver: one invocation per inbound
// message, safe for concurrent invocations. The model client is assumed
// unsafe for concurrent use and is serialized behind a mutex; storage
// relies on database/sql's own connection pool. No cross-message
// ordering is guaranteed.
type StreamPipeline struct {
	contents ports.ContentRepository
	model    ports.ModelClient
	prompts  *prompt.Renderer
	notifier ports.Notifier
	minLen   int
	logger   *slog.Logger

	analyzeMu sync.Mutex
}

// NewStreamPipeline constructs the event-driven driver.
func NewStreamPipeline(deps StreamPipelineDeps) *StreamPipeline {
	minLen := deps.MinMessageLength
	if minLen <= 0 {
		minLen = 30
	}
	return &StreamPipeline{
		contents: deps.Contents,
		model:    deps.Model,
		prompts:  deps.Prompts,
		notifier: deps.Notifier,
		minLen:   minLen,
		logger:   deps.Logger,
	}
}

// Handle processes one inbound message end to end. All failures are
// local to this message: they are logged and the invocation ends.
func (s *StreamPipeline) Handle(ctx context.Context, src domain.Source, candidate domain.CandidateItem) {
	if utf8.RuneCountInString(candidate.Body) < s.minLen {
		s.debug("message too short, ignored", "source", src.Name)
		return
	}

	seen, err := s.contents.Seen(ctx, src.Platform, candidate.ExternalID)
	if err != nil {
		s.warn("seen check failed", "source", src.Name, "error", err)
		return
	}
	if seen {
		s.debug("already processed", "external_id", candidate.ExternalID)
		return
	}

	rendered, err := s.prompts.Message(candidate.Body)
	if err != nil {
		s.warn("render prompt failed", "source", src.Name, "error", err)
		return
	}

	s.analyzeMu.Lock()
	raw, err := s.model.Chat(ctx, rendered)
	s.analyzeMu.Unlock()
	if err != nil {
		s.warn("model call failed", "source", src.Name, "error", err)
		return
	}

	result, err := analysis.Extract(raw)
	if errors.Is(err, analysis.ErrNotRelevant) {
		s.debug("not finance-relevant, suppressed", "source", src.Name)
		return
	}
	if err != nil {
		s.warn("extraction failed", "source", src.Name, "error", err, "raw", raw)
		return
	}

	title := candidate.Title
	if result.Title != "" {
		title = result.Title
	}

	item := domain.ContentItem{
		ExternalID:     candidate.ExternalID,
		SourceName:     src.Name,
		Title:          title,
		AnalysisBody:   result.Body,
		SentimentScore: result.SentimentScore,
		Platform:       src.Platform,
		SourceURL:      candidate.URL,
		Tickers:        result.Tickers,
	}

	id, err := s.contents.Insert(ctx, item)
	if errors.Is(err, domain.ErrDuplicate) {
		s.warn("duplicate insert, another run won the race", "external_id", candidate.ExternalID)
		return
	}
	if err != nil {
		s.warn("persist failed", "source", src.Name, "error", err)
		return
	}
	item.ID = id
	s.info("stream analysis stored", "source", src.Name, "id", id, "score", result.SentimentScore)

	if s.notifier != nil {
		if err := s.notifier.NotifyItem(ctx, item); err != nil {
			s.warn("notify failed", "source", src.Name, "error", err)
		}
	}
}

func (s *StreamPipeline) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *StreamPipeline) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *StreamPipeline) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
