package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Platform identifies where a source lives.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformTelegram Platform = "telegram"
)

// ChannelRef is a telegram channel identifier resolved once at load time,
// either a public username or a numeric chat id.
type ChannelRef struct {
	Username string
	ChatID   int64
}

// ParseChannelRef classifies a raw identifier string from storage.
func ParseChannelRef(identifier string) (ChannelRef, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return ChannelRef{}, fmt.Errorf("empty channel identifier")
	}

	if strings.HasPrefix(trimmed, "-") || isDigits(trimmed) {
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return ChannelRef{}, fmt.Errorf("parse chat id %q: %w", trimmed, err)
		}
		return ChannelRef{ChatID: id}, nil
	}

	return ChannelRef{Username: strings.TrimPrefix(trimmed, "@")}, nil
}

// IsNumeric reports whether the reference carries a numeric chat id.
func (r ChannelRef) IsNumeric() bool {
	return r.Username == ""
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Source is a registered channel the agent monitors. Loaded from storage,
// read-only inside the pipeline.
type Source struct {
	ID         int64
	Platform   Platform
	Identifier string
	Name       string
	Active     bool

	// Channel is populated for telegram sources when the registry loads them.
	Channel ChannelRef
}

// CandidateItem is the newest unprocessed item a fetcher resolved for a source.
type CandidateItem struct {
	ExternalID string
	Title      string
	Body       string
	URL        string
}

// Analysis is the validated record extracted from a raw model reply.
type Analysis struct {
	SentimentScore int
	Body           string
	Title          string
	Tickers        []string
}

// ContentItem is one persisted analysis. Append-only; (Platform, ExternalID)
// is unique across the table.
type ContentItem struct {
	ID             int64
	ExternalID     string
	SourceName     string
	Title          string
	AnalysisBody   string
	SentimentScore int
	Platform       Platform
	SourceURL      string
	Tickers        []string
	CreatedAt      time.Time
}

// DailySummary is the once-per-date aggregate report.
type DailySummary struct {
	ID         int64
	ReportDate time.Time
	BuyStock   string
	BuyReason  string
	SellStock  string
	SellReason string
}
