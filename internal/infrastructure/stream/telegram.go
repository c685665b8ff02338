// Package stream subscribes to live Telegram channel posts via the Bot
// API long-polling endpoint. Each inbound post is handed to the pipeline
// as an already-materialized candidate item.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockAgent/internal/domain"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	// Title assigned to stream items; messages have no native headline.
	breakingNewsTitle = "텔레그램 속보"
)

// Handler processes one inbound candidate. Invocations may run
// concurrently for different messages.
type Handler func(ctx context.Context, source domain.Source, candidate domain.CandidateItem)

// Listener long-polls getUpdates and dispatches posts from registered
// channels.
type Listener struct {
	token       string
	apiBaseURL  string
	pollTimeout int
	client      *http.Client
	logger      *slog.Logger
}

// NewListener wires the bot token and long-poll timeout in seconds.
func NewListener(token string, pollTimeout int, logger *slog.Logger) *Listener {
	if pollTimeout <= 0 {
		pollTimeout = 25
	}
	return &Listener{
		token:       token,
		apiBaseURL:  defaultAPIBaseURL,
		pollTimeout: pollTimeout,
		client: &http.Client{
			// Must outlast the server-held long poll.
			Timeout: time.Duration(pollTimeout+10) * time.Second,
		},
		logger: logger,
	}
}

type update struct {
	UpdateID    int64 `json:"update_id"`
	ChannelPost *post `json:"channel_post"`
	Message     *post `json:"message"`
}

type post struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Title    string `json:"title"`
	} `json:"chat"`
}

// Run polls until ctx is cancelled. Each matching post is dispatched on
// its own goroutine; transport errors are logged and polling continues.
func (l *Listener) Run(ctx context.Context, sources []domain.Source, handle Handler) error {
	if l.token == "" {
		return fmt.Errorf("stream listener: bot token is empty")
	}

	byChatID := map[int64]domain.Source{}
	byUsername := map[string]domain.Source{}
	for _, src := range sources {
		if src.Channel.IsNumeric() {
			byChatID[src.Channel.ChatID] = src
		} else {
			byUsername[strings.ToLower(src.Channel.Username)] = src
		}
	}
	l.info("stream listener started", "sources", len(sources))

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := l.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.warn("poll failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}

			p := u.ChannelPost
			if p == nil {
				p = u.Message
			}
			if p == nil || p.Text == "" {
				continue
			}

			src, ok := byChatID[p.Chat.ID]
			if !ok {
				src, ok = byUsername[strings.ToLower(p.Chat.Username)]
			}
			if !ok {
				continue
			}
			if p.Chat.Title != "" {
				src.Name = p.Chat.Title
			}

			go handle(ctx, src, candidateOf(p))
		}
	}
}

func (l *Listener) poll(ctx context.Context, offset int64) ([]update, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(l.pollTimeout))
	params.Set("allowed_updates", `["channel_post","message"]`)
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", l.apiBaseURL, l.token, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned %s", resp.Status)
	}

	var decoded struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("telegram answered ok=false")
	}

	return decoded.Result, nil
}

// candidateOf derives the stable per-message external id: the public
// t.me link when the channel has a username, a tg: URI otherwise.
func candidateOf(p *post) domain.CandidateItem {
	var externalID string
	if p.Chat.Username != "" {
		externalID = fmt.Sprintf("https://t.me/%s/%d", p.Chat.Username, p.MessageID)
	} else {
		externalID = fmt.Sprintf("tg:%d/%d", p.Chat.ID, p.MessageID)
	}

	return domain.CandidateItem{
		ExternalID: externalID,
		Title:      breakingNewsTitle,
		Body:       p.Text,
		URL:        externalID,
	}
}

func (l *Listener) info(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

func (l *Listener) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
