package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StockAgent/internal/config"
	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
	"StockAgent/internal/prompt"
)

// Alert body cap; longer messages get rejected by the Bot API.
const maxAlertBodyRunes = 800

// Notifier sends analysis alerts to a Telegram chat via the bot API.
type Notifier struct {
	botToken     string
	chatID       string
	dashboardURL string
	apiBaseURL   string
	client       *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and target chat.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	return &Notifier{
		botToken:     cfg.BotToken,
		chatID:       cfg.ChatID,
		dashboardURL: cfg.DashboardURL,
		apiBaseURL:   "https://api.telegram.org",
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyItem posts a new-analysis alert. Callers treat failures as
// logged-and-swallowed; nothing here is retried.
func (n *Notifier) NotifyItem(ctx context.Context, item domain.ContentItem) error {
	body := prompt.TruncateRunes(item.AnalysisBody, maxAlertBodyRunes)
	if body != item.AnalysisBody {
		body += "..."
	}

	message := fmt.Sprintf(
		"🚨 [%s] 새 리포트 도착!\n📺 %s\n📊 %s\n\n%s\n\n👉 대시보드: %s",
		item.SourceName,
		item.Title,
		ScoreLabel(item.SentimentScore),
		toTelegramMarkdown(body),
		n.dashboardURL,
	)

	return n.send(ctx, message, false)
}

// NotifyDigest posts the daily buy/sell strategy report.
func (n *Notifier) NotifyDigest(ctx context.Context, summary domain.DailySummary) error {
	message := fmt.Sprintf(
		"📅 *[%s] 오늘의 AI 투자 전략*\n\n"+
			"🐂 *매수(Buy): %s*\n└ %s\n\n"+
			"🐻 *매도(Sell): %s*\n└ %s\n\n"+
			"👉 [대시보드 확인하기](%s)",
		summary.ReportDate.Format("2006-01-02"),
		summary.BuyStock, summary.BuyReason,
		summary.SellStock, summary.SellReason,
		n.dashboardURL,
	)

	return n.send(ctx, message, true)
}

func (n *Notifier) send(ctx context.Context, message string, noPreview bool) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBaseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)
	form.Set("parse_mode", "Markdown")
	if noPreview {
		form.Set("disable_web_page_preview", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// ScoreLabel maps a sentiment score to the alert's outlook line.
func ScoreLabel(score int) string {
	switch {
	case score >= 80:
		return "강력 매수 (strong buy) 🚀"
	case score >= 60:
		return "매수 (buy) 📈"
	case score >= 40:
		return "중립 (neutral) ⚖️"
	case score >= 20:
		return "매도 (sell) 📉"
	default:
		return "강력 매도 (strong sell) 🧊"
	}
}

// toTelegramMarkdown translates the model's double-asterisk bold to the
// single-asterisk convention of Telegram's legacy Markdown mode.
func toTelegramMarkdown(s string) string {
	return strings.ReplaceAll(s, "**", "*")
}
