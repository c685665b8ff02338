// Package analysis turns raw model replies into validated records.
//
// Model output is loosely structured text: it may open with a
// chain-of-thought block, wrap the payload in markdown fences, or surround
// the JSON object with prose. Extraction runs a fixed normalization
// pipeline (reasoning strip -> fence strip -> bounded brace slice) before
// decoding; nothing untyped leaves this package.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"StockAgent/internal/domain"
)

var (
	// ErrMalformed marks a reply with no parsable payload. Callers skip
	// the item; no second extraction heuristic is attempted.
	ErrMalformed = errors.New("malformed model response")

	// ErrNotRelevant marks the sentiment_score == -1 relevance gate: the
	// model judged the item off-topic. Not a failure; callers suppress
	// persistence and notification.
	ErrNotRelevant = errors.New("content not finance-relevant")
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"

	minScore = 0
	maxScore = 100
	// NotRelevantScore is the sentinel the prompt instructs the model to
	// return for off-topic content.
	NotRelevantScore = -1

	maxTickerLen = 6
)

// Extract parses one raw model reply into a validated Analysis.
func Extract(raw string) (domain.Analysis, error) {
	payload, ok := payloadSpan(raw)
	if !ok {
		return domain.Analysis{}, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	var decoded struct {
		SentimentScore json.Number `json:"sentiment_score"`
		Content        *string     `json:"content"`
		Title          string      `json:"title"`
		RelatedTickers []string    `json:"related_tickers"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	score, err := decoded.SentimentScore.Int64()
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: sentiment_score is not an integer", ErrMalformed)
	}
	if score == NotRelevantScore {
		return domain.Analysis{}, ErrNotRelevant
	}
	if score < minScore || score > maxScore {
		return domain.Analysis{}, fmt.Errorf("%w: sentiment_score %d out of range", ErrMalformed, score)
	}

	if decoded.Content == nil {
		return domain.Analysis{}, fmt.Errorf("%w: missing content field", ErrMalformed)
	}

	return domain.Analysis{
		SentimentScore: int(score),
		Body:           *decoded.Content,
		Title:          strings.TrimSpace(decoded.Title),
		Tickers:        validTickers(decoded.RelatedTickers),
	}, nil
}

// ExtractDigest parses the daily-report reply through the same
// normalization pipeline.
func ExtractDigest(raw string) (domain.DailySummary, error) {
	payload, ok := payloadSpan(raw)
	if !ok {
		return domain.DailySummary{}, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	var decoded struct {
		BuyStock   string `json:"buy_stock"`
		BuyReason  string `json:"buy_reason"`
		SellStock  string `json:"sell_stock"`
		SellReason string `json:"sell_reason"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return domain.DailySummary{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if decoded.BuyStock == "" {
		return domain.DailySummary{}, fmt.Errorf("%w: missing buy_stock field", ErrMalformed)
	}

	return domain.DailySummary{
		BuyStock:   decoded.BuyStock,
		BuyReason:  decoded.BuyReason,
		SellStock:  decoded.SellStock,
		SellReason: decoded.SellReason,
	}, nil
}

// payloadSpan runs the normalization stages and returns the candidate
// JSON span, or false when no brace pair remains.
func payloadSpan(raw string) (string, bool) {
	text := StripReasoning(raw)
	text = StripFences(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// StripReasoning discards everything through the last closing reasoning
// marker, so repeated or nested thinking blocks are removed in one pass.
// A stray opening marker with no close is dropped in place.
func StripReasoning(text string) string {
	if idx := strings.LastIndex(text, thinkClose); idx >= 0 {
		text = text[idx+len(thinkClose):]
	}
	text = strings.ReplaceAll(text, thinkOpen, "")
	return strings.TrimSpace(text)
}

// StripFences removes a leading ```lang line and a trailing ``` line
// without disturbing interior content.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// validTickers keeps entries that look like exchange symbols: short,
// uppercase letters and digits. Anything else the model invented is
// dropped rather than failing the whole record.
func validTickers(raw []string) []string {
	var out []string
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || len(t) > maxTickerLen {
			continue
		}
		if !isSymbol(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isSymbol(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
