package analysis

import (
	"errors"
	"testing"
)

const barePayload = `{"sentiment_score": 82, "content": "## 1. 3줄 핵심 요약\n- 반도체 업황 개선", "title": "반도체 반등", "related_tickers": ["NVDA"]}`

func TestExtractBarePayload(t *testing.T) {
	t.Parallel()

	result, err := Extract(barePayload)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if result.SentimentScore != 82 {
		t.Fatalf("expected score 82, got %d", result.SentimentScore)
	}
	if result.Title != "반도체 반등" {
		t.Fatalf("unexpected title: %s", result.Title)
	}
	if len(result.Tickers) != 1 || result.Tickers[0] != "NVDA" {
		t.Fatalf("unexpected tickers: %v", result.Tickers)
	}
	if result.Body != "## 1. 3줄 핵심 요약\n- 반도체 업황 개선" {
		t.Fatalf("body not preserved byte-exact: %q", result.Body)
	}
}

func TestExtractIdempotentUnderNoise(t *testing.T) {
	t.Parallel()

	want, err := Extract(barePayload)
	if err != nil {
		t.Fatalf("bare payload: %v", err)
	}

	noisy := []string{
		"<think>\n먼저 시장 상황을 보자...\n</think>\n" + barePayload,
		"```json\n" + barePayload + "\n```",
		"<think>생각 1</think><think>생각 2</think>\n```json\n" + barePayload + "\n```",
		"분석 결과입니다:\n" + barePayload + "\n이상입니다.",
		"<think>추론</think>\n여기 결과:\n```\n" + barePayload + "\n```",
	}

	for i, raw := range noisy {
		got, err := Extract(raw)
		if err != nil {
			t.Fatalf("case %d: Extract returned error: %v", i, err)
		}
		if got.SentimentScore != want.SentimentScore || got.Body != want.Body ||
			got.Title != want.Title || len(got.Tickers) != len(want.Tickers) {
			t.Fatalf("case %d: noisy result differs from bare result: %+v vs %+v", i, got, want)
		}
	}
}

func TestExtractNotRelevant(t *testing.T) {
	t.Parallel()

	raw := `{"sentiment_score": -1, "content": ""}`
	_, err := Extract(raw)
	if !errors.Is(err, ErrNotRelevant) {
		t.Fatalf("expected ErrNotRelevant, got %v", err)
	}

	// The gate also applies under noise.
	_, err = Extract("<think>관련 없음</think>\n```json\n" + raw + "\n```")
	if !errors.Is(err, ErrNotRelevant) {
		t.Fatalf("expected ErrNotRelevant under noise, got %v", err)
	}
}

func TestExtractMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":              "",
		"no braces":          "죄송합니다. 분석할 수 없습니다.",
		"only reasoning":     "<think>생각만 하고 답을 안 함</think>",
		"invalid json":       `{"sentiment_score": 82, "content": }`,
		"score out of range": `{"sentiment_score": 150, "content": "요약"}`,
		"negative score":     `{"sentiment_score": -5, "content": "요약"}`,
		"fractional score":   `{"sentiment_score": 82.5, "content": "요약"}`,
		"string score":       `{"sentiment_score": "82", "content": "요약"}`,
		"missing score":      `{"content": "요약"}`,
		"missing content":    `{"sentiment_score": 82}`,
		"tickers not a list": `{"sentiment_score": 82, "content": "요약", "related_tickers": "NVDA"}`,
	}

	for name, raw := range cases {
		if _, err := Extract(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestExtractMultilinePayload(t *testing.T) {
	t.Parallel()

	raw := "{\n  \"sentiment_score\": 64,\n  \"content\": \"첫 줄\\n둘째 줄\\n셋째 줄\"\n}"
	result, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Body != "첫 줄\n둘째 줄\n셋째 줄" {
		t.Fatalf("embedded newlines not preserved: %q", result.Body)
	}
}

func TestExtractTickerFiltering(t *testing.T) {
	t.Parallel()

	raw := `{"sentiment_score": 55, "content": "요약", "related_tickers": ["NVDA", "nvda", "TOOLONG7", "", "  TSLA ", "005930"]}`
	result, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	want := []string{"NVDA", "TSLA", "005930"}
	if len(result.Tickers) != len(want) {
		t.Fatalf("expected tickers %v, got %v", want, result.Tickers)
	}
	for i, symbol := range want {
		if result.Tickers[i] != symbol {
			t.Fatalf("expected tickers %v, got %v", want, result.Tickers)
		}
	}
}

func TestStripReasoning(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no block", "그냥 텍스트", "그냥 텍스트"},
		{"single block", "<think>추론</think>결론", "결론"},
		{"repeated blocks", "<think>a</think>중간<think>b</think>결론", "결론"},
		{"stray opener", "<think>미완성 추론 결론", "미완성 추론 결론"},
	}

	for _, tc := range cases {
		if got := StripReasoning(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"plain fences", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"language tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"interior backticks kept", "```\n코드: `x` 포함\n```", "코드: `x` 포함"},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
	}

	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExtractDigest(t *testing.T) {
	t.Parallel()

	raw := "<think>오늘 데이터를 보면...</think>\n```json\n" +
		`{"buy_stock": "삼성전자", "buy_reason": "HBM 수주 확대", "sell_stock": "관망", "sell_reason": "뚜렷한 악재 없음"}` +
		"\n```"

	summary, err := ExtractDigest(raw)
	if err != nil {
		t.Fatalf("ExtractDigest returned error: %v", err)
	}
	if summary.BuyStock != "삼성전자" || summary.SellStock != "관망" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestExtractDigestMalformed(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"empty":             "",
		"missing buy_stock": `{"sell_stock": "관망"}`,
	} {
		if _, err := ExtractDigest(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}
