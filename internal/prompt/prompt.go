// Package prompt renders the model prompts. Each template spells out the
// exact JSON reply contract the extractor depends on; the model attempts
// the contract, the extractor enforces it.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"StockAgent/internal/domain"
)

const videoTemplate = `영상 제목: {{.Title}}
아래 자막 내용을 분석해서 투자 인사이트를 정리해줘.
'주식/경제/투자'와 관련 없는 내용이면 sentiment_score에 -1을 반환해.

[반드시 아래 JSON 형식만 출력해. 다른 텍스트 금지]:
{
    "sentiment_score": 0에서 100 사이 정수 (시장 긍정도, 관련 없으면 -1),
    "content": "## 1. 3줄 핵심 요약\n- (요약 1)\n- (요약 2)\n- (요약 3)\n\n## 2. 주요 언급 종목\n- **종목명**: (호재/악재 판단)\n\n## 3. 대응 전략\n> (한 줄 조언)",
    "title": "핵심을 담은 한 줄 제목",
    "related_tickers": ["언급된 종목의 티커 심볼"]
}

[자막 내용]: {{.Body}}`

const messageTemplate = `이 메시지가 '주식/경제/투자'와 직접 관련된 뉴스인지 판단해.
관련 없으면 sentiment_score: -1 반환.

[메시지]: {{.Body}}

[출력 형식 - JSON Only]:
{
    "sentiment_score": 75,
    "content": "3줄 요약...",
    "title": "핵심을 담은 한 줄 제목",
    "related_tickers": ["언급된 종목의 티커 심볼"]
}`

const digestTemplate = `너는 냉철한 '헤지펀드 매니저'야. 아래 수집된 주식 분석 리포트들을 종합해서 오늘의 투자 전략을 짜줘.

[지시사항]
1. **Top Pick (매수)**: 상승 여력이 가장 높거나 호재가 확실한 종목 1개 선정.
2. **Short Pick (매도)**: 리스크가 크거나, 과열되었거나, 악재가 있는 종목 1개 선정. (없으면 '관망'이라고 적어)
3. 선정 이유를 한 줄로 명확하게 요약해.

[필수 출력 형식 - JSON Only]:
{
    "buy_stock": "종목명",
    "buy_reason": "선정 이유 요약",
    "sell_stock": "종목명",
    "sell_reason": "선정 이유 요약"
}

[오늘의 리포트 데이터]:
{{.Reports}}`

const digestItemExcerpt = 300

// Renderer binds the templates to the configured body budgets.
type Renderer struct {
	video        *template.Template
	message      *template.Template
	digest       *template.Template
	videoLimit   int
	messageLimit int
}

// NewRenderer parses the built-in templates with the given rune budgets
// for video transcripts and stream messages.
func NewRenderer(videoLimit, messageLimit int) *Renderer {
	return &Renderer{
		video:        template.Must(template.New("video").Parse(videoTemplate)),
		message:      template.Must(template.New("message").Parse(messageTemplate)),
		digest:       template.Must(template.New("digest").Parse(digestTemplate)),
		videoLimit:   videoLimit,
		messageLimit: messageLimit,
	}
}

// Video renders the transcript-analysis prompt.
func (r *Renderer) Video(title, body string) (string, error) {
	return render(r.video, map[string]string{
		"Title": title,
		"Body":  TruncateRunes(body, r.videoLimit),
	})
}

// Message renders the stream-triage prompt.
func (r *Renderer) Message(body string) (string, error) {
	return render(r.message, map[string]string{
		"Body": TruncateRunes(body, r.messageLimit),
	})
}

// Digest renders the daily aggregate prompt over the day's items.
func (r *Renderer) Digest(items []domain.ContentItem) (string, error) {
	var reports strings.Builder
	for i, item := range items {
		fmt.Fprintf(&reports, "[분석 %d]\n", i+1)
		fmt.Fprintf(&reports, "- 채널: %s (점수: %d점)\n", item.SourceName, item.SentimentScore)
		fmt.Fprintf(&reports, "- 제목: %s\n", item.Title)
		fmt.Fprintf(&reports, "- 내용 요약: %s...\n", TruncateRunes(item.AnalysisBody, digestItemExcerpt))
		reports.WriteString("--------------------------------\n")
	}

	return render(r.digest, map[string]string{"Reports": reports.String()})
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// TruncateRunes caps s at limit runes, never splitting a multi-byte
// character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
