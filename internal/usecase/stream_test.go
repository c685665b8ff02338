package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"StockAgent/internal/domain"
	"StockAgent/internal/prompt"
)

func streamSource() domain.Source {
	return domain.Source{
		ID:         3,
		Platform:   domain.PlatformTelegram,
		Identifier: "stocknews_kr",
		Name:       "주식 속보 채널",
		Active:     true,
		Channel:    domain.ChannelRef{Username: "stocknews_kr"},
	}
}

func buildStreamPipeline(repo *fakeContentRepo, model *fakeModel, notifier *fakeNotifier) *StreamPipeline {
	return NewStreamPipeline(StreamPipelineDeps{
		Contents:         repo,
		Model:            model,
		Prompts:          prompt.NewRenderer(3000, 2000),
		Notifier:         notifier,
		MinMessageLength: 30,
	})
}

func TestStreamHandleStoresAndNotifies(t *testing.T) {
	t.Parallel()

	repo := newFakeContentRepo()
	model := &fakeModel{response: `{"sentiment_score": 75, "content": "3줄 요약", "title": "금리 인하 기대"}`}
	notifier := &fakeNotifier{}
	p := buildStreamPipeline(repo, model, notifier)

	candidate := domain.CandidateItem{
		ExternalID: "https://t.me/stocknews_kr/100",
		Title:      "텔레그램 속보",
		Body:       "연준이 금리 인하를 시사했습니다. 시장은 즉시 반응하며 상승 중입니다.",
		URL:        "https://t.me/stocknews_kr/100",
	}
	p.Handle(context.Background(), streamSource(), candidate)

	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 row persisted, got %d", len(repo.inserted))
	}
	item := repo.inserted[0]
	if item.Platform != domain.PlatformTelegram {
		t.Fatalf("unexpected platform: %s", item.Platform)
	}
	// The model's headline replaces the generic stream title.
	if item.Title != "금리 인하 기대" {
		t.Fatalf("unexpected title: %s", item.Title)
	}
	if len(notifier.items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.items))
	}
}

func TestStreamHandleShortMessageIgnored(t *testing.T) {
	t.Parallel()

	repo := newFakeContentRepo()
	model := &fakeModel{response: barelyValid()}
	p := buildStreamPipeline(repo, model, &fakeNotifier{})

	p.Handle(context.Background(), streamSource(), domain.CandidateItem{
		ExternalID: "https://t.me/stocknews_kr/101",
		Body:       "짧은 글",
	})

	if model.calls != 0 {
		t.Fatalf("model must not run for a too-short message")
	}
	if repo.seenCalls != 0 {
		t.Fatalf("dedup lookup must not run for a too-short message")
	}
}

func TestStreamHandleNotRelevantSuppressed(t *testing.T) {
	t.Parallel()

	repo := newFakeContentRepo()
	model := &fakeModel{response: `{"sentiment_score": -1, "content": ""}`}
	notifier := &fakeNotifier{}
	p := buildStreamPipeline(repo, model, notifier)

	p.Handle(context.Background(), streamSource(), domain.CandidateItem{
		ExternalID: "https://t.me/stocknews_kr/102",
		Body:       "오늘 점심 메뉴 추천 받습니다. 구내식당이 별로네요. 의견 주세요.",
	})

	if len(repo.inserted) != 0 || len(notifier.items) != 0 {
		t.Fatalf("irrelevant message must not persist or notify")
	}
}

func TestStreamHandleAlreadySeen(t *testing.T) {
	t.Parallel()

	repo := newFakeContentRepo()
	repo.seen["telegram/https://t.me/stocknews_kr/103"] = true
	model := &fakeModel{response: barelyValid()}
	p := buildStreamPipeline(repo, model, &fakeNotifier{})

	p.Handle(context.Background(), streamSource(), domain.CandidateItem{
		ExternalID: "https://t.me/stocknews_kr/103",
		Body:       "이미 처리된 메시지입니다. 같은 링크로 다시 들어온 경우입니다.",
	})

	if model.calls != 0 {
		t.Fatalf("model must not run for a seen message")
	}
}

// Concurrent invocations must all land; the model mutex serializes the
// shared client.
func TestStreamHandleConcurrentMessages(t *testing.T) {
	t.Parallel()

	repo := &lockedContentRepo{inner: newFakeContentRepo()}
	model := &fakeModel{response: barelyValid()}
	p := buildStreamPipeline(repo.inner, model, &fakeNotifier{})
	// route through the locked wrapper
	p.contents = repo

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Handle(context.Background(), streamSource(), domain.CandidateItem{
				ExternalID: "https://t.me/stocknews_kr/" + string(rune('a'+n)),
				Body:       "서로 다른 메시지가 동시에 도착한 상황을 흉내내는 본문입니다.",
			})
		}(i)
	}
	wg.Wait()

	if len(repo.inner.inserted) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(repo.inner.inserted))
	}
}

// lockedContentRepo makes the in-memory fake safe for concurrent use.
type lockedContentRepo struct {
	mu    sync.Mutex
	inner *fakeContentRepo
}

func (l *lockedContentRepo) Seen(ctx context.Context, platform domain.Platform, externalID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Seen(ctx, platform, externalID)
}

func (l *lockedContentRepo) Insert(ctx context.Context, item domain.ContentItem) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Insert(ctx, item)
}

func (l *lockedContentRepo) Recent(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Recent(ctx, limit)
}

func (l *lockedContentRepo) CreatedSince(ctx context.Context, since time.Time) ([]domain.ContentItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.CreatedSince(ctx, since)
}
