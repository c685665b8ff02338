package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"StockAgent/internal/domain"
)

type dispatched struct {
	source    domain.Source
	candidate domain.CandidateItem
}

// runListener serves the given update batches (one per poll, then empty
// batches) and returns everything the handler received before the
// expected count was reached.
func runListener(t *testing.T, sources []domain.Source, batches [][]update, want int) []dispatched {
	t.Helper()

	var polls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(polls.Add(1)) - 1
		var result []update
		if n < len(batches) {
			result = batches[n]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(server.Close)

	l := NewListener("test-token", 1, nil)
	l.apiBaseURL = server.URL
	l.client = server.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan dispatched, want+4)
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, sources, func(_ context.Context, src domain.Source, c domain.CandidateItem) {
			got <- dispatched{source: src, candidate: c}
		})
	}()

	var received []dispatched
	for len(received) < want {
		select {
		case d := <-got:
			received = append(received, d)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for dispatches, got %d of %d", len(received), want)
		}
	}
	cancel()
	<-done

	// Drain anything dispatched after the expected count; handler
	// goroutines may still be in flight when Run returns.
	for {
		select {
		case d := <-got:
			received = append(received, d)
		case <-time.After(50 * time.Millisecond):
			return received
		}
	}
}

func channelPost(id int64, chatID int64, username, title, text string) update {
	u := update{UpdateID: id, ChannelPost: &post{MessageID: id + 100, Text: text}}
	u.ChannelPost.Chat.ID = chatID
	u.ChannelPost.Chat.Username = username
	u.ChannelPost.Chat.Title = title
	return u
}

func TestRunDispatchesUsernameMatch(t *testing.T) {
	t.Parallel()

	sources := []domain.Source{{
		ID:         1,
		Platform:   domain.PlatformTelegram,
		Identifier: "marketnews",
		Channel:    domain.ChannelRef{Username: "marketnews"},
	}}
	batches := [][]update{{
		channelPost(7, -100123, "MarketNews", "시장 속보 채널", "코스피 급등 소식"),
	}}

	received := runListener(t, sources, batches, 1)
	if len(received) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(received))
	}

	d := received[0]
	if d.source.ID != 1 {
		t.Fatalf("unexpected source: %+v", d.source)
	}
	if d.source.Name != "시장 속보 채널" {
		t.Fatalf("chat title should override source name, got %q", d.source.Name)
	}
	if d.candidate.ExternalID != "https://t.me/MarketNews/107" {
		t.Fatalf("unexpected external id: %s", d.candidate.ExternalID)
	}
	if d.candidate.Title != "텔레그램 속보" {
		t.Fatalf("unexpected title: %s", d.candidate.Title)
	}
	if d.candidate.Body != "코스피 급등 소식" {
		t.Fatalf("unexpected body: %s", d.candidate.Body)
	}
}

func TestRunDispatchesNumericChatMatch(t *testing.T) {
	t.Parallel()

	sources := []domain.Source{{
		ID:         2,
		Platform:   domain.PlatformTelegram,
		Identifier: "-100987",
		Channel:    domain.ChannelRef{ChatID: -100987},
	}}

	msg := update{UpdateID: 3, Message: &post{MessageID: 55, Text: "사모 채널 메시지"}}
	msg.Message.Chat.ID = -100987

	received := runListener(t, sources, [][]update{{msg}}, 1)
	if len(received) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(received))
	}
	if received[0].candidate.ExternalID != "tg:-100987/55" {
		t.Fatalf("unexpected external id: %s", received[0].candidate.ExternalID)
	}
}

func TestRunIgnoresUnregisteredChats(t *testing.T) {
	t.Parallel()

	sources := []domain.Source{{
		ID:      1,
		Channel: domain.ChannelRef{Username: "watched"},
	}}
	batches := [][]update{{
		channelPost(1, -1, "stranger", "", "무시할 메시지"),
		channelPost(2, -2, "watched", "", "전달될 메시지"),
	}}

	received := runListener(t, sources, batches, 1)
	if len(received) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(received))
	}
	if received[0].candidate.Body != "전달될 메시지" {
		t.Fatalf("wrong message dispatched: %s", received[0].candidate.Body)
	}
}

func TestRunSkipsEmptyText(t *testing.T) {
	t.Parallel()

	sources := []domain.Source{{Channel: domain.ChannelRef{Username: "watched"}}}
	batches := [][]update{
		{channelPost(1, -1, "watched", "", "")},
		{channelPost(2, -1, "watched", "", "실제 텍스트")},
	}

	received := runListener(t, sources, batches, 1)
	if len(received) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(received))
	}
	if received[0].candidate.Body != "실제 텍스트" {
		t.Fatalf("wrong message dispatched: %s", received[0].candidate.Body)
	}
}

func TestRunAdvancesOffset(t *testing.T) {
	t.Parallel()

	offsets := make(chan string, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets <- r.URL.Query().Get("offset")
		var result []update
		if r.URL.Query().Get("offset") == "" {
			result = []update{channelPost(41, -1, "watched", "", "첫 메시지")}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(server.Close)

	l := NewListener("test-token", 1, nil)
	l.apiBaseURL = server.URL
	l.client = server.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, []domain.Source{{Channel: domain.ChannelRef{Username: "watched"}}},
			func(context.Context, domain.Source, domain.CandidateItem) {})
	}()

	first := <-offsets
	second := <-offsets
	cancel()
	<-done

	if first != "" {
		t.Fatalf("first poll should carry no offset, got %q", first)
	}
	if second != "42" {
		t.Fatalf("second poll should ask past the last update, got %q", second)
	}
}

func TestRunEmptyToken(t *testing.T) {
	t.Parallel()

	l := NewListener("", 1, nil)
	err := l.Run(context.Background(), nil, func(context.Context, domain.Source, domain.CandidateItem) {})
	if err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestCandidateOfExternalIDs(t *testing.T) {
	t.Parallel()

	public := &post{MessageID: 9, Text: "t"}
	public.Chat.Username = "openchannel"
	if got := candidateOf(public).ExternalID; got != "https://t.me/openchannel/9" {
		t.Fatalf("unexpected public id: %s", got)
	}

	private := &post{MessageID: 9, Text: "t"}
	private.Chat.ID = -100555
	if got, want := candidateOf(private).ExternalID, fmt.Sprintf("tg:%d/%d", -100555, 9); got != want {
		t.Fatalf("unexpected private id: %s", got)
	}
}
