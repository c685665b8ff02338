package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
)

const (
	defaultFeedBaseURL       = "https://www.youtube.com/feeds/videos.xml"
	defaultTranscriptBaseURL = "https://video.google.com/timedtext"
)

// Fetcher resolves the newest upload of a channel via its RSS feed and
// retrieves the caption transcript as the analysis body.
type Fetcher struct {
	client            *http.Client
	parser            *gofeed.Parser
	languages         []string
	feedBaseURL       string
	transcriptBaseURL string
	logger            *slog.Logger
}

var _ ports.Fetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client and the caption language preference
// order (first obtainable transcript wins).
func NewFetcher(client *http.Client, languages []string, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if len(languages) == 0 {
		languages = []string{"ko", "en"}
	}
	return &Fetcher{
		client:            client,
		parser:            gofeed.NewParser(),
		languages:         languages,
		feedBaseURL:       defaultFeedBaseURL,
		transcriptBaseURL: defaultTranscriptBaseURL,
		logger:            logger,
	}
}

// Platform identifies the fetcher inside the registry.
func (f *Fetcher) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// LatestCandidate reads the channel feed and returns its single most
// recent entry, or (nil, nil) when the feed is empty.
func (f *Fetcher) LatestCandidate(ctx context.Context, source domain.Source) (*domain.CandidateItem, error) {
	feedURL := fmt.Sprintf("%s?channel_id=%s", f.feedBaseURL, url.QueryEscape(source.Identifier))

	feed, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", source.Identifier, err)
	}
	if len(feed.Items) == 0 {
		return nil, nil
	}

	latest := feed.Items[0]
	videoID := videoIDOf(latest)
	if videoID == "" {
		return nil, fmt.Errorf("channel %s: entry %q carries no video id", source.Identifier, latest.Title)
	}

	link := latest.Link
	if link == "" {
		link = "https://www.youtube.com/watch?v=" + videoID
	}

	return &domain.CandidateItem{
		ExternalID: videoID,
		Title:      latest.Title,
		URL:        link,
	}, nil
}

// FetchBody retrieves the caption transcript for the candidate video,
// trying each configured language in order. Captions disabled or absent
// yields "" without error; the item is simply not analyzed this cycle.
func (f *Fetcher) FetchBody(ctx context.Context, candidate domain.CandidateItem) (string, error) {
	for _, lang := range f.languages {
		text, err := f.fetchTranscript(ctx, candidate.ExternalID, lang)
		if err != nil {
			return "", fmt.Errorf("transcript %s (%s): %w", candidate.ExternalID, lang, err)
		}
		if text != "" {
			f.debug("transcript fetched", "video", candidate.ExternalID, "lang", lang, "chars", len(text))
			return text, nil
		}
	}
	return "", nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "StockAgent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) fetchTranscript(ctx context.Context, videoID, lang string) (string, error) {
	endpoint := fmt.Sprintf("%s?lang=%s&v=%s", f.transcriptBaseURL, url.QueryEscape(lang), url.QueryEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "StockAgent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request transcript: %w", err)
	}
	defer resp.Body.Close()

	// The timedtext endpoint answers 404 (or an empty 200 body) for
	// videos without captions in the requested language.
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	return joinSnippets(strings.NewReader(string(body)))
}

// joinSnippets flattens the timedtext XML into one space-joined string.
func joinSnippets(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}

	var parts []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		if snippet := strings.TrimSpace(s.Text()); snippet != "" {
			parts = append(parts, snippet)
		}
	})

	return strings.Join(parts, " "), nil
}

// videoIDOf reads the yt:videoId extension, falling back to the v= query
// parameter of the entry link.
func videoIDOf(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]; ok {
		if ids, ok := ext["videoId"]; ok && len(ids) > 0 {
			return strings.TrimSpace(ids[0].Value)
		}
	}

	parsed, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("v")
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
