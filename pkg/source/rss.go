package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeed is a named RSS/Atom feed URL with an optional category hint.
type RSSFeed struct {
	Name     string
	URL      string
	Category string
}

// mockFeeds maps feed names to bundled fixture documents. Feeds without
// a fixture yield no entries in mock mode.
var mockFeeds = map[string]string{
	"MIT Technology Review": "fixtures/mit_technology_review.xml",
	"AI News":               "fixtures/ai_news.xml",
}

// RSS collects news from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
	mock   bool
	logger *slog.Logger
	now    func() time.Time
}

// NewRSS creates a new RSS source.
func NewRSS(feeds []RSSFeed, mock bool, logger *slog.Logger) *RSS {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		mock:   mock,
		logger: logger,
		now:    time.Now,
	}
}

func (r *RSS) Name() string { return "rss" }

// Fetch reads every feed in order. A failing feed is logged and skipped.
func (r *RSS) Fetch(ctx context.Context) ([]RawItem, error) {
	var all []RawItem

	for _, feed := range r.feeds {
		items, err := r.fetchFeed(ctx, feed)
		if err != nil {
			r.logger.Error("rss feed failed", "feed", feed.Name, "err", err)
			continue
		}
		all = append(all, items...)
	}

	r.logger.Info("rss fetched", "feeds", len(r.feeds), "items", len(all))
	return all, nil
}

func (r *RSS) fetchFeed(ctx context.Context, feed RSSFeed) ([]RawItem, error) {
	var (
		parsed *gofeed.Feed
		err    error
	)
	if r.mock {
		path, ok := mockFeeds[feed.Name]
		if !ok {
			return nil, nil
		}
		data, rerr := fixtures.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("read rss fixture %s: %w", feed.Name, rerr)
		}
		parsed, err = r.parser.Parse(bytes.NewReader(data))
	} else {
		parsed, err = r.download(ctx, feed)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		published := r.now()
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		items = append(items, RawItem{
			Title:        entry.Title,
			Link:         link,
			Source:       feed.Name,
			Published:    published,
			CategoryHint: feed.Category,
		})
	}
	return items, nil
}

func (r *RSS) download(ctx context.Context, feed RSSFeed) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "newsnotifier/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}
	return r.parser.Parse(resp.Body)
}
