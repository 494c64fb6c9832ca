package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const hnBaseURL = "https://hacker-news.firebaseio.com/v0"

// HackerNews collects top stories from Hacker News.
type HackerNews struct {
	client  *http.Client
	baseURL string
	limit   int
}

// NewHackerNews creates a new HN source.
func NewHackerNews(limit int) *HackerNews {
	if limit <= 0 {
		limit = 30
	}
	return &HackerNews{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: hnBaseURL,
		limit:   limit,
	}
}

func (h *HackerNews) Name() string { return "hackernews" }

func (h *HackerNews) Fetch(ctx context.Context) ([]RawItem, error) {
	ids, err := h.fetchTopStories(ctx)
	if err != nil {
		return nil, err
	}

	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	stories := make([]*RawItem, len(ids))

	var g errgroup.Group
	g.SetLimit(10)
	for i, id := range ids {
		g.Go(func() error {
			story, err := h.fetchItem(ctx, id)
			if err != nil || story == nil {
				return nil
			}

			item := RawItem{
				Title:     story.Title,
				Link:      story.URL,
				Source:    "Hacker News",
				Published: time.Unix(story.Time, 0),
			}
			if item.Link == "" {
				item.Link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
			}
			stories[i] = &item
			return nil
		})
	}
	_ = g.Wait()

	// Keep top-stories rank order.
	items := make([]RawItem, 0, len(stories))
	for _, item := range stories {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

type hnStory struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
}

func (h *HackerNews) fetchTopStories(ctx context.Context) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/topstories.json", nil)
	if err != nil {
		return nil, fmt.Errorf("create hn request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch hn top stories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn top stories status %d", resp.StatusCode)
	}

	var ids []int
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode hn top stories: %w", err)
	}
	return ids, nil
}

func (h *HackerNews) fetchItem(ctx context.Context, id int) (*hnStory, error) {
	url := fmt.Sprintf("%s/item/%d.json", h.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create hn item request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch hn item %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn item %d status %d", id, resp.StatusCode)
	}

	var story hnStory
	if err := json.NewDecoder(resp.Body).Decode(&story); err != nil {
		return nil, fmt.Errorf("decode hn item %d: %w", id, err)
	}

	if story.Type != "story" {
		return nil, nil
	}
	return &story, nil
}
