package source

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

//go:embed fixtures
var fixtures embed.FS

// NewsAPI reads a NewsAPI-style "articles" payload over HTTP. With mock
// enabled, or without a URL, it decodes the bundled fixture instead.
type NewsAPI struct {
	client *http.Client
	url    string
	apiKey string
	mock   bool
}

// NewNewsAPI creates a new NewsAPI source.
func NewNewsAPI(url, apiKey string, mock bool) *NewsAPI {
	return &NewsAPI{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		apiKey: apiKey,
		mock:   mock || url == "",
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context) ([]RawItem, error) {
	var body io.Reader
	if n.mock {
		data, err := fixtures.ReadFile("fixtures/newsapi.json")
		if err != nil {
			return nil, fmt.Errorf("read newsapi fixture: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		resp, err := n.get(ctx)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body = resp.Body
	}
	return decodeNewsAPI(body)
}

func (n *NewsAPI) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create newsapi request: %w", err)
	}
	req.Header.Set("User-Agent", "newsnotifier/1.0")
	if n.apiKey != "" {
		req.Header.Set("X-Api-Key", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch newsapi: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("newsapi status %d", resp.StatusCode)
	}
	return resp, nil
}

func decodeNewsAPI(r io.Reader) ([]RawItem, error) {
	var payload newsAPIResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode newsapi: %w", err)
	}
	if payload.Status != "" && payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %s: %s", payload.Code, payload.Message)
	}

	items := make([]RawItem, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		// Unparsable dates are left zero and become "now" during normalization.
		published, _ := time.Parse(time.RFC3339, strings.TrimSpace(a.PublishedAt))

		name := a.Source.Name
		if name == "" {
			name = a.Source.ID
		}

		items = append(items, RawItem{
			Title:     a.Title,
			Link:      a.URL,
			Source:    name,
			Published: published,
		})
	}
	return items, nil
}
