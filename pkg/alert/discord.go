package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/source"
)

// Discord mirrors notifications to a Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Color     int            `json:"color"`
	Author    map[string]any `json:"author,omitempty"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) message(n *Notification) discordMessage {
	embed := discordEmbed{
		Title: n.Body,
		URL:   n.Link,
		Color: categoryColor(n.Category),
		Fields: []discordField{
			{Name: "Category", Value: n.Category, Inline: true},
			{Name: "Source", Value: n.Source, Inline: true},
		},
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	if n.Source != "" {
		embed.Author = map[string]any{"name": n.Source}
	}
	return discordMessage{Username: "News Notifier", Embeds: []discordEmbed{embed}}
}

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(d.message(n))
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}
	return nil
}

// categoryColor gives each news category its own embed stripe.
func categoryColor(category string) int {
	switch category {
	case source.CategoryAI:
		return 0x7C3AED
	case source.CategoryTech:
		return 0x2563EB
	}
	return 0x0EA5E9
}
