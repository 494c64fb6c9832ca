package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack mirrors notifications to a Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []any       `json:"elements,omitempty"`
}

type slackMessage struct {
	Text        string       `json:"text"`
	Blocks      []slackBlock `json:"blocks"`
	UnfurlLinks bool         `json:"unfurl_links"`
}

func (s *Slack) Name() string { return "slack" }

// newSlackMessage puts the headline first, then the category and source as
// fields, then a button to the article.
func newSlackMessage(n *Notification) slackMessage {
	return slackMessage{
		Text: fmt.Sprintf("[%s] %s", n.Category, n.Body),
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*<%s|%s>*", n.Link, n.Body)},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: "*Category*\n" + n.Category},
					{Type: "mrkdwn", Text: "*Source*\n" + n.Source},
				},
			},
			{
				Type: "actions",
				Elements: []any{map[string]any{
					"type": "button",
					"text": slackText{Type: "plain_text", Text: "Read article"},
					"url":  n.Link,
				}},
			},
		},
	}
}

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(newSlackMessage(n))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}
