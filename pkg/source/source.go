package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the naive ISO-8601 layout used to persist published times.
const TimeLayout = "2006-01-02T15:04:05"

// RawItem is what a source returns before normalization.
type RawItem struct {
	Title        string
	Link         string
	Source       string
	Published    time.Time
	CategoryHint string
}

// Item is the canonical news item shared by storage, the API and notifications.
type Item struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Link        string    `json:"link" db:"link"`
	Source      string    `json:"source" db:"source"`
	PublishedAt time.Time `json:"published_at" db:"-"`
	Category    string    `json:"category" db:"category"`
	IsRead      bool      `json:"is_read" db:"is_read"`
}

// Source is the interface every news source must implement.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawItem, error)
}

// ItemID derives a stable identifier from the normalized title.
func ItemID(title string) string {
	h := sha256.Sum256([]byte(normalizeTitle(title)))
	return fmt.Sprintf("%x", h[:16])
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Naive drops the zone of t by converting to UTC and truncating to seconds.
func Naive(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Normalize converts a raw record into an Item. A zero published time
// falls back to now.
func Normalize(raw RawItem, c *Categorizer, now time.Time) Item {
	title := strings.TrimSpace(raw.Title)

	published := raw.Published
	if published.IsZero() {
		published = now
	}

	category := c.Categorize(title)
	if category == CategoryDefault && raw.CategoryHint != "" {
		category = raw.CategoryHint
	}

	return Item{
		ID:          ItemID(title),
		Title:       title,
		Link:        strings.TrimSpace(raw.Link),
		Source:      raw.Source,
		PublishedAt: Naive(published),
		Category:    category,
	}
}

// NormalizeAll normalizes a batch, dropping records without a title.
func NormalizeAll(raws []RawItem, c *Categorizer, now time.Time) []Item {
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw.Title) == "" {
			continue
		}
		items = append(items, Normalize(raw, c, now))
	}
	return items
}
