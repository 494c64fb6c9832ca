package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/source"
)

// DefaultDuration is how long a toast stays on screen.
const DefaultDuration = 5 * time.Second

// Notification is the data sent to alert destinations.
type Notification struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Body     string        `json:"body"`
	Link     string        `json:"link"`
	ItemID   string        `json:"item_id"`
	Source   string        `json:"source"`
	Category string        `json:"category"`
	Icon     string        `json:"-"`
	Duration time.Duration `json:"-"`
}

// NewNotification builds the toast for a news item.
func NewNotification(id string, item source.Item, icon string) *Notification {
	return &Notification{
		ID:       id,
		Title:    fmt.Sprintf("%s - %s", item.Source, item.Category),
		Body:     item.Title,
		Link:     item.Link,
		ItemID:   item.ID,
		Source:   item.Source,
		Category: item.Category,
		Icon:     icon,
		Duration: DefaultDuration,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager fans a notification out to all registered notifiers.
type Manager struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{notifiers: notifiers, logger: logger}
}

func (m *Manager) Name() string { return "manager" }

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Send delivers n to every notifier. It fails only when no destination
// accepted the notification.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if len(m.notifiers) == 0 {
		return errors.New("no notifiers configured")
	}

	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			m.logger.Warn("notifier failed", "notifier", notifier.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	if len(errs) == len(m.notifiers) {
		return errors.Join(errs...)
	}
	return nil
}
