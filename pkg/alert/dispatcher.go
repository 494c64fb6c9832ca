package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/browser"
	"github.com/elonfeng/newsnotifier/pkg/source"
	"github.com/google/uuid"
)

// DefaultPendingTTL bounds how long an unclicked notification stays resolvable.
const DefaultPendingTTL = 24 * time.Hour

// MarkReader flags an item as read.
type MarkReader interface {
	MarkRead(ctx context.Context, id string) bool
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Icon       string
	PendingTTL time.Duration
}

type pendingClick struct {
	link    string
	itemID  string
	expires time.Time
}

// Dispatcher shows notifications one at a time and resolves clicks back
// to the item they were raised for.
type Dispatcher struct {
	notifier Notifier
	opener   browser.Opener
	marker   MarkReader
	icon     string
	ttl      time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]pendingClick

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewDispatcher creates a dispatcher sending through n.
func NewDispatcher(n Notifier, opener browser.Opener, marker MarkReader, opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifier: n,
		opener:   opener,
		marker:   marker,
		icon:     opts.Icon,
		ttl:      opts.PendingTTL,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]pendingClick),
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    uuid.NewString,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NotifyBatch sends one notification per item in order and returns how many
// were shown. After each success it waits delay, except after the last item.
// A failed item is logged and skipped.
func (d *Dispatcher) NotifyBatch(ctx context.Context, items []source.Item, delay time.Duration) int {
	sent := 0
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !d.notifyOne(ctx, item) {
			continue
		}
		sent++

		if delay > 0 && i < len(items)-1 {
			if err := d.sleep(ctx, delay); err != nil {
				break
			}
		}
	}
	d.logger.Info("notification batch done", "sent", sent, "batch", len(items))
	return sent
}

func (d *Dispatcher) notifyOne(ctx context.Context, item source.Item) bool {
	n := NewNotification(d.newID(), item, d.icon)
	d.register(n)

	if err := d.notifier.Send(ctx, n); err != nil {
		d.unregister(n.ID)
		d.logger.Error("show notification failed", "item", item.ID, "title", item.Title, "err", err)
		return false
	}
	d.logger.Info("showed notification", "notification", n.ID, "title", n.Title, "body", n.Body)
	return true
}

// Dispatch runs NotifyBatch in the background and returns immediately.
func (d *Dispatcher) Dispatch(items []source.Item, delay time.Duration) {
	if len(items) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.NotifyBatch(d.ctx, items, delay)
	}()
}

// Activate handles a click on notification id: it opens the link, marks
// the item read and forgets the notification. Unknown or expired ids
// return false.
func (d *Dispatcher) Activate(ctx context.Context, id string) bool {
	link, ok := d.Resolve(ctx, id)
	if !ok {
		return false
	}

	if d.opener != nil {
		if err := d.opener.Open(link); err != nil {
			d.logger.Error("open link failed", "link", link, "err", err)
		} else {
			d.logger.Info("opened link", "link", link)
		}
	}
	return true
}

// Resolve consumes notification id, marks its item read and returns the
// item link. It is used when the caller opens the link itself, as the
// toast's own activation URL does.
func (d *Dispatcher) Resolve(ctx context.Context, id string) (string, bool) {
	d.mu.Lock()
	entry, ok := d.pending[id]
	delete(d.pending, id)
	d.mu.Unlock()

	if !ok || d.now().After(entry.expires) {
		d.logger.Warn("unknown notification clicked", "notification", id)
		return "", false
	}

	if d.marker != nil {
		d.marker.MarkRead(ctx, entry.itemID)
	}
	return entry.link, true
}

// Pending returns the number of notifications still awaiting a click.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked()
	return len(d.pending)
}

// Close waits for in-flight batches to finish, then drops every pending click.
func (d *Dispatcher) Close() {
	d.wg.Wait()
	d.cancel()

	d.mu.Lock()
	d.pending = make(map[string]pendingClick)
	d.mu.Unlock()
}

func (d *Dispatcher) register(n *Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked()
	d.pending[n.ID] = pendingClick{
		link:    n.Link,
		itemID:  n.ItemID,
		expires: d.now().Add(d.ttl),
	}
}

func (d *Dispatcher) unregister(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) sweepLocked() {
	now := d.now()
	for id, p := range d.pending {
		if now.After(p.expires) {
			delete(d.pending, id)
		}
	}
}
