package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/source"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*Notification
	fail map[string]bool
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[n.ItemID] {
		return errors.New("toast rejected")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(rawURL string) error {
	o.opened = append(o.opened, rawURL)
	return nil
}

type fakeMarker struct {
	marked []string
}

func (m *fakeMarker) MarkRead(ctx context.Context, id string) bool {
	m.marked = append(m.marked, id)
	return true
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItems(n int) []source.Item {
	items := make([]source.Item, n)
	for i := range items {
		items[i] = source.Item{
			ID:       fmt.Sprintf("item-%d", i),
			Title:    fmt.Sprintf("Headline %d", i),
			Link:     fmt.Sprintf("https://example.com/%d", i),
			Source:   "Wired",
			Category: source.CategoryTech,
		}
	}
	return items
}

func newTestDispatcher(n Notifier, opener *fakeOpener, marker *fakeMarker) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(n, opener, marker, DispatcherOptions{Icon: "icon.png"}, quietLogger())
	var sleeps []time.Duration
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		sleeps = append(sleeps, delay)
		return nil
	}
	seq := 0
	d.newID = func() string {
		seq++
		return fmt.Sprintf("n-%d", seq)
	}
	return d, &sleeps
}

func TestNotifyBatchDelaysBetweenSuccesses(t *testing.T) {
	n := &fakeNotifier{}
	d, sleeps := newTestDispatcher(n, &fakeOpener{}, &fakeMarker{})

	sent := d.NotifyBatch(context.Background(), testItems(3), 2*time.Second)
	if sent != 3 {
		t.Fatalf("expected 3 sent, got %d", sent)
	}
	if len(*sleeps) != 2 {
		t.Errorf("expected 2 delays for 3 items, got %d", len(*sleeps))
	}
	for _, s := range *sleeps {
		if s != 2*time.Second {
			t.Errorf("unexpected delay %s", s)
		}
	}

	first := n.sent[0]
	if first.Title != "Wired - Tech" || first.Body != "Headline 0" {
		t.Errorf("unexpected notification text: %q / %q", first.Title, first.Body)
	}
	if first.Icon != "icon.png" || first.Duration != DefaultDuration {
		t.Errorf("unexpected icon or duration: %q %s", first.Icon, first.Duration)
	}
	if d.Pending() != 3 {
		t.Errorf("expected 3 pending clicks, got %d", d.Pending())
	}
}

func TestNotifyBatchSkipsFailures(t *testing.T) {
	n := &fakeNotifier{fail: map[string]bool{"item-1": true}}
	d, sleeps := newTestDispatcher(n, &fakeOpener{}, &fakeMarker{})

	sent := d.NotifyBatch(context.Background(), testItems(3), time.Second)
	if sent != 2 {
		t.Fatalf("expected 2 sent, got %d", sent)
	}
	// One delay after item-0; item-1 failed and item-2 is last.
	if len(*sleeps) != 1 {
		t.Errorf("expected 1 delay, got %d", len(*sleeps))
	}
	if d.Pending() != 2 {
		t.Errorf("failed notification should not stay pending, got %d", d.Pending())
	}
}

func TestNotifyBatchNoDelay(t *testing.T) {
	d, sleeps := newTestDispatcher(&fakeNotifier{}, &fakeOpener{}, &fakeMarker{})

	if sent := d.NotifyBatch(context.Background(), testItems(2), 0); sent != 2 {
		t.Fatalf("expected 2 sent, got %d", sent)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no delays, got %d", len(*sleeps))
	}
	if sent := d.NotifyBatch(context.Background(), nil, time.Second); sent != 0 {
		t.Errorf("expected 0 for empty batch, got %d", sent)
	}
}

func TestNotifyBatchStopsOnCancel(t *testing.T) {
	n := &fakeNotifier{}
	d, _ := newTestDispatcher(n, &fakeOpener{}, &fakeMarker{})
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		return context.Canceled
	}

	if sent := d.NotifyBatch(context.Background(), testItems(3), time.Second); sent != 1 {
		t.Errorf("expected batch to stop after first delay, got %d sent", sent)
	}
}

func TestActivate(t *testing.T) {
	opener := &fakeOpener{}
	marker := &fakeMarker{}
	d, _ := newTestDispatcher(&fakeNotifier{}, opener, marker)

	d.NotifyBatch(context.Background(), testItems(1), 0)

	if !d.Activate(context.Background(), "n-1") {
		t.Fatal("expected first activation to succeed")
	}
	if len(opener.opened) != 1 || opener.opened[0] != "https://example.com/0" {
		t.Errorf("unexpected opened links: %v", opener.opened)
	}
	if len(marker.marked) != 1 || marker.marked[0] != "item-0" {
		t.Errorf("unexpected marked items: %v", marker.marked)
	}

	if d.Activate(context.Background(), "n-1") {
		t.Error("second activation should be a no-op")
	}
	if d.Activate(context.Background(), "nope") {
		t.Error("unknown id should not activate")
	}
	if len(opener.opened) != 1 {
		t.Errorf("link opened more than once: %v", opener.opened)
	}
}

func TestResolveConsumesWithoutOpening(t *testing.T) {
	opener := &fakeOpener{}
	marker := &fakeMarker{}
	d, _ := newTestDispatcher(&fakeNotifier{}, opener, marker)

	d.NotifyBatch(context.Background(), testItems(2), 0)

	link, ok := d.Resolve(context.Background(), "n-2")
	if !ok || link != "https://example.com/1" {
		t.Fatalf("unexpected resolve: %q %v", link, ok)
	}
	if len(opener.opened) != 0 {
		t.Errorf("resolve should leave opening to the caller, opened %v", opener.opened)
	}
	if len(marker.marked) != 1 || marker.marked[0] != "item-1" {
		t.Errorf("unexpected marked items: %v", marker.marked)
	}
	if _, ok := d.Resolve(context.Background(), "n-2"); ok {
		t.Error("second resolve should fail")
	}
	if d.Pending() != 1 {
		t.Errorf("expected the other notification still pending, got %d", d.Pending())
	}
}

func TestPendingExpires(t *testing.T) {
	opener := &fakeOpener{}
	d, _ := newTestDispatcher(&fakeNotifier{}, opener, &fakeMarker{})
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.NotifyBatch(context.Background(), testItems(2), 0)
	if d.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", d.Pending())
	}

	now = now.Add(DefaultPendingTTL + time.Minute)
	if d.Activate(context.Background(), "n-1") {
		t.Error("expired notification should not activate")
	}
	if d.Pending() != 0 {
		t.Errorf("expected expired entries swept, got %d", d.Pending())
	}
	if len(opener.opened) != 0 {
		t.Errorf("expired click opened a link: %v", opener.opened)
	}
}

func TestDispatchAndClose(t *testing.T) {
	n := &fakeNotifier{}
	d, _ := newTestDispatcher(n, &fakeOpener{}, &fakeMarker{})

	d.Dispatch(testItems(3), time.Millisecond)
	d.Dispatch(nil, time.Millisecond)
	d.Close()

	if n.count() != 3 {
		t.Errorf("expected 3 notifications after Close, got %d", n.count())
	}
	if d.Pending() != 0 {
		t.Errorf("Close should clear pending clicks, got %d", d.Pending())
	}
}
