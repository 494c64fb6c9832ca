package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/source"
)

func testDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "data", "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newItem(title, src string, published time.Time) source.Item {
	return source.Item{
		ID:          source.ItemID(title),
		Title:       title,
		Link:        "https://example.com/" + src,
		Source:      src,
		PublishedAt: published,
		Category:    source.CategoryAI,
	}
}

func sampleItems() []source.Item {
	base := time.Date(2025, 5, 24, 12, 0, 0, 0, time.UTC)
	return []source.Item{
		newItem("Post A", "a", base),
		newItem("Post B", "b", base.Add(-1*time.Hour)),
		newItem("Post C", "c", base.Add(2*time.Hour)),
	}
}

func TestUpsertItemsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	items := sampleItems()

	if n := db.UpsertItems(ctx, items); n != 3 {
		t.Fatalf("first upsert inserted %d, want 3", n)
	}
	if n := db.UpsertItems(ctx, items); n != 0 {
		t.Fatalf("second upsert inserted %d, want 0", n)
	}
	if total, _ := db.CountItems(ctx); total != 3 {
		t.Fatalf("expected 3 stored rows, got %d", total)
	}
}

func TestUpsertItemsKeepsExistingRow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	items := sampleItems()
	db.UpsertItems(ctx, items)

	if !db.MarkRead(ctx, items[0].ID) {
		t.Fatal("mark read failed")
	}

	again := items[0]
	again.Category = source.CategoryTech
	again.Link = "https://other.example"
	if n := db.UpsertItems(ctx, []source.Item{again}); n != 0 {
		t.Fatalf("duplicate title inserted %d rows", n)
	}

	got, ok := db.GetItem(ctx, items[0].ID)
	if !ok {
		t.Fatal("item missing")
	}
	if !got.IsRead || got.Category != source.CategoryAI || got.Link != items[0].Link {
		t.Errorf("existing row was modified: %+v", got)
	}
}

func TestUpsertItemsSameTitleDifferentID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := newItem("Shared title", "a", time.Now())
	second := first
	second.ID = "some-other-id"

	if n := db.UpsertItems(ctx, []source.Item{first, second}); n != 1 {
		t.Fatalf("expected 1 insert, got %d", n)
	}
}

func TestLatestOrderAndLimit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.UpsertItems(ctx, sampleItems())

	got := db.Latest(ctx, 10)
	want := []string{"Post C", "Post A", "Post B"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, got[i].Title, title)
		}
	}

	if got := db.Latest(ctx, 2); len(got) != 2 {
		t.Errorf("limit not applied, got %d", len(got))
	}

	wantTime := time.Date(2025, 5, 24, 14, 0, 0, 0, time.UTC)
	if !got[0].PublishedAt.Equal(wantTime) {
		t.Errorf("PublishedAt round trip: got %v, want %v", got[0].PublishedAt, wantTime)
	}
}

func TestMarkReadAndUnread(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	items := sampleItems()
	db.UpsertItems(ctx, items)

	if db.MarkRead(ctx, "does-not-exist") {
		t.Error("MarkRead on unknown id should return false")
	}
	if _, unread := db.CountItems(ctx); unread != 3 {
		t.Errorf("unknown id changed storage: unread=%d", unread)
	}

	if !db.MarkRead(ctx, items[2].ID) {
		t.Fatal("MarkRead on known id should return true")
	}

	unread := db.Unread(ctx, 10)
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(unread))
	}
	for _, it := range unread {
		if it.ID == items[2].ID {
			t.Error("read item still listed as unread")
		}
	}

	latest := db.Latest(ctx, 10)
	if len(latest) != 3 || !latest[0].IsRead {
		t.Errorf("latest should still contain the read item first: %+v", latest)
	}
}

func TestCountItemsBySource(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	items := sampleItems()
	items[1].Source = "a"
	db.UpsertItems(ctx, items)

	counts := db.CountItemsBySource(ctx)
	if counts["a"] != 2 || counts["c"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestSeedAndListSources(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	recs := []SourceRecord{
		{Name: "MIT Technology Review", URL: "https://www.technologyreview.com/feed/", Category: "Tech", Enabled: true},
		{Name: "AI News", URL: "https://artificialintelligence-news.com/feed/", Category: "AI", Enabled: false},
	}
	if n := db.SeedSources(ctx, recs); n != 2 {
		t.Fatalf("seeded %d, want 2", n)
	}
	// Seeding twice updates in place.
	recs[1].Enabled = true
	db.SeedSources(ctx, recs)

	got := db.ListSources(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].Name != "AI News" || !got[0].Enabled || got[0].ID != "ai-news" {
		t.Errorf("unexpected first source %+v", got[0])
	}
}

func TestOperationsAfterCloseDegrade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.Close()

	if n := db.UpsertItems(ctx, sampleItems()); n != 0 {
		t.Errorf("expected 0 inserts on closed db, got %d", n)
	}
	if got := db.Latest(ctx, 5); len(got) != 0 {
		t.Errorf("expected empty list on closed db, got %d", len(got))
	}
	if db.MarkRead(ctx, "x") {
		t.Error("expected false on closed db")
	}
	if db.PutSetting(ctx, "k", 1) {
		t.Error("expected false on closed db")
	}
	if got := Setting(ctx, db, "k", 7); got != 7 {
		t.Errorf("expected default on closed db, got %d", got)
	}
}

func TestSettingRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	value := map[string]any{"a": 1, "b": []int{1, 2, 3}}
	if !db.PutSetting(ctx, "k", value) {
		t.Fatal("put setting failed")
	}

	got := Setting[any](ctx, db, "k", nil)
	want := map[string]any{"a": float64(1), "b": []any{float64(1), float64(2), float64(3)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %#v, want %#v", got, want)
	}

	type shape struct {
		A int   `json:"a"`
		B []int `json:"b"`
	}
	typed := Setting(ctx, db, "k", shape{})
	if typed.A != 1 || !reflect.DeepEqual(typed.B, []int{1, 2, 3}) {
		t.Errorf("typed round trip = %+v", typed)
	}

	if got := Setting(ctx, db, "missing", 42); got != 42 {
		t.Errorf("missing key = %v, want 42", got)
	}
}

func TestSettingOverwriteAndBadShape(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.PutSetting(ctx, KeyRefreshInterval, 15)
	db.PutSetting(ctx, KeyRefreshInterval, 30)
	if got := Setting(ctx, db, KeyRefreshInterval, 0); got != 30 {
		t.Errorf("expected overwritten value 30, got %d", got)
	}

	db.PutSetting(ctx, "name", "not a number")
	if got := Setting(ctx, db, "name", 5); got != 5 {
		t.Errorf("decode failure should return default, got %d", got)
	}

	if db.PutSetting(ctx, "bad", func() {}) {
		t.Error("unencodable value should fail")
	}
}

func TestSettingNullFallsBackToDefault(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if !db.PutSetting(ctx, KeyNotificationEnabled, nil) {
		t.Fatal("storing null should succeed")
	}
	if got := Setting(ctx, db, KeyNotificationEnabled, true); !got {
		t.Error("null setting should return the default")
	}
	var v any
	if db.LoadSetting(ctx, KeyNotificationEnabled, &v) {
		t.Error("null setting should load as absent")
	}
}

func TestPreferences(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	def := DefaultPreferences()
	if got := LoadPreferences(ctx, db, def); got != def {
		t.Errorf("empty store should yield defaults, got %+v", got)
	}

	p := Preferences{NotificationEnabled: false, RefreshInterval: 90, AutoStart: true, StartMinimized: false}
	if !SavePreferences(ctx, db, p) {
		t.Fatal("save preferences failed")
	}

	got := LoadPreferences(ctx, db, def)
	want := Preferences{NotificationEnabled: false, RefreshInterval: 60, AutoStart: true, StartMinimized: false}
	if got != want {
		t.Errorf("LoadPreferences = %+v, want %+v", got, want)
	}
}
