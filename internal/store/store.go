package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elonfeng/newsnotifier/pkg/source"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Default list sizes for the latest and history views.
const (
	LatestLimit  = 20
	HistoryLimit = 100
)

// SourceRecord is a row of the news_sources table.
type SourceRecord struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	URL      string `db:"url" json:"url"`
	Category string `db:"category" json:"category"`
	Enabled  bool   `db:"is_enabled" json:"enabled"`
}

// Store is the persistence interface. Operations never return storage
// errors: failures are logged and degrade to zero values.
type Store interface {
	UpsertItems(ctx context.Context, items []source.Item) int
	Latest(ctx context.Context, limit int) []source.Item
	Unread(ctx context.Context, limit int) []source.Item
	GetItem(ctx context.Context, id string) (source.Item, bool)
	MarkRead(ctx context.Context, id string) bool
	CountItems(ctx context.Context) (total, unread int)
	CountItemsBySource(ctx context.Context) map[string]int

	PutSetting(ctx context.Context, key string, value any) bool
	LoadSetting(ctx context.Context, key string, dst any) bool

	SeedSources(ctx context.Context, sources []SourceRecord) int
	ListSources(ctx context.Context) []SourceRecord

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New opens a SQLite database and runs migrations.
func New(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Debug("database ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type itemRow struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	Link          string `db:"link"`
	Source        string `db:"source"`
	PublishedTime string `db:"published_time"`
	Category      string `db:"category"`
	IsRead        bool   `db:"is_read"`
}

func (r itemRow) item() (source.Item, error) {
	published, err := time.Parse(source.TimeLayout, r.PublishedTime)
	if err != nil {
		return source.Item{}, fmt.Errorf("parse published_time of %s: %w", r.ID, err)
	}
	return source.Item{
		ID:          r.ID,
		Title:       r.Title,
		Link:        r.Link,
		Source:      r.Source,
		PublishedAt: published,
		Category:    r.Category,
		IsRead:      r.IsRead,
	}, nil
}

const itemColumns = "id, title, link, source, published_time, category, is_read"

// UpsertItems inserts items whose title (or id) is not stored yet and returns
// how many rows were added. Existing rows are never touched.
func (s *SQLiteStore) UpsertItems(ctx context.Context, items []source.Item) int {
	if len(items) == 0 {
		return 0
	}

	n, err := s.insertItems(ctx, items)
	if err != nil {
		s.logger.Error("save news items failed", "err", err)
		return 0
	}
	s.logger.Info("saved news items", "inserted", n, "batch", len(items))
	return n
}

func (s *SQLiteStore) insertItems(ctx context.Context, items []source.Item) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO news_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, it := range items {
		res, err := stmt.ExecContext(ctx, it.ID, it.Title, it.Link, it.Source,
			source.Naive(it.PublishedAt).Format(source.TimeLayout), it.Category, it.IsRead)
		if err != nil {
			s.logger.Error("save news item failed", "id", it.ID, "title", it.Title, "err", err)
			continue
		}
		if n, _ := res.RowsAffected(); n == 1 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// Latest returns the newest items, read or not.
func (s *SQLiteStore) Latest(ctx context.Context, limit int) []source.Item {
	return s.listItems(ctx, false, limit)
}

// Unread returns the newest unread items.
func (s *SQLiteStore) Unread(ctx context.Context, limit int) []source.Item {
	return s.listItems(ctx, true, limit)
}

func (s *SQLiteStore) listItems(ctx context.Context, unreadOnly bool, limit int) []source.Item {
	if limit <= 0 {
		limit = LatestLimit
	}

	query := "SELECT " + itemColumns + " FROM news_items"
	if unreadOnly {
		query += " WHERE is_read = 0"
	}
	query += " ORDER BY published_time DESC, rowid ASC LIMIT ?"

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		s.logger.Error("list news items failed", "unread_only", unreadOnly, "err", err)
		return nil
	}

	items := make([]source.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.item()
		if err != nil {
			s.logger.Warn("skipping unreadable row", "err", err)
			continue
		}
		items = append(items, it)
	}
	return items
}

// GetItem looks up a single item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (source.Item, bool) {
	var r itemRow
	err := s.db.GetContext(ctx, &r, "SELECT "+itemColumns+" FROM news_items WHERE id = ?", id)
	if err != nil {
		s.logger.Debug("get news item failed", "id", id, "err", err)
		return source.Item{}, false
	}
	it, err := r.item()
	if err != nil {
		s.logger.Warn("unreadable row", "err", err)
		return source.Item{}, false
	}
	return it, true
}

// MarkRead flags an item as read. It reports false when the id is unknown
// or the update fails.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) bool {
	res, err := s.db.ExecContext(ctx, "UPDATE news_items SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		s.logger.Error("mark read failed", "id", id, "err", err)
		return false
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		s.logger.Warn("mark read: no such item", "id", id)
		return false
	}
	s.logger.Info("marked read", "id", id)
	return true
}

// CountItems returns the total and unread item counts.
func (s *SQLiteStore) CountItems(ctx context.Context) (total, unread int) {
	var row struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0) AS unread FROM news_items")
	if err != nil {
		s.logger.Error("count news items failed", "err", err)
		return 0, 0
	}
	return row.Total, row.Unread
}

func (s *SQLiteStore) CountItemsBySource(ctx context.Context) map[string]int {
	counts := make(map[string]int)

	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) AS cnt FROM news_items GROUP BY source")
	if err != nil {
		s.logger.Error("count items by source failed", "err", err)
		return counts
	}
	defer rows.Close()

	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			s.logger.Error("scan source count failed", "err", err)
			return counts
		}
		counts[src] = cnt
	}
	return counts
}

// SeedSources writes the configured source list into news_sources.
func (s *SQLiteStore) SeedSources(ctx context.Context, sources []SourceRecord) int {
	n := 0
	for _, rec := range sources {
		if rec.ID == "" {
			rec.ID = SourceID(rec.Name)
		}
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO news_sources (id, name, url, category, is_enabled)
			VALUES (:id, :name, :url, :category, :is_enabled)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				url = excluded.url,
				category = excluded.category,
				is_enabled = excluded.is_enabled
		`, rec)
		if err != nil {
			s.logger.Error("seed source failed", "name", rec.Name, "err", err)
			continue
		}
		n++
	}
	return n
}

func (s *SQLiteStore) ListSources(ctx context.Context) []SourceRecord {
	var recs []SourceRecord
	if err := s.db.SelectContext(ctx, &recs,
		"SELECT id, name, url, category, is_enabled FROM news_sources ORDER BY name"); err != nil {
		s.logger.Error("list sources failed", "err", err)
		return nil
	}
	return recs
}

// SourceID derives the news_sources key from a display name.
func SourceID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
