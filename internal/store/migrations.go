package store

const schema = `
CREATE TABLE IF NOT EXISTS news_items (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL UNIQUE,
    link           TEXT NOT NULL,
    source         TEXT NOT NULL,
    published_time TEXT NOT NULL,
    category       TEXT NOT NULL,
    is_read        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_news_items_published ON news_items(published_time);
CREATE INDEX IF NOT EXISTS idx_news_items_unread ON news_items(is_read, published_time);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS news_sources (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    url        TEXT NOT NULL,
    category   TEXT NOT NULL,
    is_enabled INTEGER NOT NULL DEFAULT 1
);
`
