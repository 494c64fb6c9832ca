package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known setting keys.
const (
	KeyNotificationEnabled = "notification_enabled"
	KeyRefreshInterval     = "refresh_interval"
	KeyAutoStart           = "auto_start"
	KeyStartMinimized      = "start_minimized"
)

// SettingsStore is the key/value part of Store.
type SettingsStore interface {
	PutSetting(ctx context.Context, key string, value any) bool
	LoadSetting(ctx context.Context, key string, dst any) bool
}

// PutSetting stores value as JSON under key, replacing any previous value.
func (s *SQLiteStore) PutSetting(ctx context.Context, key string, value any) bool {
	if err := s.putSetting(ctx, key, value); err != nil {
		s.logger.Error("save setting failed", "key", key, "err", err)
		return false
	}
	s.logger.Info("saved setting", "key", key)
	return true
}

func (s *SQLiteStore) putSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// LoadSetting decodes the value stored under key into dst. It reports false
// if the key is absent, holds null, or cannot be read or decoded.
func (s *SQLiteStore) LoadSetting(ctx context.Context, key string, dst any) bool {
	var raw string
	if err := s.db.GetContext(ctx, &raw, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		s.logger.Debug("setting not loaded", "key", key, "err", err)
		return false
	}
	if strings.TrimSpace(raw) == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("decode setting failed", "key", key, "err", err)
		return false
	}
	return true
}

// Setting returns the value stored under key, or def when it is missing
// or unreadable.
func Setting[T any](ctx context.Context, s SettingsStore, key string, def T) T {
	var v T
	if !s.LoadSetting(ctx, key, &v) {
		return def
	}
	return v
}

// Preferences are the user-facing settings.
type Preferences struct {
	NotificationEnabled bool `json:"notification_enabled"`
	RefreshInterval     int  `json:"refresh_interval"` // minutes
	AutoStart           bool `json:"auto_start"`
	StartMinimized      bool `json:"start_minimized"`
}

// DefaultPreferences mirrors a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		NotificationEnabled: true,
		RefreshInterval:     15,
		AutoStart:           false,
		StartMinimized:      true,
	}
}

// ClampRefreshInterval limits an interval in minutes to 1..60.
func ClampRefreshInterval(minutes int) int {
	switch {
	case minutes < 1:
		return 1
	case minutes > 60:
		return 60
	}
	return minutes
}

// LoadPreferences reads every preference, falling back to def per key.
func LoadPreferences(ctx context.Context, s SettingsStore, def Preferences) Preferences {
	return Preferences{
		NotificationEnabled: Setting(ctx, s, KeyNotificationEnabled, def.NotificationEnabled),
		RefreshInterval:     ClampRefreshInterval(Setting(ctx, s, KeyRefreshInterval, def.RefreshInterval)),
		AutoStart:           Setting(ctx, s, KeyAutoStart, def.AutoStart),
		StartMinimized:      Setting(ctx, s, KeyStartMinimized, def.StartMinimized),
	}
}

// SavePreferences writes every preference and reports whether all writes succeeded.
func SavePreferences(ctx context.Context, s SettingsStore, p Preferences) bool {
	ok := s.PutSetting(ctx, KeyNotificationEnabled, p.NotificationEnabled)
	ok = s.PutSetting(ctx, KeyRefreshInterval, ClampRefreshInterval(p.RefreshInterval)) && ok
	ok = s.PutSetting(ctx, KeyAutoStart, p.AutoStart) && ok
	ok = s.PutSetting(ctx, KeyStartMinimized, p.StartMinimized) && ok
	return ok
}
