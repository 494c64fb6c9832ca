package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appDir = "newsnotifier"

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Sources    SourcesConfig    `yaml:"sources"`
	Categories CategoriesConfig `yaml:"categories"`
	Notify     NotifyConfig     `yaml:"notify"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
	Autostart  AutostartConfig  `yaml:"autostart"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the refresh timer.
type ScheduleConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseRefreshInterval returns the refresh interval as time.Duration.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	return parseDuration(s.RefreshInterval, 15*time.Minute)
}

// SourcesConfig holds configuration for all news sources.
type SourcesConfig struct {
	NewsAPI    NewsAPIConfig    `yaml:"newsapi"`
	RSS        RSSConfig        `yaml:"rss"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
}

// NewsAPIConfig for the NewsAPI source.
type NewsAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mock    bool   `yaml:"mock"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// RSSConfig for RSS feed collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Mock    bool       `yaml:"mock"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// HackerNewsConfig for Hacker News collector.
type HackerNewsConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit"`
}

// CategoriesConfig extends the built-in keyword lists.
type CategoriesConfig struct {
	ExtraAIKeywords   []string `yaml:"extra_ai_keywords"`
	ExtraTechKeywords []string `yaml:"extra_tech_keywords"`
}

// NotifyConfig configures desktop notifications.
type NotifyConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Delay         string `yaml:"delay"`
	MaxPerRefresh int    `yaml:"max_per_refresh"`
	Icon          string `yaml:"icon"`
	PendingTTL    string `yaml:"pending_ttl"`
}

// ParseDelay returns the pause between notifications of one batch.
func (n NotifyConfig) ParseDelay() time.Duration {
	return parseDuration(n.Delay, 2*time.Second)
}

// ParsePendingTTL returns how long a notification stays clickable.
func (n NotifyConfig) ParsePendingTTL() time.Duration {
	return parseDuration(n.PendingTTL, 24*time.Hour)
}

// AlertsConfig configures optional mirror destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AutostartConfig names the login entry.
type AutostartConfig struct {
	AppName string `yaml:"app_name"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultFeeds are the RSS feeds a fresh install follows.
func DefaultFeeds() []FeedItem {
	return []FeedItem{
		{Name: "MIT Technology Review", URL: "https://www.technologyreview.com/feed/", Category: "Tech"},
		{Name: "Wired", URL: "https://www.wired.com/feed/rss", Category: "Tech"},
		{Name: "AI News", URL: "https://artificialintelligence-news.com/feed/", Category: "AI"},
		{Name: "VentureBeat AI", URL: "https://venturebeat.com/category/ai/feed/", Category: "AI"},
	}
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: DefaultDBPath()},
		Schedule: ScheduleConfig{RefreshInterval: "15m"},
		Sources: SourcesConfig{
			NewsAPI: NewsAPIConfig{
				Enabled: true,
				Mock:    true,
				URL:     "https://newsapi.org/v2/top-headlines?category=technology&language=en",
			},
			RSS: RSSConfig{
				Enabled: true,
				Mock:    true,
				Feeds:   DefaultFeeds(),
			},
			HackerNews: HackerNewsConfig{Enabled: false, Limit: 30},
		},
		Notify: NotifyConfig{
			Enabled:       true,
			Delay:         "2s",
			MaxPerRefresh: 3,
			PendingTTL:    "24h",
		},
		Server:    ServerConfig{Port: 8765},
		Autostart: AutostartConfig{AppName: "AINewsNotifier"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultDBPath is the database location under the user's data directory.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, appDir, "news_data.db")
}

// UserConfigPath is the per-user config file location.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appDir, "config.yaml")
}

// FindConfig returns ./config.yaml or the per-user config file,
// whichever exists first, or "" when neither does.
func FindConfig() string {
	for _, p := range []string{"config.yaml", UserConfigPath()} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads configuration from a YAML file and applies env var overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEWSNOTIFIER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NEWSAPI_KEY"); v != "" {
		cfg.Sources.NewsAPI.APIKey = v
		cfg.Sources.NewsAPI.Mock = false
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("NEWSNOTIFIER_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("NEWSNOTIFIER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if os.Getenv("NEWSNOTIFIER_DEBUG") == "true" {
		cfg.Log.Level = "debug"
	}
}

func validate(cfg *Config) error {
	var errs []error
	for i, f := range cfg.Sources.RSS.Feeds {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("feed %d: name is required", i))
			continue
		}
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("feed %q: url must be http or https", f.Name))
		}
		switch f.Category {
		case "", "AI", "Tech", "AI/Tech":
		default:
			errs = append(errs, fmt.Errorf("feed %q: unknown category %q", f.Name, f.Category))
		}
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", cfg.Server.Port))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
