package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/newsnotifier/internal/autostart"
	"github.com/elonfeng/newsnotifier/internal/config"
	"github.com/elonfeng/newsnotifier/internal/logging"
	"github.com/elonfeng/newsnotifier/internal/scheduler"
	"github.com/elonfeng/newsnotifier/internal/store"
	"github.com/elonfeng/newsnotifier/pkg/alert"
	"github.com/elonfeng/newsnotifier/pkg/browser"
	"github.com/elonfeng/newsnotifier/pkg/server"
	"github.com/elonfeng/newsnotifier/pkg/source"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.SQLiteStore
}

// setup loads config, builds the logger and opens the database.
func setup() (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.FindConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	db, err := store.New(cfg.Database.Path, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SeedSources(context.Background(), feedRecords(cfg))

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close store failed", "err", err)
	}
}

func feedRecords(cfg *config.Config) []store.SourceRecord {
	recs := make([]store.SourceRecord, 0, len(cfg.Sources.RSS.Feeds))
	for _, f := range cfg.Sources.RSS.Feeds {
		recs = append(recs, store.SourceRecord{
			Name:     f.Name,
			URL:      f.URL,
			Category: f.Category,
			Enabled:  cfg.Sources.RSS.Enabled,
		})
	}
	return recs
}

// defaultPreferences seeds settings that were never saved from config.
func (a *app) defaultPreferences() store.Preferences {
	prefs := store.DefaultPreferences()
	prefs.NotificationEnabled = a.cfg.Notify.Enabled
	prefs.RefreshInterval = store.ClampRefreshInterval(int(a.cfg.Schedule.ParseRefreshInterval() / time.Minute))
	return prefs
}

func (a *app) buildSources() []source.Source {
	var sources []source.Source
	cfg := a.cfg

	if cfg.Sources.NewsAPI.Enabled {
		sources = append(sources, source.NewNewsAPI(cfg.Sources.NewsAPI.URL, cfg.Sources.NewsAPI.APIKey, cfg.Sources.NewsAPI.Mock))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL, Category: f.Category}
		}
		sources = append(sources, source.NewRSS(feeds, cfg.Sources.RSS.Mock, a.logger.With("component", "rss")))
	}
	if cfg.Sources.HackerNews.Enabled {
		sources = append(sources, source.NewHackerNews(cfg.Sources.HackerNews.Limit))
	}

	return sources
}

// buildNotifier assembles the enabled notifiers. Toast clicks are routed
// to the click endpoint of the API served on port.
func (a *app) buildNotifier(port int) *alert.Manager {
	cfg := a.cfg
	clickBase := fmt.Sprintf("http://127.0.0.1:%d/api/v1/notifications", port)
	notifiers := []alert.Notifier{alert.NewDesktop(cfg.Autostart.AppName, clickBase)}

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers, a.logger.With("component", "alert"))
}

func (a *app) categorizer() *source.Categorizer {
	return source.NewCategorizer(a.cfg.Categories.ExtraAIKeywords, a.cfg.Categories.ExtraTechKeywords)
}

func runDaemon(port int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}
	if port == 0 {
		port = server.DefaultPort
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defaults := a.defaultPreferences()
	prefs := store.LoadPreferences(ctx, a.db, defaults)
	syncAutostart(a, prefs.AutoStart)

	dispatcher := alert.NewDispatcher(a.buildNotifier(port), browser.System{}, a.db, alert.DispatcherOptions{
		Icon:       a.cfg.Notify.Icon,
		PendingTTL: a.cfg.Notify.ParsePendingTTL(),
	}, a.logger.With("component", "dispatcher"))
	defer dispatcher.Close()

	fetcher := source.NewFetcher(a.buildSources(), a.logger.With("component", "fetcher"))
	refresher := scheduler.New(fetcher, a.categorizer(), a.db, dispatcher, scheduler.Options{
		Interval:      time.Duration(prefs.RefreshInterval) * time.Minute,
		MaxNotify:     a.cfg.Notify.MaxPerRefresh,
		Delay:         a.cfg.Notify.ParseDelay(),
		NotifyDefault: defaults.NotificationEnabled,
	}, a.logger.With("component", "scheduler"))
	defer refresher.Close()

	refresher.Start()
	refresher.Trigger()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res := <-refresher.Results():
				if res.Err != nil {
					fmt.Fprintf(os.Stderr, "refresh failed: %v\n", res.Err)
					continue
				}
				fmt.Fprintf(os.Stderr, "refresh: %d new of %d fetched, %d notified\n",
					res.Inserted, res.Fetched, res.Notified)
			}
		}
	}()

	srv := server.New(server.Deps{
		Store:         a.db,
		Refresher:     refresher,
		Notifications: dispatcher,
		Opener:        browser.System{},
		Defaults:      defaults,
		Logger:        a.logger.With("component", "server"),
	}, port)

	err = srv.ListenAndServe(ctx)
	fmt.Fprintln(os.Stderr, "\nshutting down...")
	return err
}

func runServe(port int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(server.Deps{
		Store:    a.db,
		Opener:   browser.System{},
		Defaults: a.defaultPreferences(),
		Logger:   a.logger.With("component", "server"),
	}, port)
	return srv.ListenAndServe(ctx)
}

func runFetch(filterSources []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	allSources := a.buildSources()

	// Filter to requested sources only.
	var sources []source.Source
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		for _, s := range allSources {
			if wanted[s.Name()] || wanted[shortName(s.Name())] {
				sources = append(sources, s)
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	} else {
		sources = allSources
	}

	fetcher := source.NewFetcher(sources, a.logger.With("component", "fetcher"))
	refresher := scheduler.New(fetcher, a.categorizer(), a.db, nil, scheduler.Options{}, a.logger.With("component", "scheduler"))
	defer refresher.Close()

	fmt.Fprintf(os.Stderr, "fetching from %d sources...\n", len(sources))
	res := refresher.RunOnce(context.Background())
	if res.Err != nil {
		return res.Err
	}

	total, unread := a.db.CountItems(context.Background())
	fmt.Fprintf(os.Stderr, "fetched %d, kept %d after dedup, %d new\n", res.Fetched, res.Kept, res.Inserted)
	fmt.Fprintf(os.Stderr, "store: %d items, %d unread\n", total, unread)
	return nil
}

func runList(view string, limit int, jsonOutput bool) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var items []source.Item
	switch view {
	case "latest":
		items = a.db.Latest(ctx, orDefault(limit, store.LatestLimit))
	case "history":
		items = a.db.Latest(ctx, orDefault(limit, store.HistoryLimit))
	case "unread":
		items = a.db.Unread(ctx, orDefault(limit, store.LatestLimit))
	default:
		return fmt.Errorf("unknown view %q (valid: latest, history, unread)", view)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("no news yet (try fetching first: newsnotifier fetch)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPUBLISHED\tSOURCE\tCATEGORY\tREAD\tTITLE")
	for _, it := range items {
		read := ""
		if it.IsRead {
			read = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.PublishedAt.Format("2006-01-02 15:04"), it.Source, it.Category, read, truncate(it.Title, 80))
	}
	return w.Flush()
}

func runRead(id string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.db.MarkRead(context.Background(), id) {
		return fmt.Errorf("no item with id %s", id)
	}
	fmt.Fprintf(os.Stderr, "marked %s as read\n", id)
	return nil
}

func runOpen(id string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	item, ok := a.db.GetItem(ctx, id)
	if !ok {
		return fmt.Errorf("no item with id %s", id)
	}
	if err := browser.Open(item.Link); err != nil {
		return err
	}
	a.db.MarkRead(ctx, id)
	fmt.Fprintf(os.Stderr, "opened %s\n", item.Link)
	return nil
}

func runSettingsGet(key string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	prefs := store.LoadPreferences(ctx, a.db, a.defaultPreferences())

	var out any = prefs
	if key != "" {
		var value any
		switch key {
		case store.KeyNotificationEnabled:
			value = prefs.NotificationEnabled
		case store.KeyRefreshInterval:
			value = prefs.RefreshInterval
		case store.KeyAutoStart:
			value = prefs.AutoStart
		case store.KeyStartMinimized:
			value = prefs.StartMinimized
		default:
			if !a.db.LoadSetting(ctx, key, &value) {
				return fmt.Errorf("setting %s not found", key)
			}
		}
		out = value
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runSettingsSet(key, raw string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := server.DecodeSetting(key, []byte(raw))
	if err != nil {
		return err
	}
	if !a.db.PutSetting(context.Background(), key, value) {
		return fmt.Errorf("save setting %s failed", key)
	}
	if key == store.KeyAutoStart {
		syncAutostart(a, value.(bool))
	}
	fmt.Fprintf(os.Stderr, "%s = %v\n", key, value)
	return nil
}

func runAutostart(enabled bool) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := autostart.Set(a.cfg.Autostart.AppName, exe, enabled); err != nil {
		return err
	}
	a.db.PutSetting(context.Background(), store.KeyAutoStart, enabled)
	fmt.Fprintf(os.Stderr, "autostart %s\n", onOff(enabled))
	return nil
}

// syncAutostart applies the saved preference to the OS. Failures are logged.
func syncAutostart(a *app, enabled bool) {
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn("locate executable failed", "err", err)
		return
	}
	err = autostart.Set(a.cfg.Autostart.AppName, exe, enabled)
	switch {
	case errors.Is(err, autostart.ErrUnsupported):
		a.logger.Debug("autostart unavailable on this platform")
	case err != nil:
		a.logger.Warn("update autostart failed", "err", err)
	}
}

func shortName(name string) string {
	if name == "hackernews" {
		return "hn"
	}
	return name
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// truncate shortens s to maxLen runes for table output.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
