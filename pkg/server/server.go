package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/newsnotifier/internal/store"
	"github.com/elonfeng/newsnotifier/pkg/browser"
	"github.com/elonfeng/newsnotifier/pkg/source"
)

// DefaultPort is the API port when none is configured.
const DefaultPort = 8765

const maxBody = 64 << 10

// Refresher is the refresh control the API exposes.
type Refresher interface {
	Trigger()
	Reschedule(d time.Duration) error
}

// Activator resolves a notification click. Activate opens the link on this
// machine; Resolve only returns it, for clicks that arrive from a browser.
type Activator interface {
	Activate(ctx context.Context, id string) bool
	Resolve(ctx context.Context, id string) (string, bool)
}

// Deps are the components the API serves.
type Deps struct {
	Store         store.Store
	Refresher     Refresher
	Notifications Activator
	Opener        browser.Opener
	Defaults      store.Preferences
	Logger        *slog.Logger
}

// Server provides the HTTP API.
type Server struct {
	deps   Deps
	port   int
	logger *slog.Logger
}

// New creates a new HTTP server.
func New(deps Deps, port int) *Server {
	if port == 0 {
		port = DefaultPort
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Opener == nil {
		deps.Opener = browser.System{}
	}
	return &Server{deps: deps, port: port, logger: logger}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/items", s.handleItems)
	mux.HandleFunc("POST /api/v1/items/{id}/read", s.handleRead)
	mux.HandleFunc("POST /api/v1/items/{id}/open", s.handleOpen)
	mux.HandleFunc("GET /api/v1/settings", s.handleSettings)
	mux.HandleFunc("GET /api/v1/settings/{key}", s.handleGetSetting)
	mux.HandleFunc("PUT /api/v1/settings/{key}", s.handlePutSetting)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/v1/notifications/{id}/click", s.handleClick)
	mux.HandleFunc("GET /api/v1/notifications/{id}/click", s.handleClickRedirect)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	return mux
}

// ListenAndServe serves the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	view := r.URL.Query().Get("view")
	var items []source.Item
	switch view {
	case "", "latest":
		items = s.deps.Store.Latest(r.Context(), orDefault(limit, store.LatestLimit))
	case "history":
		items = s.deps.Store.Latest(r.Context(), orDefault(limit, store.HistoryLimit))
	case "unread":
		items = s.deps.Store.Unread(r.Context(), orDefault(limit, store.LatestLimit))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown view %q", view))
		return
	}
	if items == nil {
		items = []source.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Store.MarkRead(r.Context(), id) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_read": true})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	item, ok := s.deps.Store.GetItem(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err := s.deps.Opener.Open(item.Link); err != nil {
		s.logger.Error("open link failed", "link", item.Link, "err", err)
		writeError(w, http.StatusBadGateway, "could not open link")
		return
	}
	s.deps.Store.MarkRead(r.Context(), item.ID)
	item.IsRead = true
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.LoadPreferences(r.Context(), s.deps.Store, s.deps.Defaults))
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	prefs := store.LoadPreferences(r.Context(), s.deps.Store, s.deps.Defaults)

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
		if !s.deps.Store.LoadSetting(r.Context(), key, &value) {
			writeError(w, http.StatusNotFound, "setting not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	value, err := DecodeSetting(key, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.deps.Store.PutSetting(r.Context(), key, value) {
		writeError(w, http.StatusInternalServerError, "save setting failed")
		return
	}

	if key == store.KeyRefreshInterval && s.deps.Refresher != nil {
		minutes := value.(int)
		if err := s.deps.Refresher.Reschedule(time.Duration(minutes) * time.Minute); err != nil {
			s.logger.Error("reschedule failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

// DecodeSetting parses a JSON setting value, checking the shape of the
// well-known keys. refresh_interval is clamped to 1..60 minutes.
func DecodeSetting(key string, raw []byte) (any, error) {
	switch key {
	case store.KeyNotificationEnabled, store.KeyAutoStart, store.KeyStartMinimized:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%s must be a boolean", key)
		}
		return b, nil
	case store.KeyRefreshInterval:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%s must be a whole number of minutes", key)
		}
		return store.ClampRefreshInterval(n), nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.New("value must be valid JSON")
	}
	return v, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not available")
		return
	}
	s.deps.Refresher.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifications == nil || !s.deps.Notifications.Activate(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "opened"})
}

// handleClickRedirect serves toast activation URLs: the OS opens the URL in
// the browser, which is sent on to the article.
func (s *Server) handleClickRedirect(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifications == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	link, ok := s.deps.Notifications.Resolve(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	counts := s.deps.Store.CountItemsBySource(r.Context())

	type sourceInfo struct {
		store.SourceRecord
		Items int `json:"items"`
	}

	infos := []sourceInfo{}
	for _, rec := range s.deps.Store.ListSources(r.Context()) {
		infos = append(infos, sourceInfo{SourceRecord: rec, Items: counts[rec.Name]})
	}

	total, unread := s.deps.Store.CountItems(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   infos,
		"count":  len(infos),
		"total":  total,
		"unread": unread,
	})
}

func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
