package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewsAPIMock(t *testing.T) {
	n := NewNewsAPI("", "", true)

	items, err := n.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 mock articles, got %d", len(items))
	}
	if items[0].Source != "TechCrunch" {
		t.Errorf("expected TechCrunch, got %q", items[0].Source)
	}
	want := time.Date(2025, 5, 24, 15, 30, 0, 0, time.UTC)
	if !items[0].Published.Equal(want) {
		t.Errorf("Published = %v, want %v", items[0].Published, want)
	}
}

func TestNewsAPIHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"id":"hn","name":""},"title":"Live story","url":"https://x.example","publishedAt":"2025-06-01T10:00:00+02:00"},
			{"source":{"name":"Other"},"title":"No date","url":"https://y.example","publishedAt":"yesterday"}
		]}`))
	}))
	defer srv.Close()

	items, err := NewNewsAPI(srv.URL, "secret", false).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Source != "hn" {
		t.Errorf("expected source id fallback, got %q", items[0].Source)
	}
	if !items[0].Published.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected published time %v", items[0].Published)
	}
	if !items[1].Published.IsZero() {
		t.Errorf("unparsable date should stay zero, got %v", items[1].Published)
	}
}

func TestNewsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.WriteHeader(http.StatusInternalServerError)
		case "/apierror":
			w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/status", "/apierror", "/garbage"} {
		if _, err := NewNewsAPI(srv.URL+path, "", false).Fetch(context.Background()); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
}
