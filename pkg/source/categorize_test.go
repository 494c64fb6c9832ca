package source

import (
	"testing"
	"time"
)

func TestCategorize(t *testing.T) {
	c := NewCategorizer(nil, nil)

	tests := []struct {
		title string
		want  string
	}{
		{"深度学习框架发布新版本", CategoryAI},
		{"区块链应用落地金融行业", CategoryTech},
		{"今日天气晴朗", CategoryDefault},
		{"最新GPT-5模型展示惊人的推理能力", CategoryAI},
		{"量子计算突破：首个实用级容错量子处理器问世", CategoryTech},
		// AI keywords win over tech keywords in the same title.
		{"区块链遇上深度学习", CategoryAI},
		// Case-insensitive.
		{"New Transformer architecture", CategoryAI},
		// Substring matching: "ai" inside "said".
		{"He said hello", CategoryAI},
		{"", CategoryDefault},
	}

	for _, tt := range tests {
		if got := c.Categorize(tt.title); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestCategorizeExtraKeywords(t *testing.T) {
	c := NewCategorizer([]string{"  Copilot "}, []string{"Kubernetes"})

	if got := c.Categorize("copilot ships"); got != CategoryAI {
		t.Errorf("expected extra AI keyword to match, got %q", got)
	}
	if got := c.Categorize("kubernetes 1.40 released"); got != CategoryTech {
		t.Errorf("expected extra tech keyword to match, got %q", got)
	}
}

func TestItemIDStable(t *testing.T) {
	id1 := ItemID("Hello World")
	id2 := ItemID("  hello   WORLD ")
	id3 := ItemID("Hello World!")

	if id1 != id2 {
		t.Errorf("normalized titles should share an id: %s vs %s", id1, id2)
	}
	if id1 == id3 {
		t.Error("different titles should produce different ids")
	}
	if len(id1) != 32 {
		t.Errorf("expected 32-char hex id, got %d chars: %s", len(id1), id1)
	}
}

func TestNormalize(t *testing.T) {
	c := NewCategorizer(nil, nil)
	now := time.Date(2025, 5, 25, 8, 0, 0, 0, time.UTC)
	tz := time.FixedZone("CST", 8*3600)

	item := Normalize(RawItem{
		Title:     "  今日天气晴朗 ",
		Link:      "https://example.com/a ",
		Source:    "Example",
		Published: time.Date(2025, 5, 24, 18, 30, 15, 999, tz),
	}, c, now)

	if item.Title != "今日天气晴朗" {
		t.Errorf("title not trimmed: %q", item.Title)
	}
	if item.Link != "https://example.com/a" {
		t.Errorf("link not trimmed: %q", item.Link)
	}
	if item.ID != ItemID("今日天气晴朗") {
		t.Errorf("unexpected id %s", item.ID)
	}
	want := time.Date(2025, 5, 24, 10, 30, 15, 0, time.UTC)
	if !item.PublishedAt.Equal(want) || item.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}
	if item.Category != CategoryDefault {
		t.Errorf("Category = %q, want default", item.Category)
	}
	if item.IsRead {
		t.Error("new items must be unread")
	}
}

func TestNormalizeCategoryHint(t *testing.T) {
	c := NewCategorizer(nil, nil)
	now := time.Now()

	hinted := Normalize(RawItem{Title: "今日天气晴朗", CategoryHint: "Tech"}, c, now)
	if hinted.Category != "Tech" {
		t.Errorf("hint should apply when keywords miss, got %q", hinted.Category)
	}

	keyword := Normalize(RawItem{Title: "深度学习新进展", CategoryHint: "Tech"}, c, now)
	if keyword.Category != CategoryAI {
		t.Errorf("keyword match should win over hint, got %q", keyword.Category)
	}

	undated := Normalize(RawItem{Title: "x"}, c, now)
	if !undated.PublishedAt.Equal(Naive(now)) {
		t.Errorf("zero time should fall back to now, got %v", undated.PublishedAt)
	}
}

func TestNormalizeAllDropsEmptyTitles(t *testing.T) {
	c := NewCategorizer(nil, nil)
	items := NormalizeAll([]RawItem{{Title: "a"}, {Title: "   "}, {Title: "b"}}, c, time.Now())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}
