package homepage

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

func TestMapperMapDrafts(t *testing.T) {
	config, err := Parse([]byte(sampleBookmarks))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	drafts, err := NewMapper().MapDrafts(config)
	if err != nil {
		t.Fatalf("MapDrafts() error = %v", err)
	}

	want := []domain.Draft{
		{Title: "Github", URL: "https://github.com/"},
		{Title: "Go Docs", URL: "https://go.dev/doc/"},
		{Title: "Reddit", URL: "https://reddit.com/"},
	}
	if len(drafts) != len(want) {
		t.Fatalf("MapDrafts() returned %d drafts, want %d", len(drafts), len(want))
	}
	for i := range want {
		if drafts[i] != want[i] {
			t.Errorf("drafts[%d] = %+v, want %+v", i, drafts[i], want[i])
		}
	}
}

func TestMapperFallsBackToAbbr(t *testing.T) {
	config := BookmarksConfig{
		{"Misc": []map[string][]BookmarkEntry{
			{"  ": {{Abbr: "HN", Href: "https://news.ycombinator.com"}}},
		}},
	}

	drafts, err := NewMapper().MapDrafts(config)
	if err != nil {
		t.Fatalf("MapDrafts() error = %v", err)
	}
	if drafts[0].Title != "HN" {
		t.Errorf("title = %q, want HN", drafts[0].Title)
	}
}

func TestMapperSkipsMissingHrefAndDuplicates(t *testing.T) {
	config := BookmarksConfig{
		{"A": []map[string][]BookmarkEntry{
			{"NoHref": {{Abbr: "NH"}}},
			{"Empty": {}},
			{"First": {{Href: "https://dup.example.com"}}},
		}},
		{"B": []map[string][]BookmarkEntry{
			{"Second": {{Href: "https://dup.example.com"}}},
		}},
	}

	drafts, err := NewMapper().MapDrafts(config)
	if err != nil {
		t.Fatalf("MapDrafts() error = %v", err)
	}
	if len(drafts) != 1 || drafts[0].Title != "First" {
		t.Errorf("MapDrafts() = %+v, want only First", drafts)
	}
}

func TestMapperMapDraftsEmptyConfig(t *testing.T) {
	_, err := NewMapper().MapDrafts(BookmarksConfig{})

	// Empty config should return an error
	if !errors.Is(err, ErrNoBookmarks) {
		t.Errorf("MapDrafts() error = %v, want ErrNoBookmarks", err)
	}
}

func TestMapperStrippedHrefIsSkipped(t *testing.T) {
	config, err := NewLoader(0).Load(strings.NewReader(`---
- Infra:
    - Router:
        - href: {{HOMEPAGE_VAR_ROUTER_URL}}
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := NewMapper().MapDrafts(config); !errors.Is(err, ErrNoBookmarks) {
		t.Errorf("MapDrafts() error = %v, want ErrNoBookmarks", err)
	}
}
