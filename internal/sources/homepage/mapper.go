package homepage

import (
	"errors"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// ErrNoBookmarks is returned when a document holds no usable entry.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Mapper converts Homepage bookmark config to drafts ready for import
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapDrafts flattens categories into drafts in document order. The title
// is the entry name, or its abbr when the name is blank. Entries without
// href are skipped and repeated URLs keep their first occurrence.
func (m *Mapper) MapDrafts(config BookmarksConfig) ([]domain.Draft, error) {
	drafts := make([]domain.Draft, 0)
	seen := make(map[string]struct{})

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					// Each bookmark has a list with a single entry
					if len(entries) == 0 {
						continue
					}
					entry := entries[0]

					href := strings.TrimSpace(entry.Href)
					if href == "" {
						continue
					}
					if _, dup := seen[href]; dup {
						continue
					}
					seen[href] = struct{}{}

					title := strings.TrimSpace(name)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}

					drafts = append(drafts, domain.Draft{Title: title, URL: href})
				}
			}
		}
	}

	if len(drafts) == 0 {
		return nil, ErrNoBookmarks
	}

	return drafts, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
