package index

import (
	"sort"
	"sync"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// BookmarkList is the in-memory projection of one user's bookmarks as a
// view last saw them. It is eventually consistent with the table.
type BookmarkList struct {
	mu        sync.RWMutex
	bookmarks map[string]domain.Bookmark // ID -> Bookmark
}

// NewBookmarkList creates an empty list
func NewBookmarkList() *BookmarkList {
	return &BookmarkList{
		bookmarks: make(map[string]domain.Bookmark),
	}
}

// Replace swaps the whole content, as after a full fetch
func (l *BookmarkList) Replace(bookmarks []domain.Bookmark) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Clear and rebuild
	l.bookmarks = make(map[string]domain.Bookmark, len(bookmarks))
	for _, b := range bookmarks {
		l.bookmarks[b.ID] = b
	}
}

// Upsert adds or replaces a single bookmark
func (l *BookmarkList) Upsert(b domain.Bookmark) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bookmarks[b.ID] = b
}

// Delete removes a bookmark. It reports whether it was present.
func (l *BookmarkList) Delete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.bookmarks[id]
	delete(l.bookmarks, id)
	return ok
}

// Snapshot returns a copy ordered newest first (created_at desc, id desc).
// It never returns nil.
func (l *BookmarkList) Snapshot() []domain.Bookmark {
	l.mu.RLock()
	out := make([]domain.Bookmark, 0, len(l.bookmarks))
	for _, b := range l.bookmarks {
		out = append(out, b)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return domain.NewerFirst(out[i], out[j]) })
	return out
}
