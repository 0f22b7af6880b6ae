package domain

import (
	"net/url"
	"strings"
	"time"
)

// Bookmark is a persisted, user-owned (title, URL) record.
// Bookmarks are never mutated in place: they are inserted and deleted.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (server-assigned)
	// ─────────────────────────────

	// ID is the canonical unique identifier (UUID).
	ID string `json:"id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the human label shown in the list.
	// Example: "Google Search"
	Title string `json:"title"`

	// URL is the full external URL the row links to.
	// Example: https://google.com
	URL string `json:"url"`

	// ─────────────────────────────
	// Ownership & ordering
	// ─────────────────────────────

	// UserID references the owning user.
	UserID string `json:"user_id"`

	// CreatedAt is assigned by the database and orders the list (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark is the insert payload for the bookmarks table.
type NewBookmark struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}

// Validate checks the payload shape. The owner is checked by the table policy.
func (nb NewBookmark) Validate() error {
	if strings.TrimSpace(nb.Title) == "" {
		return ErrEmptyTitle
	}
	if !IsBookmarkURL(nb.URL) {
		return ErrInvalidURL
	}
	return nil
}

// Draft is the transient add-form state.
type Draft struct {
	Title string
	URL   string
}

// IsZero reports whether both fields are empty.
func (d Draft) IsZero() bool {
	return d.Title == "" && d.URL == ""
}

// IsBookmarkURL reports whether raw is an absolute http(s) URL with a host.
func IsBookmarkURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// NewerFirst reports whether a sorts before b in a list view:
// created_at descending, then id descending so ties are stable.
func NewerFirst(a, b Bookmark) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
