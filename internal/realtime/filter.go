package realtime

import "github.com/MrSnakeDoc/smartmarks/internal/domain"

// Filter selects the change events a handler receives.
type Filter struct {
	// Event is a change type or domain.ChangeAll.
	Event  domain.ChangeType
	Schema string
	Table  string
	// UserID scopes the binding to one owner. Empty means every owner.
	// Events whose owner is unknown are always delivered so the receiver
	// can fall back to a full reload.
	UserID string
}

// Topic is the bus channel events for the filter's table are published on.
func (f Filter) Topic() string {
	return Topic(f.Schema, f.Table)
}

// Topic returns the bus channel for a table.
func Topic(schema, table string) string {
	return "realtime:" + schema + ":" + table
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev domain.ChangeEvent) bool {
	if f.Schema != ev.Schema || f.Table != ev.Table {
		return false
	}
	if f.Event != "" && f.Event != domain.ChangeAll && f.Event != ev.Type {
		return false
	}
	if f.UserID == "" {
		return true
	}
	owner := ev.OwnerID()
	return owner == "" || owner == f.UserID
}
