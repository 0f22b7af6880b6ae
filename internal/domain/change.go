package domain

import "time"

// ChangeType is the kind of row change carried by a ChangeEvent.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeAll matches every change type in a subscription filter.
	ChangeAll ChangeType = "*"
)

const (
	// SchemaPublic is the schema the bookmarks table lives in.
	SchemaPublic = "public"
	// TableBookmarks is the bookmarks table name.
	TableBookmarks = "bookmarks"
)

// ChangeEvent describes one committed row change on a table.
// Record is set for INSERT/UPDATE, OldRecord for UPDATE/DELETE.
type ChangeEvent struct {
	Type            ChangeType `json:"type"`
	Schema          string     `json:"schema"`
	Table           string     `json:"table"`
	Record          *Bookmark  `json:"record,omitempty"`
	OldRecord       *Bookmark  `json:"old_record,omitempty"`
	CommitTimestamp time.Time  `json:"commit_timestamp"`
}

// OwnerID returns the user id of the affected row, if known.
func (e ChangeEvent) OwnerID() string {
	if e.Record != nil {
		return e.Record.UserID
	}
	if e.OldRecord != nil {
		return e.OldRecord.UserID
	}
	return ""
}
