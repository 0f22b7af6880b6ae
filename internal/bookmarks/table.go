// Package bookmarks is the owner-scoped data layer the view talks to.
// Every operation applies the access policy (a user sees and changes only
// their own rows) and announces committed changes on the realtime broker.
package bookmarks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Repository is the storage the table runs on.
type Repository interface {
	SelectByOwner(ctx context.Context, userID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error)
	InsertMany(ctx context.Context, bs []domain.Bookmark) ([]domain.Bookmark, error)
	DeleteOwned(ctx context.Context, id, userID string) (*domain.Bookmark, error)
	URLsByOwner(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Broadcaster announces committed row changes.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev domain.ChangeEvent) error
}

// Table is the bookmarks table as seen by one signed-in user.
type Table struct {
	repo  Repository
	bc    Broadcaster
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

func NewTable(repo Repository, bc Broadcaster, log logger.Logger) *Table {
	return &Table{
		repo:  repo,
		bc:    bc,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SelectAll returns the session owner's bookmarks, newest first.
func (t *Table) SelectAll(ctx context.Context, session *domain.Session) ([]domain.Bookmark, error) {
	if session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return t.repo.SelectByOwner(ctx, session.User.ID)
}

// Insert stores nb and returns the stored row.
func (t *Table) Insert(ctx context.Context, session *domain.Session, nb domain.NewBookmark) (domain.Bookmark, error) {
	if session == nil {
		return domain.Bookmark{}, domain.ErrNotAuthenticated
	}
	if nb.UserID != session.User.ID {
		return domain.Bookmark{}, domain.ErrPermissionDenied
	}
	if err := nb.Validate(); err != nil {
		return domain.Bookmark{}, err
	}

	stored, err := t.repo.Insert(ctx, domain.Bookmark{
		ID:     t.newID(),
		Title:  strings.TrimSpace(nb.Title),
		URL:    strings.TrimSpace(nb.URL),
		UserID: nb.UserID,
	})
	if err != nil {
		return domain.Bookmark{}, err
	}

	t.broadcast(ctx, domain.ChangeInsert, &stored, nil)
	return stored, nil
}

// Delete removes the owner's bookmark id. Deleting a row that does not
// exist is a no-op; a row owned by someone else is domain.ErrPermissionDenied.
func (t *Table) Delete(ctx context.Context, session *domain.Session, id string) error {
	if session == nil {
		return domain.ErrNotAuthenticated
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	old, err := t.repo.DeleteOwned(ctx, id, session.User.ID)
	if err != nil {
		return err
	}
	if old == nil {
		t.log.Debug("delete matched no row",
			logger.String("bookmark_id", id),
			logger.String("user_id", session.User.ID),
		)
		return nil
	}

	t.broadcast(ctx, domain.ChangeDelete, nil, old)
	return nil
}

// ImportResult summarizes an Import call.
type ImportResult struct {
	Inserted []domain.Bookmark
	Skipped  int
}

// Import stores drafts in one transaction, skipping URLs the owner already
// has and duplicates inside drafts. Invalid drafts are skipped too.
func (t *Table) Import(ctx context.Context, session *domain.Session, drafts []domain.Draft) (ImportResult, error) {
	if session == nil {
		return ImportResult{}, domain.ErrNotAuthenticated
	}

	existing, err := t.repo.URLsByOwner(ctx, session.User.ID)
	if err != nil {
		return ImportResult{}, err
	}

	var (
		res   ImportResult
		batch []domain.Bookmark
	)
	for _, d := range drafts {
		nb := domain.NewBookmark{
			Title:  strings.TrimSpace(d.Title),
			URL:    strings.TrimSpace(d.URL),
			UserID: session.User.ID,
		}
		if nb.Validate() != nil {
			res.Skipped++
			continue
		}
		if _, dup := existing[nb.URL]; dup {
			res.Skipped++
			continue
		}
		existing[nb.URL] = struct{}{}
		batch = append(batch, domain.Bookmark{
			ID:     t.newID(),
			Title:  nb.Title,
			URL:    nb.URL,
			UserID: nb.UserID,
		})
	}

	if len(batch) == 0 {
		return res, nil
	}

	stored, err := t.repo.InsertMany(ctx, batch)
	if err != nil {
		return ImportResult{}, err
	}
	res.Inserted = stored

	for i := range stored {
		t.broadcast(ctx, domain.ChangeInsert, &stored[i], nil)
	}

	t.log.Info("📥 Imported bookmarks",
		logger.String("user_id", session.User.ID),
		logger.Int("inserted", len(stored)),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}

// broadcast is best effort. Subscribers that miss an event catch up on
// their next full fetch.
func (t *Table) broadcast(ctx context.Context, typ domain.ChangeType, rec, old *domain.Bookmark) {
	ev := domain.ChangeEvent{
		Type:            typ,
		Schema:          domain.SchemaPublic,
		Table:           domain.TableBookmarks,
		Record:          rec,
		OldRecord:       old,
		CommitTimestamp: t.now().UTC(),
	}
	if err := t.bc.Broadcast(ctx, ev); err != nil {
		t.log.Warn("failed to broadcast bookmark change",
			logger.String("type", string(typ)),
			logger.Error(err),
		)
	}
}
