package bookmarks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// memRepo mirrors the SQL repository's owner semantics in memory.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Bookmark
	seq  int
	err  error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]domain.Bookmark)}
}

func (r *memRepo) SelectByOwner(_ context.Context, userID string) ([]domain.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []domain.Bookmark{}
	for _, b := range r.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.NewerFirst(out[i], out[j]) })
	return out, nil
}

func (r *memRepo) Insert(_ context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Bookmark{}, r.err
	}
	r.seq++
	b.CreatedAt = time.Date(2026, 1, 1, 0, 0, r.seq, 0, time.UTC)
	r.rows[b.ID] = b
	return b, nil
}

func (r *memRepo) InsertMany(ctx context.Context, bs []domain.Bookmark) ([]domain.Bookmark, error) {
	out := make([]domain.Bookmark, 0, len(bs))
	for _, b := range bs {
		s, err := r.Insert(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memRepo) DeleteOwned(_ context.Context, id, userID string) (*domain.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	if b.UserID != userID {
		return nil, domain.ErrPermissionDenied
	}
	delete(r.rows, id)
	return &b, nil
}

func (r *memRepo) URLsByOwner(_ context.Context, userID string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for _, b := range r.rows {
		if b.UserID == userID {
			out[b.URL] = struct{}{}
		}
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (r *recorder) Broadcast(_ context.Context, ev domain.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func session(userID string) *domain.Session {
	return &domain.Session{ID: "s-" + userID, User: domain.User{ID: userID}, ExpiresAt: time.Now().Add(time.Hour)}
}

const (
	id1 = "00000000-0000-0000-0000-000000000001"
	id2 = "00000000-0000-0000-0000-000000000002"
	id3 = "00000000-0000-0000-0000-000000000003"
)

func newTestTable() (*Table, *memRepo, *recorder) {
	repo := newMemRepo()
	rec := &recorder{}
	tbl := NewTable(repo, rec, logger.NewNop())
	ids := []string{id1, id2, id3}
	n := 0
	tbl.newID = func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}
	return tbl, repo, rec
}

func TestOperationsRequireSession(t *testing.T) {
	tbl, _, _ := newTestTable()
	ctx := context.Background()

	_, err := tbl.SelectAll(ctx, nil)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = tbl.Insert(ctx, nil, domain.NewBookmark{Title: "t", URL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	require.ErrorIs(t, tbl.Delete(ctx, nil, id1), domain.ErrNotAuthenticated)
	_, err = tbl.Import(ctx, nil, nil)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestInsertBroadcastsAndScopesToOwner(t *testing.T) {
	tbl, _, rec := newTestTable()
	ctx := context.Background()
	alice := session("alice")

	stored, err := tbl.Insert(ctx, alice, domain.NewBookmark{Title: " Example ", URL: "https://example.com", UserID: "alice"})
	require.NoError(t, err)
	require.Equal(t, id1, stored.ID)
	require.Equal(t, "Example", stored.Title)
	require.False(t, stored.CreatedAt.IsZero())

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	require.Equal(t, domain.ChangeInsert, ev.Type)
	require.Equal(t, domain.SchemaPublic, ev.Schema)
	require.Equal(t, domain.TableBookmarks, ev.Table)
	require.Equal(t, stored, *ev.Record)

	mine, err := tbl.SelectAll(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	theirs, err := tbl.SelectAll(ctx, session("bob"))
	require.NoError(t, err)
	require.Empty(t, theirs)
	require.NotNil(t, theirs)
}

func TestInsertRejectsForeignOwner(t *testing.T) {
	tbl, _, rec := newTestTable()

	_, err := tbl.Insert(context.Background(), session("alice"), domain.NewBookmark{Title: "t", URL: "https://example.com", UserID: "bob"})
	require.Equal(t, domain.ErrPermissionDenied, err)
	require.EqualError(t, err, "permission denied")
	require.Empty(t, rec.events)
}

func TestInsertValidates(t *testing.T) {
	tbl, _, _ := newTestTable()
	alice := session("alice")

	_, err := tbl.Insert(context.Background(), alice, domain.NewBookmark{Title: "", URL: "https://example.com", UserID: "alice"})
	require.ErrorIs(t, err, domain.ErrEmptyTitle)

	_, err = tbl.Insert(context.Background(), alice, domain.NewBookmark{Title: "t", URL: "nope", UserID: "alice"})
	require.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestInsertSurvivesBroadcastFailure(t *testing.T) {
	tbl, _, rec := newTestTable()
	rec.err = errors.New("bus down")

	_, err := tbl.Insert(context.Background(), session("alice"), domain.NewBookmark{Title: "t", URL: "https://example.com", UserID: "alice"})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	tbl, _, rec := newTestTable()
	ctx := context.Background()
	alice := session("alice")

	stored, err := tbl.Insert(ctx, alice, domain.NewBookmark{Title: "t", URL: "https://example.com", UserID: "alice"})
	require.NoError(t, err)

	require.Equal(t, domain.ErrPermissionDenied, tbl.Delete(ctx, session("bob"), stored.ID))
	require.Len(t, rec.events, 1)

	require.NoError(t, tbl.Delete(ctx, alice, stored.ID))
	require.Len(t, rec.events, 2)
	require.Equal(t, domain.ChangeDelete, rec.events[1].Type)
	require.Equal(t, stored.ID, rec.events[1].OldRecord.ID)
	require.Nil(t, rec.events[1].Record)

	// Missing row: no-op, no broadcast.
	require.NoError(t, tbl.Delete(ctx, alice, stored.ID))
	require.Len(t, rec.events, 2)

	require.ErrorIs(t, tbl.Delete(ctx, alice, "abc123"), domain.ErrNotFound)
}

func TestImportSkipsDuplicatesAndInvalid(t *testing.T) {
	tbl, _, rec := newTestTable()
	ctx := context.Background()
	alice := session("alice")

	_, err := tbl.Insert(ctx, alice, domain.NewBookmark{Title: "Existing", URL: "https://existing.example.com", UserID: "alice"})
	require.NoError(t, err)

	res, err := tbl.Import(ctx, alice, []domain.Draft{
		{Title: "Existing again", URL: "https://existing.example.com"},
		{Title: "New", URL: "https://new.example.com"},
		{Title: "New dup", URL: "https://new.example.com"},
		{Title: "", URL: "https://untitled.example.com"},
		{Title: "Broken", URL: "not-a-url"},
		{Title: "Other", URL: "https://other.example.com"},
	})
	require.NoError(t, err)
	require.Len(t, res.Inserted, 2)
	require.Equal(t, 4, res.Skipped)
	require.Len(t, rec.events, 3)

	all, err := tbl.SelectAll(ctx, alice)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Other", all[0].Title)
}

func TestImportNothingToInsert(t *testing.T) {
	tbl, _, rec := newTestTable()
	res, err := tbl.Import(context.Background(), session("alice"), []domain.Draft{{Title: "x", URL: "bad"}})
	require.NoError(t, err)
	require.Empty(t, res.Inserted)
	require.Equal(t, 1, res.Skipped)
	require.Empty(t, rec.events)
}

func TestSelectAllPropagatesError(t *testing.T) {
	tbl, repo, _ := newTestTable()
	repo.err = errors.New("db down")

	_, err := tbl.SelectAll(context.Background(), session("alice"))
	require.EqualError(t, err, "db down")
}
