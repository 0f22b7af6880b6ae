package view

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/identity"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/pubsub"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

type fakeAuth struct {
	*identity.Hub
	sessions map[string]*domain.Session
}

func (a *fakeAuth) GetSession(_ context.Context, token string) (*domain.Session, error) {
	s, ok := a.sessions[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	c := *s
	c.AccessToken = token
	return &c, nil
}

func (a *fakeAuth) OnAuthStateChange(fn identity.Listener) func() {
	return a.Subscribe(fn)
}

// fakeData is an owner-scoped table that broadcasts its changes.
type fakeData struct {
	broker *realtime.Broker

	mu          sync.Mutex
	rows        map[string]domain.Bookmark
	seq         int
	inserts     []domain.NewBookmark
	selectCalls int

	selectErr error
	insertErr error
	deleteErr error
	// selectGate, when set, runs before each SelectAll without the lock held.
	selectGate func(s *domain.Session)
}

var epoch = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func (d *fakeData) seed(userID, title string) domain.Bookmark {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	b := domain.Bookmark{
		ID:        fmt.Sprintf("bm-%03d", d.seq),
		Title:     title,
		URL:       "https://" + title + ".example.com",
		UserID:    userID,
		CreatedAt: epoch.Add(time.Duration(d.seq) * time.Minute),
	}
	d.rows[b.ID] = b
	return b
}

func (d *fakeData) selects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectCalls
}

func (d *fakeData) SelectAll(_ context.Context, s *domain.Session) ([]domain.Bookmark, error) {
	d.mu.Lock()
	gate := d.selectGate
	d.mu.Unlock()
	if gate != nil {
		gate(s)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectCalls++
	if s == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if d.selectErr != nil {
		return nil, d.selectErr
	}
	out := []domain.Bookmark{}
	for _, b := range d.rows {
		if b.UserID == s.User.ID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.NewerFirst(out[i], out[j]) })
	return out, nil
}

func (d *fakeData) Insert(ctx context.Context, s *domain.Session, nb domain.NewBookmark) (domain.Bookmark, error) {
	d.mu.Lock()
	d.inserts = append(d.inserts, nb)
	if s == nil {
		d.mu.Unlock()
		return domain.Bookmark{}, domain.ErrNotAuthenticated
	}
	if d.insertErr != nil {
		d.mu.Unlock()
		return domain.Bookmark{}, d.insertErr
	}
	d.seq++
	b := domain.Bookmark{
		ID:        fmt.Sprintf("bm-%03d", d.seq),
		Title:     nb.Title,
		URL:       nb.URL,
		UserID:    nb.UserID,
		CreatedAt: epoch.Add(time.Duration(d.seq) * time.Minute),
	}
	d.rows[b.ID] = b
	d.mu.Unlock()

	_ = d.broker.Broadcast(ctx, domain.ChangeEvent{
		Type: domain.ChangeInsert, Schema: domain.SchemaPublic, Table: domain.TableBookmarks, Record: &b,
	})
	return b, nil
}

func (d *fakeData) Delete(ctx context.Context, s *domain.Session, id string) error {
	d.mu.Lock()
	if s == nil {
		d.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	if d.deleteErr != nil {
		d.mu.Unlock()
		return d.deleteErr
	}
	old, ok := d.rows[id]
	delete(d.rows, id)
	d.mu.Unlock()

	if ok {
		_ = d.broker.Broadcast(ctx, domain.ChangeEvent{
			Type: domain.ChangeDelete, Schema: domain.SchemaPublic, Table: domain.TableBookmarks, OldRecord: &old,
		})
	}
	return nil
}

func (d *fakeData) Import(ctx context.Context, s *domain.Session, drafts []domain.Draft) (bookmarks.ImportResult, error) {
	var res bookmarks.ImportResult
	for _, dr := range drafts {
		b, err := d.Insert(ctx, s, domain.NewBookmark{Title: dr.Title, URL: dr.URL, UserID: s.UserID()})
		if err != nil {
			return bookmarks.ImportResult{}, err
		}
		res.Inserted = append(res.Inserted, b)
	}
	return res, nil
}

type harness struct {
	auth   *fakeAuth
	hub    *identity.Hub
	data   *fakeData
	broker *realtime.Broker
	deps   Deps
}

const (
	aliceToken = "token-alice"
	bobToken   = "token-bob"
)

func newHarness(t *testing.T) *harness {
	t.Helper()

	bus := pubsub.NewMemoryBus()
	hub := identity.NewHub(bus, logger.NewNop())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Stop)

	broker := realtime.NewBroker(bus, logger.NewNop())
	auth := &fakeAuth{
		Hub: hub,
		sessions: map[string]*domain.Session{
			aliceToken: {ID: "sess-alice", ExpiresAt: time.Now().Add(time.Hour), User: domain.User{ID: "alice"}},
			bobToken:   {ID: "sess-bob", ExpiresAt: time.Now().Add(time.Hour), User: domain.User{ID: "bob"}},
		},
	}
	data := &fakeData{broker: broker, rows: make(map[string]domain.Bookmark)}

	return &harness{
		auth:   auth,
		hub:    hub,
		data:   data,
		broker: broker,
		deps:   Deps{Auth: auth, Data: data, Realtime: broker, Log: logger.NewNop()},
	}
}

func (h *harness) mount(t *testing.T, token string, opts Options) *BookmarkView {
	t.Helper()
	return h.mountAs(t, NewID(), token, opts)
}

func (h *harness) mountAs(t *testing.T, id, token string, opts Options) *BookmarkView {
	t.Helper()
	v := New(id, h.deps, opts)
	v.Mount(context.Background(), token)
	t.Cleanup(v.Close)
	return v
}

func listIDs(bs []domain.Bookmark) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}
