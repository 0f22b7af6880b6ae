// Package view implements BookmarkView: the per-visitor presentation state
// (session, bookmark list, add form, notices) and the wiring that keeps it
// in sync with the auth, data and realtime collaborators.
package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/identity"
	"github.com/MrSnakeDoc/smartmarks/internal/index"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/notify"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

// Auth is the part of the auth collaborator a view needs.
type Auth interface {
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	OnAuthStateChange(fn identity.Listener) (unsubscribe func())
}

// Data is the owner-scoped bookmarks table.
type Data interface {
	SelectAll(ctx context.Context, s *domain.Session) ([]domain.Bookmark, error)
	Insert(ctx context.Context, s *domain.Session, nb domain.NewBookmark) (domain.Bookmark, error)
	Delete(ctx context.Context, s *domain.Session, id string) error
	Import(ctx context.Context, s *domain.Session, drafts []domain.Draft) (bookmarks.ImportResult, error)
}

// Realtime opens and releases change channels.
type Realtime interface {
	Channel(name string) *realtime.Channel
	RemoveChannel(ch *realtime.Channel) error
}

// Deps are the collaborators shared by every view.
type Deps struct {
	Auth     Auth
	Data     Data
	Realtime Realtime
	Log      logger.Logger
}

// RefreshMode selects how change events update the list.
type RefreshMode string

const (
	// ModeIncremental applies complete records from events and re-fetches
	// only when an event cannot be applied.
	ModeIncremental RefreshMode = "incremental"
	// ModeRefetch re-fetches the whole list on every event.
	ModeRefetch RefreshMode = "refetch"
)

// ParseRefreshMode accepts "incremental" and "refetch".
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch m := RefreshMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIncremental, ModeRefetch:
		return m, nil
	default:
		return "", fmt.Errorf("unknown refresh mode %q (want incremental or refetch)", s)
	}
}

// Options configures a view.
type Options struct {
	Mode       RefreshMode
	NoticeSize int
	// Detached views serve a single request: they neither open a change
	// channel nor listen for auth events.
	Detached bool
}

// Notices shown after mutations.
const (
	NoticeDeleted     = "Bookmark deleted!"
	deleteErrorPrefix = "Error deleting: "
	importErrorPrefix = "Error importing: "
)

// State is everything the renderer needs.
type State struct {
	ViewID    string
	Session   *domain.Session
	Bookmarks []domain.Bookmark
	Draft     domain.Draft
	Notices   []notify.Notice
}

// BookmarkView is one visitor's live view. Every asynchronous result is
// applied only while the view is alive (mounted and not closed).
type BookmarkView struct {
	id   string
	deps Deps
	opts Options
	log  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	session     *domain.Session
	draft       domain.Draft
	closed      bool
	unsubscribe func()

	list    *index.BookmarkList
	notices *notify.Queue
	changed chan struct{}

	// chMu serializes channel (re)opening. It is never held together with mu.
	chMu        sync.Mutex
	channel     *realtime.Channel
	channelUser string

	authEvents chan domain.AuthEvent
	wg         sync.WaitGroup
}

func New(id string, deps Deps, opts Options) *BookmarkView {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &BookmarkView{
		id:         id,
		deps:       deps,
		opts:       opts,
		log:        log.With(logger.String("view_id", id)),
		list:       index.NewBookmarkList(),
		notices:    notify.NewQueue(opts.NoticeSize),
		changed:    make(chan struct{}, 1),
		authEvents: make(chan domain.AuthEvent, 1),
	}
}

func (v *BookmarkView) ID() string { return v.id }

// Mount resolves the session behind accessToken and, when there is one,
// loads the list and opens the change channel. The view lives until
// parent is done or Close is called. A failed session lookup leaves the
// view signed out.
func (v *BookmarkView) Mount(parent context.Context, accessToken string) {
	v.ctx, v.cancel = context.WithCancel(parent)

	if !v.opts.Detached {
		unsubscribe := v.deps.Auth.OnAuthStateChange(v.onAuthEvent)
		v.mu.Lock()
		v.unsubscribe = unsubscribe
		v.wg.Add(1)
		v.mu.Unlock()
		go v.authLoop()
	}

	if accessToken == "" {
		return
	}
	session, err := v.deps.Auth.GetSession(v.ctx, accessToken)
	if err != nil {
		v.log.Debug("no session on mount", logger.Error(err))
		return
	}
	// only this view hears its initial session; the hub carries transitions
	v.handleAuthEvent(domain.AuthEvent{
		Type:      domain.AuthInitialSession,
		SessionID: session.ID,
		Session:   session,
	})
}

// Close releases the auth registration and the change channel and waits
// for in-flight work. Safe to call more than once.
func (v *BookmarkView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	unsubscribe := v.unsubscribe
	v.unsubscribe = nil
	v.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if v.cancel != nil {
		v.cancel()
	}
	v.closeChannel()
	v.wg.Wait()
}

// Done is closed when the view stops being alive.
func (v *BookmarkView) Done() <-chan struct{} {
	if v.ctx == nil {
		return nil
	}
	return v.ctx.Done()
}

// Changed fires after any state change. Signals coalesce.
func (v *BookmarkView) Changed() <-chan struct{} { return v.changed }

// Session returns the current session, nil when signed out.
func (v *BookmarkView) Session() *domain.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// State returns a snapshot for rendering. Pending notices stay queued.
func (v *BookmarkView) State() State {
	v.mu.Lock()
	s := State{
		ViewID:  v.id,
		Session: v.session,
		Draft:   v.draft,
	}
	v.mu.Unlock()

	s.Bookmarks = v.list.Snapshot()
	s.Notices = v.notices.Pending()
	return s
}

// DrainNotices returns and clears pending notices.
func (v *BookmarkView) DrainNotices() []notify.Notice {
	return v.notices.Drain()
}

// SetDraft records the add form's current values.
func (v *BookmarkView) SetDraft(title, url string) {
	v.mu.Lock()
	v.draft = domain.Draft{Title: title, URL: url}
	v.mu.Unlock()
}

// Refresh replaces the list with a full fetch. Failures are logged and
// keep the previous list. Results for a session that is no longer current
// are discarded.
func (v *BookmarkView) Refresh(ctx context.Context) {
	session := v.Session()
	if session == nil {
		return
	}

	list, err := v.deps.Data.SelectAll(ctx, session)
	if err != nil {
		v.log.Error("Error fetching bookmarks", logger.Error(err))
		return
	}

	if !v.alive() || v.Session().UserID() != session.UserID() {
		v.log.Debug("discarding stale fetch result")
		return
	}
	v.list.Replace(list)
	v.signal()
}

// Add inserts a bookmark owned by the session user. On success the draft
// is cleared and the list re-fetched; on failure the error message is
// queued as a notice and the draft keeps the submitted values.
func (v *BookmarkView) Add(ctx context.Context, title, url string) error {
	v.SetDraft(title, url)
	session := v.Session()

	_, err := v.deps.Data.Insert(ctx, session, domain.NewBookmark{
		Title:  title,
		URL:    url,
		UserID: session.UserID(),
	})
	if err != nil {
		v.log.Info("insert failed", logger.Error(err))
		v.notify(notify.LevelError, err.Error())
		return err
	}

	v.mu.Lock()
	v.draft = domain.Draft{}
	v.mu.Unlock()
	v.signal()

	v.Refresh(ctx)
	return nil
}

// Delete removes bookmark id. The list is left to the change channel.
func (v *BookmarkView) Delete(ctx context.Context, id string) error {
	if err := v.deps.Data.Delete(ctx, v.Session(), id); err != nil {
		v.log.Info("delete failed", logger.String("bookmark_id", id), logger.Error(err))
		v.notify(notify.LevelError, deleteErrorPrefix+err.Error())
		return err
	}
	v.notify(notify.LevelInfo, NoticeDeleted)
	return nil
}

// Import stores drafts and re-fetches the list.
func (v *BookmarkView) Import(ctx context.Context, drafts []domain.Draft) (bookmarks.ImportResult, error) {
	res, err := v.deps.Data.Import(ctx, v.Session(), drafts)
	if err != nil {
		v.notify(notify.LevelError, importErrorPrefix+err.Error())
		return res, err
	}
	v.notify(notify.LevelInfo, fmt.Sprintf("Imported %d bookmarks (%d skipped)", len(res.Inserted), res.Skipped))
	v.Refresh(ctx)
	return res, nil
}

// RejectImport queues the notice for an upload that could not be parsed.
func (v *BookmarkView) RejectImport(err error) {
	v.notify(notify.LevelError, importErrorPrefix+err.Error())
}

// ─────────────────────────────────────────────────────────────────
// Session and channel lifecycle
// ─────────────────────────────────────────────────────────────────

func (v *BookmarkView) alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && v.ctx != nil && v.ctx.Err() == nil
}

// applySession stores s, re-scopes the change channel and, for a non-nil
// session, triggers a full refresh.
func (v *BookmarkView) applySession(s *domain.Session) {
	if !v.alive() {
		return
	}

	v.mu.Lock()
	prev := v.session
	v.session = s
	if s == nil || prev.UserID() != s.UserID() {
		v.draft = domain.Draft{}
	}
	v.mu.Unlock()

	if s == nil {
		v.list.Replace(nil)
	}

	v.syncChannel(s.UserID())
	v.signal()

	if s != nil {
		v.Refresh(v.ctx)
	}
}

// onAuthEvent runs on the hub's dispatch goroutine, shared by every view,
// so it never blocks. Events about other sessions are dropped here and a
// pending event is superseded by a newer one.
func (v *BookmarkView) onAuthEvent(ev domain.AuthEvent) {
	current := v.Session()
	if current == nil || ev.SessionID != current.ID {
		return
	}
	for {
		select {
		case v.authEvents <- ev:
			return
		default:
		}
		select {
		case <-v.authEvents:
		default:
		}
	}
}

func (v *BookmarkView) authLoop() {
	defer v.wg.Done()
	for {
		select {
		case <-v.ctx.Done():
			return
		case ev := <-v.authEvents:
			v.handleAuthEvent(ev)
		}
	}
}

// handleAuthEvent applies events about this view's own session.
// INITIAL_SESSION comes from Mount and is the only event that can sign a
// view in.
func (v *BookmarkView) handleAuthEvent(ev domain.AuthEvent) {
	current := v.Session()
	if ev.Type != domain.AuthInitialSession && (current == nil || ev.SessionID != current.ID) {
		return
	}

	v.log.Debug("auth state changed", logger.String("event", string(ev.Type)))

	switch ev.Type {
	case domain.AuthSignedOut:
		v.applySession(nil)
	case domain.AuthInitialSession:
		v.applySession(ev.Session)
	default:
		next := ev.Session
		if next != nil {
			c := *next
			if c.AccessToken == "" {
				c.AccessToken = current.AccessToken
			}
			next = &c
		}
		v.applySession(next)
	}
}

// syncChannel keeps exactly one change channel open while a user is
// signed in, scoped to that user in incremental mode.
func (v *BookmarkView) syncChannel(userID string) {
	if v.opts.Detached {
		return
	}

	v.chMu.Lock()
	defer v.chMu.Unlock()

	if v.channel != nil && v.channelUser == userID {
		return
	}
	v.removeChannelLocked()
	if userID == "" || !v.alive() {
		return
	}

	scope := userID
	if v.opts.Mode == ModeRefetch {
		scope = ""
	}

	ch := v.deps.Realtime.Channel("bookmarks:" + v.id).On(realtime.Filter{
		Event:  domain.ChangeAll,
		Schema: domain.SchemaPublic,
		Table:  domain.TableBookmarks,
		UserID: scope,
	}, v.onChange)

	if err := ch.Subscribe(v.ctx); err != nil {
		v.log.Warn("failed to subscribe to bookmark changes", logger.Error(err))
		_ = v.deps.Realtime.RemoveChannel(ch)
		return
	}
	v.channel = ch
	v.channelUser = userID
}

func (v *BookmarkView) closeChannel() {
	v.chMu.Lock()
	defer v.chMu.Unlock()
	v.removeChannelLocked()
}

func (v *BookmarkView) removeChannelLocked() {
	if v.channel == nil {
		return
	}
	if err := v.deps.Realtime.RemoveChannel(v.channel); err != nil {
		v.log.Warn("failed to remove change channel", logger.Error(err))
	}
	v.channel = nil
	v.channelUser = ""
}

// ChannelOpen reports whether a change channel is currently subscribed.
func (v *BookmarkView) ChannelOpen() bool {
	v.chMu.Lock()
	defer v.chMu.Unlock()
	return v.channel != nil
}

// onChange runs on the channel's dispatch goroutine.
func (v *BookmarkView) onChange(ev domain.ChangeEvent) {
	if !v.alive() {
		return
	}
	if v.opts.Mode == ModeRefetch {
		v.Refresh(v.ctx)
		return
	}

	owner := v.Session().UserID()
	if owner == "" {
		return
	}

	switch ev.Type {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if ev.Record != nil && ev.Record.ID != "" {
			if ev.Record.UserID == owner {
				v.list.Upsert(*ev.Record)
				v.signal()
			}
			return
		}
	case domain.ChangeDelete:
		if ev.OldRecord != nil && ev.OldRecord.ID != "" {
			if v.list.Delete(ev.OldRecord.ID) {
				v.signal()
			}
			return
		}
	}

	v.Refresh(v.ctx)
}

func (v *BookmarkView) notify(level notify.Level, msg string) {
	if v.notices.Push(level, msg) {
		v.log.Debug("notice queue full, oldest notice dropped")
	}
	v.signal()
}

func (v *BookmarkView) signal() {
	select {
	case v.changed <- struct{}{}:
	default:
	}
}
