package view

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrViewExists = errors.New("view id already registered")

// Registry tracks live views by id so mutation requests can reach the view
// that is streaming to the same browser tab.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*BookmarkView
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*BookmarkView)}
}

// NewID returns a fresh view id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id looks like an id NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Register makes v reachable under its id. A view already registered under
// that id is replaced and closed when it is dead or belongs to the same
// session, which is what an EventSource reconnect looks like before the
// server notices the old stream is gone.
func (r *Registry) Register(v *BookmarkView) error {
	r.mu.Lock()
	old, ok := r.views[v.ID()]
	if ok && (old == v || (old.alive() && !sameSession(old, v))) {
		r.mu.Unlock()
		return ErrViewExists
	}
	r.views[v.ID()] = v
	r.mu.Unlock()

	if ok {
		old.Close()
	}
	return nil
}

func sameSession(a, b *BookmarkView) bool {
	sa, sb := a.Session(), b.Session()
	return sa != nil && sb != nil && sa.ID == sb.ID
}

// Unregister removes v if it is still the view registered under its id.
func (r *Registry) Unregister(v *BookmarkView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.views[v.ID()]; ok && cur == v {
		delete(r.views, v.ID())
	}
}

// Lookup returns the live view id when it belongs to sessionID.
func (r *Registry) Lookup(id, sessionID string) (*BookmarkView, bool) {
	if id == "" || sessionID == "" {
		return nil, false
	}
	r.mu.RLock()
	v, ok := r.views[id]
	r.mu.RUnlock()
	if !ok || !v.alive() {
		return nil, false
	}
	s := v.Session()
	if s == nil || s.ID != sessionID {
		return nil, false
	}
	return v, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// CloseAll closes and forgets every view.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := make([]*BookmarkView, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.views = make(map[string]*BookmarkView)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
