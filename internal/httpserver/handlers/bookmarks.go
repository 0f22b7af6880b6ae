package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

// mutation runs against either the tab's live view or a detached one.
type mutation func(ctx context.Context, v *view.BookmarkView, live bool) error

// dispatch applies m to the live view registered for the request's
// view_id and session and answers 204: the stream carries the result.
// Without a live view, script requests get 409 so the page falls back to
// a plain submit, and plain submits get the full page rendered from a
// detached view.
func dispatch(w http.ResponseWriter, r *http.Request, d deps.Deps, m mutation) {
	ctx := r.Context()
	token := accessToken(r, d)

	if v, ok := liveView(ctx, r, d, token); ok {
		_ = m(ctx, v, true)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if isFetch(r) {
		w.WriteHeader(http.StatusConflict)
		return
	}

	v := mountDetached(r, d, token)
	defer v.Close()

	err := m(ctx, v, false)
	renderPage(w, d, v, statusFor(err))
}

// AddBookmark inserts {title, url} for the session user.
func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := r.FormValue("title")
		url := r.FormValue("url")
		dispatch(w, r, d, func(ctx context.Context, v *view.BookmarkView, _ bool) error {
			return v.Add(ctx, title, url)
		})
	}
}

// DeleteBookmark removes the bookmark named in the path.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		dispatch(w, r, d, func(ctx context.Context, v *view.BookmarkView, live bool) error {
			if err := v.Delete(ctx, id); err != nil {
				return err
			}
			// detached views have no change channel to refresh them
			if !live {
				v.Refresh(ctx)
			}
			return nil
		})
	}
}
