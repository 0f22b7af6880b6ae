package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

// fetchHeader marks requests sent by the page script instead of a plain
// form submit.
const fetchHeader = "X-Requested-With"

func isFetch(r *http.Request) bool {
	return r.Header.Get(fetchHeader) == "fetch"
}

func accessToken(r *http.Request, d deps.Deps) string {
	c, err := r.Cookie(d.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func setSessionCookie(w http.ResponseWriter, d deps.Deps, s *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     d.CookieName,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, d deps.Deps) {
	http.SetCookie(w, &http.Cookie{
		Name:     d.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// statusFor maps collaborator errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, homepage.ErrTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, homepage.ErrNoBookmarks),
		errors.Is(err, errBadUpload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// mountDetached builds a view that lives for the current request only.
func mountDetached(r *http.Request, d deps.Deps, token string) *view.BookmarkView {
	opts := d.ViewOptions
	opts.Detached = true
	v := view.New(view.NewID(), d.ViewDeps, opts)
	v.Mount(r.Context(), token)
	return v
}

// liveView returns the view streaming to the tab that sent r, if any.
func liveView(ctx context.Context, r *http.Request, d deps.Deps, token string) (*view.BookmarkView, bool) {
	id := r.FormValue("view_id")
	if id == "" {
		id = r.URL.Query().Get("view_id")
	}
	if token == "" || !view.ValidID(id) {
		return nil, false
	}
	s, err := d.Auth.GetSession(ctx, token)
	if err != nil {
		return nil, false
	}
	return d.Views.Lookup(id, s.ID)
}

// renderPage writes the full document for v with status.
func renderPage(w http.ResponseWriter, d deps.Deps, v *view.BookmarkView, status int) {
	state := v.State()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := d.Renderer.Page(w, state); err != nil {
		d.Logger.Error("failed to render page", logger.Error(err))
	}
}
