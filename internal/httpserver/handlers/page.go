package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
)

// Page renders the app for the cookie's session with a fresh view id.
// The page script then opens /events with that id to go live.
func Page(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r, d)
		v := mountDetached(r, d, token)
		defer v.Close()

		// stale or revoked token
		if token != "" && v.Session() == nil {
			clearSessionCookie(w, d)
		}
		renderPage(w, d, v, http.StatusOK)
	}
}
