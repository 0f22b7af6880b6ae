package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/mw"
)

func init() {
	Register(registerPage, middleware.Timeout(requestTimeout))
	Register(registerEvents)
	Register(registerBookmarks, middleware.Timeout(requestTimeout))
}

func registerPage(r chi.Router, d deps.Deps) {
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/", handlers.Page(d))
}

// The stream is long-lived: no request timeout.
func registerEvents(r chi.Router, d deps.Deps) {
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/events", handlers.Events(d))
}

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Post("/bookmarks", handlers.AddBookmark(d))
		r.Post("/bookmarks/import", handlers.ImportBookmarks(d))
		r.Post("/bookmarks/{id}/delete", handlers.DeleteBookmark(d))
	})
}
