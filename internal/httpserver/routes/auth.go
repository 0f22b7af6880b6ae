package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/mw"
)

func init() { Register(registerAuth, middleware.Timeout(requestTimeout)) }

func registerAuth(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.With(limit).Get("/login", handlers.Login(d))
		r.With(limit).Get("/callback", handlers.Callback(d))
		r.Post("/refresh", handlers.Refresh(d))
		r.Post("/logout", handlers.Logout(d))
	})
}
