package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Login sends the browser to the provider's consent page.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.URL.Query().Get("provider")
		if provider == "" {
			provider = auth.ProviderGoogle
		}

		target, err := d.Auth.SignInWithOAuth(r.Context(), provider, d.CallbackURL)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				d.Logger.Error("failed to start sign-in", logger.String("provider", provider), logger.Error(err))
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Callback completes the OAuth flow, stores the access token cookie and
// returns to the app.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if reason := q.Get("error"); reason != "" {
			d.Logger.Info("sign-in cancelled by provider", logger.String("reason", reason))
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		session, err := d.Auth.ExchangeCodeForSession(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			status := statusFor(err)
			d.Logger.Warn("sign-in failed", logger.Int("status", status), logger.Error(err))
			http.Error(w, "sign-in failed", status)
			return
		}

		setSessionCookie(w, d, session)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

type refreshResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Refresh extends the cookie's session and reissues the token.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r, d)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		session, err := d.Auth.RefreshSession(r.Context(), token)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusUnauthorized {
				clearSessionCookie(w, d)
			} else {
				d.Logger.Error("failed to refresh session", logger.Error(err))
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		setSessionCookie(w, d, session)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(refreshResponse{ExpiresAt: session.ExpiresAt})
	}
}

// Logout revokes the session and clears the cookie. Every open tab of
// the session falls back to the login prompt through the SIGNED_OUT event.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := accessToken(r, d); token != "" {
			if err := d.Auth.SignOut(r.Context(), token); err != nil && !errors.Is(err, domain.ErrInvalidToken) {
				d.Logger.Warn("failed to sign out", logger.Error(err))
			}
		}
		clearSessionCookie(w, d)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
