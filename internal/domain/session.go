package domain

import "time"

// User is an authenticated account, created on first OAuth sign-in.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Identity is the profile an OAuth provider returns after a code exchange.
type Identity struct {
	Provider  string
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// Session is the authenticated identity bundle. A nil *Session means
// unauthenticated.
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// UserID returns the owner id, or "" for a nil session.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

// AuthEventType names an auth state transition.
type AuthEventType string

const (
	AuthInitialSession AuthEventType = "INITIAL_SESSION"
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to every auth-state-change listener.
// Session is nil for AuthSignedOut.
type AuthEvent struct {
	Type      AuthEventType `json:"type"`
	SessionID string        `json:"session_id"`
	Session   *Session      `json:"session,omitempty"`
}
