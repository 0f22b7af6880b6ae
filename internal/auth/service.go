// Package auth owns sign-in, access tokens and the session lifecycle.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/identity"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	redisstore "github.com/MrSnakeDoc/smartmarks/internal/store/redis"
)

// SessionStore persists sessions and pending OAuth states.
type SessionStore interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SaveOAuthState(ctx context.Context, state string, v redisstore.OAuthState, ttl time.Duration) error
	TakeOAuthState(ctx context.Context, state string) (redisstore.OAuthState, error)
}

// UserStore creates or refreshes users from provider identities.
type UserStore interface {
	Upsert(ctx context.Context, id domain.Identity) (domain.User, error)
}

// EventHub distributes auth state changes.
type EventHub interface {
	Publish(ctx context.Context, ev domain.AuthEvent) error
	Subscribe(fn identity.Listener) (unsubscribe func())
}

// Options tunes the service.
type Options struct {
	Secret     []byte
	SessionTTL time.Duration
	StateTTL   time.Duration
}

// Service implements the auth operations the view and the HTTP layer use.
type Service struct {
	providers map[string]Provider
	sessions  SessionStore
	users     UserStore
	hub       EventHub
	opts      Options
	log       logger.Logger

	now   func() time.Time
	newID func() string
}

func NewService(sessions SessionStore, users UserStore, hub EventHub, opts Options, log logger.Logger, providers ...Provider) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &Service{
		providers: byName,
		sessions:  sessions,
		users:     users,
		hub:       hub,
		opts:      opts,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SignInWithOAuth returns the provider URL the browser is sent to.
// redirectTo is where the provider sends the browser back.
func (s *Service) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", domain.ErrUnknownProvider
	}

	state, err := randomState()
	if err != nil {
		return "", err
	}
	if err := s.sessions.SaveOAuthState(ctx, state, redisstore.OAuthState{
		Provider:   provider,
		RedirectTo: redirectTo,
	}, s.opts.StateTTL); err != nil {
		return "", err
	}

	return p.AuthCodeURL(state, redirectTo), nil
}

// ExchangeCodeForSession completes the OAuth flow and opens a session.
func (s *Service) ExchangeCodeForSession(ctx context.Context, state, code string) (*domain.Session, error) {
	if state == "" || code == "" {
		return nil, domain.ErrInvalidState
	}

	pending, err := s.sessions.TakeOAuthState(ctx, state)
	if err != nil {
		return nil, err
	}
	p, ok := s.providers[pending.Provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}

	ident, err := p.Exchange(ctx, code, pending.RedirectTo)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Upsert(ctx, ident)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        s.newID(),
		ExpiresAt: s.now().Add(s.opts.SessionTTL).UTC().Truncate(time.Second),
		User:      user,
	}
	if err := s.issue(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("🔓 Signed in",
		logger.String("session_id", session.ID),
		logger.String("user_id", user.ID),
		logger.String("provider", pending.Provider),
	)
	s.publish(ctx, domain.AuthEvent{Type: domain.AuthSignedIn, SessionID: session.ID, Session: public(session)})
	return session, nil
}

// GetSession resolves an access token to its live session.
func (s *Service) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := ParseToken(token, s.opts.Secret)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.User.ID != claims.Subject {
		return nil, domain.ErrInvalidToken
	}

	session.AccessToken = token
	return session, nil
}

// RefreshSession extends the session behind token and issues a new token.
func (s *Service) RefreshSession(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	session.ExpiresAt = s.now().Add(s.opts.SessionTTL).UTC().Truncate(time.Second)
	if err := s.issue(ctx, session); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.AuthEvent{Type: domain.AuthTokenRefreshed, SessionID: session.ID, Session: public(session)})
	return session, nil
}

// SignOut revokes the session behind token. Unknown sessions are already
// signed out and return nil.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseToken(token, s.opts.Secret)
	if err != nil {
		return err
	}
	return s.EndSession(ctx, claims.SessionID)
}

// EndSession deletes a session by id and announces the sign-out.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}

	s.log.Info("🔒 Signed out", logger.String("session_id", sessionID))
	s.publish(ctx, domain.AuthEvent{Type: domain.AuthSignedOut, SessionID: sessionID})
	return nil
}

// OnAuthStateChange registers fn for every auth event.
func (s *Service) OnAuthStateChange(fn identity.Listener) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

func (s *Service) issue(ctx context.Context, session *domain.Session) error {
	token, err := GenerateToken(session.ID, session.User.ID, s.opts.Secret, session.ExpiresAt)
	if err != nil {
		return err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return err
	}
	session.AccessToken = token
	return nil
}

// publish is best effort: the operation already succeeded.
func (s *Service) publish(ctx context.Context, ev domain.AuthEvent) {
	if err := s.hub.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish auth event",
			logger.String("type", string(ev.Type)),
			logger.String("session_id", ev.SessionID),
			logger.Error(err),
		)
	}
}

// public returns a copy safe to broadcast: tokens stay with their owner.
func public(s *domain.Session) *domain.Session {
	c := *s
	c.AccessToken = ""
	return &c
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
