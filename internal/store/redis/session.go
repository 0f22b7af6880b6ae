package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// SaveSession stores a session and indexes its expiry.
// The access token is never persisted.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	stored := *session
	stored.AccessToken = ""

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + s.grace
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SessionKey(session.ID), data, ttl)
	pipe.ZAdd(ctx, SessionExpiryKey(), redis.Z{
		Score:  float64(session.ExpiresAt.Unix()),
		Member: session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Expired sessions are reported as
// domain.ErrSessionNotFound even while still inside the grace window.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// DeleteSession removes a session and its expiry entry.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, SessionKey(id))
	pipe.ZRem(ctx, SessionExpiryKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ExpiredSessions returns up to limit session IDs whose expiry is at or
// before now.
func (s *Store) ExpiredSessions(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, SessionExpiryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return ids, nil
}

// CountSessions returns the number of indexed sessions.
func (s *Store) CountSessions(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, SessionExpiryKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
