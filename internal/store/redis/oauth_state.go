package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// OAuthState is what we remember between the redirect to the provider and
// the callback.
type OAuthState struct {
	Provider   string `json:"provider"`
	RedirectTo string `json:"redirect_to"`
}

// SaveOAuthState stores a pending OAuth state for ttl.
func (s *Store) SaveOAuthState(ctx context.Context, state string, v OAuthState, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, OAuthStateKey(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// TakeOAuthState returns and deletes a pending state. Unknown or already
// used states return domain.ErrInvalidState.
func (s *Store) TakeOAuthState(ctx context.Context, state string) (OAuthState, error) {
	data, err := s.client.GetDel(ctx, OAuthStateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OAuthState{}, domain.ErrInvalidState
		}
		return OAuthState{}, fmt.Errorf("failed to take oauth state: %w", err)
	}

	var v OAuthState
	if err := json.Unmarshal(data, &v); err != nil {
		return OAuthState{}, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return v, nil
}
