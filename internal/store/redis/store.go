package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSessionGrace keeps a session readable a little past its expiry
	// so the sweeper can still announce the sign-out.
	DefaultSessionGrace = 5 * time.Minute
)

// Store handles Redis operations for sessions and OAuth state
type Store struct {
	client *redis.Client
	grace  time.Duration
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		grace:  DefaultSessionGrace,
		now:    time.Now,
	}
}
