package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus over Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a bus on an existing client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish sends payload to every subscriber of channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	s := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, 64),
		done: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Message
	done chan struct{}
	once sync.Once
}

// pump forwards messages until the PubSub channel closes or Close is
// called, even when nobody reads out anymore.
func (s *redisSubscription) pump() {
	defer close(s.out)
	in := s.ps.Channel()
	for msg := range in {
		select {
		case s.out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.done:
			// let go-redis's reader finish instead of waiting on its send timeout
			for range in {
			}
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
