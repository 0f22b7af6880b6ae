package pubsub

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus. Slow subscribers lose messages once their
// buffer is full; Publish never blocks.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: 64,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs[channel] {
		msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case s.out <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &memorySubscription{
		bus:      b,
		channels: channels,
		out:      make(chan Message, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		if b.subs[ch] == nil {
			b.subs[ch] = make(map[*memorySubscription]struct{})
		}
		b.subs[ch][s] = struct{}{}
	}
	return s, nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *MemoryBus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

type memorySubscription struct {
	bus      *MemoryBus
	channels []string
	out      chan Message
	once     sync.Once
}

func (s *memorySubscription) Messages() <-chan Message { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for _, ch := range s.channels {
			delete(s.bus.subs[ch], s)
			if len(s.bus.subs[ch]) == 0 {
				delete(s.bus.subs, ch)
			}
		}
		close(s.out)
	})
	return nil
}
