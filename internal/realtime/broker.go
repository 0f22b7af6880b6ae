// Package realtime fans out row change events to named channels with
// filtered bindings.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/pubsub"
)

// Handler receives matching change events on the channel's dispatch goroutine.
type Handler func(domain.ChangeEvent)

// Broker creates channels and broadcasts change events over the bus.
type Broker struct {
	bus pubsub.Bus
	log logger.Logger
	now func() time.Time

	mu       sync.Mutex
	channels map[*Channel]struct{}
}

func NewBroker(bus pubsub.Bus, log logger.Logger) *Broker {
	return &Broker{
		bus:      bus,
		log:      log,
		now:      time.Now,
		channels: make(map[*Channel]struct{}),
	}
}

// Channel returns a new, unsubscribed channel.
func (b *Broker) Channel(name string) *Channel {
	ch := &Channel{
		name:   name,
		broker: b,
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.channels[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// RemoveChannel stops delivery and releases the channel's subscription.
// It waits for an in-flight handler to return, so it must not be called
// from a Handler. Safe to call twice.
func (b *Broker) RemoveChannel(ch *Channel) error {
	if ch == nil {
		return nil
	}
	b.mu.Lock()
	delete(b.channels, ch)
	b.mu.Unlock()
	return ch.close()
}

// ActiveChannels returns the number of channels not yet removed.
func (b *Broker) ActiveChannels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

// Broadcast publishes ev to every subscriber of its table.
func (b *Broker) Broadcast(ctx context.Context, ev domain.ChangeEvent) error {
	if ev.CommitTimestamp.IsZero() {
		ev.CommitTimestamp = b.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := b.bus.Publish(ctx, Topic(ev.Schema, ev.Table), payload); err != nil {
		return fmt.Errorf("failed to broadcast %s on %s.%s: %w", ev.Type, ev.Schema, ev.Table, err)
	}
	return nil
}
