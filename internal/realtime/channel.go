package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/pubsub"
)

var (
	ErrAlreadySubscribed = errors.New("channel already subscribed")
	ErrChannelClosed     = errors.New("channel closed")
	ErrNoBindings        = errors.New("channel has no bindings")
)

type binding struct {
	filter  Filter
	handler Handler
}

// Channel groups bindings that share one bus subscription.
type Channel struct {
	name   string
	broker *Broker

	mu         sync.Mutex
	bindings   []binding
	sub        pubsub.Subscription
	subscribed bool
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

func (c *Channel) Name() string { return c.name }

// On adds a binding. Bindings must be added before Subscribe.
func (c *Channel) On(f Filter, h Handler) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.subscribed && !c.closed {
		c.bindings = append(c.bindings, binding{filter: f, handler: h})
	}
	return c
}

// Subscribe starts delivery. The subscription outlives ctx; only
// Broker.RemoveChannel ends it.
func (c *Channel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrChannelClosed
	case c.subscribed:
		return ErrAlreadySubscribed
	case len(c.bindings) == 0:
		return ErrNoBindings
	}

	topics := make([]string, 0, len(c.bindings))
	seen := make(map[string]struct{}, len(c.bindings))
	for _, b := range c.bindings {
		t := b.filter.Topic()
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}

	sub, err := c.broker.bus.Subscribe(ctx, topics...)
	if err != nil {
		return fmt.Errorf("channel %s: %w", c.name, err)
	}
	c.sub = sub
	c.subscribed = true

	bindings := append([]binding(nil), c.bindings...)
	c.wg.Add(1)
	go c.dispatch(sub, bindings)
	return nil
}

func (c *Channel) dispatch(sub pubsub.Subscription, bindings []binding) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				c.broker.log.Warn("dropping malformed change event",
					logger.String("channel", c.name),
					logger.String("topic", msg.Channel),
					logger.Error(err),
				)
				continue
			}
			for _, b := range bindings {
				if b.filter.Match(ev) {
					c.deliver(b.handler, ev)
				}
			}
		}
	}
}

func (c *Channel) deliver(h Handler, ev domain.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.broker.log.Error("realtime handler panicked",
				logger.String("channel", c.name),
				logger.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	h(ev)
}

func (c *Channel) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	sub := c.sub
	c.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Close()
	}
	c.wg.Wait()
	return err
}
