// Package identity distributes auth state changes to every listener in
// every process instance.
package identity

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

// Channel is the bus channel auth events travel on.
const Channel = "smartmarks:identity"

var ErrNotStarted = errors.New("identity hub not started")

// Listener is invoked on the hub's dispatch goroutine. It must not block.
type Listener func(domain.AuthEvent)

// Hub is the process-wide holder of auth-state listeners.
type Hub struct {
	bus pubsub.Bus
	log logger.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	sub     pubsub.Subscription
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewHub(bus pubsub.Bus, log logger.Logger) *Hub {
	return &Hub{
		bus:       bus,
		log:       log,
		listeners: make(map[uint64]Listener),
	}
}

// Start subscribes to the bus. Calling it on a running hub is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	sub, err := h.bus.Subscribe(ctx, Channel)
	if err != nil {
		return fmt.Errorf("identity hub: %w", err)
	}
	h.sub = sub
	h.stopCh = make(chan struct{})
	h.running = true

	h.wg.Add(1)
	go h.loop(sub, h.stopCh)

	h.log.Info("🔑 Identity hub started", logger.String("channel", Channel))
	return nil
}

// Stop ends delivery and waits for the dispatch goroutine.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()

	if err := sub.Close(); err != nil {
		h.log.Warn("identity hub: closing subscription", logger.Error(err))
	}
	h.wg.Wait()
	h.log.Info("🛑 Identity hub stopped")
}

// Publish sends ev to every listener of every instance, this one included.
func (h *Hub) Publish(ctx context.Context, ev domain.AuthEvent) error {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return ErrNotStarted
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode auth event: %w", err)
	}
	if err := h.bus.Publish(ctx, Channel, payload); err != nil {
		return fmt.Errorf("failed to publish auth event %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe registers fn and returns its unsubscribe func.
func (h *Hub) Subscribe(fn Listener) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) loop(sub pubsub.Subscription, stopCh <-chan struct{}) {
	defer h.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			var ev domain.AuthEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				h.log.Warn("identity hub: dropping malformed event", logger.Error(err))
				continue
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev domain.AuthEvent) {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.RUnlock()

	h.log.Debug("auth event",
		logger.String("type", string(ev.Type)),
		logger.String("session_id", ev.SessionID),
		logger.Int("listeners", len(listeners)),
	)

	for _, l := range listeners {
		h.call(l, ev)
	}
}

func (h *Hub) call(l Listener, ev domain.AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("auth listener panicked",
				logger.String("type", string(ev.Type)),
				logger.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	l(ev)
}
