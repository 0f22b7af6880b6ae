// Package pubsub carries opaque messages between processes. The Redis bus is
// used in production; the memory bus serves tests and single-process setups.
package pubsub

import "context"

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription delivers messages until closed.
type Subscription interface {
	// Messages is closed once the subscription ends.
	Messages() <-chan Message
	Close() error
}

// Bus publishes and subscribes to named channels.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}
