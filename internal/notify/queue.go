// Package notify queues user-facing notices without ever blocking the
// producer.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// DefaultSize is used when a non-positive size is given.
const DefaultSize = 16

// Notice is one message shown to the user.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Queue is a bounded FIFO of notices. When full, the oldest notice is
// dropped to make room.
type Queue struct {
	mu    sync.Mutex
	items []Notice
	size  int
	now   func() time.Time
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{
		items: make([]Notice, 0, size),
		size:  size,
		now:   time.Now,
	}
}

// Push appends a notice. It reports whether the oldest notice was dropped
// to make room.
func (q *Queue) Push(level Level, message string) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.size {
		q.items = append(q.items[:0], q.items[1:]...)
		dropped = true
	}
	q.items = append(q.items, Notice{Level: level, Message: message, At: q.now()})
	return dropped
}

// Drain returns pending notices in arrival order and clears the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := make([]Notice, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// Pending returns a copy of queued notices without clearing them.
func (q *Queue) Pending() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notice, len(q.items))
	copy(out, q.items)
	return out
}
