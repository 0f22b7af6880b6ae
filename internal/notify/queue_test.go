package notify

import (
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	q.Push(LevelInfo, "first")
	q.Push(LevelError, "second")

	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() returned %d notices, want 2", len(got))
	}
	if got[0].Message != "first" || got[0].Level != LevelInfo {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Message != "second" || got[1].Level != LevelError {
		t.Errorf("got[1] = %+v", got[1])
	}
	if len(q.Pending()) != 0 {
		t.Errorf("Pending() after Drain = %v, want empty", q.Pending())
	}
	if q.Drain() != nil {
		t.Error("second Drain() should return nil")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	tests := []struct {
		msg         string
		wantDropped bool
	}{
		{msg: "a", wantDropped: false},
		{msg: "b", wantDropped: false},
		{msg: "c", wantDropped: true},
	}
	for _, tt := range tests {
		if got := q.Push(LevelInfo, tt.msg); got != tt.wantDropped {
			t.Errorf("Push(%q) dropped = %v, want %v", tt.msg, got, tt.wantDropped)
		}
	}

	got := q.Pending()
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Fatalf("Pending() = %+v, want [b c]", got)
	}
	if len(q.Pending()) != 2 {
		t.Errorf("Pending() must not clear the queue")
	}
}

func TestQueueDefaultSizeAndTimestamps(t *testing.T) {
	q := NewQueue(0)
	if q.size != DefaultSize {
		t.Fatalf("size = %d, want default %d", q.size, DefaultSize)
	}

	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return at }

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Push(LevelInfo, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked")
	}

	got := q.Drain()
	if len(got) != DefaultSize {
		t.Fatalf("Drain() returned %d notices, want %d", len(got), DefaultSize)
	}
	if !got[0].At.Equal(at) {
		t.Errorf("At = %v, want %v", got[0].At, at)
	}
}
