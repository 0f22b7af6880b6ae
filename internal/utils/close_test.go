package utils

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestClosersReverseOrder(t *testing.T) {
	var order []string
	c := NewClosers(logger.NewNop())
	for _, name := range []string{"postgres", "redis", "hub"} {
		name := name
		c.Add(name, func() error {
			order = append(order, name)
			if name == "redis" {
				return errors.New("boom")
			}
			return nil
		})
	}

	if failed := c.CloseAll(); failed != 1 {
		t.Errorf("CloseAll() failed = %d, want 1", failed)
	}
	want := []string{"hub", "redis", "postgres"}
	if len(order) != len(want) {
		t.Fatalf("closed %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	if failed := c.CloseAll(); failed != 0 || len(order) != 3 {
		t.Error("second CloseAll() should be a no-op")
	}
}

func TestCloseHelpers(t *testing.T) {
	calls := 0
	c := closerFunc(func() error { calls++; return errors.New("already closed") })

	Close(c)
	CloseLogged(c, "upload", logger.NewNop())

	if calls != 2 {
		t.Errorf("Close calls = %d, want 2", calls)
	}
}
