package utils

import (
	"io"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseLogged closes c and logs any error under what.
// Use for defer statements where we want to track close errors.
func CloseLogged(c io.Closer, what string, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("resource", what), logger.Error(err))
	}
}

// Closers closes resources in reverse registration order.
type Closers struct {
	log   logger.Logger
	items []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

func NewClosers(log logger.Logger) *Closers {
	return &Closers{log: log}
}

// Add registers fn to run on CloseAll.
func (c *Closers) Add(name string, fn func() error) {
	c.items = append(c.items, namedCloser{name: name, fn: fn})
}

// CloseAll runs every closer, last added first, logging failures.
// It returns how many failed.
func (c *Closers) CloseAll() int {
	failed := 0
	for i := len(c.items) - 1; i >= 0; i-- {
		item := c.items[i]
		if err := item.fn(); err != nil {
			failed++
			c.log.Warn("failed to close", logger.String("resource", item.name), logger.Error(err))
			continue
		}
		c.log.Debug("closed", logger.String("resource", item.name))
	}
	c.items = nil
	return failed
}
