// Package connect waits for a backing service to answer a ping, retrying
// with capped exponential backoff until a total deadline.
package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// PingFunc checks the backing service once.
type PingFunc func(ctx context.Context) error

// Policy defines the retry behaviour.
type Policy struct {
	Timeout       time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	MaxWait       time.Duration // max wait between retries (ex: 10s)
	PingTimeout   time.Duration // timeout for each ping attempt (ex: 2s)
	WarnThreshold int           // warn after this many attempts, error afterwards
}

// Validate ensures all policy values are usable.
func (p Policy) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("Timeout must be > 0, got %v", p.Timeout)
	}
	if p.RetryInterval <= 0 {
		return fmt.Errorf("RetryInterval must be > 0, got %v", p.RetryInterval)
	}
	if p.MaxWait <= 0 {
		return fmt.Errorf("MaxWait must be > 0, got %v", p.MaxWait)
	}
	if p.PingTimeout <= 0 {
		return fmt.Errorf("PingTimeout must be > 0, got %v", p.PingTimeout)
	}
	if p.WarnThreshold < 0 {
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", p.WarnThreshold)
	}
	return nil
}

// attemptLogger handles all connection logging for one target.
type attemptLogger struct {
	logger logger.Logger
	target string
	addr   string
}

func (al *attemptLogger) logStart(timeout time.Duration) {
	al.logger.Info("connecting to "+al.target,
		logger.String("addr", al.addr),
		logger.Duration("timeout", timeout))
}

func (al *attemptLogger) logSuccess(attempts int, elapsed time.Duration) {
	if attempts > 1 {
		al.logger.Warn("connected to "+al.target+" after retry",
			logger.String("addr", al.addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
		return
	}
	al.logger.Info("connected to "+al.target, logger.String("addr", al.addr))
}

func (al *attemptLogger) logTimeout(attempts int, timeout time.Duration, err error) {
	al.logger.Error(al.target+" unavailable - failed to connect after timeout",
		logger.String("addr", al.addr),
		logger.Int("attempts", attempts),
		logger.Duration("timeout", timeout),
		logger.Error(err))
}

func (al *attemptLogger) logRetry(attempt int, remaining, nextRetry time.Duration, warnThreshold int, err error) {
	switch {
	case remaining < 10*time.Second:
		al.logger.Error(al.target+" still down - retrying but timeout approaching",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("remaining", remaining),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	case attempt <= warnThreshold:
		al.logger.Warn(al.target+" connection failed, retrying",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	default:
		al.logger.Error(al.target+" still unavailable - connection attempts failing",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	}
}

// WithRetry pings until success or until the policy timeout elapses.
// target names the service in logs ("redis", "postgres"), addr is log-safe.
func WithRetry(ctx context.Context, target, addr string, p Policy, ping PingFunc, log logger.Logger) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid %s connect policy: %w", target, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	al := &attemptLogger{logger: log, target: target, addr: addr}
	al.logStart(p.Timeout)

	attempt := 0
	wait := p.RetryInterval

	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, p.PingTimeout)
		err := ping(pingCtx)
		pingCancel()

		if err == nil {
			al.logSuccess(attempt, p.Timeout-timeLeft(ctx))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			al.logTimeout(attempt, p.Timeout, err)
			return fmt.Errorf("%s unavailable at %s after %d attempts (timeout: %v): %w",
				target, addr, attempt, p.Timeout, err)

		case <-timer.C:
			al.logRetry(attempt, timeLeft(ctx), wait, p.WarnThreshold, err)
			// Exponential backoff with cap
			wait *= 2
			if wait > p.MaxWait {
				wait = p.MaxWait
			}
		}
	}
}

// timeLeft returns the remaining time before context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
