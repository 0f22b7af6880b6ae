package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

const (
	// DefaultSweepInterval is how often expired sessions are looked for
	DefaultSweepInterval = time.Minute
	// DefaultSweepBatch bounds one ExpiredSessions call
	DefaultSweepBatch = 100
)

// ExpiredSessionLister lists sessions whose expiry has passed.
type ExpiredSessionLister interface {
	ExpiredSessions(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// SessionEnder deletes a session and announces the sign-out.
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID string) error
}

// SessionSweeper ends expired sessions so live views fall back to the login view
type SessionSweeper struct {
	sessions      ExpiredSessionLister
	ender         SessionEnder
	logger        logger.Logger
	interval      time.Duration
	batch         int64
	now           func() time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	started       bool
	done          chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(
	sessions ExpiredSessionLister,
	ender SessionEnder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &SessionSweeper{
		sessions:      sessions,
		ender:         ender,
		logger:        log,
		interval:      interval,
		batch:         DefaultSweepBatch,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *SessionSweeper) Start(ctx context.Context) error {
	// Sweep immediately on start
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial session sweep failed",
			logger.Error(err))
	}

	s.started = true
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-s.manualTrigger:
				s.logger.Info("manual session sweep triggered")
				s.run(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper and waits for the loop to exit
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.done
	}
}

func (s *SessionSweeper) run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("session sweep failed",
			logger.Error(err))
	}
}

// Sweep ends every session whose expiry is at or before now and returns
// how many were ended. Failures on single sessions are logged and skipped.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	ended := 0
	failed := make(map[string]struct{})

	for {
		// Sessions that failed stay in the index, so widen the window past them.
		limit := s.batch + int64(len(failed))
		ids, err := s.sessions.ExpiredSessions(ctx, now, limit)
		if err != nil {
			return ended, err
		}

		progressed := false
		for _, id := range ids {
			if _, skip := failed[id]; skip {
				continue
			}
			if err := s.ender.EndSession(ctx, id); err != nil {
				s.logger.Warn("failed to end expired session",
					logger.String("session_id", id),
					logger.Error(err))
				failed[id] = struct{}{}
				continue
			}
			ended++
			progressed = true
		}

		if !progressed || int64(len(ids)) < limit {
			break
		}
	}

	if ended > 0 {
		s.logger.Info("session sweep completed",
			logger.Int("sessions_ended", ended),
			logger.Int("failed", len(failed)))
	} else {
		s.logger.Debug("no expired sessions")
	}

	return ended, nil
}
