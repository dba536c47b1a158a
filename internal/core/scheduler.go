package core

// scheduler.go runs background maintenance.
//
// The session sweeper removes idle sessions so abandoned selections do not
// accumulate. It runs until its context is cancelled and never fails the
// application.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionSweeper removes expired sessions every interval until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	slog.Info("session sweeper started", "interval", interval.String(), "ttl", s.ttl.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// runSweep performs one sweep cycle.
func (s *Service) runSweep() {
	start := time.Now()
	removed := s.SweepSessions(s.now())

	if removed > 0 {
		slog.Info("expired sessions removed",
			"removed", removed,
			"remaining", s.SessionCount(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("session sweep found nothing to remove", "remaining", s.SessionCount())
}
