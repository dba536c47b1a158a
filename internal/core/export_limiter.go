package core

// export_limiter.go caps how many sessions assemble an export at the same
// time. Each export holds one slot from resolve to the last written cell.

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMaxConcurrentExports applies when Options.MaxExports is unset.
	DefaultMaxConcurrentExports = 4

	// DefaultExportWait applies when Options.ExportWait is unset.
	DefaultExportWait = 10 * time.Second
)

// ExportLimiter hands out a fixed number of export slots. Callers that
// find every slot taken wait up to the configured time, then get
// ErrTooManyExports.
type ExportLimiter struct {
	slots chan struct{}
	wait  time.Duration

	mu      sync.Mutex
	running int
	idle    chan struct{} // closed while running == 0
}

// NewExportLimiter returns a limiter with size slots. Non-positive
// arguments fall back to the package defaults.
func NewExportLimiter(size int, wait time.Duration) *ExportLimiter {
	if size <= 0 {
		size = DefaultMaxConcurrentExports
	}
	if wait <= 0 {
		wait = DefaultExportWait
	}

	idle := make(chan struct{})
	close(idle)
	return &ExportLimiter{
		slots: make(chan struct{}, size),
		wait:  wait,
		idle:  idle,
	}
}

// Acquire takes a slot. It returns ctx.Err() when the caller gives up
// first and ErrTooManyExports when the wait runs out. Every successful
// Acquire must be paired with Release.
func (l *ExportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExports
	}

	l.mu.Lock()
	if l.running == 0 {
		l.idle = make(chan struct{})
	}
	l.running++
	l.mu.Unlock()
	return nil
}

// Release gives back a slot taken by Acquire.
func (l *ExportLimiter) Release() {
	l.mu.Lock()
	l.running--
	if l.running == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// Drain blocks until no export holds a slot or ctx is done.
func (l *ExportLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is the limiter state reported by /api/export-status.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current slot usage.
func (l *ExportLimiter) Status() LimiterStatus {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()

	return LimiterStatus{
		Active:        running,
		Available:     cap(l.slots) - running,
		MaxConcurrent: cap(l.slots),
	}
}
