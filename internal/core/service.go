package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/export"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/pricing"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("too many sessions")

	// ErrNoCurrency is returned for operations that need a selected currency.
	ErrNoCurrency = errors.New("no currency selected")

	// ErrUnknownFamily is returned for a family without products in the market.
	ErrUnknownFamily = errors.New("unknown product family")

	// ErrItemNotFound is returned when removing an item that is not resolved.
	ErrItemNotFound = errors.New("resolved item not found")

	// ErrNothingToExport is returned when a download has no rows.
	ErrNothingToExport = errors.New("nothing to export")

	// ErrInvalidRequest is returned for a malformed intent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTooManyExports is returned when all export slots are occupied and
	// the wait timeout expires.
	ErrTooManyExports = errors.New("too many concurrent exports, please try again later")
)

// DefaultSessionTTL is how long an idle session lives when not configured.
const DefaultSessionTTL = 2 * time.Hour

// Options configure a Service.
type Options struct {
	SessionTTL  time.Duration
	MaxSessions int // 0 means unlimited
	MaxExports  int
	ExportWait  time.Duration
	Now         func() time.Time
}

// View is the catalog as seen from one market segment.
type View struct {
	Segment market.Segment
	Rows    []catalog.Row
	Index   *catalog.Index
}

// Service owns the immutable data, one View per segment, and the live
// sessions.
type Service struct {
	data      *Data
	views     map[market.Segment]*View
	assembler *export.Assembler
	limiter   *ExportLimiter

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewService builds the per-segment views over data.
func NewService(data *Data, opts Options) (*Service, error) {
	if data == nil || data.Catalog == nil || data.Prices == nil || data.Partitioner == nil {
		return nil, errors.New("new service: incomplete data")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		data:        data,
		views:       make(map[market.Segment]*View, len(market.Segments)),
		assembler:   export.NewAssembler(data.Catalog, data.Prices, data.Template),
		limiter:     NewExportLimiter(opts.MaxExports, opts.ExportWait),
		ttl:         opts.SessionTTL,
		maxSessions: opts.MaxSessions,
		now:         opts.Now,
		sessions:    make(map[uuid.UUID]*Session),
	}

	for _, seg := range market.Segments {
		rows := data.Partitioner.Filter(data.Catalog.Rows, seg)
		v := &View{Segment: seg, Rows: rows, Index: catalog.Build(rows)}
		s.views[seg] = v

		slog.Info("market view built",
			"segment", seg.String(),
			"rows", len(rows),
			"combinations", v.Index.Len(),
			"ambiguous", v.Index.Ambiguous(),
		)
	}

	return s, nil
}

// View returns the catalog view of segment.
func (s *Service) View(seg market.Segment) *View {
	return s.views[seg]
}

// Template returns the export template columns.
func (s *Service) Template() []string {
	return s.assembler.Template()
}

// Currencies returns the selectable currencies: those of a segment whose
// wholesale matrix has a column for them.
func (s *Service) Currencies() []string {
	return s.data.Partitioner.Currencies(func(seg market.Segment, c string) bool {
		return s.data.Prices.HasCurrency(seg, pricing.Wholesale, c)
	})
}

// NewSession starts an empty session.
func (s *Service) NewSession() (*Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.sweepLocked(now)
		if len(s.sessions) >= s.maxSessions {
			return nil, ErrTooManySessions
		}
	}

	sess := newSession(s, now)
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Session returns the live session with id and marks it used.
func (s *Service) Session(id string) (*Session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	s.mu.RLock()
	sess, ok := s.sessions[uid]
	s.mu.RUnlock()

	now := s.now()
	if !ok || sess.expired(now, s.ttl) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(now)
	return sess, nil
}

// DeleteSession ends a session.
func (s *Service) DeleteSession(id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[uid]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, uid)
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepSessions removes sessions idle for longer than the TTL and returns
// how many were removed.
func (s *Service) SweepSessions(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *Service) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// ExportStatus returns the export limiter state.
func (s *Service) ExportStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForExports blocks until running exports finish or ctx is done.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}
