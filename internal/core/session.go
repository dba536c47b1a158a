package core

// session.go holds one user's configurator state: the chosen currency and
// the selection set built against that currency's market view.
//
// Every intent takes the session mutex, so concurrent requests for one
// session apply one after another. Views, prices and the catalog are
// shared read-only across sessions.

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/export"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/resolver"
	"github.com/JonMunkholm/m2o/internal/selection"
)

// Session is one user's selection state.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	svc      *Service
	lastUsed atomic.Int64 // unix nanoseconds

	mu       sync.Mutex
	currency string
	view     *View
	set      *selection.Set
}

func newSession(svc *Service, now time.Time) *Session {
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		svc:       svc,
		set:       selection.New(),
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed returns when the session was last accessed.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastUsed()) > ttl
}

// requireView returns the current market view. Callers hold s.mu.
func (s *Session) requireView() (*View, error) {
	if s.view == nil {
		return nil, ErrNoCurrency
	}
	return s.view, nil
}

// SelectCurrency switches the session to currency. The selection set is
// replaced with an empty one: selections never carry across markets, and
// re-selecting the current currency also starts over.
func (s *Session) SelectCurrency(currency string) error {
	seg, name, err := s.svc.data.Partitioner.Classify(currency)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currency = name
	s.view = s.svc.View(seg)
	s.set = selection.New()
	return nil
}

// Currency returns the selected currency and its segment. ok is false
// before a currency is chosen.
func (s *Session) Currency() (currency string, seg market.Segment, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view == nil {
		return "", 0, false
	}
	return s.currency, s.view.Segment, true
}

// Families returns the product families of the current market.
func (s *Session) Families() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return nil, err
	}
	return v.Index.Families(), nil
}

// MatrixState is a family matrix with the session's selection laid over it.
type MatrixState struct {
	*catalog.Matrix

	// Selected mirrors Cells: true where the combination is toggled on.
	Selected [][]bool `json:"selected"`

	// Chosen holds chosen bases for selected cells that need a choice,
	// keyed "row,col".
	Chosen map[string][]string `json:"chosen,omitempty"`

	// Bases lists every base color offered in the family.
	Bases []string `json:"bases"`
}

// Matrix returns the selection grid of family.
func (s *Session) Matrix(family string) (*MatrixState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return nil, err
	}
	m, ok := v.Index.Matrix(family)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}

	st := &MatrixState{
		Matrix:   m,
		Selected: make([][]bool, len(m.Products)),
		Chosen:   make(map[string][]string),
		Bases:    v.Index.BasesInFamily(family),
	}
	for i, p := range m.Products {
		st.Selected[i] = make([]bool, len(m.Columns))
		for j, col := range m.Columns {
			k := m.Key(p, col)
			if !s.set.IsSelected(k) {
				continue
			}
			st.Selected[i][j] = true
			if chosen := s.set.ChosenBases(k); len(chosen) > 0 {
				st.Chosen[fmt.Sprintf("%d,%d", i, j)] = chosen
			}
		}
	}
	return st, nil
}

// Toggle turns one combination on or off.
func (s *Session) Toggle(key catalog.Key, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return err
	}
	return s.set.Toggle(v.Index, key, on)
}

// ToggleColumn turns every combination of one matrix column on or off.
func (s *Session) ToggleColumn(family, uphType, uphColor string, on bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return 0, err
	}
	return s.set.ToggleColumn(v.Index, family, uphType, uphColor, on)
}

// SetChosenBases replaces the chosen bases of a selected combination.
func (s *Session) SetChosenBases(key catalog.Key, bases []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireView(); err != nil {
		return err
	}
	return s.set.SetChosenBases(key, bases)
}

// ApplyBase adds or removes base for every selected combination of family
// that offers it.
func (s *Session) ApplyBase(family, base string, on bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return 0, err
	}
	if _, ok := v.Index.Matrix(family); !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return s.set.ApplyBase(family, base, on), nil
}

// Review resolves the selection into the list of SKUs to export.
func (s *Session) Review() (resolver.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return resolver.Result{}, err
	}
	return resolver.Resolve(s.set, v.Rows), nil
}

// RemoveResolvedItem removes one item of the resolved list from the
// selection. The item is identified by item number and base.
func (s *Session) RemoveResolvedItem(itemNo, base string, hasBase bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.requireView()
	if err != nil {
		return err
	}

	for _, it := range resolver.Resolve(s.set, v.Rows).Items {
		if it.ItemNo == itemNo && it.HasBase == hasBase && (!hasBase || it.ChosenBase == base) {
			return s.set.RemoveItem(it.Key, it.ChosenBase, it.HasBase)
		}
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemNo)
}

// GenerateExport resolves the selection and assembles the export table.
// An empty table is not an error; check Table.Empty. Resolution issues are
// added to the table's warnings.
func (s *Session) GenerateExport(ctx context.Context) (*export.Table, error) {
	s.mu.Lock()
	v, err := s.requireView()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	currency := s.currency
	res := resolver.Resolve(s.set, v.Rows)
	s.mu.Unlock()

	if err := s.svc.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.svc.limiter.Release()

	t := s.svc.assembler.Assemble(res.Items, currency, v.Segment)
	for _, is := range res.Issues {
		t.Warnings = append(t.Warnings, export.Warning{Message: is.String()})
	}
	return t, nil
}

// State is a read-only snapshot of a session.
type State struct {
	ID        string            `json:"id"`
	Currency  string            `json:"currency,omitempty"`
	Segment   string            `json:"segment,omitempty"`
	Entries   []selection.Entry `json:"entries"`
	CreatedAt time.Time         `json:"created_at"`
	LastUsed  time.Time         `json:"last_used"`
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.ID.String(),
		Entries:   s.set.Entries(),
		CreatedAt: s.CreatedAt,
		LastUsed:  s.LastUsed(),
	}
	if s.view != nil {
		st.Currency = s.currency
		st.Segment = s.view.Segment.String()
	}
	return st
}
