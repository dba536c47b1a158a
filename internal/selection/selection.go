// Package selection holds one user's working set of chosen combinations.
//
// A Set maps generic combinations to the catalog metadata captured when
// they were toggled on, and, for combinations that need a base color
// choice, to the bases the user picked. Chosen bases only ever exist for
// a selected combination: every path that deselects goes through the same
// removal, so chosen bases cannot outlive their combination.
//
// A Set is not safe for concurrent use. Callers that share one across
// goroutines must serialize access.
package selection

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/m2o/internal/catalog"
)

var (
	// ErrUnknownCombination is returned when toggling on a combination the
	// catalog index does not contain.
	ErrUnknownCombination = errors.New("combination not in catalog")

	// ErrNotSelected is returned when an operation needs a selected combination.
	ErrNotSelected = errors.New("combination not selected")

	// ErrBaseChoiceNotRequired is returned when choosing bases for a
	// combination that resolves without one.
	ErrBaseChoiceNotRequired = errors.New("combination does not take a base choice")

	// ErrBaseNotAvailable is returned for a base color the combination does not offer.
	ErrBaseNotAvailable = errors.New("base color not available for combination")
)

// Entry is one selected combination.
type Entry struct {
	Key                catalog.Key      `json:"key"`
	RequiresBaseChoice bool             `json:"requires_base_choice"`
	Bases              []string         `json:"bases,omitempty"`
	Single             *catalog.Variant `json:"-"`
	Chosen             []string         `json:"chosen,omitempty"`
}

// Set is the selection state of one session.
type Set struct {
	entries map[catalog.Key]*Entry
	chosen  map[catalog.Key][]string
	order   []catalog.Key
}

// New returns an empty Set.
func New() *Set {
	return &Set{
		entries: make(map[catalog.Key]*Entry),
		chosen:  make(map[catalog.Key][]string),
	}
}

// Len returns the number of selected combinations.
func (s *Set) Len() int {
	return len(s.entries)
}

// IsSelected reports whether key is toggled on.
func (s *Set) IsSelected(key catalog.Key) bool {
	_, ok := s.entries[key]
	return ok
}

// Toggle turns key on or off.
//
// Turning on requires the combination to exist in ix and stores its current
// metadata. Turning on an already selected combination refreshes that
// metadata and drops chosen bases the combination no longer offers.
// Turning off removes the entry and its chosen bases; it is a no-op for an
// unselected key.
func (s *Set) Toggle(ix *catalog.Index, key catalog.Key, on bool) error {
	if !on {
		s.remove(key)
		return nil
	}

	g, ok := ix.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s / %s / %s / %s", ErrUnknownCombination,
			key.Family, key.Product, key.UpholsteryType, key.UpholsteryColor)
	}

	e := &Entry{
		Key:                key,
		RequiresBaseChoice: g.RequiresBaseChoice(),
		Bases:              append([]string(nil), g.Bases...),
	}
	if g.Single != nil {
		v := *g.Single
		e.Single = &v
	}

	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = e
	s.pruneChosen(e)

	return nil
}

// pruneChosen keeps only the chosen bases e still offers.
func (s *Set) pruneChosen(e *Entry) {
	prev, ok := s.chosen[e.Key]
	if !ok {
		return
	}
	if !e.RequiresBaseChoice {
		delete(s.chosen, e.Key)
		return
	}

	kept := prev[:0]
	for _, b := range prev {
		if contains(e.Bases, b) {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		delete(s.chosen, e.Key)
		return
	}
	s.chosen[e.Key] = kept
}

func (s *Set) remove(key catalog.Key) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	delete(s.chosen, key)

	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetChosenBases replaces the chosen bases of key. Every base must be one
// the combination offers; nothing is changed when any is not. Repeated
// bases collapse. An empty list clears the choice.
func (s *Set) SetChosenBases(key catalog.Key, bases []string) error {
	e, ok := s.entries[key]
	if !ok {
		return ErrNotSelected
	}
	if !e.RequiresBaseChoice {
		return ErrBaseChoiceNotRequired
	}

	chosen := make([]string, 0, len(bases))
	for _, b := range bases {
		if !contains(e.Bases, b) {
			return fmt.Errorf("%w: %q", ErrBaseNotAvailable, b)
		}
		if !contains(chosen, b) {
			chosen = append(chosen, b)
		}
	}

	if len(chosen) == 0 {
		delete(s.chosen, key)
		return nil
	}
	s.chosen[key] = chosen
	return nil
}

// ChosenBases returns a copy of the chosen bases of key.
func (s *Set) ChosenBases(key catalog.Key) []string {
	return append([]string(nil), s.chosen[key]...)
}

// ToggleColumn toggles every combination of one matrix column (family,
// upholstery type, upholstery color) and returns how many were affected.
func (s *Set) ToggleColumn(ix *catalog.Index, family, uphType, uphColor string, on bool) (int, error) {
	n := 0
	for _, k := range ix.Keys() {
		if k.Family != family || k.UpholsteryType != uphType || k.UpholsteryColor != uphColor {
			continue
		}
		if err := s.Toggle(ix, k, on); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ApplyBase adds base to (or removes it from) the chosen bases of every
// selected combination of family that offers it. It returns how many
// combinations changed.
func (s *Set) ApplyBase(family, base string, on bool) int {
	n := 0
	for _, k := range s.order {
		e := s.entries[k]
		if k.Family != family || !e.RequiresBaseChoice || !contains(e.Bases, base) {
			continue
		}

		cur := s.chosen[k]
		switch {
		case on && !contains(cur, base):
			s.chosen[k] = append(cur, base)
			n++
		case !on && contains(cur, base):
			next := without(cur, base)
			if len(next) == 0 {
				delete(s.chosen, k)
			} else {
				s.chosen[k] = next
			}
			n++
		}
	}
	return n
}

// RemoveItem removes one resolved item from the selection. For a
// combination with a base choice the base is dropped from the chosen bases,
// and the combination is deselected once none remain. Any other
// combination is deselected outright.
func (s *Set) RemoveItem(key catalog.Key, base string, hasBase bool) error {
	e, ok := s.entries[key]
	if !ok {
		return ErrNotSelected
	}

	if e.RequiresBaseChoice && hasBase {
		next := without(s.chosen[key], base)
		if len(next) > 0 {
			s.chosen[key] = next
			return nil
		}
	}

	s.remove(key)
	return nil
}

// Entries returns the selected combinations in selection order, each with
// a copy of its chosen bases.
func (s *Set) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		e := *s.entries[k]
		e.Bases = append([]string(nil), e.Bases...)
		e.Chosen = s.ChosenBases(k)
		out = append(out, e)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
