// Package pricing indexes wholesale and retail price matrices by article
// number and currency.
//
// A price matrix is a sheet whose first column holds article numbers and
// whose remaining columns are one per currency. Prices are looked up
// verbatim; nothing here computes a price. A failed lookup is reported as
// one of several distinct outcomes so the export can say why a cell is
// empty instead of aborting.
package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/m2o/internal/sheet"
)

// ErrNoKeyColumn is returned for a matrix whose header row is empty.
var ErrNoKeyColumn = errors.New("price matrix has no article column")

// Kind is the price list a table belongs to.
type Kind int

const (
	Wholesale Kind = iota
	Retail
)

// Kinds lists every price kind in export column order.
var Kinds = []Kind{Wholesale, Retail}

func (k Kind) String() string {
	switch k {
	case Wholesale:
		return "Wholesale"
	case Retail:
		return "Retail"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Price is one matrix cell. Raw is the cell as stored; Value is set when
// Raw parses as a number.
type Price struct {
	Raw     string
	Value   decimal.Decimal
	Numeric bool
}

// ParsePrice parses a raw cell. Thousands separators are not accepted.
func ParsePrice(raw string) Price {
	raw = strings.TrimSpace(raw)
	p := Price{Raw: raw}
	if raw == "" {
		return p
	}
	if v, err := decimal.NewFromString(raw); err == nil {
		p.Value = v
		p.Numeric = true
	}
	return p
}

// Empty reports whether the cell held no value.
func (p Price) Empty() bool {
	return p.Raw == ""
}

// NormalizeKey turns a raw article value into a lookup key: trimmed,
// upper-cased, with a trailing ".0" removed. ok is false for empty and
// null-like values.
func NormalizeKey(raw string) (key string, ok bool) {
	key = strings.ToUpper(strings.TrimSpace(raw))
	key = strings.TrimSuffix(key, ".0")

	switch key {
	case "", "NAN", "NONE", "N/A":
		return "", false
	}
	return key, true
}

// Table is one price matrix.
type Table struct {
	Kind       Kind
	Name       string
	Currencies []string // header order, as written in the source

	columns map[string]int // normalized currency -> position in prices row
	rows    map[string][]Price
}

// BuildTable indexes s. The first column is the article key; every other
// non-empty header is a currency. Rows with a null-like key are skipped.
// When two rows normalize to the same key the first one is kept.
func BuildTable(kind Kind, s *sheet.Sheet) (*Table, error) {
	if len(s.Headers) == 0 || sheet.CleanCell(s.Headers[0]) == "" {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNoKeyColumn)
	}

	t := &Table{
		Kind:    kind,
		Name:    s.Name,
		columns: make(map[string]int, len(s.Headers)-1),
		rows:    make(map[string][]Price, len(s.Rows)),
	}

	positions := make([]int, 0, len(s.Headers)-1)
	for i, h := range s.Headers[1:] {
		h = sheet.CleanCell(h)
		if h == "" {
			continue
		}
		norm := normalizeCurrency(h)
		if _, dup := t.columns[norm]; dup {
			continue
		}
		t.columns[norm] = len(t.Currencies)
		t.Currencies = append(t.Currencies, h)
		positions = append(positions, i+1)
	}

	var duplicates []string
	for _, raw := range s.Rows {
		key, ok := NormalizeKey(raw[0])
		if !ok {
			continue
		}
		if _, seen := t.rows[key]; seen {
			duplicates = append(duplicates, key)
			continue
		}

		prices := make([]Price, len(positions))
		for j, pos := range positions {
			if pos < len(raw) {
				prices[j] = ParsePrice(raw[pos])
			}
		}
		t.rows[key] = prices
	}

	if len(duplicates) > 0 {
		sample := duplicates
		if len(sample) > 5 {
			sample = sample[:5]
		}
		slog.Warn("duplicate article keys in price matrix, first row wins",
			"matrix", s.Name,
			"kind", kind.String(),
			"count", len(duplicates),
			"sample", sample,
		)
	}

	return t, nil
}

// Len returns the number of indexed articles.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasCurrency reports whether the matrix has a column for currency.
func (t *Table) HasCurrency(currency string) bool {
	_, ok := t.columns[normalizeCurrency(currency)]
	return ok
}

// Load reads and indexes one price matrix sheet from a file.
func Load(kind Kind, path, sheetName string) (*Table, error) {
	s, err := sheet.Open(path, sheetName)
	if err != nil {
		return nil, fmt.Errorf("load %s price matrix: %w", strings.ToLower(kind.String()), err)
	}
	t, err := BuildTable(kind, s)
	if err != nil {
		return nil, fmt.Errorf("load %s price matrix: %w", strings.ToLower(kind.String()), err)
	}
	return t, nil
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.Join(strings.Fields(c), " "))
}
