package pricing

import (
	"github.com/JonMunkholm/m2o/internal/market"
)

// Outcome classifies a price lookup.
type Outcome int

const (
	// Found means the cell exists and holds a value.
	Found Outcome = iota
	// NoPrice means the article and currency exist but the cell is empty.
	NoPrice
	// MissingKey means no row matches the article number.
	MissingKey
	// CurrencyAbsent means the row exists but the matrix has no such currency column.
	CurrencyAbsent
	// TableUnavailable means the matrix was not loaded or holds no rows.
	TableUnavailable
)

// Sentinel strings written into export cells for failed lookups.
const (
	SentinelNoPrice        = "N/A"
	SentinelMissingKey     = "Price Not Found"
	SentinelCurrencyAbsent = "Currency Not In Price Matrix"
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NoPrice:
		return "no price"
	case MissingKey:
		return "missing key"
	case CurrencyAbsent:
		return "currency absent"
	case TableUnavailable:
		return "table unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of one lookup.
type Result struct {
	Kind    Kind
	Outcome Outcome
	Price   Price // set when Outcome is Found
}

// Text returns the cell text for the export: the raw price, or the
// sentinel for the outcome.
func (r Result) Text() string {
	switch r.Outcome {
	case Found:
		return r.Price.Raw
	case NoPrice:
		return SentinelNoPrice
	case MissingKey:
		return SentinelMissingKey
	case CurrencyAbsent:
		return SentinelCurrencyAbsent
	default:
		return r.Kind.String() + " Matrix Empty/Error"
	}
}

// Index holds the price matrices of every segment. It is built once and
// read concurrently afterwards.
type Index struct {
	tables map[market.Segment]map[Kind]*Table
}

// NewIndex returns an empty index. Every lookup against it is
// TableUnavailable until tables are added.
func NewIndex() *Index {
	return &Index{tables: make(map[market.Segment]map[Kind]*Table)}
}

// Add registers t for segment, replacing any table of the same kind.
func (ix *Index) Add(segment market.Segment, t *Table) {
	if ix.tables[segment] == nil {
		ix.tables[segment] = make(map[Kind]*Table, len(Kinds))
	}
	ix.tables[segment][t.Kind] = t
}

// Table returns the matrix of kind for segment, or nil.
func (ix *Index) Table(segment market.Segment, kind Kind) *Table {
	return ix.tables[segment][kind]
}

// Available reports whether segment has a usable matrix of kind.
func (ix *Index) Available(segment market.Segment, kind Kind) bool {
	t := ix.Table(segment, kind)
	return t != nil && t.Len() > 0
}

// HasCurrency reports whether the segment's matrix of kind has a column
// for currency.
func (ix *Index) HasCurrency(segment market.Segment, kind Kind, currency string) bool {
	t := ix.Table(segment, kind)
	return t != nil && t.HasCurrency(currency)
}

// Lookup finds the price of articleNo in currency.
func (ix *Index) Lookup(segment market.Segment, kind Kind, articleNo, currency string) Result {
	res := Result{Kind: kind}

	t := ix.Table(segment, kind)
	if t == nil || t.Len() == 0 {
		res.Outcome = TableUnavailable
		return res
	}

	key, ok := NormalizeKey(articleNo)
	if !ok {
		res.Outcome = MissingKey
		return res
	}
	prices, ok := t.rows[key]
	if !ok {
		res.Outcome = MissingKey
		return res
	}

	col, ok := t.columns[normalizeCurrency(currency)]
	if !ok {
		res.Outcome = CurrencyAbsent
		return res
	}

	p := prices[col]
	if p.Empty() || isNullPrice(p.Raw) {
		res.Outcome = NoPrice
		return res
	}

	res.Outcome = Found
	res.Price = p
	return res
}

func isNullPrice(raw string) bool {
	_, ok := NormalizeKey(raw)
	return !ok
}
