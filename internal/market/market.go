// Package market maps currencies to market segments and filters catalog
// rows down to one segment.
//
// The mapping is closed: every selectable currency belongs to exactly one
// segment and an unknown currency is an error, never a default. Filtering
// fails closed as well; a row whose market tag matches no rule is left out
// of every segment.
package market

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/m2o/internal/catalog"
)

// ErrUnknownCurrency is returned for a currency outside every segment.
var ErrUnknownCurrency = errors.New("unknown currency")

// ErrDuplicateCurrency is returned when a rule set maps one currency twice.
var ErrDuplicateCurrency = errors.New("currency mapped to more than one segment")

// Segment is a partition of catalog and price data.
type Segment int

const (
	EU Segment = iota
	UKIE
)

// Segments lists every segment in display order.
var Segments = []Segment{EU, UKIE}

// String returns the segment name used in logs and JSON.
func (s Segment) String() string {
	switch s {
	case EU:
		return "EU"
	case UKIE:
		return "UK/IE"
	default:
		return fmt.Sprintf("Segment(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Segment) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Rule lists the currencies and market tags of one segment.
type Rule struct {
	Segment    Segment
	Currencies []string
	Tags       []string
}

// DefaultRules are the fixed segment definitions.
var DefaultRules = []Rule{
	{
		Segment:    EU,
		Currencies: []string{"DACH - EURO", "DKK", "EURO", "NOK", "PLN", "SEK", "AUD"},
		Tags:       []string{"EU"},
	},
	{
		Segment:    UKIE,
		Currencies: []string{"GBP", "IE - EUR"},
		Tags:       []string{"UK", "IE"},
	},
}

// currencyEntry is a configured currency under its rule spelling.
type currencyEntry struct {
	segment Segment
	name    string
}

// Partitioner classifies currencies and filters rows by market tag.
type Partitioner struct {
	bySegment  map[Segment]Rule
	byCurrency map[string]currencyEntry
	tags       map[Segment]map[string]struct{}
	shared     map[string]struct{}
}

// NewPartitioner builds a Partitioner from rules. sharedTags are market
// tags accepted by every segment (case-insensitive).
func NewPartitioner(rules []Rule, sharedTags ...string) (*Partitioner, error) {
	p := &Partitioner{
		bySegment:  make(map[Segment]Rule, len(rules)),
		byCurrency: make(map[string]currencyEntry),
		tags:       make(map[Segment]map[string]struct{}, len(rules)),
		shared:     make(map[string]struct{}, len(sharedTags)),
	}

	for _, r := range rules {
		p.bySegment[r.Segment] = r
		for _, c := range r.Currencies {
			key := normalizeCurrency(c)
			if prev, ok := p.byCurrency[key]; ok {
				if prev.segment != r.Segment {
					return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateCurrency, c, prev.segment, r.Segment)
				}
				continue
			}
			p.byCurrency[key] = currencyEntry{segment: r.Segment, name: c}
		}

		tags := make(map[string]struct{}, len(r.Tags))
		for _, t := range r.Tags {
			tags[normalizeTag(t)] = struct{}{}
		}
		p.tags[r.Segment] = tags
	}

	for _, t := range sharedTags {
		if t = normalizeTag(t); t != "" {
			p.shared[t] = struct{}{}
		}
	}

	return p, nil
}

// Classify returns the segment of currency and the currency as its rule
// spells it. Matching ignores case and runs of spaces.
func (p *Partitioner) Classify(currency string) (Segment, string, error) {
	e, ok := p.byCurrency[normalizeCurrency(currency)]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return e.segment, e.name, nil
}

// Matches reports whether a market tag belongs to segment.
func (p *Partitioner) Matches(market string, segment Segment) bool {
	tag := normalizeTag(market)
	if _, ok := p.tags[segment][tag]; ok {
		return true
	}
	_, ok := p.shared[tag]
	return ok
}

// Filter returns the rows of segment. Rows with an unknown market are
// excluded.
func (p *Partitioner) Filter(rows []catalog.Row, segment Segment) []catalog.Row {
	out := make([]catalog.Row, 0, len(rows)/2)
	for _, r := range rows {
		if p.Matches(r.Market, segment) {
			out = append(out, r)
		}
	}
	return out
}

// Currencies returns the configured currencies for which available reports
// true, sorted. A nil available accepts every configured currency.
func (p *Partitioner) Currencies(available func(Segment, string) bool) []string {
	var out []string
	for seg, r := range p.bySegment {
		for _, c := range r.Currencies {
			if available == nil || available(seg, c) {
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.Join(strings.Fields(c), " "))
}

func normalizeTag(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
