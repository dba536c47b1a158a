// Package export assembles resolved SKUs into masterdata rows and writes
// them as xlsx or csv.
//
// The output column order comes from a template header row. The template's
// "Wholesale price" and "Retail price" placeholders are replaced by columns
// named after the selected currency, and filled from the price index. A row
// never fails as a whole because one price is missing: the cell gets a
// sentinel naming the reason.
package export

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/pricing"
	"github.com/JonMunkholm/m2o/internal/resolver"
)

// Template placeholders substituted with currency-specific price columns.
const (
	WholesalePlaceholder = "Wholesale price"
	RetailPlaceholder    = "Retail price"
)

// SheetName is the worksheet name of the xlsx export.
const SheetName = "Masterdata Output"

// PriceColumns returns the wholesale and retail column names for currency.
func PriceColumns(currency string) (wholesale, retail string) {
	c := strings.TrimSpace(currency)
	return fmt.Sprintf("%s (%s)", WholesalePlaceholder, c), fmt.Sprintf("%s (%s)", RetailPlaceholder, c)
}

// placeholderKind reports which price placeholder col is, if any.
func placeholderKind(col string) (pricing.Kind, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(col), WholesalePlaceholder):
		return pricing.Wholesale, true
	case strings.EqualFold(strings.TrimSpace(col), RetailPlaceholder):
		return pricing.Retail, true
	}
	return 0, false
}

// EnsurePlaceholders returns template with any missing price placeholder
// appended.
func EnsurePlaceholders(template []string) []string {
	out := append([]string(nil), template...)
	var hasWholesale, hasRetail bool
	for _, col := range template {
		if k, ok := placeholderKind(col); ok {
			hasWholesale = hasWholesale || k == pricing.Wholesale
			hasRetail = hasRetail || k == pricing.Retail
		}
	}
	if !hasWholesale {
		out = append(out, WholesalePlaceholder)
	}
	if !hasRetail {
		out = append(out, RetailPlaceholder)
	}
	return out
}

// Columns returns the export column order for currency: template columns
// with the placeholders replaced by the price columns, duplicates removed
// in first-seen order. Price columns the template lacked are appended.
func Columns(template []string, currency string) []string {
	wholesale, retail := PriceColumns(currency)

	out := make([]string, 0, len(template)+2)
	seen := make(map[string]bool, len(template)+2)
	add := func(col string) {
		if col == "" || seen[col] {
			return
		}
		seen[col] = true
		out = append(out, col)
	}

	for _, col := range EnsurePlaceholders(template) {
		switch k, ok := placeholderKind(col); {
		case ok && k == pricing.Wholesale:
			add(wholesale)
		case ok && k == pricing.Retail:
			add(retail)
		default:
			add(strings.TrimSpace(col))
		}
	}
	return out
}

// Warning is a resolved item left out of the export, or any other problem
// worth showing next to it.
type Warning struct {
	ItemNo  string `json:"item_no,omitempty"`
	Message string `json:"message"`
}

// Row is one export row.
type Row struct {
	ItemNo string
	Cells  []string
	Prices map[pricing.Kind]pricing.Result
}

// Table is the assembled export.
type Table struct {
	Currency string
	Columns  []string
	Rows     []Row
	Warnings []Warning

	// PriceColumn is the column position of each price kind.
	PriceColumn map[pricing.Kind]int
}

// Empty reports whether there is nothing to export.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Records returns the header followed by every row's cells.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Columns)
	for _, r := range t.Rows {
		out = append(out, r.Cells)
	}
	return out
}

// Assembler joins resolved items with catalog data and prices.
type Assembler struct {
	catalog  *catalog.Catalog
	prices   *pricing.Index
	template []string
}

// NewAssembler returns an Assembler. c must be the unfiltered catalog so
// that every resolved item can be found regardless of market.
func NewAssembler(c *catalog.Catalog, prices *pricing.Index, template []string) *Assembler {
	return &Assembler{catalog: c, prices: prices, template: append([]string(nil), template...)}
}

// Template returns the template columns.
func (a *Assembler) Template() []string {
	return append([]string(nil), a.template...)
}

// Assemble builds the export for items in currency, whose prices come from
// segment. Items missing from the catalog are skipped with a warning.
func (a *Assembler) Assemble(items []resolver.Item, currency string, segment market.Segment) *Table {
	wholesale, retail := PriceColumns(currency)

	t := &Table{
		Currency:    strings.TrimSpace(currency),
		Columns:     Columns(a.template, currency),
		Rows:        make([]Row, 0, len(items)),
		PriceColumn: make(map[pricing.Kind]int, len(pricing.Kinds)),
	}
	for i, col := range t.Columns {
		switch col {
		case wholesale:
			t.PriceColumn[pricing.Wholesale] = i
		case retail:
			t.PriceColumn[pricing.Retail] = i
		}
	}

	for _, it := range items {
		src, ok := a.catalog.Item(it.ItemNo)
		if !ok {
			t.Warnings = append(t.Warnings, Warning{
				ItemNo:  it.ItemNo,
				Message: fmt.Sprintf("item %s not found in catalog, row skipped", it.ItemNo),
			})
			continue
		}

		row := Row{
			ItemNo: it.ItemNo,
			Cells:  make([]string, len(t.Columns)),
			Prices: make(map[pricing.Kind]pricing.Result, len(pricing.Kinds)),
		}
		for i, col := range t.Columns {
			row.Cells[i], _ = src.Field(col)
		}
		for kind, pos := range t.PriceColumn {
			res := a.prices.Lookup(segment, kind, it.ArticleNo, currency)
			row.Prices[kind] = res
			row.Cells[pos] = res.Text()
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Warnings) > 0 {
		slog.Warn("export rows skipped", "currency", t.Currency, "count", len(t.Warnings))
	}

	return t
}
