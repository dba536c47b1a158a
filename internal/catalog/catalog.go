// Package catalog parses the flat SKU table and groups it into the generic
// combinations a user picks from.
//
// A generic combination is (family, product display name, upholstery type,
// upholstery color). Rows sharing a combination differ only by base color.
// The Index built here answers the one question asked on every toggle and
// every matrix render: does this combination exist, and does it need a base
// color choice before it resolves to a single SKU.
package catalog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/m2o/internal/sheet"
)

// Catalog column names as they appear in the source header row.
const (
	ColItemNo          = "Item No"
	ColArticleNo       = "Article No"
	ColFamily          = "Product Family"
	ColProductType     = "Product Type"
	ColProductModel    = "Product Model"
	ColSofaDirection   = "Sofa Direction"
	ColUpholsteryType  = "Upholstery Type"
	ColUpholsteryColor = "Upholstery Color"
	ColBaseColor       = "Base Color"
	ColMarket          = "Market"
	ColSwatchURL       = "Image URL swatch"

	// ColDisplayName is derived, never read from the source.
	ColDisplayName = "Product Display Name"
)

// Fields lists every column the catalog must carry.
var Fields = []sheet.FieldSpec{
	{Name: ColItemNo, Required: true},
	{Name: ColArticleNo, Required: true},
	{Name: ColFamily, Required: true},
	{Name: ColProductType, Required: true},
	{Name: ColProductModel, Required: true},
	{Name: ColSofaDirection, Required: true},
	{Name: ColUpholsteryType, Required: true},
	{Name: ColUpholsteryColor, Required: true},
	{Name: ColBaseColor, Required: true},
	{Name: ColMarket, Required: true},
	{Name: ColSwatchURL, Required: true},
}

// chaiseLongue is the only product type whose display name carries the sofa direction.
const chaiseLongue = "SOFA CHAISE LONGUE"

// UnnamedProduct is the display name of a row without type or model.
const UnnamedProduct = "Unnamed Product"

// Row is one SKU.
type Row struct {
	ItemNo          string
	ArticleNo       string
	Family          string
	ProductType     string
	ProductModel    string
	SofaDirection   string
	UpholsteryType  string
	UpholsteryColor string
	BaseColor       string // "" when the SKU has no base
	Market          string
	SwatchURL       string

	// fields holds every source column verbatim, keyed by lowercased header.
	fields map[string]string
}

// Product returns the row's product display name.
func (r Row) Product() string {
	return DisplayName(r.ProductType, r.ProductModel, r.SofaDirection)
}

// Key returns the generic combination this row belongs to.
func (r Row) Key() Key {
	return Key{
		Family:          r.Family,
		Product:         r.Product(),
		UpholsteryType:  r.UpholsteryType,
		UpholsteryColor: r.UpholsteryColor,
	}
}

// Field returns the source value of the named column, matched
// case-insensitively. ok is false when the catalog has no such column.
func (r Row) Field(name string) (value string, ok bool) {
	value, ok = r.fields[strings.ToLower(strings.TrimSpace(name))]
	return value, ok
}

// Catalog is the complete, unfiltered SKU table.
type Catalog struct {
	Rows []Row

	byItem map[string]int
}

// Item returns the first row carrying itemNo.
func (c *Catalog) Item(itemNo string) (Row, bool) {
	i, ok := c.byItem[strings.TrimSpace(itemNo)]
	if !ok {
		return Row{}, false
	}
	return c.Rows[i], true
}

// Len returns the number of SKU rows.
func (c *Catalog) Len() int {
	return len(c.Rows)
}

// Parse validates the catalog header and converts every data row.
// A missing required column is fatal and the error names all of them.
// Rows without an item number cannot be exported and are skipped. Of rows
// sharing an item number only the first is kept.
func Parse(s *sheet.Sheet) (*Catalog, error) {
	idx, err := sheet.ValidateHeaders(s.Headers, Fields)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", s.Name, err)
	}

	c := &Catalog{
		Rows:   make([]Row, 0, len(s.Rows)),
		byItem: make(map[string]int, len(s.Rows)),
	}

	var skipped, duplicates int
	for _, raw := range s.Rows {
		row := parseRow(idx, s.Headers, raw)
		if row.ItemNo == "" {
			skipped++
			continue
		}

		if !c.add(row) {
			duplicates++
		}
	}

	if skipped > 0 {
		slog.Debug("catalog rows without item number skipped", "sheet", s.Name, "count", skipped)
	}
	if duplicates > 0 {
		slog.Warn("duplicate item numbers in catalog dropped, first row wins", "sheet", s.Name, "count", duplicates)
	}

	return c, nil
}

func parseRow(idx sheet.HeaderIndex, headers, raw []string) Row {
	row := Row{
		ItemNo:          idx.Cell(raw, ColItemNo),
		ArticleNo:       idx.Cell(raw, ColArticleNo),
		Family:          idx.Cell(raw, ColFamily),
		ProductType:     idx.Cell(raw, ColProductType),
		ProductModel:    idx.Cell(raw, ColProductModel),
		SofaDirection:   idx.Cell(raw, ColSofaDirection),
		UpholsteryType:  idx.Cell(raw, ColUpholsteryType),
		UpholsteryColor: idx.Cell(raw, ColUpholsteryColor),
		BaseColor:       CleanBase(idx.Cell(raw, ColBaseColor)),
		Market:          idx.Cell(raw, ColMarket),
		SwatchURL:       idx.Cell(raw, ColSwatchURL),
		fields:          make(map[string]string, len(headers)+1),
	}

	for name, pos := range idx {
		if pos < len(raw) {
			row.fields[name] = raw[pos]
		} else {
			row.fields[name] = ""
		}
	}
	row.fields[strings.ToLower(ColDisplayName)] = row.Product()

	return row
}

// NewRow builds a row from column values keyed by header name. It is the
// in-memory counterpart of Parse for callers that already hold typed data.
func NewRow(values map[string]string) Row {
	headers := make([]string, 0, len(values))
	raw := make([]string, 0, len(values))
	for k, v := range values {
		headers = append(headers, k)
		raw = append(raw, v)
	}
	return parseRow(sheet.MakeHeaderIndex(headers), headers, raw)
}

// New builds a Catalog from rows that are already parsed.
// Duplicate item numbers are dropped the same way Parse drops them.
func New(rows []Row) *Catalog {
	c := &Catalog{Rows: make([]Row, 0, len(rows)), byItem: make(map[string]int, len(rows))}
	for _, r := range rows {
		c.add(r)
	}
	return c
}

// add appends row unless its item number is already present.
func (c *Catalog) add(row Row) bool {
	if _, seen := c.byItem[row.ItemNo]; seen {
		return false
	}
	c.byItem[row.ItemNo] = len(c.Rows)
	c.Rows = append(c.Rows, row)
	return true
}

// IsNull reports whether v is empty or one of the spreadsheet null
// spellings (N/A, NaN, None), ignoring case and surrounding space.
func IsNull(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "N/A", "NAN", "NONE":
		return true
	}
	return false
}

// CleanBase returns the trimmed base color, or "" when it is null-like.
func CleanBase(v string) string {
	if IsNull(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

// DisplayName derives the product display name: type and model joined by
// " - ", plus the sofa direction for chaise longues only. Null-like parts
// are left out; with nothing left the result is UnnamedProduct.
func DisplayName(productType, productModel, sofaDirection string) string {
	parts := make([]string, 0, 3)
	if !IsNull(productType) {
		parts = append(parts, strings.TrimSpace(productType))
	}
	if !IsNull(productModel) {
		parts = append(parts, strings.TrimSpace(productModel))
	}
	if strings.EqualFold(strings.TrimSpace(productType), chaiseLongue) && !IsNull(sofaDirection) {
		parts = append(parts, strings.TrimSpace(sofaDirection))
	}

	if len(parts) == 0 {
		return UnnamedProduct
	}
	return strings.Join(parts, " - ")
}
