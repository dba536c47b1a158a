package catalog

import (
	"log/slog"
	"sort"
)

// Key identifies a generic combination: one row of the selection matrix.
type Key struct {
	Family          string `json:"family"`
	Product         string `json:"product"`
	UpholsteryType  string `json:"upholstery_type"`
	UpholsteryColor string `json:"upholstery_color"`
}

// Variant is the concrete SKU a combination resolves to when no base
// choice is needed.
type Variant struct {
	ItemNo    string
	ArticleNo string
	Base      string // "" when the SKU has no base
}

// Group is everything the index knows about one combination.
type Group struct {
	Key Key

	// Bases are the distinct non-null base colors, in first-seen order.
	Bases []string

	// Representative is the first row of the group, used for swatch and display.
	Representative Row

	// Single is set when the group has at most one base.
	Single *Variant
}

// RequiresBaseChoice reports whether the user must pick base colors before
// the combination resolves.
func (g *Group) RequiresBaseChoice() bool {
	return len(g.Bases) > 1
}

// HasBase reports whether base is one of the group's bases.
func (g *Group) HasBase(base string) bool {
	for _, b := range g.Bases {
		if b == base {
			return true
		}
	}
	return false
}

// Index groups rows by generic combination.
type Index struct {
	groups    map[Key]*Group
	order     []Key
	ambiguous int
}

type variantKey struct {
	key  Key
	base string
}

// Build groups rows by Key. Rows that repeat an existing (key, base) pair
// are ties: the first row wins and the rest are counted in Ambiguous.
func Build(rows []Row) *Index {
	ix := &Index{groups: make(map[Key]*Group)}
	seen := make(map[variantKey]bool, len(rows))

	for _, r := range rows {
		k := r.Key()
		g, ok := ix.groups[k]
		if !ok {
			g = &Group{Key: k, Representative: r}
			ix.groups[k] = g
			ix.order = append(ix.order, k)
		}

		vk := variantKey{key: k, base: r.BaseColor}
		if seen[vk] {
			ix.ambiguous++
			continue
		}
		seen[vk] = true

		if r.BaseColor != "" {
			g.Bases = append(g.Bases, r.BaseColor)
		}
		if g.Single == nil {
			g.Single = &Variant{ItemNo: r.ItemNo, ArticleNo: r.ArticleNo, Base: r.BaseColor}
		}
	}

	for _, g := range ix.groups {
		switch {
		case g.RequiresBaseChoice():
			g.Single = nil
		case len(g.Bases) == 1 && g.Single.Base != g.Bases[0]:
			// A base-less row came first; prefer the row carrying the one base.
			for _, r := range rows {
				if r.Key() == g.Key && r.BaseColor == g.Bases[0] {
					g.Single = &Variant{ItemNo: r.ItemNo, ArticleNo: r.ArticleNo, Base: r.BaseColor}
					break
				}
			}
		}
	}

	if ix.ambiguous > 0 {
		slog.Warn("catalog rows share a combination and base, first row wins", "count", ix.ambiguous)
	}

	return ix
}

// Lookup returns the group for key.
func (ix *Index) Lookup(key Key) (*Group, bool) {
	g, ok := ix.groups[key]
	return g, ok
}

// Len returns the number of combinations.
func (ix *Index) Len() int {
	return len(ix.groups)
}

// Ambiguous returns how many rows were ignored as ties.
func (ix *Index) Ambiguous() int {
	return ix.ambiguous
}

// Keys returns every combination in first-seen order.
func (ix *Index) Keys() []Key {
	out := make([]Key, len(ix.order))
	copy(out, ix.order)
	return out
}

// Families returns the distinct product families, sorted.
func (ix *Index) Families() []string {
	set := make(map[string]struct{})
	for _, k := range ix.order {
		set[k.Family] = struct{}{}
	}
	return sortedKeys(set)
}

// BasesInFamily returns every base color offered by any combination of
// family, sorted.
func (ix *Index) BasesInFamily(family string) []string {
	set := make(map[string]struct{})
	for _, k := range ix.order {
		if k.Family != family {
			continue
		}
		for _, b := range ix.groups[k].Bases {
			set[b] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Column is one upholstery column of a family matrix.
type Column struct {
	UpholsteryType  string `json:"upholstery_type"`
	UpholsteryColor string `json:"upholstery_color"`
	SwatchURL       string `json:"swatch_url,omitempty"`
}

// Cell is the availability of one (product, column) pair.
type Cell struct {
	Available          bool     `json:"available"`
	RequiresBaseChoice bool     `json:"requires_base_choice,omitempty"`
	Bases              []string `json:"bases,omitempty"`
}

// Matrix is the selection grid of one family: products down, upholstery
// columns across.
type Matrix struct {
	Family   string   `json:"family"`
	Products []string `json:"products"`
	Columns  []Column `json:"columns"`
	Cells    [][]Cell `json:"cells"`
}

// Key returns the combination at (product, column).
func (m *Matrix) Key(product string, col Column) Key {
	return Key{
		Family:          m.Family,
		Product:         product,
		UpholsteryType:  col.UpholsteryType,
		UpholsteryColor: col.UpholsteryColor,
	}
}

// Matrix builds the grid for family. Products and columns are sorted; a
// column's swatch is the first non-empty swatch seen for it. ok is false
// for an unknown family.
func (ix *Index) Matrix(family string) (*Matrix, bool) {
	products := make(map[string]struct{})
	type colKey struct{ t, c string }
	swatches := make(map[colKey]string)

	for _, k := range ix.order {
		if k.Family != family {
			continue
		}
		products[k.Product] = struct{}{}
		ck := colKey{k.UpholsteryType, k.UpholsteryColor}
		if swatches[ck] == "" {
			swatches[ck] = ix.groups[k].Representative.SwatchURL
		}
	}
	if len(products) == 0 {
		return nil, false
	}

	m := &Matrix{Family: family, Products: sortedKeys(products)}
	for ck, url := range swatches {
		m.Columns = append(m.Columns, Column{UpholsteryType: ck.t, UpholsteryColor: ck.c, SwatchURL: url})
	}
	sort.Slice(m.Columns, func(i, j int) bool {
		a, b := m.Columns[i], m.Columns[j]
		if a.UpholsteryType != b.UpholsteryType {
			return a.UpholsteryType < b.UpholsteryType
		}
		return a.UpholsteryColor < b.UpholsteryColor
	})

	m.Cells = make([][]Cell, len(m.Products))
	for i, p := range m.Products {
		m.Cells[i] = make([]Cell, len(m.Columns))
		for j, col := range m.Columns {
			g, ok := ix.Lookup(m.Key(p, col))
			if !ok {
				continue
			}
			cell := Cell{Available: true, RequiresBaseChoice: g.RequiresBaseChoice()}
			if cell.RequiresBaseChoice {
				cell.Bases = append([]string(nil), g.Bases...)
			}
			m.Cells[i][j] = cell
		}
	}

	return m, true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
