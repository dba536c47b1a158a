// Package resolver projects a selection set onto concrete SKUs.
//
// Resolve is a pure function of the selection and the market-filtered
// catalog rows: it is recomputed on demand and never cached, so the
// result is correct for any order of toggles that produced the set.
package resolver

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/selection"
)

// Item is one SKU bound for export.
type Item struct {
	ItemNo      string      `json:"item_no"`
	ArticleNo   string      `json:"article_no"`
	Description string      `json:"description"`
	ChosenBase  string      `json:"chosen_base,omitempty"`
	HasBase     bool        `json:"has_base"`
	Key         catalog.Key `json:"key"`
}

type dedupKey struct {
	itemNo  string
	base    string
	hasBase bool
}

func (it Item) dedupKey() dedupKey {
	return dedupKey{itemNo: it.ItemNo, base: it.ChosenBase, hasBase: it.HasBase}
}

// Issue is a selected combination and base that has no matching row.
type Issue struct {
	Key  catalog.Key `json:"key"`
	Base string      `json:"base"`
}

func (i Issue) String() string {
	return fmt.Sprintf("no SKU for %s with base %q", describe(i.Key, "", false), i.Base)
}

// Result is the resolved list plus the data problems found on the way.
type Result struct {
	Items  []Item  `json:"items"`
	Issues []Issue `json:"issues,omitempty"`
}

type variantKey struct {
	key  catalog.Key
	base string
}

// Resolve turns set into SKUs using rows, the catalog rows of the current
// market. Combinations without a base choice yield their single SKU.
// Combinations with a base choice yield one SKU per chosen base, taking the
// first row on ties; a chosen base with no row becomes an Issue. Items are
// deduplicated by (item number, base) in first-seen order.
func Resolve(set *selection.Set, rows []catalog.Row) Result {
	var byVariant map[variantKey]catalog.Row

	var res Result
	seen := make(map[dedupKey]bool)
	add := func(it Item) {
		if k := it.dedupKey(); !seen[k] {
			seen[k] = true
			res.Items = append(res.Items, it)
		}
	}

	for _, e := range set.Entries() {
		if !e.RequiresBaseChoice {
			if e.Single == nil {
				continue
			}
			add(Item{
				ItemNo:      e.Single.ItemNo,
				ArticleNo:   e.Single.ArticleNo,
				Description: describe(e.Key, e.Single.Base, e.Single.Base != ""),
				ChosenBase:  e.Single.Base,
				HasBase:     e.Single.Base != "",
				Key:         e.Key,
			})
			continue
		}

		if len(e.Chosen) == 0 {
			continue
		}
		if byVariant == nil {
			byVariant = indexRows(rows)
		}

		for _, base := range e.Chosen {
			r, ok := byVariant[variantKey{key: e.Key, base: base}]
			if !ok {
				res.Issues = append(res.Issues, Issue{Key: e.Key, Base: base})
				continue
			}
			add(Item{
				ItemNo:      r.ItemNo,
				ArticleNo:   r.ArticleNo,
				Description: describe(e.Key, base, true),
				ChosenBase:  base,
				HasBase:     true,
				Key:         e.Key,
			})
		}
	}

	return res
}

// indexRows maps (combination, base) to the first row carrying it.
func indexRows(rows []catalog.Row) map[variantKey]catalog.Row {
	m := make(map[variantKey]catalog.Row, len(rows))
	for _, r := range rows {
		if r.BaseColor == "" {
			continue
		}
		vk := variantKey{key: r.Key(), base: r.BaseColor}
		if _, ok := m[vk]; !ok {
			m[vk] = r
		}
	}
	return m
}

// describe formats "family / product / upholstery type / upholstery color",
// with " / Base: X" appended when a base applies.
func describe(k catalog.Key, base string, hasBase bool) string {
	var b strings.Builder
	b.WriteString(k.Family)
	b.WriteString(" / ")
	b.WriteString(k.Product)
	b.WriteString(" / ")
	b.WriteString(k.UpholsteryType)
	b.WriteString(" / ")
	b.WriteString(k.UpholsteryColor)
	if hasBase {
		b.WriteString(" / Base: ")
		b.WriteString(base)
	}
	return b.String()
}
