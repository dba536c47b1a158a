package selection

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/JonMunkholm/m2o/internal/catalog"
)

func row(item, typ, uphType, color, base string) catalog.Row {
	return catalog.NewRow(map[string]string{
		catalog.ColItemNo:          item,
		catalog.ColArticleNo:       "A" + item,
		catalog.ColFamily:          "Sofa",
		catalog.ColProductType:     typ,
		catalog.ColUpholsteryType:  uphType,
		catalog.ColUpholsteryColor: color,
		catalog.ColBaseColor:       base,
		catalog.ColMarket:          "EU",
	})
}

var (
	keyRed   = catalog.Key{Family: "Sofa", Product: "3-Seater", UpholsteryType: "Fabric", UpholsteryColor: "Red"}
	keyBase  = catalog.Key{Family: "Sofa", Product: "2-Seater", UpholsteryType: "Fabric", UpholsteryColor: "Red"}
	keyBlue  = catalog.Key{Family: "Sofa", Product: "2-Seater", UpholsteryType: "Fabric", UpholsteryColor: "Blue"}
	keyOther = catalog.Key{Family: "Sofa", Product: "Pouf", UpholsteryType: "Fabric", UpholsteryColor: "Red"}
)

func testIndex() *catalog.Index {
	return catalog.Build([]catalog.Row{
		row("1", "3-Seater", "Fabric", "Red", ""),
		row("2", "2-Seater", "Fabric", "Red", "Oak"),
		row("3", "2-Seater", "Fabric", "Red", "Black"),
		row("4", "2-Seater", "Fabric", "Blue", "Oak"),
		row("5", "2-Seater", "Fabric", "Blue", "Walnut"),
		row("6", "Pouf", "Fabric", "Red", "Oak"),
	})
}

// ============================================================================
// Toggle Tests
// ============================================================================

func TestToggle(t *testing.T) {
	ix := testIndex()
	s := New()

	if err := s.Toggle(ix, keyRed, true); err != nil {
		t.Fatalf("Toggle on: %v", err)
	}
	if !s.IsSelected(keyRed) || s.Len() != 1 {
		t.Fatal("combination should be selected")
	}

	missing := catalog.Key{Family: "Sofa", Product: "3-Seater", UpholsteryType: "Fabric", UpholsteryColor: "Green"}
	if err := s.Toggle(ix, missing, true); !errors.Is(err, ErrUnknownCombination) {
		t.Fatalf("expected ErrUnknownCombination, got %v", err)
	}

	if err := s.Toggle(ix, keyRed, false); err != nil {
		t.Fatalf("Toggle off: %v", err)
	}
	if s.IsSelected(keyRed) || s.Len() != 0 {
		t.Error("combination should be deselected")
	}
	if err := s.Toggle(ix, keyRed, false); err != nil {
		t.Errorf("toggling off an unselected key should be a no-op, got %v", err)
	}
}

func TestToggle_Cascade(t *testing.T) {
	ix := testIndex()
	s := New()

	_ = s.Toggle(ix, keyBase, true)
	if err := s.SetChosenBases(keyBase, []string{"Oak"}); err != nil {
		t.Fatal(err)
	}

	_ = s.Toggle(ix, keyBase, false)
	if got := s.ChosenBases(keyBase); len(got) != 0 {
		t.Fatalf("chosen bases survived toggle off: %v", got)
	}

	_ = s.Toggle(ix, keyBase, true)
	if got := s.ChosenBases(keyBase); len(got) != 0 {
		t.Errorf("stale bases after off/on cycle: %v", got)
	}
	if e := s.Entries()[0]; strings.Join(e.Bases, ",") != "Oak,Black" {
		t.Errorf("available bases = %v", e.Bases)
	}
}

func TestToggle_RefreshPrunesStaleBases(t *testing.T) {
	s := New()
	_ = s.Toggle(testIndex(), keyBase, true)
	_ = s.SetChosenBases(keyBase, []string{"Oak", "Black"})

	// Same combination in a catalog that no longer offers Black.
	fresh := catalog.Build([]catalog.Row{
		row("2", "2-Seater", "Fabric", "Red", "Oak"),
		row("7", "2-Seater", "Fabric", "Red", "White"),
	})
	if err := s.Toggle(fresh, keyBase, true); err != nil {
		t.Fatal(err)
	}
	if got := s.ChosenBases(keyBase); strings.Join(got, ",") != "Oak" {
		t.Errorf("chosen bases = %v, want [Oak]", got)
	}
}

// ============================================================================
// SetChosenBases Tests
// ============================================================================

func TestSetChosenBases(t *testing.T) {
	ix := testIndex()
	s := New()
	_ = s.Toggle(ix, keyRed, true)
	_ = s.Toggle(ix, keyBase, true)

	tests := []struct {
		name    string
		key     catalog.Key
		bases   []string
		wantErr error
		want    string
	}{
		{"not selected", keyBlue, []string{"Oak"}, ErrNotSelected, ""},
		{"no choice needed", keyRed, []string{"Oak"}, ErrBaseChoiceNotRequired, ""},
		{"valid subset", keyBase, []string{"Black"}, nil, "Black"},
		{"out of range rejected", keyBase, []string{"Oak", "Walnut"}, ErrBaseNotAvailable, "Black"},
		{"duplicates collapse", keyBase, []string{"Oak", "Black", "Oak"}, nil, "Oak,Black"},
		{"empty clears", keyBase, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetChosenBases(tt.key, tt.bases)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := strings.Join(s.ChosenBases(keyBase), ","); got != tt.want {
				t.Errorf("chosen = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Column / Family / Review Tests
// ============================================================================

func TestToggleColumn(t *testing.T) {
	ix := testIndex()
	s := New()

	n, err := s.ToggleColumn(ix, "Sofa", "Fabric", "Red", true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || !s.IsSelected(keyRed) || !s.IsSelected(keyBase) || !s.IsSelected(keyOther) {
		t.Fatalf("column select toggled %d, entries %d", n, s.Len())
	}
	if s.IsSelected(keyBlue) {
		t.Error("other column should be untouched")
	}

	_ = s.SetChosenBases(keyBase, []string{"Oak"})

	if _, err := s.ToggleColumn(ix, "Sofa", "Fabric", "Red", false); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("column deselect left %d entries", s.Len())
	}
	if got := s.ChosenBases(keyBase); len(got) != 0 {
		t.Errorf("column deselect left chosen bases %v", got)
	}
}

func TestApplyBase(t *testing.T) {
	ix := testIndex()
	s := New()
	for _, k := range []catalog.Key{keyRed, keyBase, keyBlue} {
		_ = s.Toggle(ix, k, true)
	}

	if n := s.ApplyBase("Sofa", "Oak", true); n != 2 {
		t.Errorf("ApplyBase on changed %d, want 2", n)
	}
	if n := s.ApplyBase("Sofa", "Oak", true); n != 0 {
		t.Errorf("second ApplyBase on changed %d, want 0", n)
	}
	if n := s.ApplyBase("Sofa", "Walnut", true); n != 1 {
		t.Errorf("Walnut is only offered by the blue combination, changed %d", n)
	}
	if got := strings.Join(s.ChosenBases(keyBlue), ","); got != "Oak,Walnut" {
		t.Errorf("blue chosen = %q", got)
	}

	if n := s.ApplyBase("Sofa", "Oak", false); n != 2 {
		t.Errorf("ApplyBase off changed %d, want 2", n)
	}
	if got := s.ChosenBases(keyBase); len(got) != 0 {
		t.Errorf("red chosen = %v, want none", got)
	}
	if !s.IsSelected(keyBase) {
		t.Error("removing a base by family must not deselect")
	}
}

func TestRemoveItem(t *testing.T) {
	ix := testIndex()
	s := New()
	_ = s.Toggle(ix, keyRed, true)
	_ = s.Toggle(ix, keyBase, true)
	_ = s.SetChosenBases(keyBase, []string{"Oak", "Black"})

	if err := s.RemoveItem(keyBase, "Oak", true); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.ChosenBases(keyBase), ","); got != "Black" || !s.IsSelected(keyBase) {
		t.Errorf("after first removal chosen = %q", got)
	}

	_ = s.RemoveItem(keyBase, "Black", true)
	if s.IsSelected(keyBase) {
		t.Error("removing the last base should deselect the combination")
	}

	_ = s.RemoveItem(keyRed, "", false)
	if s.IsSelected(keyRed) {
		t.Error("removing a single-resolution item should deselect it")
	}

	if err := s.RemoveItem(keyRed, "", false); !errors.Is(err, ErrNotSelected) {
		t.Errorf("expected ErrNotSelected, got %v", err)
	}
}

// TestCascade_RandomSequences checks that no sequence of operations leaves
// chosen bases behind for an unselected combination.
func TestCascade_RandomSequences(t *testing.T) {
	ix := testIndex()
	keys := ix.Keys()
	bases := []string{"Oak", "Black", "Walnut"}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		s := New()
		for step := 0; step < 40; step++ {
			k := keys[rng.Intn(len(keys))]
			b := bases[rng.Intn(len(bases))]
			switch rng.Intn(6) {
			case 0, 1:
				_ = s.Toggle(ix, k, rng.Intn(2) == 0)
			case 2:
				_ = s.SetChosenBases(k, []string{b})
			case 3:
				_, _ = s.ToggleColumn(ix, k.Family, k.UpholsteryType, k.UpholsteryColor, rng.Intn(2) == 0)
			case 4:
				s.ApplyBase(k.Family, b, rng.Intn(2) == 0)
			case 5:
				_ = s.RemoveItem(k, b, true)
			}

			for ck := range s.chosen {
				if !s.IsSelected(ck) {
					t.Fatalf("run %d step %d: chosen bases for unselected %+v", run, step, ck)
				}
			}
			if len(s.order) != len(s.entries) {
				t.Fatalf("run %d step %d: order has %d keys, entries %d", run, step, len(s.order), len(s.entries))
			}
		}
	}
}
