package pricing

import (
	"errors"
	"testing"

	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/sheet"
)

// ============================================================================
// NormalizeKey Tests
// ============================================================================

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"  ab123 ", "AB123", true},
		{"5000123.0", "5000123", true},
		{"5000123.05", "5000123.05", true},
		{"", "", false},
		{"nan", "", false},
		{"None", "", false},
		{"N/A", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeKey(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeKey(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	p := ParsePrice(" 1299.50 ")
	if !p.Numeric || p.Value.String() != "1299.5" || p.Raw != "1299.50" {
		t.Errorf("ParsePrice numeric = %+v", p)
	}

	p = ParsePrice("on request")
	if p.Numeric || p.Raw != "on request" {
		t.Errorf("ParsePrice text = %+v", p)
	}
}

// ============================================================================
// Table / Index Tests
// ============================================================================

func wholesaleSheet() *sheet.Sheet {
	return &sheet.Sheet{
		Name:    "Price matrix wholesale",
		Headers: []string{"Article No", "DKK", "EURO", "", "SEK"},
		Rows: [][]string{
			{"A1.0", "1000", "134.5", "x", ""},
			{"a1", "9999", "9999", "", "9999"},
			{"A2", "500"},
			{"nan", "1"},
		},
	}
}

func TestBuildTable(t *testing.T) {
	tbl, err := BuildTable(Wholesale, wholesaleSheet())
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (duplicate and null key dropped)", tbl.Len())
	}
	if len(tbl.Currencies) != 3 {
		t.Errorf("Currencies = %v, blank header should be skipped", tbl.Currencies)
	}
	if !tbl.HasCurrency("sek") || tbl.HasCurrency("GBP") {
		t.Error("HasCurrency mismatch")
	}
}

func TestBuildTable_NoKeyColumn(t *testing.T) {
	_, err := BuildTable(Retail, &sheet.Sheet{Name: "x", Headers: []string{""}})
	if !errors.Is(err, ErrNoKeyColumn) {
		t.Fatalf("expected ErrNoKeyColumn, got %v", err)
	}
}

func TestLookup_Outcomes(t *testing.T) {
	tbl, err := BuildTable(Wholesale, wholesaleSheet())
	if err != nil {
		t.Fatal(err)
	}
	ix := NewIndex()
	ix.Add(market.EU, tbl)

	tests := []struct {
		name    string
		segment market.Segment
		kind    Kind
		article string
		cur     string
		want    Outcome
		text    string
	}{
		{"found", market.EU, Wholesale, "A1", "DKK", Found, "1000"},
		{"found after key normalization", market.EU, Wholesale, " a1.0", "euro", Found, "134.5"},
		{"first duplicate wins", market.EU, Wholesale, "A1", "SEK", NoPrice, SentinelNoPrice},
		{"short row reads as no price", market.EU, Wholesale, "A2", "EURO", NoPrice, SentinelNoPrice},
		{"missing key", market.EU, Wholesale, "ZZZ", "DKK", MissingKey, SentinelMissingKey},
		{"null article", market.EU, Wholesale, "", "DKK", MissingKey, SentinelMissingKey},
		{"currency absent", market.EU, Wholesale, "A1", "NOK", CurrencyAbsent, SentinelCurrencyAbsent},
		{"retail unavailable", market.EU, Retail, "A1", "DKK", TableUnavailable, "Retail Matrix Empty/Error"},
		{"segment unavailable", market.UKIE, Wholesale, "A1", "GBP", TableUnavailable, "Wholesale Matrix Empty/Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ix.Lookup(tt.segment, tt.kind, tt.article, tt.cur)
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.want)
			}
			if res.Text() != tt.text {
				t.Errorf("Text() = %q, want %q", res.Text(), tt.text)
			}
		})
	}
}

func TestLookup_EmptyTableUnavailable(t *testing.T) {
	tbl, err := BuildTable(Retail, &sheet.Sheet{Name: "r", Headers: []string{"Article No", "GBP"}})
	if err != nil {
		t.Fatal(err)
	}
	ix := NewIndex()
	ix.Add(market.UKIE, tbl)

	if ix.Available(market.UKIE, Retail) {
		t.Error("empty table should not be available")
	}
	if res := ix.Lookup(market.UKIE, Retail, "A1", "GBP"); res.Outcome != TableUnavailable {
		t.Errorf("Outcome = %s, want table unavailable", res.Outcome)
	}
}
