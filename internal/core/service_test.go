package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/export"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/pricing"
	"github.com/JonMunkholm/m2o/internal/sheet"
)

// ============================================================================
// Fixtures
// ============================================================================

func sku(item, article, family, ptype, uphType, uphColor, base, mkt string) catalog.Row {
	return catalog.NewRow(map[string]string{
		catalog.ColItemNo:          item,
		catalog.ColArticleNo:       article,
		catalog.ColFamily:          family,
		catalog.ColProductType:     ptype,
		catalog.ColProductModel:    "Oslo",
		catalog.ColSofaDirection:   "N/A",
		catalog.ColUpholsteryType:  uphType,
		catalog.ColUpholsteryColor: uphColor,
		catalog.ColBaseColor:       base,
		catalog.ColMarket:          mkt,
		catalog.ColSwatchURL:       "",
		"EAN":                      "57" + item,
	})
}

func priceTable(t *testing.T, kind pricing.Kind, headers []string, rows ...[]string) *pricing.Table {
	t.Helper()
	tbl, err := pricing.BuildTable(kind, &sheet.Sheet{Name: kind.String(), Headers: headers, Rows: rows})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	return tbl
}

// testData returns a small two-market catalog:
//
//	100  Sofa 3-Seater Fabric/Red, no base, EU
//	110  Chair Fabric/Blue, base Oak, EU
//	111  Chair Fabric/Blue, base Black, EU
//	200  Sofa 3-Seater Fabric/Red, no base, UK
func testData(t *testing.T) *Data {
	t.Helper()

	rows := []catalog.Row{
		sku("100", "A100", "Sofa", "3-Seater", "Fabric", "Red", "", "EU"),
		sku("110", "A110", "Chair", "Dining Chair", "Fabric", "Blue", "Oak", "EU"),
		sku("111", "A111", "Chair", "Dining Chair", "Fabric", "Blue", "Black", "EU"),
		sku("200", "A200", "Sofa", "3-Seater", "Fabric", "Red", "", "UK"),
	}

	p, err := market.NewPartitioner(market.DefaultRules)
	if err != nil {
		t.Fatalf("NewPartitioner: %v", err)
	}

	prices := pricing.NewIndex()
	prices.Add(market.EU, priceTable(t, pricing.Wholesale, []string{"Article No", "DKK", "SEK"},
		[]string{"A100", "1000", "1400"},
		[]string{"A110", "500", ""},
	))
	prices.Add(market.EU, priceTable(t, pricing.Retail, []string{"Article No", "DKK"},
		[]string{"A100", "2500"},
	))
	prices.Add(market.UKIE, priceTable(t, pricing.Wholesale, []string{"Article No", "GBP"},
		[]string{"A200", "99.5"},
	))

	return &Data{
		Catalog:     catalog.New(rows),
		Prices:      prices,
		Partitioner: p,
		Template:    []string{"Item No", "EAN", "Wholesale price", "Retail price"},
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc, err := NewService(testData(t), opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func newTestSession(t *testing.T, svc *Service, currency string) *Session {
	t.Helper()
	sess, err := svc.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if currency != "" {
		if err := sess.SelectCurrency(currency); err != nil {
			t.Fatalf("SelectCurrency(%q): %v", currency, err)
		}
	}
	return sess
}

func keyOf(r catalog.Row) catalog.Key { return r.Key() }

// ============================================================================
// Service Tests
// ============================================================================

func TestNewService_IncompleteData(t *testing.T) {
	if _, err := NewService(nil, Options{}); err == nil {
		t.Error("expected error for nil data")
	}
	if _, err := NewService(&Data{}, Options{}); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestService_Views(t *testing.T) {
	svc := newTestService(t, Options{})

	eu := svc.View(market.EU)
	if len(eu.Rows) != 3 {
		t.Errorf("EU rows = %d, want 3", len(eu.Rows))
	}
	uk := svc.View(market.UKIE)
	if len(uk.Rows) != 1 || uk.Rows[0].ItemNo != "200" {
		t.Errorf("UK/IE rows = %+v, want only item 200", uk.Rows)
	}
}

func TestService_Currencies(t *testing.T) {
	svc := newTestService(t, Options{})

	got := svc.Currencies()
	want := []string{"DKK", "GBP", "SEK"}
	if len(got) != len(want) {
		t.Fatalf("Currencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Currencies()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, Options{SessionTTL: time.Hour, Now: clk.Now})

	sess := newTestSession(t, svc, "")

	got, err := svc.Session(sess.ID.String())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got != sess {
		t.Error("Session returned a different session")
	}

	if _, err := svc.Session("not-a-uuid"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("malformed id: err = %v, want ErrSessionNotFound", err)
	}

	clk.now = clk.now.Add(2 * time.Hour)
	if _, err := svc.Session(sess.ID.String()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session: err = %v, want ErrSessionNotFound", err)
	}

	if n := svc.SweepSessions(clk.now); n != 1 {
		t.Errorf("SweepSessions removed %d, want 1", n)
	}
	if svc.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", svc.SessionCount())
	}
}

func TestService_SessionTouchKeepsAlive(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, Options{SessionTTL: time.Hour, Now: clk.Now})
	sess := newTestSession(t, svc, "")

	for i := 0; i < 3; i++ {
		clk.now = clk.now.Add(45 * time.Minute)
		if _, err := svc.Session(sess.ID.String()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if n := svc.SweepSessions(clk.now); n != 0 {
		t.Errorf("SweepSessions removed %d, want 0", n)
	}
}

func TestService_MaxSessions(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, Options{SessionTTL: time.Hour, MaxSessions: 2, Now: clk.Now})

	newTestSession(t, svc, "")
	newTestSession(t, svc, "")
	if _, err := svc.NewSession(); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("third session: err = %v, want ErrTooManySessions", err)
	}

	// Expired sessions are swept to make room.
	clk.now = clk.now.Add(2 * time.Hour)
	if _, err := svc.NewSession(); err != nil {
		t.Fatalf("after expiry: %v", err)
	}
	if svc.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", svc.SessionCount())
	}
}

func TestService_DeleteSession(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "")

	if err := svc.DeleteSession(sess.ID.String()); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := svc.DeleteSession(sess.ID.String()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete: err = %v, want ErrSessionNotFound", err)
	}
	if n := svc.SessionCount(); n != 0 {
		t.Errorf("SessionCount = %d, want 0", n)
	}
}

func TestStartSessionSweeper_StopsOnCancel(t *testing.T) {
	svc := newTestService(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartSessionSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

// ============================================================================
// Session Tests
// ============================================================================

func TestSession_RequiresCurrency(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "")

	if _, err := sess.Families(); !errors.Is(err, ErrNoCurrency) {
		t.Errorf("Families: err = %v, want ErrNoCurrency", err)
	}
	if err := sess.Toggle(catalog.Key{}, true); !errors.Is(err, ErrNoCurrency) {
		t.Errorf("Toggle: err = %v, want ErrNoCurrency", err)
	}
	if _, err := sess.Review(); !errors.Is(err, ErrNoCurrency) {
		t.Errorf("Review: err = %v, want ErrNoCurrency", err)
	}
	if _, err := sess.GenerateExport(context.Background()); !errors.Is(err, ErrNoCurrency) {
		t.Errorf("GenerateExport: err = %v, want ErrNoCurrency", err)
	}
}

func TestSession_SelectCurrency(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "")

	if err := sess.SelectCurrency("USD"); !errors.Is(err, market.ErrUnknownCurrency) {
		t.Errorf("USD: err = %v, want ErrUnknownCurrency", err)
	}
	if _, _, ok := sess.Currency(); ok {
		t.Error("failed SelectCurrency must not set a currency")
	}

	if err := sess.SelectCurrency(" GBP "); err != nil {
		t.Fatalf("GBP: %v", err)
	}
	cur, seg, ok := sess.Currency()
	if !ok || cur != "GBP" || seg != market.UKIE {
		t.Errorf("Currency() = %q, %v, %v; want GBP, UK/IE, true", cur, seg, ok)
	}
}

func TestSession_SelectCurrency_UsesConfiguredSpelling(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, " dkk ")

	if cur, _, _ := sess.Currency(); cur != "DKK" {
		t.Errorf("Currency() = %q, want DKK", cur)
	}
	if err := sess.Toggle(keyOf(svc.View(market.EU).Rows[0]), true); err != nil {
		t.Fatal(err)
	}

	tbl, err := sess.GenerateExport(context.Background())
	if err != nil {
		t.Fatalf("GenerateExport: %v", err)
	}
	if got := tbl.Columns[tbl.PriceColumn[pricing.Wholesale]]; got != "Wholesale price (DKK)" {
		t.Errorf("wholesale column = %q, want %q", got, "Wholesale price (DKK)")
	}
	if got := export.FileName(tbl.Currency, "xlsx"); got != "masterdata_output_DKK.xlsx" {
		t.Errorf("file name = %q", got)
	}
}

func TestSession_SingleVariant(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")

	if err := sess.Toggle(keyOf(svc.View(market.EU).Rows[0]), true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	res, err := sess.Review()
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	if it := res.Items[0]; it.ItemNo != "100" || it.HasBase {
		t.Errorf("item = %+v, want 100 without base", it)
	}
}

func TestSession_BaseChoice(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")
	chair := keyOf(sku("110", "A110", "Chair", "Dining Chair", "Fabric", "Blue", "Oak", "EU"))

	if err := sess.Toggle(chair, true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	res, _ := sess.Review()
	if len(res.Items) != 0 {
		t.Errorf("no base chosen: items = %d, want 0", len(res.Items))
	}

	tests := []struct {
		name  string
		bases []string
		want  []string
	}{
		{"one base", []string{"Oak"}, []string{"110"}},
		{"two bases", []string{"Oak", "Black"}, []string{"110", "111"}},
		{"cleared", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sess.SetChosenBases(chair, tt.bases); err != nil {
				t.Fatalf("SetChosenBases: %v", err)
			}
			res, err := sess.Review()
			if err != nil {
				t.Fatalf("Review: %v", err)
			}
			if len(res.Items) != len(tt.want) {
				t.Fatalf("items = %+v, want %v", res.Items, tt.want)
			}
			for i, it := range res.Items {
				if it.ItemNo != tt.want[i] || !it.HasBase {
					t.Errorf("item %d = %+v, want %s with base", i, it, tt.want[i])
				}
			}
		})
	}
}

func TestSession_CurrencyChangeClearsSelection(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")

	euSofa := keyOf(svc.View(market.EU).Rows[0])
	if err := sess.Toggle(euSofa, true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	if err := sess.SelectCurrency("GBP"); err != nil {
		t.Fatalf("SelectCurrency: %v", err)
	}
	if st := sess.Snapshot(); len(st.Entries) != 0 {
		t.Errorf("entries after currency change = %d, want 0", len(st.Entries))
	}

	// The UK sofa shares the generic combination; only the UK SKU resolves.
	if err := sess.Toggle(euSofa, true); err != nil {
		t.Fatalf("Toggle in UK: %v", err)
	}
	res, _ := sess.Review()
	if len(res.Items) != 1 || res.Items[0].ItemNo != "200" {
		t.Errorf("items = %+v, want only 200", res.Items)
	}

	// The EU-only chair family is not visible under GBP.
	if _, err := sess.Matrix("Chair"); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("Matrix(Chair): err = %v, want ErrUnknownFamily", err)
	}
}

func TestSession_Matrix(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")

	fams, err := sess.Families()
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if len(fams) != 2 || fams[0] != "Chair" || fams[1] != "Sofa" {
		t.Errorf("Families = %v, want [Chair Sofa]", fams)
	}

	chair := keyOf(sku("110", "A110", "Chair", "Dining Chair", "Fabric", "Blue", "Oak", "EU"))
	if err := sess.Toggle(chair, true); err != nil {
		t.Fatal(err)
	}
	if err := sess.SetChosenBases(chair, []string{"Black"}); err != nil {
		t.Fatal(err)
	}

	m, err := sess.Matrix("Chair")
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(m.Selected) != 1 || len(m.Selected[0]) != 1 || !m.Selected[0][0] {
		t.Errorf("Selected = %v, want [[true]]", m.Selected)
	}
	if got := m.Chosen["0,0"]; len(got) != 1 || got[0] != "Black" {
		t.Errorf("Chosen[0,0] = %v, want [Black]", got)
	}
	if len(m.Bases) != 2 {
		t.Errorf("Bases = %v, want 2 entries", m.Bases)
	}
}

func TestSession_ColumnAndBaseBulk(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")

	n, err := sess.ToggleColumn("Chair", "Fabric", "Blue", true)
	if err != nil || n != 1 {
		t.Fatalf("ToggleColumn = %d, %v; want 1, nil", n, err)
	}
	if n, err := sess.ApplyBase("Chair", "Oak", true); err != nil || n != 1 {
		t.Fatalf("ApplyBase = %d, %v; want 1, nil", n, err)
	}
	if _, err := sess.ApplyBase("Lamp", "Oak", true); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("ApplyBase(Lamp): err = %v, want ErrUnknownFamily", err)
	}

	res, _ := sess.Review()
	if len(res.Items) != 1 || res.Items[0].ChosenBase != "Oak" {
		t.Fatalf("items = %+v, want one Oak item", res.Items)
	}

	// Deselecting the column drops the chosen bases with it.
	if _, err := sess.ToggleColumn("Chair", "Fabric", "Blue", false); err != nil {
		t.Fatal(err)
	}
	if st := sess.Snapshot(); len(st.Entries) != 0 {
		t.Errorf("entries = %+v, want none", st.Entries)
	}
}

func TestSession_RemoveResolvedItem(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")
	chair := keyOf(sku("110", "A110", "Chair", "Dining Chair", "Fabric", "Blue", "Oak", "EU"))

	if err := sess.Toggle(chair, true); err != nil {
		t.Fatal(err)
	}
	if err := sess.SetChosenBases(chair, []string{"Oak", "Black"}); err != nil {
		t.Fatal(err)
	}

	if err := sess.RemoveResolvedItem("110", "Oak", true); err != nil {
		t.Fatalf("RemoveResolvedItem: %v", err)
	}
	res, _ := sess.Review()
	if len(res.Items) != 1 || res.Items[0].ItemNo != "111" {
		t.Errorf("items = %+v, want only 111", res.Items)
	}

	if err := sess.RemoveResolvedItem("110", "Oak", true); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second remove: err = %v, want ErrItemNotFound", err)
	}
}

func TestSession_GenerateExport(t *testing.T) {
	svc := newTestService(t, Options{})
	sess := newTestSession(t, svc, "DKK")

	if err := sess.Toggle(keyOf(svc.View(market.EU).Rows[0]), true); err != nil {
		t.Fatal(err)
	}
	chair := keyOf(sku("110", "A110", "Chair", "Dining Chair", "Fabric", "Blue", "Oak", "EU"))
	if err := sess.Toggle(chair, true); err != nil {
		t.Fatal(err)
	}
	if err := sess.SetChosenBases(chair, []string{"Oak"}); err != nil {
		t.Fatal(err)
	}

	tbl, err := sess.GenerateExport(context.Background())
	if err != nil {
		t.Fatalf("GenerateExport: %v", err)
	}
	if tbl.Empty() || len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}

	ws := tbl.PriceColumn[pricing.Wholesale]
	rt := tbl.PriceColumn[pricing.Retail]
	if tbl.Columns[ws] != "Wholesale price (DKK)" {
		t.Errorf("wholesale column = %q", tbl.Columns[ws])
	}

	sofa, chairRow := tbl.Rows[0], tbl.Rows[1]
	if sofa.Cells[ws] != "1000" || sofa.Cells[rt] != "2500" {
		t.Errorf("sofa prices = %q/%q, want 1000/2500", sofa.Cells[ws], sofa.Cells[rt])
	}
	// A110 has a wholesale price but no retail row.
	if chairRow.Cells[ws] != "500" || chairRow.Cells[rt] != pricing.SentinelMissingKey {
		t.Errorf("chair prices = %q/%q, want 500/%s", chairRow.Cells[ws], chairRow.Cells[rt], pricing.SentinelMissingKey)
	}
	if svc.ExportStatus().Active != 0 {
		t.Error("export slot not released")
	}
}

func TestSession_GenerateExport_Busy(t *testing.T) {
	svc := newTestService(t, Options{MaxExports: 1, ExportWait: 20 * time.Millisecond})
	sess := newTestSession(t, svc, "DKK")

	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer svc.limiter.Release()

	if _, err := sess.GenerateExport(context.Background()); !errors.Is(err, ErrTooManyExports) {
		t.Errorf("err = %v, want ErrTooManyExports", err)
	}
}
