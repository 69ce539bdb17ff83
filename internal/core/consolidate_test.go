package core_test

import (
	"testing"
	"time"

	"invoice-recon/internal/core"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func dateOf(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return &d
}

func baconLine(qty, price string) core.LineItem {
	return core.LineItem{
		ItemCode:        "97523092",
		Description:     "BACON RAW 18/22",
		QuantityShipped: decimal.RequireFromString(qty),
		UnitPrice:       decimal.RequireFromString(price),
		Unit:            core.UnitCS,
	}
}

// The worked scenario: one order for two cases, one credit memo returning
// one of them.
func exampleDocs(t *testing.T) []core.NormalizedDocument {
	t.Helper()
	return []core.NormalizedDocument{
		{
			InvoiceNumber: "9018357843",
			Kind:          core.KindOrder,
			OrderDate:     dateOf(t, "2024-03-04"),
			LineItems:     []core.LineItem{baconLine("2", "35.50")},
			DocumentTotal: decimal.RequireFromString("71.00"),
			TotalKnown:    true,
			Quality:       core.QualityExact,
		},
		{
			InvoiceNumber: "2002362584",
			Kind:          core.KindCredit,
			OrderDate:     dateOf(t, "2024-03-11"),
			LineItems:     []core.LineItem{baconLine("1", "35.50")},
			DocumentTotal: decimal.RequireFromString("-35.50"),
			TotalKnown:    true,
			Quality:       core.QualityExact,
		},
	}
}

func TestConsolidate_OrderAndCredit(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())
	ledger := c.Consolidate(exampleDocs(t))

	acct := ledger.Accounts["97523092"]
	if acct == nil {
		t.Fatal("expected an account for 97523092")
	}

	if want := decimal.NewFromInt(1); !acct.TotalQuantity.Equal(want) {
		t.Errorf("total quantity = %s, want 1", acct.TotalQuantity)
	}
	if want := decimal.RequireFromString("35.50"); !acct.TotalValue.Equal(want) {
		t.Errorf("total value = %s, want 35.50", acct.TotalValue)
	}
	if len(acct.Batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(acct.Batches))
	}
	if want := decimal.NewFromInt(2); !acct.Batches[0].Quantity.Equal(want) {
		t.Errorf("first batch quantity = %s, want +2", acct.Batches[0].Quantity)
	}
	if want := decimal.NewFromInt(-1); !acct.Batches[1].Quantity.Equal(want) {
		t.Errorf("second batch quantity = %s, want -1", acct.Batches[1].Quantity)
	}

	if want := decimal.RequireFromString("35.50"); !ledger.TotalValue.Equal(want) {
		t.Errorf("ledger value = %s, want 35.50", ledger.TotalValue)
	}
	if ledger.ItemCount != 1 {
		t.Errorf("item count = %d, want 1", ledger.ItemCount)
	}
}

// Aggregates must not depend on document order; only batch order may differ
// when dates truly tie.
func TestConsolidate_OrderIndependentAggregates(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	docs := exampleDocs(t)
	forward := c.Consolidate(docs)

	reversed := []core.NormalizedDocument{docs[1], docs[0]}
	backward := c.Consolidate(reversed)

	for code, acct := range forward.Accounts {
		other := backward.Accounts[code]
		if other == nil {
			t.Fatalf("account %s missing after reorder", code)
		}
		if !acct.TotalQuantity.Equal(other.TotalQuantity) {
			t.Errorf("%s quantity %s != %s", code, acct.TotalQuantity, other.TotalQuantity)
		}
		if !acct.TotalValue.Equal(other.TotalValue) {
			t.Errorf("%s value %s != %s", code, acct.TotalValue, other.TotalValue)
		}
	}
	if !forward.TotalValue.Equal(backward.TotalValue) {
		t.Errorf("ledger value %s != %s", forward.TotalValue, backward.TotalValue)
	}
}

// Conservation: account value equals the exact sum over batches.
func TestConsolidate_Conservation(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())
	docs := exampleDocs(t)
	docs = append(docs, core.NormalizedDocument{
		InvoiceNumber: "9018400001",
		Kind:          core.KindOrder,
		OrderDate:     dateOf(t, "2024-03-18"),
		LineItems: []core.LineItem{
			baconLine("3", "36.10"),
			{
				ItemCode:        "12345678",
				Description:     "CHICKEN BREAST",
				QuantityShipped: decimal.RequireFromString("10.25"),
				UnitPrice:       decimal.RequireFromString("3.10"),
				Unit:            core.UnitLB,
			},
		},
	})

	ledger := c.Consolidate(docs)
	for code, acct := range ledger.Accounts {
		sum := decimal.Zero
		for _, b := range acct.Batches {
			sum = sum.Add(b.Quantity.Mul(b.UnitPrice))
		}
		if !acct.TotalValue.Equal(sum) {
			t.Errorf("%s: total value %s != batch sum %s", code, acct.TotalValue, sum)
		}
	}
}

func TestConsolidate_BatchFIFOOrdering(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	// Ingestion order deliberately disagrees with date order, and one
	// document has no date at all.
	docs := []core.NormalizedDocument{
		{InvoiceNumber: "B", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-18"), LineItems: []core.LineItem{baconLine("1", "35.50")}},
		{InvoiceNumber: "NODATE", Kind: core.KindOrder, LineItems: []core.LineItem{baconLine("4", "35.50")}},
		{InvoiceNumber: "A", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-04"), LineItems: []core.LineItem{baconLine("2", "35.50")}},
		{InvoiceNumber: "C", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-18"), LineItems: []core.LineItem{baconLine("3", "35.50")}},
	}

	ledger := c.Consolidate(docs)
	batches := ledger.Accounts["97523092"].Batches
	var got []string
	for _, b := range batches {
		got = append(got, b.SourceInvoiceNumber)
	}

	// Oldest first; equal dates keep ingestion order (B before C); unknown
	// dates sort after all dated batches.
	want := []string{"A", "B", "C", "NODATE"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("batch order = %v, want %v", got, want)
		}
	}
}

func TestConsolidate_CanonicalizationMergesVariants(t *testing.T) {
	table, err := core.ParseCanonicalTable([]byte(`{
		"version": "1",
		"item_code_remaps": {"09752309": "97523092"}
	}`))
	if err != nil {
		t.Fatalf("ParseCanonicalTable: %v", err)
	}
	c := core.NewConsolidator(table, zerolog.Nop())

	variant := baconLine("1", "35.50")
	variant.ItemCode = "09752309"
	variant.Description = "0BACON RAW"

	docs := []core.NormalizedDocument{
		{InvoiceNumber: "9018357843", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-04"), LineItems: []core.LineItem{baconLine("2", "35.50")}},
		{InvoiceNumber: "9018357844", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-05"), LineItems: []core.LineItem{variant}},
	}

	ledger := c.Consolidate(docs)
	if len(ledger.Accounts) != 1 {
		t.Fatalf("variants should merge into one account, got %d", len(ledger.Accounts))
	}
	acct := ledger.Accounts["97523092"]
	if acct == nil {
		t.Fatal("expected merged account under canonical code")
	}
	if want := decimal.NewFromInt(3); !acct.TotalQuantity.Equal(want) {
		t.Errorf("merged quantity = %s, want 3", acct.TotalQuantity)
	}
	if len(ledger.UnmappedCodes) != 0 {
		t.Errorf("unexpected unmapped codes: %v", ledger.UnmappedCodes)
	}
}

func TestConsolidate_UnmappedVariantFlagged(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	gap := baconLine("1", "35.50")
	gap.ItemCode = "09752309" // variant shape, no table entry

	ledger := c.Consolidate([]core.NormalizedDocument{
		{InvoiceNumber: "9018357843", Kind: core.KindOrder, LineItems: []core.LineItem{gap}},
	})

	// Still accounted for, under the raw code.
	if ledger.Accounts["09752309"] == nil {
		t.Fatal("unmapped variant must still get an account")
	}
	if len(ledger.UnmappedCodes) != 1 || ledger.UnmappedCodes[0] != "09752309" {
		t.Errorf("unmapped codes = %v", ledger.UnmappedCodes)
	}
}

// A whole-count account accumulating to 1.31 is recorded as a pending
// anomaly, never silently rewritten to 2.
func TestConsolidate_FractionalWholeCountNotMutated(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	ledger := c.Consolidate([]core.NormalizedDocument{
		{InvoiceNumber: "9018357843", Kind: core.KindOrder, LineItems: []core.LineItem{baconLine("1.31", "35.50")}},
	})

	acct := ledger.Accounts["97523092"]
	if want := decimal.RequireFromString("1.31"); !acct.TotalQuantity.Equal(want) {
		t.Fatalf("quantity = %s, want 1.31 untouched", acct.TotalQuantity)
	}

	if len(ledger.PendingAnomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(ledger.PendingAnomalies))
	}
	anomaly := ledger.PendingAnomalies[0]
	if anomaly.ItemCode != "97523092" {
		t.Errorf("anomaly item = %s", anomaly.ItemCode)
	}
	if want := decimal.NewFromInt(2); !anomaly.RecommendedQuantity.Equal(want) {
		t.Errorf("recommended = %s, want 2 (round up, never down)", anomaly.RecommendedQuantity)
	}
}

func TestConsolidate_AveragePrice(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	docs := []core.NormalizedDocument{
		{InvoiceNumber: "9018400001", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-04"), LineItems: []core.LineItem{baconLine("2", "30.00")}},
		{InvoiceNumber: "9018400002", Kind: core.KindOrder, OrderDate: dateOf(t, "2024-03-11"), LineItems: []core.LineItem{baconLine("2", "40.00")}},
	}
	ledger := c.Consolidate(docs)
	acct := ledger.Accounts["97523092"]
	if want := decimal.RequireFromString("35"); !acct.AveragePrice.Equal(want) {
		t.Errorf("average price = %s, want 35", acct.AveragePrice)
	}

	// When credits zero out the quantity, the last known batch price stands
	// in for the average.
	docs = append(docs, core.NormalizedDocument{
		InvoiceNumber: "2002362584", Kind: core.KindCredit, OrderDate: dateOf(t, "2024-03-12"),
		LineItems: []core.LineItem{baconLine("4", "35.00")},
	})
	ledger = c.Consolidate(docs)
	acct = ledger.Accounts["97523092"]
	if !acct.TotalQuantity.IsZero() {
		t.Fatalf("quantity = %s, want 0", acct.TotalQuantity)
	}
	if want := decimal.RequireFromString("35.00"); !acct.AveragePrice.Equal(want) {
		t.Errorf("average price = %s, want last batch price 35.00", acct.AveragePrice)
	}
}

func TestConsolidate_DescriptionKeepsLongest(t *testing.T) {
	c := core.NewConsolidator(nil, zerolog.Nop())

	short := baconLine("1", "35.50")
	short.Description = "BACON"
	long := baconLine("1", "35.50")
	long.Description = "BACON RAW 18/22 SLICED"

	ledger := c.Consolidate([]core.NormalizedDocument{
		{InvoiceNumber: "A1", Kind: core.KindOrder, LineItems: []core.LineItem{short}},
		{InvoiceNumber: "A2", Kind: core.KindOrder, LineItems: []core.LineItem{long}},
		{InvoiceNumber: "A3", Kind: core.KindOrder, LineItems: []core.LineItem{short}},
	})

	if got := ledger.Accounts["97523092"].Description; got != "BACON RAW 18/22 SLICED" {
		t.Errorf("description = %q, want the most complete one", got)
	}
}
