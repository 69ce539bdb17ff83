package core

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// canonicalShapeRe is the shape of a well-formed supplier item code: 6-8
// digits with no leading zero. Codes outside this shape are variant families
// (spurious leading digits, length drift) that should have a table entry.
var canonicalShapeRe = regexp.MustCompile(`^[1-9]\d{5,7}$`)

// OverrideConflict records an invoice whose override file asserts more than
// one corrected total. The loader keeps neither value; the conflict is
// surfaced by the analyzer for human adjudication.
type OverrideConflict struct {
	InvoiceNumber string
	Totals        []decimal.Decimal
}

// CanonicalTable is the data-driven correction set: item-code remaps from
// raw variants to canonical codes, plus explicit per-invoice date and total
// overrides. It replaces the one-off correction scripts of the source
// history — corrections are declarative data, authored and versioned outside
// this module.
type CanonicalTable struct {
	Version string

	remaps         map[string]string
	dateOverrides  map[string]time.Time
	totalOverrides map[string]decimal.Decimal
	conflicts      []OverrideConflict
}

type canonicalTableFile struct {
	Version        string              `json:"version"`
	ItemCodeRemaps map[string]string   `json:"item_code_remaps"`
	DateOverrides  map[string]string   `json:"date_overrides"`
	TotalOverrides map[string][]string `json:"total_overrides"`
}

// LoadCanonicalTable reads the versioned table file. A missing or unreadable
// file is a structural failure: the run must not start without the table.
func LoadCanonicalTable(path string) (*CanonicalTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCanonicalTableMissing, path, err)
	}
	return ParseCanonicalTable(raw)
}

// ParseCanonicalTable builds a table from raw JSON.
func ParseCanonicalTable(raw []byte) (*CanonicalTable, error) {
	var file canonicalTableFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalTableInvalid, err)
	}

	t := &CanonicalTable{
		Version:        file.Version,
		remaps:         make(map[string]string, len(file.ItemCodeRemaps)),
		dateOverrides:  make(map[string]time.Time, len(file.DateOverrides)),
		totalOverrides: make(map[string]decimal.Decimal, len(file.TotalOverrides)),
	}

	for variant, canonical := range file.ItemCodeRemaps {
		t.remaps[variant] = canonical
	}

	for invoice, rawDate := range file.DateOverrides {
		d, err := time.Parse("2006-01-02", rawDate)
		if err != nil {
			return nil, fmt.Errorf("%w: date override for %s: %v", ErrCanonicalTableInvalid, invoice, err)
		}
		t.dateOverrides[invoice] = d
	}

	for invoice, rawTotals := range file.TotalOverrides {
		totals := make([]decimal.Decimal, 0, len(rawTotals))
		for _, rt := range rawTotals {
			amt, err := decimal.NewFromString(rt)
			if err != nil {
				return nil, fmt.Errorf("%w: total override for %s: %v", ErrCanonicalTableInvalid, invoice, err)
			}
			totals = append(totals, amt)
		}
		switch {
		case len(totals) == 1:
			t.totalOverrides[invoice] = totals[0]
		case len(totals) > 1:
			// The source history asserted different "corrected" totals for
			// the same invoice. Picking one arbitrarily would hide a real
			// mismatch, so neither is applied.
			t.conflicts = append(t.conflicts, OverrideConflict{InvoiceNumber: invoice, Totals: totals})
		}
	}

	sort.Slice(t.conflicts, func(i, j int) bool {
		return t.conflicts[i].InvoiceNumber < t.conflicts[j].InvoiceNumber
	})

	return t, nil
}

// Resolve maps a raw item code to its canonical code. ok=false means the
// code looks like a variant (wrong shape) but has no entry — a
// canonicalization gap. Well-formed codes without an entry are simply
// canonical already.
func (t *CanonicalTable) Resolve(rawCode string) (canonical string, ok bool) {
	if mapped, hit := t.remaps[rawCode]; hit {
		return mapped, true
	}
	if canonicalShapeRe.MatchString(rawCode) {
		return rawCode, true
	}
	return rawCode, false
}

// DateOverride returns the audited date correction for an invoice, if any.
func (t *CanonicalTable) DateOverride(invoiceNumber string) (time.Time, bool) {
	d, ok := t.dateOverrides[invoiceNumber]
	return d, ok
}

// TotalOverride returns the audited total correction for an invoice, if any.
// Invoices with conflicting overrides return false here and appear in
// Conflicts instead.
func (t *CanonicalTable) TotalOverride(invoiceNumber string) (decimal.Decimal, bool) {
	amt, ok := t.totalOverrides[invoiceNumber]
	return amt, ok
}

// Conflicts lists invoices with more than one asserted total override.
func (t *CanonicalTable) Conflicts() []OverrideConflict {
	return t.conflicts
}

// EmptyCanonicalTable returns a table with no entries. Useful for callers
// and tests that have no corrections to apply.
func EmptyCanonicalTable() *CanonicalTable {
	return &CanonicalTable{
		remaps:         map[string]string{},
		dateOverrides:  map[string]time.Time{},
		totalOverrides: map[string]decimal.Decimal{},
	}
}
