package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindOrder  DocumentKind = "ORDER"
	KindCredit DocumentKind = "CREDIT"
)

// ExtractionQuality grades how completely a document's fields were recovered
// from its source text. EXACT requires a total, at least one line item and a
// real date; otherwise the most specific degraded state applies.
type ExtractionQuality string

const (
	QualityExact        ExtractionQuality = "EXACT"
	QualityPartial      ExtractionQuality = "PARTIAL"
	QualityMissingItems ExtractionQuality = "MISSING_ITEMS"
	QualityMissingDate  ExtractionQuality = "MISSING_DATE"
)

type Unit string

const (
	UnitCS Unit = "CS"
	UnitCT Unit = "CT"
	UnitBX Unit = "BX"
	UnitPK Unit = "PK"
	UnitEA Unit = "EA"
	UnitDZ Unit = "DZ"
	UnitPR Unit = "PR"
	UnitPC Unit = "PC"
	UnitLB Unit = "LB"
	UnitKG Unit = "KG"
	UnitOZ Unit = "OZ"
	UnitGA Unit = "GA"
	UnitL  Unit = "L"
)

var wholeCountUnits = map[Unit]bool{
	UnitCS: true, UnitCT: true, UnitBX: true, UnitPK: true,
	UnitEA: true, UnitDZ: true, UnitPR: true, UnitPC: true,
}

// WholeCount reports whether the unit counts discrete pieces. Quantities on
// whole-count units must end up integral in the ledger; weight and volume
// units may legitimately be fractional.
func (u Unit) WholeCount() bool {
	return wholeCountUnits[u]
}

// ParseUnit maps a raw token to a known unit code.
func ParseUnit(tok string) (Unit, bool) {
	u := Unit(tok)
	switch u {
	case UnitCS, UnitCT, UnitBX, UnitPK, UnitEA, UnitDZ, UnitPR, UnitPC,
		UnitLB, UnitKG, UnitOZ, UnitGA, UnitL:
		return u, true
	}
	return "", false
}

// RawDocument is one supplier document as ingested. RawText is the opaque
// output of the external text-extraction collaborator and may be empty.
// OrderDate carries any explicit date already known from source metadata;
// nil means unknown.
type RawDocument struct {
	DocumentID      string     `json:"document_id"`
	InvoiceNumber   string     `json:"invoice_number"`
	RawText         string     `json:"-"`
	UploadTimestamp time.Time  `json:"upload_timestamp"`
	OrderDate       *time.Time `json:"order_date,omitempty"`
}

// LineItem is one parsed product line.
type LineItem struct {
	ItemCode        string          `json:"item_code"`
	Description     string          `json:"description"`
	QuantityShipped decimal.Decimal `json:"quantity_shipped"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Unit            Unit            `json:"unit"`
}

// ExtractedData is the raw output of the pattern extractor for one document,
// before classification and sign normalization.
type ExtractedData struct {
	Total       decimal.Decimal
	MatchedRule string
	TotalFound  bool
	IsCredit    bool
	Items       []LineItem
}

// NormalizedDocument is the canonical form of one document. It is created
// once by the normalizer and never mutated downstream; corrections produce a
// new document.
type NormalizedDocument struct {
	DocumentID    string       `json:"document_id"`
	InvoiceNumber string       `json:"invoice_number"`
	Kind          DocumentKind `json:"document_kind"`
	// OrderDate is nil when no real date is known. A missing date is never
	// substituted with a fabricated one.
	OrderDate *time.Time `json:"order_date,omitempty"`
	LineItems []LineItem `json:"line_items"`
	// DocumentTotal is signed: positive for ORDER, negative for CREDIT.
	DocumentTotal decimal.Decimal   `json:"document_total"`
	TotalKnown    bool              `json:"total_known"`
	Quality       ExtractionQuality `json:"extraction_quality"`
	// CreditMarkerInText records that the raw text carried a credit marker,
	// independent of the invoice-number series. The analyzer uses it to
	// surface classification conflicts.
	CreditMarkerInText bool `json:"credit_marker_in_text,omitempty"`
}

// Batch is one receipt event inside an item account. Quantity sign matches
// the document kind: credit memos append negative batches.
type Batch struct {
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	ReceivedDate        *time.Time      `json:"received_date,omitempty"`
	SourceInvoiceNumber string          `json:"source_invoice_number"`
}

// ItemAccount is one row of the consolidated ledger, keyed by canonical item
// code. Accounts are never deleted; a zero-quantity account still represents
// known history.
type ItemAccount struct {
	ItemCode      string          `json:"item_code"`
	Description   string          `json:"description"`
	Unit          Unit            `json:"unit"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	// AveragePrice is TotalValue/TotalQuantity while quantity is positive,
	// otherwise the last folded batch price.
	AveragePrice decimal.Decimal `json:"average_price"`
	// Batches are ordered by ReceivedDate ascending (FIFO); ties and unknown
	// dates fall back to document ingestion order.
	Batches []Batch `json:"batches"`

	lastPrice decimal.Decimal
}

// QuantityAnomaly records a whole-count account whose folded total is not
// integral. Rounding up is a reporting recommendation; the consolidator never
// mutates the quantity itself.
type QuantityAnomaly struct {
	ItemCode            string          `json:"item_code"`
	Unit                Unit            `json:"unit"`
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	RecommendedQuantity decimal.Decimal `json:"recommended_quantity"`
}

// InventoryLedger maps canonical item code to account, with ledger-wide
// aggregates recomputed whenever accounts change.
type InventoryLedger struct {
	Accounts      map[string]*ItemAccount `json:"accounts"`
	TotalValue    decimal.Decimal         `json:"total_value"`
	TotalQuantity decimal.Decimal         `json:"total_quantity"`
	ItemCount     int                     `json:"item_count"`

	// UnmappedCodes lists variant-shaped item codes that had no
	// canonicalization entry. Their accounts exist under the raw code.
	UnmappedCodes []string `json:"unmapped_codes,omitempty"`
	// PendingAnomalies lists whole-count accounts with fractional totals.
	PendingAnomalies []QuantityAnomaly `json:"pending_anomalies,omitempty"`
}

// RecomputeAggregates refreshes the ledger-wide totals from the accounts.
func (l *InventoryLedger) RecomputeAggregates() {
	l.TotalValue = decimal.Zero
	l.TotalQuantity = decimal.Zero
	for _, acct := range l.Accounts {
		l.TotalValue = l.TotalValue.Add(acct.TotalValue)
		l.TotalQuantity = l.TotalQuantity.Add(acct.TotalQuantity)
	}
	l.ItemCount = len(l.Accounts)
}

type FindingKind string

const (
	FindingTotalMismatch          FindingKind = "RECONCILIATION_MISMATCH"
	FindingMissingItem            FindingKind = "MISSING_ITEM"
	FindingFractionalQuantity     FindingKind = "FRACTIONAL_QUANTITY"
	FindingDegradedExtraction     FindingKind = "DEGRADED_EXTRACTION"
	FindingNegativeQuantity       FindingKind = "NEGATIVE_QUANTITY"
	FindingClassificationConflict FindingKind = "CLASSIFICATION_CONFLICT"
	FindingCanonicalizationGap    FindingKind = "CANONICALIZATION_GAP"
	FindingConflictingOverride    FindingKind = "CONFLICTING_OVERRIDE"
)

// Finding is one itemized discrepancy. Exactly which of ItemCode and
// InvoiceNumber is set depends on the kind.
type Finding struct {
	Kind          FindingKind     `json:"kind" jsonschema_description:"Discrepancy category"`
	ItemCode      string          `json:"item_code,omitempty" jsonschema_description:"Canonical item code the finding refers to, if item-scoped"`
	InvoiceNumber string          `json:"invoice_number,omitempty" jsonschema_description:"Invoice number the finding refers to, if document-scoped"`
	Detail        string          `json:"detail" jsonschema_description:"Human-readable description of the gap"`
	Amount        decimal.Decimal `json:"amount,omitempty" jsonschema_description:"Monetary or quantity magnitude involved, when applicable"`
}

// DiscrepancyReport is the single source of truth for whether a run's ledger
// is trustworthy. Consumers must not present the ledger as reconciled when
// Reconciled is false.
type DiscrepancyReport struct {
	ExpectedNetTotal decimal.Decimal `json:"expected_net_total" jsonschema_description:"Sum of all signed document totals (orders minus credits)"`
	LedgerNetValue   decimal.Decimal `json:"ledger_net_value" jsonschema_description:"Total value of the consolidated ledger"`
	Delta            decimal.Decimal `json:"delta" jsonschema_description:"ExpectedNetTotal minus LedgerNetValue"`
	Tolerance        decimal.Decimal `json:"tolerance" jsonschema_description:"Absolute delta tolerated before a mismatch is reported"`
	Reconciled       bool            `json:"reconciled" jsonschema_description:"True when the delta is within tolerance"`
	DocumentCount    int             `json:"document_count"`
	Findings         []Finding       `json:"findings" jsonschema_description:"Itemized discrepancies requiring operator attention"`
}
