package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Analyzer compares the consolidated ledger against the independently summed
// document totals and itemizes every gap. It only reports: any correction
// (date backfill, table edit, re-extraction) is a separate, audited action
// taken by an operator, never a side effect of analysis.
type Analyzer struct {
	table           *CanonicalTable
	creditPrefix    string
	tolerancePerDoc decimal.Decimal
}

// NewAnalyzer builds an analyzer. tolerancePerDoc absorbs per-document
// rounding in extracted totals; the run tolerance is tolerancePerDoc times
// the document count.
func NewAnalyzer(table *CanonicalTable, creditPrefix string, tolerancePerDoc decimal.Decimal) *Analyzer {
	if table == nil {
		table = EmptyCanonicalTable()
	}
	return &Analyzer{table: table, creditPrefix: creditPrefix, tolerancePerDoc: tolerancePerDoc}
}

// Analyze produces the discrepancy report for one completed run.
func (a *Analyzer) Analyze(ledger *InventoryLedger, docs []NormalizedDocument) DiscrepancyReport {
	report := DiscrepancyReport{
		LedgerNetValue: ledger.TotalValue,
		DocumentCount:  len(docs),
		Tolerance:      a.tolerancePerDoc.Mul(decimal.NewFromInt(int64(len(docs)))),
	}

	for _, doc := range docs {
		report.ExpectedNetTotal = report.ExpectedNetTotal.Add(doc.DocumentTotal)
	}
	report.Delta = report.ExpectedNetTotal.Sub(report.LedgerNetValue)
	report.Reconciled = report.Delta.Abs().LessThanOrEqual(report.Tolerance)

	var findings []Finding
	if !report.Reconciled {
		findings = append(findings, Finding{
			Kind:   FindingTotalMismatch,
			Detail: fmt.Sprintf("document net total %s differs from ledger value %s by %s (tolerance %s)", report.ExpectedNetTotal, report.LedgerNetValue, report.Delta, report.Tolerance),
			Amount: report.Delta,
		})
	}

	findings = append(findings, a.documentFindings(ledger, docs)...)
	findings = append(findings, a.ledgerFindings(ledger)...)

	for _, conflict := range a.table.Conflicts() {
		asserted := make([]string, len(conflict.Totals))
		for i, t := range conflict.Totals {
			asserted[i] = t.String()
		}
		findings = append(findings, Finding{
			Kind:          FindingConflictingOverride,
			InvoiceNumber: conflict.InvoiceNumber,
			Detail:        fmt.Sprintf("override table asserts %d different totals (%s); requires human adjudication", len(conflict.Totals), strings.Join(asserted, ", ")),
		})
	}

	sortFindings(findings)
	report.Findings = findings
	return report
}

// documentFindings covers per-document gaps: items referenced by a document
// but absent from the ledger (a canonicalization-table gap if consolidation
// is correct), degraded extraction quality, and classification conflicts.
func (a *Analyzer) documentFindings(ledger *InventoryLedger, docs []NormalizedDocument) []Finding {
	var findings []Finding
	missingSeen := make(map[string]bool)

	for _, doc := range docs {
		for _, item := range doc.LineItems {
			code, _ := a.table.Resolve(item.ItemCode)
			if _, present := ledger.Accounts[code]; !present && !missingSeen[code] {
				missingSeen[code] = true
				findings = append(findings, Finding{
					Kind:     FindingMissingItem,
					ItemCode: code,
					Detail:   fmt.Sprintf("item referenced by invoice %s is absent from the ledger", doc.InvoiceNumber),
				})
			}
		}

		if doc.Quality != QualityExact {
			findings = append(findings, Finding{
				Kind:          FindingDegradedExtraction,
				InvoiceNumber: doc.InvoiceNumber,
				Detail:        fmt.Sprintf("extraction quality %s", doc.Quality),
			})
		}

		findings = append(findings, a.classificationFindings(doc)...)
	}
	return findings
}

// classificationFindings enforces the credit-series rule as a detector: a
// CREDIT without the prefix, an ORDER whose number is in the credit series,
// a credit marker in the text of an ORDER, and sign-convention violations
// are all reported, never auto-corrected.
func (a *Analyzer) classificationFindings(doc NormalizedDocument) []Finding {
	var findings []Finding
	hasPrefix := a.creditPrefix != "" && strings.HasPrefix(doc.InvoiceNumber, a.creditPrefix)

	switch {
	case doc.Kind == KindCredit && !hasPrefix:
		findings = append(findings, Finding{
			Kind:          FindingClassificationConflict,
			InvoiceNumber: doc.InvoiceNumber,
			Detail:        fmt.Sprintf("tagged CREDIT without credit-series prefix %q", a.creditPrefix),
		})
	case doc.Kind == KindOrder && hasPrefix:
		findings = append(findings, Finding{
			Kind:          FindingClassificationConflict,
			InvoiceNumber: doc.InvoiceNumber,
			Detail:        fmt.Sprintf("invoice number is in credit series %q but document is tagged ORDER", a.creditPrefix),
		})
	case doc.Kind == KindOrder && doc.CreditMarkerInText:
		findings = append(findings, Finding{
			Kind:          FindingClassificationConflict,
			InvoiceNumber: doc.InvoiceNumber,
			Detail:        "text carries a credit marker but invoice number is not in the credit series",
		})
	}

	if doc.TotalKnown && !doc.DocumentTotal.IsZero() {
		if (doc.Kind == KindCredit) != doc.DocumentTotal.IsNegative() {
			findings = append(findings, Finding{
				Kind:          FindingClassificationConflict,
				InvoiceNumber: doc.InvoiceNumber,
				Detail:        fmt.Sprintf("document kind %s does not match total sign %s", doc.Kind, doc.DocumentTotal),
				Amount:        doc.DocumentTotal,
			})
		}
	}
	return findings
}

// ledgerFindings covers account-level anomalies: fractional whole-count
// totals, negative quantities (credits exceeding recorded orders — often a
// missing order document), and canonicalization gaps.
func (a *Analyzer) ledgerFindings(ledger *InventoryLedger) []Finding {
	var findings []Finding

	for _, anomaly := range ledger.PendingAnomalies {
		findings = append(findings, Finding{
			Kind:     FindingFractionalQuantity,
			ItemCode: anomaly.ItemCode,
			Detail:   fmt.Sprintf("whole-count unit %s has fractional quantity %s; rounding up to %s recommended", anomaly.Unit, anomaly.TotalQuantity, anomaly.RecommendedQuantity),
			Amount:   anomaly.TotalQuantity,
		})
	}

	for _, code := range sortedAccountCodes(ledger) {
		acct := ledger.Accounts[code]
		if acct.TotalQuantity.IsNegative() {
			findings = append(findings, Finding{
				Kind:     FindingNegativeQuantity,
				ItemCode: code,
				Detail:   fmt.Sprintf("credits exceed recorded orders by %s %s; an order document may be missing", acct.TotalQuantity.Abs(), acct.Unit),
				Amount:   acct.TotalQuantity,
			})
		}
	}

	for _, code := range ledger.UnmappedCodes {
		findings = append(findings, Finding{
			Kind:     FindingCanonicalizationGap,
			ItemCode: code,
			Detail:   "variant-shaped item code has no canonicalization entry; accounted under its raw code",
		})
	}

	return findings
}

// sortFindings gives the report a deterministic order: by kind, then item
// code, then invoice number.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		if findings[i].ItemCode != findings[j].ItemCode {
			return findings[i].ItemCode < findings[j].ItemCode
		}
		return findings[i].InvoiceNumber < findings[j].InvoiceNumber
	})
}
