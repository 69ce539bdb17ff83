package core

import (
	"strings"

	"github.com/rs/zerolog"
)

// Normalizer classifies one raw document and produces its canonical form.
// Classification is by invoice-number series only: a document is a CREDIT if
// and only if its invoice number starts with the configured credit prefix.
// The rule is applied here, once; residual misclassification (e.g. a credit
// marker in the text of a non-credit-series document) is detected by the
// analyzer, never silently fixed.
type Normalizer struct {
	creditPrefix string
	table        *CanonicalTable
	log          zerolog.Logger
}

func NewNormalizer(creditPrefix string, table *CanonicalTable, log zerolog.Logger) *Normalizer {
	if table == nil {
		table = EmptyCanonicalTable()
	}
	return &Normalizer{creditPrefix: creditPrefix, table: table, log: log}
}

// Normalize builds the canonical document from a raw document and its
// extracted data. The result is immutable downstream.
func (n *Normalizer) Normalize(raw RawDocument, extracted ExtractedData) NormalizedDocument {
	doc := NormalizedDocument{
		DocumentID:         raw.DocumentID,
		InvoiceNumber:      strings.TrimSpace(raw.InvoiceNumber),
		LineItems:          extracted.Items,
		CreditMarkerInText: extracted.IsCredit,
	}

	doc.Kind = KindOrder
	if n.creditPrefix != "" && strings.HasPrefix(doc.InvoiceNumber, n.creditPrefix) {
		doc.Kind = KindCredit
	}

	// Date priority: audited override, then explicit source metadata, then
	// unknown. A plausible-looking substitute (e.g. "a few days before
	// upload") silently corrupts date-bucketed reconciliation views, so an
	// unknown date stays unknown until a real one arrives out of band.
	if d, ok := n.table.DateOverride(doc.InvoiceNumber); ok {
		doc.OrderDate = &d
	} else if raw.OrderDate != nil {
		d := *raw.OrderDate
		doc.OrderDate = &d
	}

	magnitude := extracted.Total.Abs()
	totalKnown := extracted.TotalFound
	if override, ok := n.table.TotalOverride(doc.InvoiceNumber); ok {
		n.log.Info().
			Str("invoice", doc.InvoiceNumber).
			Str("extracted", extracted.Total.String()).
			Str("override", override.String()).
			Msg("applying audited total override")
		magnitude = override.Abs()
		totalKnown = true
	}

	doc.TotalKnown = totalKnown
	if totalKnown {
		if doc.Kind == KindCredit {
			doc.DocumentTotal = magnitude.Neg()
		} else {
			doc.DocumentTotal = magnitude
		}
	}

	doc.Quality = gradeQuality(totalKnown, len(doc.LineItems) > 0, doc.OrderDate != nil)
	return doc
}

// gradeQuality picks the most specific degraded state: a missing total is
// the broadest failure (PARTIAL), then missing line items, then a missing
// date on an otherwise complete document.
func gradeQuality(totalKnown, hasItems, hasDate bool) ExtractionQuality {
	switch {
	case totalKnown && hasItems && hasDate:
		return QualityExact
	case !totalKnown:
		return QualityPartial
	case !hasItems:
		return QualityMissingItems
	default:
		return QualityMissingDate
	}
}
