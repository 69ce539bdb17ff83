package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// totalRule is one pattern in the ordered total-extraction list. Rules run
// most-specific first and the first match wins: generic "total" labels
// over-match embedded subtotals, so explicit labels must be tried before
// them. lastMatch rules take the final occurrence in the text instead of the
// first, which suits bottom-of-page figures.
type totalRule struct {
	name      string
	re        *regexp.Regexp
	lastMatch bool
}

var totalRules = []totalRule{
	{name: "invoice_total", re: regexp.MustCompile(`(?i)invoice\s+total\s*:?\s*\$?\s*(-?[\d,]+\.\d{2})`)},
	{name: "amount_due", re: regexp.MustCompile(`(?i)amount\s+due\s*:?\s*\$?\s*(-?[\d,]+\.\d{2})`)},
	{name: "balance_due", re: regexp.MustCompile(`(?i)balance\s+due\s*:?\s*\$?\s*(-?[\d,]+\.\d{2})`)},
	{name: "total_due", re: regexp.MustCompile(`(?i)total\s+due\s*:?\s*\$?\s*(-?[\d,]+\.\d{2})`)},
	{name: "generic_total", re: regexp.MustCompile(`(?i)\btotal\b\s*:?\s*\$?\s*(-?[\d,]+\.\d{2})`), lastMatch: true},
	{name: "any_dollar", re: regexp.MustCompile(`\$\s*(-?[\d,]+\.\d{2})`), lastMatch: true},
}

// A document is marked as a credit by either the literal word "credit" or an
// inline credit-series invoice number. The series prefix is injected per
// extractor because it is supplier configuration, not a constant.
var creditWordRe = regexp.MustCompile(`(?i)\bcredit\b`)

// itemLineRe matches the supplier's product lines: a 6-8 digit item code, a
// description, a unit token, then the remainder holding the numeric columns.
var itemLineRe = regexp.MustCompile(`^\s*(\d{6,8})\s+(.*?)\s+(CS|CT|BX|PK|EA|DZ|PR|PC|LB|KG|OZ|GA|L)\b(.*)$`)

var decimalNumRe = regexp.MustCompile(`-?\d[\d,]*\.\d{2}`)

// quantityTolerance bounds how far lineTotal/unitPrice may sit from an
// integer before the ratio is kept as-is for whole-count units.
var quantityTolerance = decimal.NewFromFloat(0.015)

// Extractor pulls monetary totals and line items out of raw invoice text
// using the ordered pattern rules. It knows nothing about documents or
// ledgers.
type Extractor struct {
	creditSeriesRe *regexp.Regexp
}

func NewExtractor(creditPrefix string) *Extractor {
	return &Extractor{
		creditSeriesRe: regexp.MustCompile(`\b` + regexp.QuoteMeta(creditPrefix) + `\d{7}\b`),
	}
}

// Extract runs both total and line-item extraction over one document's text.
func (e *Extractor) Extract(text string) ExtractedData {
	data := ExtractedData{Items: e.ExtractLineItems(text)}
	data.Total, data.MatchedRule, data.IsCredit, data.TotalFound = e.ExtractTotal(text)
	return data
}

// ExtractTotal applies the ordered rule list to the text. The first rule
// that matches wins. When the text carries a credit marker the magnitude is
// negated. found=false means no rule matched at all; callers must not treat
// that as a zero total, since zero is a valid real total.
func (e *Extractor) ExtractTotal(text string) (amount decimal.Decimal, matchedRule string, isCredit bool, found bool) {
	isCredit = e.HasCreditMarker(text)

	for _, rule := range totalRules {
		var raw string
		if rule.lastMatch {
			matches := rule.re.FindAllStringSubmatch(text, -1)
			if len(matches) == 0 {
				continue
			}
			raw = matches[len(matches)-1][1]
		} else {
			m := rule.re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			raw = m[1]
		}

		amt, err := parseAmount(raw)
		if err != nil {
			continue
		}
		if isCredit {
			amt = amt.Abs().Neg()
		}
		return amt, rule.name, isCredit, true
	}

	return decimal.Zero, "", isCredit, false
}

// HasCreditMarker reports whether the text contains the literal word
// "credit" or a credit-series invoice number.
func (e *Extractor) HasCreditMarker(text string) bool {
	return creditWordRe.MatchString(text) || e.creditSeriesRe.MatchString(text)
}

// ExtractLineItems scans the text line by line for product rows. In the
// supplier's layout the unit price precedes the line total, so the last two
// decimal numbers on a line are unitPrice and lineTotal. Quantity is derived
// as lineTotal/unitPrice, snapped to the nearest integer when the ratio is
// within tolerance for a whole-count unit. Lines failing the shape are
// skipped, not errored; the caller reflects partial extraction in the
// document's quality flag.
func (e *Extractor) ExtractLineItems(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		item, ok := parseItemLine(line)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func parseItemLine(line string) (LineItem, bool) {
	m := itemLineRe.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}

	unit, ok := ParseUnit(m[3])
	if !ok {
		return LineItem{}, false
	}

	nums := decimalNumRe.FindAllString(m[4], -1)
	if len(nums) < 2 {
		return LineItem{}, false
	}

	unitPrice, err := parseAmount(nums[len(nums)-2])
	if err != nil || unitPrice.IsNegative() {
		return LineItem{}, false
	}
	lineTotal, err := parseAmount(nums[len(nums)-1])
	if err != nil {
		return LineItem{}, false
	}
	if unitPrice.IsZero() {
		// Cannot derive a quantity from a zero price; treat as malformed.
		return LineItem{}, false
	}

	qty := lineTotal.Div(unitPrice)
	if unit.WholeCount() {
		rounded := qty.Round(0)
		if qty.Sub(rounded).Abs().LessThanOrEqual(quantityTolerance) {
			qty = rounded
		}
	}

	return LineItem{
		ItemCode:        m[1],
		Description:     strings.TrimSpace(m[2]),
		QuantityShipped: qty,
		UnitPrice:       unitPrice,
		Unit:            unit,
	}, true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
}
