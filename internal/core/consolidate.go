package core

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Consolidator folds normalized documents into an inventory ledger. It is
// the only stage with shared mutable state (the account map) and runs
// single-threaded so batch order within an account stays deterministic.
type Consolidator struct {
	table *CanonicalTable
	log   zerolog.Logger
}

func NewConsolidator(table *CanonicalTable, log zerolog.Logger) *Consolidator {
	if table == nil {
		table = EmptyCanonicalTable()
	}
	return &Consolidator{table: table, log: log}
}

// Consolidate builds the ledger: one account per canonical item code, one
// batch per line item, quantities signed by document kind. Document slice
// order is the ingestion order and breaks date ties, so the result never
// depends on map iteration order.
func (c *Consolidator) Consolidate(docs []NormalizedDocument) *InventoryLedger {
	ledger := &InventoryLedger{Accounts: make(map[string]*ItemAccount)}
	unmapped := make(map[string]bool)

	for _, doc := range docs {
		for _, item := range doc.LineItems {
			code, ok := c.table.Resolve(item.ItemCode)
			if !ok {
				unmapped[code] = true
			}

			acct := ledger.Accounts[code]
			if acct == nil {
				acct = &ItemAccount{
					ItemCode: code,
					Unit:     item.Unit,
				}
				ledger.Accounts[code] = acct
			}

			if len(item.Description) > len(acct.Description) {
				acct.Description = item.Description
			}
			if acct.Unit == "" {
				acct.Unit = item.Unit
			}

			qty := item.QuantityShipped
			if doc.Kind == KindCredit {
				qty = qty.Neg()
			}

			var receivedDate *time.Time
			if doc.OrderDate != nil {
				d := *doc.OrderDate
				receivedDate = &d
			}

			acct.Batches = append(acct.Batches, Batch{
				Quantity:            qty,
				UnitPrice:           item.UnitPrice,
				ReceivedDate:        receivedDate,
				SourceInvoiceNumber: doc.InvoiceNumber,
			})
			acct.lastPrice = item.UnitPrice
			recomputeAccount(acct)
		}
	}

	for _, acct := range ledger.Accounts {
		sortBatches(acct.Batches)
	}

	ledger.UnmappedCodes = sortedKeys(unmapped)
	ledger.PendingAnomalies = c.pendingAnomalies(ledger)
	ledger.RecomputeAggregates()
	return ledger
}

// recomputeAccount refreshes the aggregates from the batch list, keeping the
// conservation invariant exact: TotalValue is always the full sum of
// quantity*unitPrice, never an incrementally drifted figure.
func recomputeAccount(acct *ItemAccount) {
	acct.TotalQuantity = decimal.Zero
	acct.TotalValue = decimal.Zero
	for _, b := range acct.Batches {
		acct.TotalQuantity = acct.TotalQuantity.Add(b.Quantity)
		acct.TotalValue = acct.TotalValue.Add(b.Quantity.Mul(b.UnitPrice))
	}
	if acct.TotalQuantity.IsPositive() {
		acct.AveragePrice = acct.TotalValue.Div(acct.TotalQuantity)
	} else {
		acct.AveragePrice = acct.lastPrice
	}
}

// sortBatches orders a batch list for FIFO consumption: oldest received date
// first, unknown dates after all dated batches. The sort is stable so equal
// and unknown dates keep ingestion order.
func sortBatches(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		di, dj := batches[i].ReceivedDate, batches[j].ReceivedDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
}

// pendingAnomalies scans for whole-count accounts whose folded total is not
// integral. Rounding up would change financial totals, so it is recorded and
// logged as a recommendation instead of performed here.
func (c *Consolidator) pendingAnomalies(ledger *InventoryLedger) []QuantityAnomaly {
	var anomalies []QuantityAnomaly
	for _, code := range sortedAccountCodes(ledger) {
		acct := ledger.Accounts[code]
		if !acct.Unit.WholeCount() || acct.TotalQuantity.IsInteger() {
			continue
		}
		// Round up, never down: understating available stock is worse than
		// overstating it.
		recommended := acct.TotalQuantity.Ceil()
		c.log.Warn().
			Str("item_code", acct.ItemCode).
			Str("unit", string(acct.Unit)).
			Str("total_quantity", acct.TotalQuantity.String()).
			Str("recommended", recommended.String()).
			Msg("fractional quantity on whole-count unit; rounding up recommended")
		anomalies = append(anomalies, QuantityAnomaly{
			ItemCode:            acct.ItemCode,
			Unit:                acct.Unit,
			TotalQuantity:       acct.TotalQuantity,
			RecommendedQuantity: recommended,
		})
	}
	return anomalies
}

func sortedAccountCodes(ledger *InventoryLedger) []string {
	codes := make([]string, 0, len(ledger.Accounts))
	for code := range ledger.Accounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
