package app

import (
	"sort"

	"invoice-recon/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// LedgerRecord is one flattened ledger row for reporting collaborators.
type LedgerRecord struct {
	ItemCode      string          `json:"item_code" jsonschema_description:"Canonical item code"`
	Description   string          `json:"description" jsonschema_description:"Most complete description seen across documents"`
	Unit          core.Unit       `json:"unit" jsonschema_description:"Unit of measure (CS, EA, LB, ...)"`
	TotalQuantity decimal.Decimal `json:"total_quantity" jsonschema_description:"Net on-hand quantity; may be negative when credits exceed orders"`
	AveragePrice  decimal.Decimal `json:"average_price" jsonschema_description:"Value-weighted unit price"`
	TotalValue    decimal.Decimal `json:"total_value" jsonschema_description:"Net value across all batches"`
	Batches       []core.Batch    `json:"batches" jsonschema_description:"FIFO batch history, oldest first"`
}

// LedgerRecords flattens the ledger into a deterministic record list sorted
// by item code.
func LedgerRecords(ledger *core.InventoryLedger) []LedgerRecord {
	records := make([]LedgerRecord, 0, len(ledger.Accounts))
	for _, acct := range ledger.Accounts {
		records = append(records, LedgerRecord{
			ItemCode:      acct.ItemCode,
			Description:   acct.Description,
			Unit:          acct.Unit,
			TotalQuantity: acct.TotalQuantity,
			AveragePrice:  acct.AveragePrice,
			TotalValue:    acct.TotalValue,
			Batches:       acct.Batches,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ItemCode < records[j].ItemCode
	})
	return records
}

// ReportSchema returns the JSON Schema of the discrepancy report, for
// dashboard and tooling consumers that validate the engine's output.
func ReportSchema() interface{} {
	return reflectSchema(core.DiscrepancyReport{})
}

// LedgerRecordSchema returns the JSON Schema of one flattened ledger record.
func LedgerRecordSchema() interface{} {
	return reflectSchema(LedgerRecord{})
}

func reflectSchema(v interface{}) interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}
