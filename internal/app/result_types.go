package app

import "invoice-recon/internal/core"

// ReconcileResult is the complete output of one batch run.
type ReconcileResult struct {
	DocumentCount int                       `json:"document_count"`
	Documents     []core.NormalizedDocument `json:"documents"`
	Ledger        *core.InventoryLedger     `json:"ledger"`
	Report        core.DiscrepancyReport    `json:"report"`
	// Weekly holds the date-bucketed view; documents with an unknown date
	// are counted in ExcludedFromWeekly instead of being placed in a
	// fabricated week.
	Weekly             []core.WeekBucket `json:"weekly"`
	ExcludedFromWeekly int               `json:"excluded_from_weekly"`
}
