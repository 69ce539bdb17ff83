// Package store persists completed reconciliation runs for the surrounding
// reporting tooling. It is a downstream collaborator of the engine: the run
// itself never touches the database, and a run that did not complete is
// never written.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"invoice-recon/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the snapshot schema. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return nil
}

// PublishRun writes one completed run in a single transaction: the run row,
// every item account with its batch history, and every finding. Either the
// whole snapshot lands or none of it does.
func (s *Store) PublishRun(ctx context.Context, ledger *core.InventoryLedger, report core.DiscrepancyReport) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO recon_runs (document_count, expected_net_total, ledger_net_value, delta, reconciled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, report.DocumentCount, report.ExpectedNetTotal, report.LedgerNetValue, report.Delta, report.Reconciled).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, code := range sortedCodes(ledger) {
		acct := ledger.Accounts[code]
		_, err = tx.Exec(ctx, `
			INSERT INTO recon_item_accounts (run_id, item_code, description, unit, total_quantity, total_value, average_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, acct.ItemCode, acct.Description, string(acct.Unit), acct.TotalQuantity, acct.TotalValue, acct.AveragePrice)
		if err != nil {
			return 0, fmt.Errorf("failed to insert account %s: %w", acct.ItemCode, err)
		}

		for seq, batch := range acct.Batches {
			_, err = tx.Exec(ctx, `
				INSERT INTO recon_batches (run_id, item_code, seq, quantity, unit_price, received_date, source_invoice_number)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, runID, acct.ItemCode, seq, batch.Quantity, batch.UnitPrice, batch.ReceivedDate, batch.SourceInvoiceNumber)
			if err != nil {
				return 0, fmt.Errorf("failed to insert batch %d for %s: %w", seq, acct.ItemCode, err)
			}
		}
	}

	for seq, finding := range report.Findings {
		_, err = tx.Exec(ctx, `
			INSERT INTO recon_findings (run_id, seq, kind, item_code, invoice_number, detail)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, runID, seq, string(finding.Kind), nullable(finding.ItemCode), nullable(finding.InvoiceNumber), finding.Detail)
		if err != nil {
			return 0, fmt.Errorf("failed to insert finding %d: %w", seq, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return runID, nil
}

func sortedCodes(ledger *core.InventoryLedger) []string {
	codes := make([]string, 0, len(ledger.Accounts))
	for code := range ledger.Accounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
