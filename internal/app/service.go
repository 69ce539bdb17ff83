package app

import (
	"context"
	"fmt"

	"invoice-recon/internal/adapters/fsdoc"
	"invoice-recon/internal/config"
	"invoice-recon/internal/core"

	"github.com/rs/zerolog"
)

// Service is the single interface operator-facing adapters (CLI, future
// dashboards) call. Implementations contain no display logic.
type Service interface {
	// Reconcile runs the full batch pass over a directory of extracted
	// documents and returns the ledger together with its discrepancy report.
	// Consumers must check the report before treating the ledger as
	// authoritative.
	Reconcile(ctx context.Context, dir string) (*ReconcileResult, error)

	// ExportLedger reconciles and flattens the ledger into records for
	// inventory-display collaborators.
	ExportLedger(ctx context.Context, dir string) ([]LedgerRecord, error)
}

type service struct {
	cfg      *config.Config
	table    *core.CanonicalTable
	pipeline *core.Pipeline
	log      zerolog.Logger
}

// NewService loads the canonicalization table and wires the pipeline. A
// missing table is a structural failure: no run can start without it.
func NewService(cfg *config.Config, log zerolog.Logger) (Service, error) {
	table, err := core.LoadCanonicalTable(cfg.CanonTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonicalization table: %w", err)
	}
	log.Info().Str("path", cfg.CanonTablePath).Str("version", table.Version).Msg("canonicalization table loaded")

	pipeline := core.NewPipeline(core.PipelineOptions{
		CreditPrefix:         cfg.CreditPrefix,
		ToleranceCentsPerDoc: cfg.ToleranceCentsPerDoc,
		Workers:              cfg.Workers,
		Table:                table,
		Logger:               log,
	})

	return &service{cfg: cfg, table: table, pipeline: pipeline, log: log}, nil
}

func (s *service) Reconcile(ctx context.Context, dir string) (*ReconcileResult, error) {
	raws, err := fsdoc.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("documents", len(raws)).Str("dir", dir).Msg("starting reconciliation run")

	docs, err := s.pipeline.NormalizeAll(ctx, raws)
	if err != nil {
		return nil, err
	}
	ledger, report, err := s.pipeline.Complete(ctx, docs)
	if err != nil {
		return nil, err
	}

	weekly, excluded := core.WeeklyNetTotals(docs)
	return &ReconcileResult{
		DocumentCount:      len(docs),
		Documents:          docs,
		Ledger:             ledger,
		Report:             report,
		Weekly:             weekly,
		ExcludedFromWeekly: excluded,
	}, nil
}

func (s *service) ExportLedger(ctx context.Context, dir string) ([]LedgerRecord, error) {
	res, err := s.Reconcile(ctx, dir)
	if err != nil {
		return nil, err
	}
	return LedgerRecords(res.Ledger), nil
}
