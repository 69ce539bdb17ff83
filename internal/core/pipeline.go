package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PipelineOptions configures one batch run.
type PipelineOptions struct {
	// CreditPrefix is the supplier's credit-memo invoice-number series.
	CreditPrefix string
	// ToleranceCentsPerDoc is the reconciliation tolerance in cents per
	// document.
	ToleranceCentsPerDoc int
	// Workers bounds the extraction/normalization pool. Values below 1 run
	// single-threaded.
	Workers int
	Table   *CanonicalTable
	Logger  zerolog.Logger
}

// Pipeline runs the full batch pass: extraction and normalization in
// parallel across independent documents, then single-threaded consolidation
// and analysis. A run either completes or fails atomically; an aborted run
// publishes nothing.
type Pipeline struct {
	extractor    *Extractor
	normalizer   *Normalizer
	consolidator *Consolidator
	analyzer     *Analyzer
	workers      int
	log          zerolog.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	table := opts.Table
	if table == nil {
		table = EmptyCanonicalTable()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	tolerance := decimal.New(int64(opts.ToleranceCentsPerDoc), -2)
	return &Pipeline{
		extractor:    NewExtractor(opts.CreditPrefix),
		normalizer:   NewNormalizer(opts.CreditPrefix, table, opts.Logger),
		consolidator: NewConsolidator(table, opts.Logger),
		analyzer:     NewAnalyzer(table, opts.CreditPrefix, tolerance),
		workers:      workers,
		log:          opts.Logger,
	}
}

// Run processes a closed document set top to bottom. The returned ledger and
// report are both nil/zero on error so callers can never publish a partial
// result as authoritative.
func (p *Pipeline) Run(ctx context.Context, raws []RawDocument) (*InventoryLedger, DiscrepancyReport, error) {
	docs, err := p.NormalizeAll(ctx, raws)
	if err != nil {
		return nil, DiscrepancyReport{}, err
	}
	return p.Complete(ctx, docs)
}

// Complete consolidates and analyzes an already-normalized document set.
func (p *Pipeline) Complete(ctx context.Context, docs []NormalizedDocument) (*InventoryLedger, DiscrepancyReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, DiscrepancyReport{}, fmt.Errorf("%w: %v", ErrRunAborted, err)
	}

	ledger := p.consolidator.Consolidate(docs)
	report := p.analyzer.Analyze(ledger, docs)

	p.log.Info().
		Int("documents", len(docs)).
		Int("items", ledger.ItemCount).
		Str("ledger_value", ledger.TotalValue.String()).
		Str("delta", report.Delta.String()).
		Bool("reconciled", report.Reconciled).
		Msg("reconciliation run complete")

	return ledger, report, nil
}

// NormalizeAll extracts and normalizes every raw document. Documents are
// independent at this stage, so the work fans out over a bounded pool; the
// result slice keeps ingestion order regardless of completion order.
func (p *Pipeline) NormalizeAll(ctx context.Context, raws []RawDocument) ([]NormalizedDocument, error) {
	docs := make([]NormalizedDocument, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, raw := range raws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			extracted := p.extractor.Extract(raw.RawText)
			docs[i] = p.normalizer.Normalize(raw, extracted)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunAborted, err)
	}
	return docs, nil
}
