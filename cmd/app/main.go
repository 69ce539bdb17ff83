package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"invoice-recon/internal/app"
	"invoice-recon/internal/config"
	"invoice-recon/internal/db"
	"invoice-recon/internal/store"
	"invoice-recon/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "run":
		dir := requireDir(log)
		svc := mustService(cfg, log)
		res, err := svc.Reconcile(ctx, dir)
		if err != nil {
			log.Fatal().Err(err).Msg("reconciliation failed")
		}
		printJSON(log, res.Report)
		if !res.Report.Reconciled {
			// Non-zero exit so batch callers cannot miss an unreconciled run.
			os.Exit(3)
		}

	case "export":
		dir := requireDir(log)
		svc := mustService(cfg, log)
		records, err := svc.ExportLedger(ctx, dir)
		if err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
		printJSON(log, records)

	case "schema":
		printJSON(log, map[string]interface{}{
			"discrepancy_report": app.ReportSchema(),
			"ledger_record":      app.LedgerRecordSchema(),
		})

	case "publish":
		dir := requireDir(log)
		svc := mustService(cfg, log)
		res, err := svc.Reconcile(ctx, dir)
		if err != nil {
			log.Fatal().Err(err).Msg("reconciliation failed")
		}

		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to database")
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("unable to apply snapshot schema")
		}
		runID, err := st.PublishRun(ctx, res.Ledger, res.Report)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to publish run")
		}
		log.Info().Int64("run_id", runID).Bool("reconciled", res.Report.Reconciled).Msg("run published")

	default:
		usage()
		os.Exit(2)
	}
}

func requireDir(log zerolog.Logger) string {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	dir := os.Args[2]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Fatal().Str("dir", dir).Msg("document directory does not exist")
	}
	return dir
}

func mustService(cfg *config.Config, log zerolog.Logger) app.Service {
	svc, err := app.NewService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to start")
	}
	return svc
}

func printJSON(log zerolog.Logger, v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("unable to encode output")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  app run <dir>      reconcile a directory of extracted documents and print the discrepancy report
  app export <dir>   reconcile and print the flattened ledger records
  app schema         print the JSON Schema of the report and ledger record formats
  app publish <dir>  reconcile and persist the run snapshot to Postgres (DATABASE_URL)`)
}
