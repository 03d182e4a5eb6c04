package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MansurAzad/cashbook/internal/datasync"
	bqexport "github.com/MansurAzad/cashbook/internal/export/bigquery"
	"github.com/MansurAzad/cashbook/internal/localstore"
	"github.com/MansurAzad/cashbook/internal/logger"
)

// Exports the local snapshot to BigQuery for analysis. The export reads the
// local store only; it does not touch the remote record store.
func main() {
	var (
		storePath = flag.String("store", defaultStorePath(), "path to the local store file")
		projectID = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT env)")
		month     = flag.String("month", "", "if set, print monthly spend per category for YYYY-MM after exporting")
	)
	flag.Parse()

	log := logger.New()

	if *projectID == "" {
		log.Fatal().Msg("Error: --project is required (or set GOOGLE_CLOUD_PROJECT)")
	}
	if *month != "" {
		if _, err := time.Parse("2006-01", *month); err != nil {
			log.Fatal().Msg("Error: --month must be in YYYY-MM format")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := localstore.Open(*storePath, log)
	svc := datasync.New(store, nil, log)
	snap := svc.FetchData(ctx)

	exporter, err := bqexport.NewExporter(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exporter")
	}
	defer exporter.Close()

	log.Info().
		Int("transactions", len(snap.Transactions)).
		Int("accounts", len(snap.Accounts)).
		Msg("Exporting snapshot")

	if err := exporter.ExportSnapshot(ctx, snap); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d transactions and %d accounts\n", len(snap.Transactions), len(snap.Accounts))

	if *month != "" {
		rows, err := exporter.MonthlySpend(ctx, *month)
		if err != nil {
			log.Fatal().Err(err).Msg("Monthly spend query failed")
		}

		fmt.Printf("\n=== Spend by category (%s) ===\n", *month)
		for _, row := range rows {
			fmt.Printf("  %-20s %s\n", row.Category, row.Spent.FloatString(2))
		}
	}
}

func defaultStorePath() string {
	if p := os.Getenv("CASHBOOK_STORE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "cashbook.json"
	}
	return home + "/.cashbook/store.json"
}
