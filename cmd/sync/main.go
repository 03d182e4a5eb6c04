package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MansurAzad/cashbook/internal/datasync"
	"github.com/MansurAzad/cashbook/internal/gateway/gcs"
	"github.com/MansurAzad/cashbook/internal/localstore"
	"github.com/MansurAzad/cashbook/internal/logger"
)

// One-shot sync: replay whatever is queued, then refresh the local
// collections from the remote store. Intended for cron or manual runs.
func main() {
	var (
		storePath = flag.String("store", defaultStorePath(), "path to the local store file")
		bucket    = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records (or set GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()

	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket is required (or set GCS_BUCKET)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	gw, err := gcs.New(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS gateway")
	}
	defer gw.Close()

	store := localstore.Open(*storePath, log)
	svc := datasync.New(store, gw, log)

	pending := len(svc.PendingOperations())
	log.Info().Int("pending", pending).Msg("Starting sync")

	snap := svc.FetchData(ctx)

	remaining := len(svc.PendingOperations())
	log.Info().
		Int("pending_before", pending).
		Int("pending_after", remaining).
		Int("transactions", len(snap.Transactions)).
		Msg("Sync completed")

	fmt.Printf("Sync completed: %d operations replayed, %d still pending\n", pending-remaining, remaining)
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
