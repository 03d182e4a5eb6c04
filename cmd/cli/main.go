package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/MansurAzad/cashbook/internal/classify"
	"github.com/MansurAzad/cashbook/internal/datasync"
	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
	"github.com/MansurAzad/cashbook/internal/gateway/gcs"
	"github.com/MansurAzad/cashbook/internal/localstore"
	"github.com/MansurAzad/cashbook/internal/logger"
	"github.com/MansurAzad/cashbook/internal/report"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "snapshot":
		runSnapshot(log)
	case "add-transaction":
		runAddTransaction(log)
	case "report":
		runReport(log)
	case "suggest":
		runSuggest(log)
	case "sync":
		runSync(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Cashbook CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  snapshot         Print the current data snapshot")
	fmt.Println("  add-transaction  Record an income or expense")
	fmt.Println("  report           Print totals, budget status and financial health")
	fmt.Println("  suggest          Suggest a category for a transaction note")
	fmt.Println("  sync             Retry pending operations and refresh from remote")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func storePath() string {
	if p := os.Getenv("CASHBOOK_STORE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "cashbook.json"
	}
	return home + "/.cashbook/store.json"
}

// openService wires the local store and, when a bucket is configured, the
// GCS gateway. An empty bucket yields an offline service.
func openService(ctx context.Context, bucket string, log zerolog.Logger) (*datasync.Service, func()) {
	store := localstore.Open(storePath(), log)

	var remote gateway.Remote
	closeFn := func() {}
	if bucket != "" {
		gw, err := gcs.New(ctx, bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS gateway")
		}
		remote = gw
		closeFn = func() { gw.Close() }
	}

	return datasync.New(store, remote, log), closeFn
}

func runSnapshot(log zerolog.Logger) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	svc, closeFn := openService(ctx, *bucket, log)
	defer closeFn()

	snap := svc.FetchData(ctx)

	fmt.Println("\n=== Snapshot ===")
	fmt.Printf("Transactions: %d\n", len(snap.Transactions))
	fmt.Printf("Accounts:     %d\n", len(snap.Accounts))
	fmt.Printf("Budgets:      %d\n", len(snap.Budgets))
	fmt.Printf("Goals:        %d\n", len(snap.Goals))
	fmt.Printf("Bills:        %d\n", len(snap.Bills))
	fmt.Printf("Investments:  %d\n", len(snap.Investments))
	fmt.Printf("Loans:        %d\n", len(snap.Loans))

	fmt.Printf("\n=== Accounts ===\n")
	for _, acc := range snap.Accounts {
		fmt.Printf("  %-20s %10.2f\n", acc.Name, acc.Balance)
	}

	pending := svc.PendingOperations()
	if len(pending) > 0 {
		fmt.Printf("\n=== Pending Operations (%d) ===\n", len(pending))
		for _, op := range pending {
			fmt.Printf("  %s  %s  %s\n", op.Timestamp.Format(time.RFC3339), op.Type, op.TargetID)
		}
	}
	fmt.Println()
}

func runAddTransaction(log zerolog.Logger) {
	fs := flag.NewFlagSet("add-transaction", flag.ExitOnError)
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records")
	amount := fs.Float64("amount", 0, "transaction amount")
	txType := fs.String("type", "expense", "transaction type: income or expense")
	category := fs.String("category", "", "category name")
	account := fs.String("account", "", "account ID to reconcile against")
	note := fs.String("note", "", "free-form note")
	date := fs.String("date", time.Now().Format("2006-01-02"), "transaction date (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	if *amount <= 0 {
		log.Fatal().Msg("Error: --amount must be positive")
	}
	if *txType != string(domain.TypeIncome) && *txType != string(domain.TypeExpense) {
		log.Fatal().Msg("Error: --type must be income or expense")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, closeFn := openService(ctx, *bucket, log)
	defer closeFn()

	snap, err := svc.AddTransaction(ctx, domain.Transaction{
		Amount:    *amount,
		Type:      domain.TransactionType(*txType),
		Category:  *category,
		AccountID: *account,
		Note:      *note,
		Date:      *date,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add transaction")
	}

	fmt.Printf("Recorded %s of %.2f (%d transactions total)\n", *txType, *amount, len(snap.Transactions))
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records")
	month := fs.String("month", time.Now().Format("2006-01"), "month for budget status (YYYY-MM)")
	fs.Parse(os.Args[2:])

	if _, err := time.Parse("2006-01", *month); err != nil {
		log.Fatal().Msg("Error: --month must be in YYYY-MM format")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, closeFn := openService(ctx, *bucket, log)
	defer closeFn()

	snap := svc.FetchData(ctx)

	totals := report.CalculateTotals(snap.Transactions)
	fmt.Println("\n=== Totals ===")
	fmt.Printf("Income:   %10.2f\n", totals.Income)
	fmt.Printf("Expenses: %10.2f\n", totals.Expense)
	fmt.Printf("Net:      %10.2f\n", totals.Income-totals.Expense)

	status := report.MonthlyBudgetStatus(snap.Transactions, snap.Budgets, *month)
	fmt.Printf("\n=== Budgets (%s) ===\n", *month)
	for _, item := range status.Items {
		fmt.Printf("  %-20s %8.2f / %8.2f  (%.0f%%)\n", item.Category, item.Spent, item.Amount, item.Percentage)
	}

	health := report.FinancialHealth(snap)
	fmt.Println("\n=== Financial Health ===")
	fmt.Printf("Net worth:    %10.2f\n", health.NetWorth)
	fmt.Printf("Savings rate: %9.1f%%\n", health.SavingsRate)
	fmt.Printf("Score:        %10d\n", health.Score)
	fmt.Println()
}

func runSuggest(log zerolog.Logger) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records")
	note := fs.String("note", "", "transaction note to classify")
	txType := fs.String("type", "expense", "transaction type: income or expense")
	fs.Parse(os.Args[2:])

	if *note == "" {
		log.Fatal().Msg("Error: --note is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, closeFn := openService(ctx, *bucket, log)
	defer closeFn()

	snap := svc.FetchData(ctx)

	suggester, err := classify.NewSuggester(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create suggester")
	}

	name, err := suggester.SuggestCategory(ctx, *note, domain.TransactionType(*txType), snap.Categories.All)
	if err != nil {
		log.Fatal().Err(err).Msg("Suggestion failed")
	}

	fmt.Printf("Suggested category: %s\n", name)
}

func runSync(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records")
	fs.Parse(os.Args[2:])

	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket is required (or set GCS_BUCKET)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, closeFn := openService(ctx, *bucket, log)
	defer closeFn()

	before := len(svc.PendingOperations())
	snap := svc.FetchData(ctx)
	after := len(svc.PendingOperations())

	fmt.Printf("Sync completed: %d pending before, %d pending after, %d transactions\n",
		before, after, len(snap.Transactions))
}
