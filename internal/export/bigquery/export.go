// Package bigquery exports snapshot collections to BigQuery for ad-hoc
// analytics. The data layer itself never reads from BigQuery; this is a
// one-way reporting sink.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/MansurAzad/cashbook/internal/domain"
)

const (
	datasetID         = "cashbook"
	transactionsTable = "transactions"
	accountsTable     = "accounts"
	dateFormat        = "2006-01-02"
)

// TransactionRow is the finance transaction as stored in
// cashbook.transactions.
type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"`
	Type          string              `bigquery:"type"`
	Amount        *big.Rat            `bigquery:"amount"` // NUMERIC
	Category      string              `bigquery:"category"`
	Date          civil.Date          `bigquery:"date"`
	Note          bigquery.NullString `bigquery:"note"`
	AccountID     bigquery.NullString `bigquery:"account_id"`
	AccountName   bigquery.NullString `bigquery:"account_name"`
	ExportedTS    time.Time           `bigquery:"exported_ts"`
}

// AccountRow is one account's state in cashbook.accounts.
type AccountRow struct {
	AccountID  string    `bigquery:"account_id"`
	Name       string    `bigquery:"name"`
	Type       string    `bigquery:"type"`
	Balance    *big.Rat  `bigquery:"balance"` // NUMERIC
	ExportedTS time.Time `bigquery:"exported_ts"`
}

// MonthlySpendRow is one (month, category) aggregate returned by
// MonthlySpend.
type MonthlySpendRow struct {
	Category string   `bigquery:"category"`
	Spent    *big.Rat `bigquery:"spent"`
}

// Exporter holds a shared BigQuery client.
type Exporter struct {
	client    *bigquery.Client
	projectID string
}

// NewExporter creates an exporter for the given project. Application Default
// Credentials must be configured.
func NewExporter(ctx context.Context, projectID string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}
	return &Exporter{client: client, projectID: projectID}, nil
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExportSnapshot inserts the snapshot's transactions and accounts. Rows are
// stamped with a shared export timestamp so one export forms one cohort.
func (e *Exporter) ExportSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	now := time.Now().UTC()

	txRows := make([]*TransactionRow, 0, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		row, err := transactionRow(tx, now)
		if err != nil {
			return fmt.Errorf("ExportSnapshot: %w", err)
		}
		txRows = append(txRows, row)
	}

	accRows := make([]*AccountRow, 0, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		accRows = append(accRows, &AccountRow{
			AccountID:  acc.ID,
			Name:       acc.Name,
			Type:       acc.Type,
			Balance:    new(big.Rat).SetFloat64(acc.Balance),
			ExportedTS: now,
		})
	}

	if err := e.insertTransactions(ctx, txRows); err != nil {
		return err
	}
	return e.insertAccounts(ctx, accRows)
}

func (e *Exporter) insertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := e.client.Dataset(datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("insertTransactions: inserting rows: %w", err)
	}
	return nil
}

func (e *Exporter) insertAccounts(ctx context.Context, rows []*AccountRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := e.client.Dataset(datasetID).Table(accountsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("insertAccounts: inserting rows: %w", err)
	}
	return nil
}

// MonthlySpend aggregates exported expense transactions by category for one
// month (YYYY-MM).
func (e *Exporter) MonthlySpend(ctx context.Context, month string) ([]*MonthlySpendRow, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("MonthlySpend: invalid month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, 0)

	q := e.client.Query(`
		SELECT
			category,
			SUM(amount) AS spent
		FROM ` + datasetID + `.` + transactionsTable + `
		WHERE type = 'expense'
		  AND date >= @start_date
		  AND date < @end_date
		GROUP BY category
		ORDER BY spent DESC
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start.Format(dateFormat)},
		{Name: "end_date", Value: end.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthlySpend: query read: %w", err)
	}

	var rows []*MonthlySpendRow
	for {
		var r MonthlySpendRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MonthlySpend: iterating rows: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// transactionRow maps a domain transaction onto its export schema.
func transactionRow(tx domain.Transaction, exportedTS time.Time) (*TransactionRow, error) {
	date, err := time.Parse(dateFormat, tx.Date)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid date %q: %w", tx.ID, tx.Date, err)
	}
	return &TransactionRow{
		TransactionID: tx.ID,
		Type:          string(tx.Type),
		Amount:        new(big.Rat).SetFloat64(tx.Amount),
		Category:      tx.Category,
		Date:          civil.DateOf(date),
		Note:          nullString(tx.Note),
		AccountID:     nullString(tx.AccountID),
		AccountName:   nullString(tx.AccountName),
		ExportedTS:    exportedTS,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
