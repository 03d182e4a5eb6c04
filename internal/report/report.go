// Package report computes aggregate views over a snapshot. Everything here
// is a pure function: no side effects, no persistence.
package report

import (
	"strings"

	"github.com/MansurAzad/cashbook/internal/domain"
)

// Totals is the straight income/expense sum over a transaction set.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// CalculateTotals sums transaction amounts by type.
func CalculateTotals(transactions []domain.Transaction) Totals {
	var t Totals
	for _, tx := range transactions {
		switch tx.Type {
		case domain.TypeIncome:
			t.Income += tx.Amount
		case domain.TypeExpense:
			t.Expense += tx.Amount
		}
	}
	return t
}

// BudgetStatusItem is one budgeted category's standing for a month.
type BudgetStatusItem struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// BudgetStatus is the per-category budget standing plus an aggregate row.
// The aggregate sums only categories with an active budget, not all
// transactions.
type BudgetStatus struct {
	Items []BudgetStatusItem `json:"items"`
	Total BudgetStatusItem   `json:"total"`
}

// MonthlyBudgetStatus matches the month's budgets against expense
// transactions dated within that month (date prefix match on YYYY-MM).
func MonthlyBudgetStatus(transactions []domain.Transaction, budgets []domain.Budget, month string) BudgetStatus {
	spentByCategory := map[string]float64{}
	for _, tx := range transactions {
		if tx.Type != domain.TypeExpense || !strings.HasPrefix(tx.Date, month) {
			continue
		}
		spentByCategory[tx.Category] += tx.Amount
	}

	status := BudgetStatus{Items: []BudgetStatusItem{}, Total: BudgetStatusItem{Category: "total"}}
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		spent := spentByCategory[b.Category]
		status.Items = append(status.Items, BudgetStatusItem{
			Category:   b.Category,
			Amount:     b.Amount,
			Spent:      spent,
			Remaining:  b.Amount - spent,
			Percentage: percentage(spent, b.Amount),
		})
		status.Total.Amount += b.Amount
		status.Total.Spent += spent
	}
	status.Total.Remaining = status.Total.Amount - status.Total.Spent
	status.Total.Percentage = percentage(status.Total.Spent, status.Total.Amount)
	return status
}

// percentage is spent over amount, capped at 100. A zero budget counts as
// fully used once anything is spent against it.
func percentage(spent, amount float64) float64 {
	if amount <= 0 {
		if spent > 0 {
			return 100
		}
		return 0
	}
	p := spent / amount * 100
	if p > 100 {
		return 100
	}
	return p
}

// Health is the financial-health summary view.
type Health struct {
	NetWorth    float64 `json:"netWorth"`
	SavingsRate float64 `json:"savingsRate"`
	Score       int     `json:"score"`
}

// FinancialHealth computes net worth, savings rate and a simple additive
// score: up to 40 points for savings-rate bands, 30 for no unpaid bills,
// 30 for holding any investment, capped at 100.
func FinancialHealth(snap *domain.Snapshot) Health {
	var h Health

	for _, a := range snap.Accounts {
		h.NetWorth += a.Balance
	}
	for _, g := range snap.Goals {
		h.NetWorth += g.SavedAmount
	}
	for _, inv := range snap.Investments {
		h.NetWorth += inv.CurrentValue
	}
	unpaidBills := 0
	for _, b := range snap.Bills {
		if !b.IsPaid {
			h.NetWorth -= b.Amount
			unpaidBills++
		}
	}

	totals := CalculateTotals(snap.Transactions)
	if totals.Income > 0 {
		h.SavingsRate = (totals.Income - totals.Expense) / totals.Income * 100
	}

	switch {
	case h.SavingsRate >= 20:
		h.Score += 40
	case h.SavingsRate >= 10:
		h.Score += 30
	case h.SavingsRate >= 5:
		h.Score += 20
	case h.SavingsRate > 0:
		h.Score += 10
	}
	if unpaidBills == 0 {
		h.Score += 30
	}
	if len(snap.Investments) > 0 {
		h.Score += 30
	}
	if h.Score > 100 {
		h.Score = 100
	}
	return h
}
