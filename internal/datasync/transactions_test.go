package datasync

import (
	"context"
	"math"
	"testing"

	"github.com/MansurAzad/cashbook/internal/domain"
)

func seedAccount(t *testing.T, s *Service, name string, balance float64) string {
	t.Helper()
	snap, err := s.Add(context.Background(), domain.KindAccount, domain.Account{Name: name, Type: "bank", Balance: balance})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range snap.Accounts {
		if a.Name == name {
			return a.ID
		}
	}
	t.Fatalf("account %q not in snapshot", name)
	return ""
}

func accountBalance(t *testing.T, snap *domain.Snapshot, id string) float64 {
	t.Helper()
	for _, a := range snap.Accounts {
		if a.ID == id {
			return a.Balance
		}
	}
	t.Fatalf("account %s not in snapshot", id)
	return 0
}

func TestAddIncomeAdjustsBalance(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeIncome, Amount: 200, Category: "Salary", Date: "2024-05-01", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, acc); got != 1200 {
		t.Errorf("balance = %v, want 1200", got)
	}
}

func TestAddExpenseAdjustsBalance(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeExpense, Amount: 350, Category: "Food", Date: "2024-05-02", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, acc); got != 650 {
		t.Errorf("balance = %v, want 650", got)
	}
}

func TestDeleteTransactionReversesBalance(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeIncome, Amount: 200, Category: "Salary", Date: "2024-05-01", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := accountBalance(t, snap, acc); got != 1200 {
		t.Fatalf("balance after add = %v, want 1200", got)
	}
	txID := snap.Transactions[0].ID

	snap = s.DeleteTransaction(ctx, txID)

	if got := accountBalance(t, snap, acc); got != 1000 {
		t.Errorf("balance after delete = %v, want exactly 1000", got)
	}
	if len(snap.Transactions) != 0 {
		t.Errorf("transactions = %d after delete, want 0", len(snap.Transactions))
	}
}

func TestUpdateTransactionSameAccountCombinedDelta(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeExpense, Amount: 100, Category: "Food", Date: "2024-05-01", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}
	txID := snap.Transactions[0].ID

	// Expense 100 -> income 50: reverse -(-100) and apply +50.
	snap, err = s.UpdateTransaction(ctx, txID, domain.Transaction{
		Type: domain.TypeIncome, Amount: 50, Category: "Refund", Date: "2024-05-01", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, acc); got != 1050 {
		t.Errorf("balance = %v, want 1050", got)
	}
}

func TestUpdateTransactionAccountChangeReconcilesBoth(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	accA := seedAccount(t, s, "Bank A", 1000)
	accB := seedAccount(t, s, "Bank B", 500)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeExpense, Amount: 100, Category: "Food", Date: "2024-05-01", AccountID: accA,
	})
	if err != nil {
		t.Fatal(err)
	}
	txID := snap.Transactions[0].ID

	snap, err = s.UpdateTransaction(ctx, txID, domain.Transaction{
		Type: domain.TypeExpense, Amount: 100, Category: "Food", Date: "2024-05-01", AccountID: accB,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, accA); got != 1000 {
		t.Errorf("old account balance = %v, want restored 1000", got)
	}
	if got := accountBalance(t, snap, accB); got != 400 {
		t.Errorf("new account balance = %v, want 400", got)
	}
}

func TestUpdateTransactionDetachAccount(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeExpense, Amount: 100, Category: "Food", Date: "2024-05-01", AccountID: acc,
	})
	if err != nil {
		t.Fatal(err)
	}
	txID := snap.Transactions[0].ID

	snap, err = s.UpdateTransaction(ctx, txID, domain.Transaction{
		Type: domain.TypeExpense, Amount: 100, Category: "Food", Date: "2024-05-01",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, acc); got != 1000 {
		t.Errorf("balance = %v, want restored 1000 after detaching account", got)
	}
}

// TestBalanceInvariantSequence probes the core invariant: after an arbitrary
// mutation sequence, the balance equals the opening balance plus the signed
// sum of the transactions currently referencing the account.
func TestBalanceInvariantSequence(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	const opening = 1000.0
	acc := seedAccount(t, s, "Bank", opening)

	var snap *domain.Snapshot
	var err error

	add := func(typ domain.TransactionType, amount float64) string {
		t.Helper()
		snap, err = s.AddTransaction(ctx, domain.Transaction{Type: typ, Amount: amount, Category: "c", Date: "2024-06-01", AccountID: acc})
		if err != nil {
			t.Fatal(err)
		}
		return snap.Transactions[len(snap.Transactions)-1].ID
	}

	id1 := add(domain.TypeIncome, 500)
	_ = add(domain.TypeExpense, 120)
	id3 := add(domain.TypeExpense, 80)

	snap, err = s.UpdateTransaction(ctx, id3, domain.Transaction{Type: domain.TypeExpense, Amount: 200, Category: "c", Date: "2024-06-01", AccountID: acc})
	if err != nil {
		t.Fatal(err)
	}
	snap = s.DeleteTransaction(ctx, id1)

	var signedSum float64
	for _, tx := range snap.Transactions {
		if tx.AccountID == acc {
			signedSum += tx.SignedAmount()
		}
	}

	want := opening + signedSum
	if got := accountBalance(t, snap, acc); math.Abs(got-want) > 1e-9 {
		t.Errorf("balance = %v, want opening %v + signed sum %v = %v", got, opening, signedSum, want)
	}
}

func TestTransactionWithoutAccountLeavesBalancesAlone(t *testing.T) {
	s := newOfflineService()
	ctx := context.Background()
	acc := seedAccount(t, s, "Bank", 1000)

	snap, err := s.AddTransaction(ctx, domain.Transaction{
		Type: domain.TypeExpense, Amount: 75, Category: "Food", Date: "2024-05-01",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := accountBalance(t, snap, acc); got != 1000 {
		t.Errorf("balance = %v, want untouched 1000", got)
	}
}
