package domain

import (
	"github.com/google/uuid"
)

// Kind identifies one persisted record collection. The string value doubles
// as the local store key and the remote object-store class name.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindCategory    Kind = "category"
	KindBudget      Kind = "budget"
	KindGoal        Kind = "goal"
	KindBill        Kind = "bill"
	KindInvestment  Kind = "investment"
	KindAccount     Kind = "account"
	KindLoan        Kind = "loan"

	// KindSettings and KindShopping are persisted locally alongside the
	// snapshot collections but are not part of the snapshot itself.
	KindSettings Kind = "settings"
	KindShopping Kind = "shopping"
)

// SnapshotKinds lists the eight collections assembled into a Snapshot, in
// stable order.
var SnapshotKinds = []Kind{
	KindTransaction,
	KindCategory,
	KindBudget,
	KindGoal,
	KindBill,
	KindInvestment,
	KindAccount,
	KindLoan,
}

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Transaction is a single income or expense record, optionally attributed to
// an account. A transaction attributed to an account participates in that
// account's running balance.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"` // ISO date, YYYY-MM-DD
	Note        string          `json:"note,omitempty"`
	AccountID   string          `json:"account_id,omitempty"`
	AccountName string          `json:"account_name,omitempty"`
}

// Account holds a running balance maintained incrementally by the balance
// reconciler: opening balance plus the signed sum of every transaction
// currently referencing the account.
type Account struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"` // cash | bank | mobile | card | ...
	Balance float64 `json:"balance"`
}

// Category labels transactions. Default categories carry ids prefixed
// "default-" and are not user-deletable.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Type  TransactionType `json:"type"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
}

// Budget caps spending for one category in one month. Uniqueness per
// (category, month) is the intended shape but is not enforced at this layer.
type Budget struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Month    string  `json:"month"` // YYYY-MM
}

// Goal is a savings target.
type Goal struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	TargetAmount float64 `json:"target_amount"`
	SavedAmount  float64 `json:"saved_amount"`
	Deadline     string  `json:"deadline"`
}

// Bill is a one-off or recurring obligation.
type Bill struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	DueDate   string  `json:"due_date"`
	Recurring string  `json:"recurring"` // none | monthly | yearly
	IsPaid    bool    `json:"is_paid"`
}

// Investment tracks invested capital against its current value.
type Investment struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	InvestedAmount float64 `json:"investedAmount"`
	CurrentValue   float64 `json:"currentValue"`
}

// Loan is money given to or taken from someone outside the tracked accounts.
type Loan struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Type    string  `json:"type"` // given | taken
	DueDate string  `json:"dueDate,omitempty"`
	Notes   string  `json:"notes,omitempty"`
}

// Settings is the per-device preferences record, read and written
// independently of the main snapshot.
type Settings struct {
	DarkMode     bool   `json:"darkMode"`
	PrivacyMode  bool   `json:"privacyMode"`
	Currency     string `json:"currency"`
	ThemeColor   string `json:"themeColor"`
	EnableHaptic bool   `json:"enableHaptic"`
	PinLock      string `json:"pinLock"`
}

// ShoppingItem belongs to the shopping-list collection, persisted locally
// alongside the snapshot collections.
type ShoppingItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Qty    int    `json:"qty"`
	Bought bool   `json:"bought"`
}

// CategorySet is the category collection partitioned by type, as consumed by
// the views.
type CategorySet struct {
	All     []Category `json:"all"`
	Income  []Category `json:"income"`
	Expense []Category `json:"expense"`
}

// Snapshot is the full in-memory view of all record collections handed to
// callers after any mutation or on load. Field names and nesting are part of
// the external contract.
type Snapshot struct {
	Transactions []Transaction `json:"transactions"`
	Categories   CategorySet   `json:"categories"`
	Budgets      []Budget      `json:"budgets"`
	Goals        []Goal        `json:"goals"`
	Bills        []Bill        `json:"bills"`
	Investments  []Investment  `json:"investments"`
	Accounts     []Account     `json:"accounts"`
	Loans        []Loan        `json:"loans"`
}

// NewID returns a fresh record id. Locally-created ids are indistinguishable
// from remotely-assigned ones; whether a record has been confirmed remotely
// is tracked by the unsynced-id registry, not encoded in the id text.
func NewID() string {
	return uuid.New().String()
}

// DefaultCategories returns the fixed category set synthesized whenever the
// category collection is empty: 2 income and 6 expense entries with ids
// default-1 through default-8. These are not user-deletable.
func DefaultCategories() []Category {
	return []Category{
		{ID: "default-1", Name: "Salary", Type: TypeIncome, Icon: "briefcase", Color: "#22c55e"},
		{ID: "default-2", Name: "Other Income", Type: TypeIncome, Icon: "coins", Color: "#10b981"},
		{ID: "default-3", Name: "Food", Type: TypeExpense, Icon: "utensils", Color: "#f97316"},
		{ID: "default-4", Name: "Transport", Type: TypeExpense, Icon: "bus", Color: "#3b82f6"},
		{ID: "default-5", Name: "Shopping", Type: TypeExpense, Icon: "shopping-bag", Color: "#a855f7"},
		{ID: "default-6", Name: "Bills", Type: TypeExpense, Icon: "file-text", Color: "#ef4444"},
		{ID: "default-7", Name: "Entertainment", Type: TypeExpense, Icon: "film", Color: "#ec4899"},
		{ID: "default-8", Name: "Health", Type: TypeExpense, Icon: "heart-pulse", Color: "#14b8a6"},
	}
}

// SplitCategories partitions a category collection by type.
func SplitCategories(all []Category) CategorySet {
	set := CategorySet{All: all}
	for _, c := range all {
		switch c.Type {
		case TypeIncome:
			set.Income = append(set.Income, c)
		case TypeExpense:
			set.Expense = append(set.Expense, c)
		}
	}
	return set
}

// SignedAmount returns the transaction's effect on an account balance:
// positive for income, negative for expense.
func (t Transaction) SignedAmount() float64 {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return -t.Amount
}
