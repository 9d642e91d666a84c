package core

import (
	"errors"
	"strings"
)

// Reserved category ids. These rows always exist, are never shown in entry
// forms and are never user-editable.
const (
	CategoryRepeatExpense   int64 = 0
	CategoryRepeatIncome    int64 = 1
	CategoryTransferExpense int64 = 2
	CategoryTransferIncome  int64 = 3
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrEmptyName            = errors.New("empty name")
	ErrNotFound             = errors.New("not found")
	ErrReservedCategoryName = errors.New("reserved category name")
	ErrDuplicateCategory    = errors.New("duplicate category name")
	ErrDuplicateFavourite   = errors.New("duplicate favourite transaction")
	ErrAccountLocked        = errors.New("account is locked")
	ErrAccountOutdated      = errors.New("account is outdated")
	ErrAccountHasFunds      = errors.New("account still holds funds")
	ErrRecurringNotActive   = errors.New("recurring transaction is not active")
)

// reservedLabels may never be used for user categories, under any casing.
var reservedLabels = []string{"repeat", "transfer"}

// IsReservedCategoryLabel reports whether label collides with a reserved
// system category name, case-insensitively.
func IsReservedCategoryLabel(label string) bool {
	for _, r := range reservedLabels {
		if strings.EqualFold(strings.TrimSpace(label), r) {
			return true
		}
	}
	return false
}

// RepeatCategoryFor returns the reserved category id carried by transactions
// materialized from a recurring rule.
func RepeatCategoryFor(isExpense bool) int64 {
	if isExpense {
		return CategoryRepeatExpense
	}
	return CategoryRepeatIncome
}

// TransferCategoryFor returns the reserved category id carried by the two
// legs of an account transfer.
func TransferCategoryFor(isExpense bool) int64 {
	if isExpense {
		return CategoryTransferExpense
	}
	return CategoryTransferIncome
}

// Currency is a display label ("Euro") plus its unit symbol.
type Currency struct {
	Label string
	Unit  string
}

// Transaction is one calendar-month money movement on an account. IsSmear
// marks instances generated from a recurring rule rather than entered by the
// user; such rows also carry the owning RecurringID.
type Transaction struct {
	ID          int64
	Name        string
	Amount      Money
	IsExpense   bool
	IsSmear     bool
	IsRepeat    bool
	Year        int
	Month       int
	Day         int
	AccountID   int64
	CategoryID  int64
	RecurringID int64 // zero when not generated from a recurring rule
}

// Period returns the calendar month the transaction belongs to.
func (t Transaction) Period() Period {
	return Period{Year: t.Year, Month: t.Month}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Day > 31 {
		return ErrInvalidPeriod
	}
	return nil
}

// FavouriteTransaction is a quick-entry template, unique on
// (name, amount, category, account). IsSmear is always false: templates are
// entered by hand, never generated from an amortized rule, and the flag is
// carried so entries created from a template line up with the transactions
// table.
type FavouriteTransaction struct {
	ID         int64
	Name       string
	Amount     Money
	IsExpense  bool
	IsSmear    bool
	CategoryID int64
	AccountID  int64
}

func (f FavouriteTransaction) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if f.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// RecurringTransaction owns the set of transactions generated from its
// active month range. Amount is the figure as the user declared it; for
// non-monthly rules MonthlyAmount carries the amortized installment that is
// written onto generated transactions. Both are persisted so the annual
// figure survives amortization.
type RecurringTransaction struct {
	ID            int64
	Name          string
	Amount        Money
	MonthlyAmount Money
	IsExpense     bool
	IsMonthly     bool
	Start         Period
	End           Period
	AccountID     int64
}

// InstallmentAmount derives the per-month amount written onto generated
// transactions: the declared amount for monthly rules, one twelfth of it
// otherwise.
func (r RecurringTransaction) InstallmentAmount() Money {
	if r.IsMonthly {
		return r.Amount
	}
	return r.Amount.Amortized()
}

// ActiveAt reports whether the rule is active at now: started at or before
// now and ending strictly after now.
func (r RecurringTransaction) ActiveAt(now Period) bool {
	return !r.Start.After(now) && r.End.After(now)
}

func (r RecurringTransaction) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if r.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !r.Start.Valid() || !r.End.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// Category labels transactions. ToShow hides a category from entry forms
// without deleting the history that references it.
type Category struct {
	ID             int64
	Label          string
	IsExpense      bool
	ToShow         bool
	IsUserCategory bool
}

// Account is a money container in a single currency. Exactly one account is
// the default. A locked account is immutable to balance-affecting operations
// and cannot be unlocked once superseded by a currency conversion; such
// predecessors carry the successor's back-reference and a closing amount.
type Account struct {
	ID             int64
	Label          string
	Currency       Currency
	IsLocked       bool
	IsDefault      bool
	StartingAmount Money
	PrevAccountID  int64 // predecessor in a currency-conversion chain, zero if none
	ClosingAmount  Money // balance at conversion time, set on predecessors only
}

// AccountMonth is the per-account, per-month budget/expenditure row. Rows are
// provisioned in bulk over a fixed horizon when the account is created; the
// account's running balance is the sum of budget minus expenditure over all
// of them.
type AccountMonth struct {
	AccountID   int64
	Year        int
	Month       int
	Budget      Money
	Expenditure Money
}

// BudgetItem is one named planned amount inside a monthly budget.
type BudgetItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount_cents"`
}

// BudgetShare routes a percentage of the budget to an account.
type BudgetShare struct {
	IsTransfer bool    `json:"is_transfer"`
	Percentage float64 `json:"percentage"`
	Name       string  `json:"name"`
	AccountID  int64   `json:"account_id"`
}

// Budget is keyed by calendar month; the key is immutable once created and
// only Items and Distribution may change afterwards.
type Budget struct {
	Year         int
	Month        int
	Items        []BudgetItem
	Distribution []BudgetShare
}

// BudgetTemplate is the user's default budget, used to seed new periods
// during monthly administration.
type BudgetTemplate struct {
	Items        []BudgetItem  `json:"items"`
	Distribution []BudgetShare `json:"distribution"`
}

// User is the singleton settings row (id 0).
type User struct {
	ID            int64
	Currency      Currency
	DefaultBudget BudgetTemplate
	LastLogin     Period
}
