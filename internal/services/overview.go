package services

import (
	"context"
	"errors"
	"fmt"

	"tally/internal/core"
	"tally/internal/storage"
)

// Overview aggregates the read models the UI renders: per-account balances,
// the month's transactions and its budget.
type Overview struct {
	storage *storage.Repository
}

func NewOverview(storage *storage.Repository) *Overview {
	return &Overview{storage: storage}
}

// AccountSummary pairs an account with its running balance and the budget
// and expenditure of one month.
type AccountSummary struct {
	Account     core.Account
	Balance     core.Money
	Budget      core.Money
	Expenditure core.Money
}

// MonthOverview is everything the dashboard shows for one calendar month.
type MonthOverview struct {
	Period       core.Period
	Accounts     []AccountSummary
	Transactions []core.Transaction
	Budget       core.Budget
	HasBudget    bool
	TotalBalance core.Money
}

// Month assembles the overview for one period across all unlocked accounts.
func (o *Overview) Month(ctx context.Context, p core.Period) (MonthOverview, error) {
	accounts, err := o.storage.UnlockedAccounts(ctx)
	if err != nil {
		return MonthOverview{}, fmt.Errorf("load accounts: %w", err)
	}

	months, err := o.storage.AccountMonthsForMonth(ctx, p.Year, p.Month)
	if err != nil {
		return MonthOverview{}, fmt.Errorf("load account months: %w", err)
	}
	byAccount := make(map[int64]core.AccountMonth, len(months))
	for _, am := range months {
		byAccount[am.AccountID] = am
	}

	ov := MonthOverview{Period: p}
	ids := make([]int64, 0, len(accounts))
	for _, acc := range accounts {
		balance, err := o.storage.AccountBalance(ctx, acc.ID)
		if err != nil {
			return MonthOverview{}, fmt.Errorf("balance for account %d: %w", acc.ID, err)
		}
		am := byAccount[acc.ID]
		ov.Accounts = append(ov.Accounts, AccountSummary{
			Account:     acc,
			Balance:     balance,
			Budget:      am.Budget,
			Expenditure: am.Expenditure,
		})
		ov.TotalBalance.Cents += balance.Cents
		ids = append(ids, acc.ID)
	}

	ov.Transactions, err = o.storage.TransactionsForAccountsMonth(ctx, ids, p.Year, p.Month)
	if err != nil {
		return MonthOverview{}, fmt.Errorf("load month transactions: %w", err)
	}

	budget, err := o.storage.BudgetForMonth(ctx, p.Year, p.Month)
	switch {
	case err == nil:
		ov.Budget = budget
		ov.HasBudget = true
	case errors.Is(err, core.ErrNotFound):
		// Months before budgeting started simply have none.
	default:
		return MonthOverview{}, fmt.Errorf("load budget: %w", err)
	}
	return ov, nil
}

// CurrentMonth is Month for today's period.
func (o *Overview) CurrentMonth(ctx context.Context) (MonthOverview, error) {
	now, _ := core.Today()
	return o.Month(ctx, now)
}
