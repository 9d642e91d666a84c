package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/core"
)

const transactionColumns = `id, name, amount_cents, is_expense, is_smear, is_repeat,
	year, month, day, account_id, category_id, COALESCE(recurring_id, 0)`

// TransactionsForMonth returns one account's transactions for a calendar month.
func (r *Repository) TransactionsForMonth(ctx context.Context, accountID int64, year, month int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND year = ? AND month = ?
	`, accountID, year, month)
	if err != nil {
		return nil, fmt.Errorf("query month transactions: %w", err)
	}
	return scanTransactions(rows)
}

// TransactionsForAccountsMonth returns the month's transactions across a set
// of accounts.
func (r *Repository) TransactionsForAccountsMonth(ctx context.Context, accountIDs []int64, year, month int) ([]core.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	args := []any{year, month}
	for _, id := range accountIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE year = ? AND month = ? AND account_id IN (`+placeholders(len(accountIDs))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts month transactions: %w", err)
	}
	return scanTransactions(rows)
}

// TransactionsForAccount returns every transaction on one account,
// unscoped by period.
func (r *Repository) TransactionsForAccount(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ?
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query account transactions: %w", err)
	}
	return scanTransactions(rows)
}

// TransactionsForAccounts returns every transaction across a set of accounts.
func (r *Repository) TransactionsForAccounts(ctx context.Context, accountIDs []int64) ([]core.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(accountIDs))
	for i, id := range accountIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id IN (`+placeholders(len(accountIDs))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts transactions: %w", err)
	}
	return scanTransactions(rows)
}

// TransactionByID returns one transaction or core.ErrNotFound.
func (r *Repository) TransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	return getTransaction(ctx, r.db, id)
}

// AddTransaction inserts a transaction and adjusts the matching
// account-month row in the same scope.
func (r *Repository) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertTransaction(ctx, tx, t)
		if err != nil {
			return err
		}
		return applyMonthDelta(ctx, tx, t, +1)
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"name", t.Name,
		"amount_cents", t.Amount.Cents,
		"account_id", t.AccountID,
		"year", t.Year,
		"month", t.Month)
	return id, nil
}

// UpdateTransaction replaces a transaction in full, reversing the old row's
// account-month contribution and applying the new one.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.execTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransaction(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if err := applyMonthDelta(ctx, tx, old, -1); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET name = ?, amount_cents = ?, is_expense = ?, is_smear = ?, is_repeat = ?,
				year = ?, month = ?, day = ?, account_id = ?, category_id = ?, recurring_id = ?
			WHERE id = ?
		`, t.Name, t.Amount.Cents, boolToInt(t.IsExpense), boolToInt(t.IsSmear), boolToInt(t.IsRepeat),
			t.Year, t.Month, t.Day, t.AccountID, t.CategoryID, nullableID(t.RecurringID), t.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return applyMonthDelta(ctx, tx, t, +1)
	})
}

// DeleteTransaction removes a transaction and reverses its account-month
// contribution.
func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := applyMonthDelta(ctx, tx, old, -1); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
}

// ScaleTransactionAmounts multiplies transaction amounts for a set of
// accounts by an exchange-rate factor. Used during currency conversion.
func (r *Repository) ScaleTransactionAmounts(ctx context.Context, rate float64, accountIDs []int64) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		return scaleTransactions(ctx, tx, rate, accountIDs)
	})
}

func scaleTransactions(ctx context.Context, q dbtx, rate float64, accountIDs []int64) error {
	if len(accountIDs) == 0 {
		return nil
	}
	args := []any{rate}
	for _, id := range accountIDs {
		args = append(args, id)
	}
	_, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET amount_cents = CAST(ROUND(amount_cents * ?) AS INTEGER)
		WHERE account_id IN (`+placeholders(len(accountIDs))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("scale transaction amounts: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, q dbtx, t core.Transaction) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO transactions
			(name, amount_cents, is_expense, is_smear, is_repeat, year, month, day, account_id, category_id, recurring_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Name, t.Amount.Cents, boolToInt(t.IsExpense), boolToInt(t.IsSmear), boolToInt(t.IsRepeat),
		t.Year, t.Month, t.Day, t.AccountID, t.CategoryID, nullableID(t.RecurringID))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}
	return id, nil
}

// applyMonthDelta folds a transaction into its account-month row: expenses
// accumulate on expenditure, income on budget. sign -1 reverses a previous
// contribution. Months outside the provisioned horizon get a row on demand.
func applyMonthDelta(ctx context.Context, q dbtx, t core.Transaction, sign int64) error {
	delta := t.Amount.Cents * sign
	var budget, expenditure int64
	if t.IsExpense {
		expenditure = delta
	} else {
		budget = delta
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO account_months (account_id, year, month, budget_cents, expenditure_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, year, month) DO UPDATE SET
			budget_cents = budget_cents + excluded.budget_cents,
			expenditure_cents = expenditure_cents + excluded.expenditure_cents
	`, t.AccountID, t.Year, t.Month, budget, expenditure)
	if err != nil {
		return fmt.Errorf("apply account month delta: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q dbtx, id int64) (core.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var isExpense, isSmear, isRepeat int64
	err := row.Scan(&t.ID, &t.Name, &t.Amount.Cents, &isExpense, &isSmear, &isRepeat,
		&t.Year, &t.Month, &t.Day, &t.AccountID, &t.CategoryID, &t.RecurringID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.IsExpense = isExpense == 1
	t.IsSmear = isSmear == 1
	t.IsRepeat = isRepeat == 1
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
