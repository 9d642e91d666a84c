package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

const recurringColumns = `id, name, amount_cents, monthly_amount_cents, is_expense, is_monthly,
	start_year, start_month, end_year, end_month, account_id`

// SegmentedRecurring partitions every recurring rule by where its range
// falls relative to a fixed "now".
type SegmentedRecurring struct {
	Active    []core.RecurringTransaction
	Completed []core.RecurringTransaction
	Future    []core.RecurringTransaction
}

// AddRecurring inserts a recurring rule and materializes one transaction per
// month of its declared range, all in one scope. The returned rule carries
// the assigned id and the derived monthly amount.
func (r *Repository) AddRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	rt.MonthlyAmount = rt.InstallmentAmount()
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recurring_transactions
				(name, amount_cents, monthly_amount_cents, is_expense, is_monthly,
				 start_year, start_month, end_year, end_month, account_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rt.Name, rt.Amount.Cents, rt.MonthlyAmount.Cents, boolToInt(rt.IsExpense), boolToInt(rt.IsMonthly),
			rt.Start.Year, rt.Start.Month, rt.End.Year, rt.End.Month, rt.AccountID)
		if err != nil {
			return fmt.Errorf("insert recurring: %w", err)
		}
		rt.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("recurring insert id: %w", err)
		}
		return materializeRecurring(ctx, tx, rt, core.ExpandPeriods(rt.Start, rt.End))
	})
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	slog.InfoContext(ctx, "Recurring transaction created",
		"id", rt.ID,
		"name", rt.Name,
		"monthly_amount_cents", rt.MonthlyAmount.Cents,
		"start", fmt.Sprintf("%d-%02d", rt.Start.Year, rt.Start.Month),
		"end", fmt.Sprintf("%d-%02d", rt.End.Year, rt.End.Month))
	return rt, nil
}

// UpdateRecurring rewrites a rule. When the declared range is unchanged the
// new amount, account and expense flag are pushed onto every linked
// transaction in place; when the range changed the linked set is deleted and
// regenerated. The rule row itself is persisted last, in the same scope.
func (r *Repository) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	rt.MonthlyAmount = rt.InstallmentAmount()
	return r.execTx(ctx, func(tx *sql.Tx) error {
		old, err := getRecurring(ctx, tx, rt.ID)
		if err != nil {
			return err
		}
		sameRange := old.Start == rt.Start && old.End == rt.End
		if sameRange {
			changed := old.Amount != rt.Amount || old.IsMonthly != rt.IsMonthly ||
				old.AccountID != rt.AccountID || old.IsExpense != rt.IsExpense
			if changed {
				if err := repushLinkedTransactions(ctx, tx, rt); err != nil {
					return err
				}
			}
		} else {
			if err := deleteLinkedTransactions(ctx, tx, rt.ID); err != nil {
				return err
			}
			if err := materializeRecurring(ctx, tx, rt, core.ExpandPeriods(rt.Start, rt.End)); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE recurring_transactions
			SET name = ?, amount_cents = ?, monthly_amount_cents = ?, is_expense = ?, is_monthly = ?,
				start_year = ?, start_month = ?, end_year = ?, end_month = ?, account_id = ?
			WHERE id = ?
		`, rt.Name, rt.Amount.Cents, rt.MonthlyAmount.Cents, boolToInt(rt.IsExpense), boolToInt(rt.IsMonthly),
			rt.Start.Year, rt.Start.Month, rt.End.Year, rt.End.Month, rt.AccountID, rt.ID)
		if err != nil {
			return fmt.Errorf("update recurring: %w", err)
		}
		return nil
	})
}

// DeleteRecurring removes a rule and every transaction it generated; no
// orphans survive the scope.
func (r *Repository) DeleteRecurring(ctx context.Context, id int64) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRecurring(ctx, tx, id); err != nil {
			return err
		}
		if err := deleteLinkedTransactions(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM recurring_transactions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete recurring: %w", err)
		}
		return nil
	})
}

// StopRecurring pulls an active rule's end period back to now and retracts
// the transactions already generated for months past it. History up to and
// including now is untouched. Stopping a rule that is not currently active
// is refused.
func (r *Repository) StopRecurring(ctx context.Context, id int64, now core.Period) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		rt, err := getRecurring(ctx, tx, id)
		if err != nil {
			return err
		}
		if !rt.ActiveAt(now) {
			return fmt.Errorf("recurring %d: %w", id, core.ErrRecurringNotActive)
		}
		if err := retractLinkedAfter(ctx, tx, id, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE recurring_transactions SET end_year = ?, end_month = ? WHERE id = ?
		`, now.Year, now.Month, id)
		if err != nil {
			return fmt.Errorf("stop recurring: %w", err)
		}
		return nil
	})
}

// RecurringByID returns one rule or core.ErrNotFound.
func (r *Repository) RecurringByID(ctx context.Context, id int64) (core.RecurringTransaction, error) {
	return getRecurring(ctx, r.db, id)
}

// ActiveRecurring returns rules whose range covers now: started at or before
// now and ending strictly after it.
func (r *Repository) ActiveRecurring(ctx context.Context, now core.Period) ([]core.RecurringTransaction, error) {
	return queryRecurring(ctx, r.db, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions
		WHERE (end_year > ? OR (end_year = ? AND end_month > ?))
		  AND (start_year < ? OR (start_year = ? AND start_month <= ?))
	`, now.Year, now.Year, now.Month, now.Year, now.Year, now.Month)
}

// SegmentedRecurring partitions all rules into active, completed and future
// sets relative to now.
func (r *Repository) SegmentedRecurring(ctx context.Context, now core.Period) (SegmentedRecurring, error) {
	var seg SegmentedRecurring
	var err error
	if seg.Active, err = r.ActiveRecurring(ctx, now); err != nil {
		return seg, err
	}
	if seg.Completed, err = queryRecurring(ctx, r.db, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions
		WHERE end_year < ? OR (end_year = ? AND end_month <= ?)
	`, now.Year, now.Year, now.Month); err != nil {
		return seg, err
	}
	if seg.Future, err = queryRecurring(ctx, r.db, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions
		WHERE start_year > ? OR (start_year = ? AND start_month > ?)
	`, now.Year, now.Year, now.Month); err != nil {
		return seg, err
	}
	return seg, nil
}

// LinkedTransactionIDs returns the ids of the transactions a rule generated.
func (r *Repository) LinkedTransactionIDs(ctx context.Context, recurringID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM transactions WHERE recurring_id = ?", recurringID)
	if err != nil {
		return nil, fmt.Errorf("query linked transaction ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan linked id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// materializeRecurring synthesizes one transaction per period: day 1,
// smear and repeat flags set, the reserved Repeat category, the owning
// rule's id and its per-month installment amount.
func materializeRecurring(ctx context.Context, tx *sql.Tx, rt core.RecurringTransaction, periods []core.Period) error {
	installment := rt.InstallmentAmount()
	for _, p := range periods {
		t := core.Transaction{
			Name:        rt.Name,
			Amount:      installment,
			IsExpense:   rt.IsExpense,
			IsSmear:     true,
			IsRepeat:    true,
			Year:        p.Year,
			Month:       p.Month,
			Day:         1,
			AccountID:   rt.AccountID,
			CategoryID:  core.RepeatCategoryFor(rt.IsExpense),
			RecurringID: rt.ID,
		}
		if _, err := insertTransaction(ctx, tx, t); err != nil {
			return fmt.Errorf("materialize period %d-%02d: %w", p.Year, p.Month, err)
		}
		if err := applyMonthDelta(ctx, tx, t, +1); err != nil {
			return err
		}
	}
	return nil
}

// repushLinkedTransactions pushes a rule's new amount, account and expense
// flag onto every linked transaction in place, keeping ids and periods, and
// rebalances the affected account months.
func repushLinkedTransactions(ctx context.Context, tx *sql.Tx, rt core.RecurringTransaction) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE recurring_id = ?
	`, rt.ID)
	if err != nil {
		return fmt.Errorf("query linked transactions: %w", err)
	}
	linked, err := scanTransactions(rows)
	if err != nil {
		return err
	}
	if len(linked) == 0 {
		return nil
	}
	installment := rt.InstallmentAmount()
	for _, old := range linked {
		if err := applyMonthDelta(ctx, tx, old, -1); err != nil {
			return err
		}
		updated := old
		updated.Amount = installment
		updated.AccountID = rt.AccountID
		updated.IsExpense = rt.IsExpense
		updated.CategoryID = core.RepeatCategoryFor(rt.IsExpense)
		if err := applyMonthDelta(ctx, tx, updated, +1); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET amount_cents = ?, account_id = ?, is_expense = ?, category_id = ?
		WHERE recurring_id = ?
	`, installment.Cents, rt.AccountID, boolToInt(rt.IsExpense), core.RepeatCategoryFor(rt.IsExpense), rt.ID)
	if err != nil {
		return fmt.Errorf("push onto linked transactions: %w", err)
	}
	return nil
}

// retractLinkedAfter removes a rule's generated transactions for periods
// strictly after p, reversing their account-month contributions.
func retractLinkedAfter(ctx context.Context, tx *sql.Tx, recurringID int64, p core.Period) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE recurring_id = ? AND (year > ? OR (year = ? AND month > ?))
	`, recurringID, p.Year, p.Year, p.Month)
	if err != nil {
		return fmt.Errorf("query future linked transactions: %w", err)
	}
	linked, err := scanTransactions(rows)
	if err != nil {
		return err
	}
	for _, t := range linked {
		if err := applyMonthDelta(ctx, tx, t, -1); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE recurring_id = ? AND (year > ? OR (year = ? AND month > ?))
	`, recurringID, p.Year, p.Year, p.Month)
	if err != nil {
		return fmt.Errorf("retract future linked transactions: %w", err)
	}
	return nil
}

// deleteLinkedTransactions removes every transaction a rule generated,
// reversing each account-month contribution first.
func deleteLinkedTransactions(ctx context.Context, tx *sql.Tx, recurringID int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE recurring_id = ?
	`, recurringID)
	if err != nil {
		return fmt.Errorf("query linked transactions: %w", err)
	}
	linked, err := scanTransactions(rows)
	if err != nil {
		return err
	}
	for _, t := range linked {
		if err := applyMonthDelta(ctx, tx, t, -1); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE recurring_id = ?", recurringID); err != nil {
		return fmt.Errorf("delete linked transactions: %w", err)
	}
	return nil
}

func getRecurring(ctx context.Context, q dbtx, id int64) (core.RecurringTransaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions
		WHERE id = ?
	`, id)
	rt, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTransaction{}, fmt.Errorf("recurring %d: %w", id, core.ErrNotFound)
	}
	return rt, err
}

func scanRecurring(row rowScanner) (core.RecurringTransaction, error) {
	var rt core.RecurringTransaction
	var isExpense, isMonthly int64
	err := row.Scan(&rt.ID, &rt.Name, &rt.Amount.Cents, &rt.MonthlyAmount.Cents, &isExpense, &isMonthly,
		&rt.Start.Year, &rt.Start.Month, &rt.End.Year, &rt.End.Month, &rt.AccountID)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	rt.IsExpense = isExpense == 1
	rt.IsMonthly = isMonthly == 1
	return rt, nil
}

func queryRecurring(ctx context.Context, q dbtx, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring: %w", err)
	}
	defer rows.Close()
	var out []core.RecurringTransaction
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}
