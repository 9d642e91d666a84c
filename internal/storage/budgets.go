package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"tally/internal/core"
)

// AddBudget creates a monthly budget. The (year, month) key is immutable
// afterwards.
func (r *Repository) AddBudget(ctx context.Context, b core.Budget) error {
	p := core.Period{Year: b.Year, Month: b.Month}
	if !p.Valid() {
		return core.ErrInvalidPeriod
	}
	items, dist, err := marshalBudget(b)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO budgets (year, month, items, distribution) VALUES (?, ?, ?, ?)
	`, b.Year, b.Month, items, dist)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

// BudgetForMonth returns the budget keyed by a calendar month, or
// core.ErrNotFound when that month was never budgeted.
func (r *Repository) BudgetForMonth(ctx context.Context, year, month int) (core.Budget, error) {
	return getBudget(ctx, r.db, year, month)
}

// UpdateBudget rewrites a budget's items and distribution. The month key
// never changes.
func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	items, dist, err := marshalBudget(b)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET items = ?, distribution = ? WHERE year = ? AND month = ?
	`, items, dist, b.Year, b.Month)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %d-%02d: %w", b.Year, b.Month, core.ErrNotFound)
	}
	return nil
}

// DeleteBudget removes one month's budget.
func (r *Repository) DeleteBudget(ctx context.Context, year, month int) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM budgets WHERE year = ? AND month = ?", year, month)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %d-%02d: %w", year, month, core.ErrNotFound)
	}
	return nil
}

// CopyBudget replicates a source month's budget onto every month of an
// inclusive target range, overwriting months already budgeted. One scope
// covers the whole range.
func (r *Repository) CopyBudget(ctx context.Context, from core.Period, start, end core.Period) error {
	periods := core.ExpandPeriods(start, end)
	if len(periods) == 0 {
		return core.ErrInvalidPeriod
	}
	return r.execTx(ctx, func(tx *sql.Tx) error {
		src, err := getBudget(ctx, tx, from.Year, from.Month)
		if err != nil {
			return err
		}
		items, dist, err := marshalBudget(src)
		if err != nil {
			return err
		}
		for _, p := range periods {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO budgets (year, month, items, distribution)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(year, month) DO UPDATE SET
					items = excluded.items,
					distribution = excluded.distribution
			`, p.Year, p.Month, items, dist)
			if err != nil {
				return fmt.Errorf("copy budget to %d-%02d: %w", p.Year, p.Month, err)
			}
		}
		return nil
	})
}

// ScaleBudgetItems multiplies the budgeted amounts of every month in the
// inclusive range by an exchange-rate factor. Months outside the range keep
// their figures.
func (r *Repository) ScaleBudgetItems(ctx context.Context, start, end core.Period, rate float64) error {
	if len(core.ExpandPeriods(start, end)) == 0 {
		return core.ErrInvalidPeriod
	}
	return r.execTx(ctx, func(tx *sql.Tx) error {
		return scaleBudgets(ctx, tx, start, end, rate)
	})
}

// scaleBudgets rescales the item amounts of the budgets whose period falls
// within the inclusive range. The distribution is percentage-based and needs
// no change.
func scaleBudgets(ctx context.Context, tx *sql.Tx, start, end core.Period, rate float64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT year, month, items FROM budgets
		WHERE (year > ? OR (year = ? AND month >= ?))
		  AND (year < ? OR (year = ? AND month <= ?))
	`, start.Year, start.Year, start.Month, end.Year, end.Year, end.Month)
	if err != nil {
		return fmt.Errorf("query budgets: %w", err)
	}
	type keyed struct {
		year, month int
		items       string
	}
	var all []keyed
	for rows.Next() {
		var k keyed
		if err := rows.Scan(&k.year, &k.month, &k.items); err != nil {
			rows.Close()
			return fmt.Errorf("scan budget: %w", err)
		}
		all = append(all, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	for _, k := range all {
		var items []core.BudgetItem
		if err := json.Unmarshal([]byte(k.items), &items); err != nil {
			return fmt.Errorf("decode budget items %d-%02d: %w", k.year, k.month, err)
		}
		scaled, err := json.Marshal(scaleItems(items, rate))
		if err != nil {
			return fmt.Errorf("encode budget items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE budgets SET items = ? WHERE year = ? AND month = ?
		`, string(scaled), k.year, k.month); err != nil {
			return fmt.Errorf("scale budget %d-%02d: %w", k.year, k.month, err)
		}
	}
	return nil
}

// scaleDefaultBudget rescales the item amounts of the user's budget template.
func scaleDefaultBudget(ctx context.Context, tx *sql.Tx, rate float64) error {
	var raw string
	err := tx.QueryRowContext(ctx, "SELECT default_budget FROM users WHERE id = 0").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read default budget: %w", err)
	}
	var tmpl core.BudgetTemplate
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		return fmt.Errorf("decode default budget: %w", err)
	}
	tmpl.Items = scaleItems(tmpl.Items, rate)
	scaled, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("encode default budget: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET default_budget = ? WHERE id = 0", string(scaled)); err != nil {
		return fmt.Errorf("scale default budget: %w", err)
	}
	return nil
}

func scaleItems(items []core.BudgetItem, rate float64) []core.BudgetItem {
	out := make([]core.BudgetItem, len(items))
	for i, item := range items {
		item.Amount = int64(math.Round(float64(item.Amount) * rate))
		out[i] = item
	}
	return out
}

func marshalBudget(b core.Budget) (items, dist string, err error) {
	if b.Items == nil {
		b.Items = []core.BudgetItem{}
	}
	if b.Distribution == nil {
		b.Distribution = []core.BudgetShare{}
	}
	rawItems, err := json.Marshal(b.Items)
	if err != nil {
		return "", "", fmt.Errorf("encode budget items: %w", err)
	}
	rawDist, err := json.Marshal(b.Distribution)
	if err != nil {
		return "", "", fmt.Errorf("encode budget distribution: %w", err)
	}
	return string(rawItems), string(rawDist), nil
}

func getBudget(ctx context.Context, q dbtx, year, month int) (core.Budget, error) {
	row := q.QueryRowContext(ctx, "SELECT year, month, items, distribution FROM budgets WHERE year = ? AND month = ?", year, month)
	var b core.Budget
	var items, dist string
	err := row.Scan(&b.Year, &b.Month, &items, &dist)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d-%02d: %w", year, month, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, err
	}
	if err := json.Unmarshal([]byte(items), &b.Items); err != nil {
		return core.Budget{}, fmt.Errorf("decode budget items: %w", err)
	}
	if err := json.Unmarshal([]byte(dist), &b.Distribution); err != nil {
		return core.Budget{}, fmt.Errorf("decode budget distribution: %w", err)
	}
	return b, nil
}
