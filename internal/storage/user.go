package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

// User returns the singleton settings row. core.ErrNotFound signals a first
// run: no setup has happened yet.
func (r *Repository) User(ctx context.Context) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, currency_label, currency_unit, default_budget, last_year, last_month
		FROM users
		WHERE id = 0
	`)
	var u core.User
	var raw string
	err := row.Scan(&u.ID, &u.Currency.Label, &u.Currency.Unit, &raw, &u.LastLogin.Year, &u.LastLogin.Month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("read user: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &u.DefaultBudget); err != nil {
		return core.User{}, fmt.Errorf("decode default budget: %w", err)
	}
	return u, nil
}

// InitialSetup bootstraps an empty database: the category seed, the user row,
// a default current account, a savings account, the first month's budget from
// the template and the processed marker for the current month. One scope
// covers it all, so a failed setup leaves the database empty.
func (r *Repository) InitialSetup(ctx context.Context, currency core.Currency, tmpl core.BudgetTemplate) error {
	now, _ := core.Today()
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		if err := seedDefaultCategories(ctx, tx); err != nil {
			return err
		}
		raw, err := json.Marshal(tmpl)
		if err != nil {
			return fmt.Errorf("encode default budget: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, currency_label, currency_unit, default_budget, last_year, last_month)
			VALUES (0, ?, ?, ?, ?, ?)
		`, currency.Label, currency.Unit, string(raw), now.Year, now.Month)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		current := core.Account{Label: "Current Account", Currency: currency, IsDefault: true}
		if _, err := r.insertAccount(ctx, tx, current, now); err != nil {
			return err
		}
		savings := core.Account{Label: "Savings Account", Currency: currency}
		if _, err := r.insertAccount(ctx, tx, savings, now); err != nil {
			return err
		}
		if err := seedBudgetFromTemplate(ctx, tx, now, tmpl); err != nil {
			return err
		}
		return markMonthProcessed(ctx, tx, now)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Initial setup complete", "currency", currency.Label)
	return nil
}

// UpdateDefaultBudget replaces the template used to seed new months.
func (r *Repository) UpdateDefaultBudget(ctx context.Context, tmpl core.BudgetTemplate) error {
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("encode default budget: %w", err)
	}
	res, err := r.db.ExecContext(ctx, "UPDATE users SET default_budget = ? WHERE id = 0", string(raw))
	if err != nil {
		return fmt.Errorf("update default budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user: %w", core.ErrNotFound)
	}
	return nil
}

// MonthProcessed reports whether monthly administration already ran for a
// period.
func (r *Repository) MonthProcessed(ctx context.Context, p core.Period) (bool, error) {
	var one int64
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM months WHERE year = ? AND month = ?", p.Year, p.Month).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed month: %w", err)
	}
	return true, nil
}

// RunMonthlyAdmin performs the once-per-month bookkeeping for now: fill any
// missing generated transaction for active recurring rules, seed the month's
// budget from the template when absent and record the processed marker. The
// whole sequence runs in one scope and a second call for the same month is a
// no-op beyond refreshing the last-login stamp.
func (r *Repository) RunMonthlyAdmin(ctx context.Context, now core.Period) error {
	done, err := r.MonthProcessed(ctx, now)
	if err != nil {
		return err
	}
	if done {
		return r.touchLastLogin(ctx, now)
	}
	err = r.execTx(ctx, func(tx *sql.Tx) error {
		active, err := queryRecurring(ctx, tx, `
			SELECT `+recurringColumns+`
			FROM recurring_transactions
			WHERE (end_year > ? OR (end_year = ? AND end_month > ?))
			  AND (start_year < ? OR (start_year = ? AND start_month <= ?))
		`, now.Year, now.Year, now.Month, now.Year, now.Year, now.Month)
		if err != nil {
			return err
		}
		for _, rt := range active {
			if err := ensureMaterialized(ctx, tx, rt, now); err != nil {
				return err
			}
		}
		var tmpl core.BudgetTemplate
		var raw string
		err = tx.QueryRowContext(ctx, "SELECT default_budget FROM users WHERE id = 0").Scan(&raw)
		if err != nil {
			return fmt.Errorf("read default budget: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
			return fmt.Errorf("decode default budget: %w", err)
		}
		if err := seedBudgetFromTemplate(ctx, tx, now, tmpl); err != nil {
			return err
		}
		if err := markMonthProcessed(ctx, tx, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET last_year = ?, last_month = ? WHERE id = 0", now.Year, now.Month)
		if err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Monthly administration complete", "year", now.Year, "month", now.Month)
	return nil
}

func (r *Repository) touchLastLogin(ctx context.Context, now core.Period) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_year = ?, last_month = ? WHERE id = 0", now.Year, now.Month)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// AccountMonthsForMonth returns every account's row for one calendar month.
func (r *Repository) AccountMonthsForMonth(ctx context.Context, year, month int) ([]core.AccountMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, year, month, budget_cents, expenditure_cents
		FROM account_months
		WHERE year = ? AND month = ?
		ORDER BY account_id
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("query account months: %w", err)
	}
	defer rows.Close()
	var out []core.AccountMonth
	for rows.Next() {
		var am core.AccountMonth
		if err := rows.Scan(&am.AccountID, &am.Year, &am.Month, &am.Budget.Cents, &am.Expenditure.Cents); err != nil {
			return nil, fmt.Errorf("scan account month: %w", err)
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

// AccountMonthsForAccount returns one account's rows across all months, in
// period order.
func (r *Repository) AccountMonthsForAccount(ctx context.Context, accountID int64) ([]core.AccountMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, year, month, budget_cents, expenditure_cents
		FROM account_months
		WHERE account_id = ?
		ORDER BY year, month
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query account months: %w", err)
	}
	defer rows.Close()
	var out []core.AccountMonth
	for rows.Next() {
		var am core.AccountMonth
		if err := rows.Scan(&am.AccountID, &am.Year, &am.Month, &am.Budget.Cents, &am.Expenditure.Cents); err != nil {
			return nil, fmt.Errorf("scan account month: %w", err)
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

// ensureMaterialized fills in a rule's generated transaction for one period
// when it is missing, which happens after a rule's end was pushed out past
// months that were already materialized.
func ensureMaterialized(ctx context.Context, tx *sql.Tx, rt core.RecurringTransaction, p core.Period) error {
	var existing int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM transactions WHERE recurring_id = ? AND year = ? AND month = ?
	`, rt.ID, p.Year, p.Month).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check materialized period: %w", err)
	}
	return materializeRecurring(ctx, tx, rt, []core.Period{p})
}

// seedBudgetFromTemplate creates a month's budget from the template unless
// one already exists.
func seedBudgetFromTemplate(ctx context.Context, tx *sql.Tx, p core.Period, tmpl core.BudgetTemplate) error {
	items, dist, err := marshalBudget(core.Budget{
		Year:         p.Year,
		Month:        p.Month,
		Items:        tmpl.Items,
		Distribution: tmpl.Distribution,
	})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budgets (year, month, items, distribution)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(year, month) DO NOTHING
	`, p.Year, p.Month, items, dist)
	if err != nil {
		return fmt.Errorf("seed budget %d-%02d: %w", p.Year, p.Month, err)
	}
	return nil
}

func markMonthProcessed(ctx context.Context, tx *sql.Tx, p core.Period) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO months (year, month) VALUES (?, ?)
		ON CONFLICT(year, month) DO NOTHING
	`, p.Year, p.Month)
	if err != nil {
		return fmt.Errorf("mark month processed: %w", err)
	}
	return nil
}
