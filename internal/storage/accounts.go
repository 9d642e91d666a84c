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

const accountColumns = `id, label, currency_label, currency_unit, is_locked, is_default,
	starting_amount_cents, COALESCE(prev_account_id, 0), COALESCE(closing_amount_cents, 0)`

// AddAccount creates an account and provisions its account-month rows over
// the repository horizon. A non-zero starting amount is credited to the
// current month's budget. When the new account is the default, the flag is
// moved off every other account in the same scope.
func (r *Repository) AddAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if strings.TrimSpace(a.Label) == "" {
		return core.Account{}, core.ErrEmptyName
	}
	now, _ := core.Today()
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		var err error
		a.ID, err = r.insertAccount(ctx, tx, a, now)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "id", a.ID, "label", a.Label, "currency", a.Currency.Label)
	return a, nil
}

// AccountByID returns one account or core.ErrNotFound.
func (r *Repository) AccountByID(ctx context.Context, id int64) (core.Account, error) {
	return getAccount(ctx, r.db, id)
}

// UnlockedAccounts returns the open accounts, default first.
func (r *Repository) UnlockedAccounts(ctx context.Context) ([]core.Account, error) {
	return queryAccounts(ctx, r.db, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_locked = 0
		ORDER BY is_default DESC, label
	`)
}

// LockedAccounts returns the locked accounts.
func (r *Repository) LockedAccounts(ctx context.Context) ([]core.Account, error) {
	return queryAccounts(ctx, r.db, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_locked = 1
		ORDER BY label
	`)
}

// AccountsByCurrency returns the unlocked accounts held in one currency,
// default first.
func (r *Repository) AccountsByCurrency(ctx context.Context, currencyLabel string) ([]core.Account, error) {
	return queryAccounts(ctx, r.db, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_locked = 0 AND currency_label = ?
		ORDER BY is_default DESC, label
	`, currencyLabel)
}

// AccountCurrencies returns the distinct currencies held across unlocked
// accounts.
func (r *Repository) AccountCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT currency_label, currency_unit
		FROM accounts
		WHERE is_locked = 0
		ORDER BY currency_label
	`)
	if err != nil {
		return nil, fmt.Errorf("query account currencies: %w", err)
	}
	defer rows.Close()
	var out []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.Label, &c.Unit); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenameAccount changes an account's label.
func (r *Repository) RenameAccount(ctx context.Context, id int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return core.ErrEmptyName
	}
	res, err := r.db.ExecContext(ctx, "UPDATE accounts SET label = ? WHERE id = ?", label, id)
	if err != nil {
		return fmt.Errorf("rename account: %w", err)
	}
	return requireRow(res, id)
}

// AccountBalance sums budget minus expenditure over every account-month row.
func (r *Repository) AccountBalance(ctx context.Context, id int64) (core.Money, error) {
	return accountBalance(ctx, r.db, id)
}

// LockAccountWithoutFunds locks an account whose balance is already zero.
// A non-zero balance is refused; funds must be transferred out first.
func (r *Repository) LockAccountWithoutFunds(ctx context.Context, id int64) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, id); err != nil {
			return err
		}
		balance, err := accountBalance(ctx, tx, id)
		if err != nil {
			return err
		}
		if balance.Cents != 0 {
			return fmt.Errorf("account %d: %w", id, core.ErrAccountHasFunds)
		}
		return lockAccount(ctx, tx, id)
	})
}

// LockAccountWithFunds moves an account's remaining balance to another
// account and locks it, in one scope. rate converts the outgoing amount when
// the two accounts hold different currencies; pass 1 otherwise.
func (r *Repository) LockAccountWithFunds(ctx context.Context, id, destID int64, rate float64) error {
	now, day := core.Today()
	return r.execTx(ctx, func(tx *sql.Tx) error {
		src, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		dest, err := getAccount(ctx, tx, destID)
		if err != nil {
			return err
		}
		balance, err := accountBalance(ctx, tx, id)
		if err != nil {
			return err
		}
		if balance.Cents != 0 {
			if err := transferFunds(ctx, tx, src, dest, balance, rate, now, day); err != nil {
				return err
			}
		}
		return lockAccount(ctx, tx, id)
	})
}

// UnlockAccount reopens a locked account. Accounts superseded by a currency
// conversion stay locked forever.
func (r *Repository) UnlockAccount(ctx context.Context, id int64) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, id); err != nil {
			return err
		}
		var successor int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM accounts WHERE prev_account_id = ?", id).Scan(&successor)
		if err == nil {
			return fmt.Errorf("account %d: %w", id, core.ErrAccountOutdated)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check account successor: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE accounts SET is_locked = 0 WHERE id = ?", id); err != nil {
			return fmt.Errorf("unlock account: %w", err)
		}
		return nil
	})
}

// Transfer moves money between two unlocked accounts as a pair of linked
// transactions: an outgoing leg on the source and an incoming leg on the
// destination, rate-scaled when the currencies differ. Both legs and their
// account-month adjustments share one scope.
func (r *Repository) Transfer(ctx context.Context, fromID, toID int64, amount core.Money, rate float64) error {
	if amount.Cents <= 0 {
		return core.ErrInvalidAmount
	}
	now, day := core.Today()
	return r.execTx(ctx, func(tx *sql.Tx) error {
		src, err := getAccount(ctx, tx, fromID)
		if err != nil {
			return err
		}
		dest, err := getAccount(ctx, tx, toID)
		if err != nil {
			return err
		}
		return transferFunds(ctx, tx, src, dest, amount, rate, now, day)
	})
}

// ConvertAccountCurrency retires an account into a new one holding another
// currency. The predecessor is locked with its closing balance recorded; the
// successor starts with the converted balance credited to the current month
// and a back-reference to the predecessor. One scope covers the whole chain.
func (r *Repository) ConvertAccountCurrency(ctx context.Context, id int64, to core.Currency, rate float64) (core.Account, error) {
	now, _ := core.Today()
	var successor core.Account
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		old, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if old.IsLocked {
			return fmt.Errorf("account %d: %w", id, core.ErrAccountLocked)
		}
		balance, err := accountBalance(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts SET is_locked = 1, closing_amount_cents = ? WHERE id = ?
		`, balance.Cents, id)
		if err != nil {
			return fmt.Errorf("retire account: %w", err)
		}
		successor = core.Account{
			Label:          old.Label,
			Currency:       to,
			IsDefault:      old.IsDefault,
			StartingAmount: balance.Scaled(rate),
			PrevAccountID:  old.ID,
		}
		successor.ID, err = r.insertAccount(ctx, tx, successor, now)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account currency converted",
		"old_id", id, "new_id", successor.ID, "currency", to.Label, "rate", rate)
	return successor, nil
}

// ConvertUserCurrency rescales the entire ledger into a new base currency:
// transactions, account-month rows, recurring rules, monthly budgets, the
// default budget template and account starting and closing amounts, then
// relabels every account and the user row. Everything happens in one scope.
func (r *Repository) ConvertUserCurrency(ctx context.Context, to core.Currency, rate float64) error {
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		ids, err := allAccountIDs(ctx, tx)
		if err != nil {
			return err
		}
		if err := scaleTransactions(ctx, tx, rate, ids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE account_months
			SET budget_cents = CAST(ROUND(budget_cents * ?) AS INTEGER),
				expenditure_cents = CAST(ROUND(expenditure_cents * ?) AS INTEGER)
		`, rate, rate); err != nil {
			return fmt.Errorf("scale account months: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE recurring_transactions
			SET amount_cents = CAST(ROUND(amount_cents * ?) AS INTEGER),
				monthly_amount_cents = CAST(ROUND(monthly_amount_cents * ?) AS INTEGER)
		`, rate, rate); err != nil {
			return fmt.Errorf("scale recurring amounts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET starting_amount_cents = CAST(ROUND(starting_amount_cents * ?) AS INTEGER),
				closing_amount_cents = CAST(ROUND(closing_amount_cents * ?) AS INTEGER),
				currency_label = ?, currency_unit = ?
		`, rate, rate, to.Label, to.Unit); err != nil {
			return fmt.Errorf("scale accounts: %w", err)
		}
		fromPeriod := core.Period{Year: r.horizon.FromYear, Month: 1}
		toPeriod := core.Period{Year: r.horizon.ToYear, Month: 12}
		if err := scaleBudgets(ctx, tx, fromPeriod, toPeriod, rate); err != nil {
			return err
		}
		if err := scaleDefaultBudget(ctx, tx, rate); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET currency_label = ?, currency_unit = ? WHERE id = 0
		`, to.Label, to.Unit); err != nil {
			return fmt.Errorf("update user currency: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "User currency converted", "currency", to.Label, "rate", rate)
	return nil
}

// insertAccount writes the account row, demotes any previous default when
// needed, provisions the horizon and credits the starting amount to now.
func (r *Repository) insertAccount(ctx context.Context, tx *sql.Tx, a core.Account, now core.Period) (int64, error) {
	if a.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE accounts SET is_default = 0 WHERE is_default = 1"); err != nil {
			return 0, fmt.Errorf("demote default account: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO accounts
			(label, currency_label, currency_unit, is_locked, is_default, starting_amount_cents, prev_account_id)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, a.Label, a.Currency.Label, a.Currency.Unit, boolToInt(a.IsDefault), a.StartingAmount.Cents, nullableID(a.PrevAccountID))
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account insert id: %w", err)
	}
	if err := provisionAccountMonths(ctx, tx, id, r.horizon); err != nil {
		return 0, err
	}
	if a.StartingAmount.Cents != 0 {
		if err := creditAccountMonth(ctx, tx, id, now, a.StartingAmount.Cents); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// provisionAccountMonths creates one zeroed row per month of the horizon.
func provisionAccountMonths(ctx context.Context, tx *sql.Tx, accountID int64, h Horizon) error {
	for year := h.FromYear; year <= h.ToYear; year++ {
		for month := 1; month <= 12; month++ {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO account_months (account_id, year, month, budget_cents, expenditure_cents)
				VALUES (?, ?, ?, 0, 0)
			`, accountID, year, month)
			if err != nil {
				return fmt.Errorf("provision month %d-%02d: %w", year, month, err)
			}
		}
	}
	return nil
}

// creditAccountMonth adds to one month's budget, creating the row when the
// period falls outside the provisioned horizon.
func creditAccountMonth(ctx context.Context, q dbtx, accountID int64, p core.Period, cents int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO account_months (account_id, year, month, budget_cents, expenditure_cents)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(account_id, year, month) DO UPDATE SET
			budget_cents = budget_cents + excluded.budget_cents
	`, accountID, p.Year, p.Month, cents)
	if err != nil {
		return fmt.Errorf("credit account month: %w", err)
	}
	return nil
}

// transferFunds writes the two legs of a transfer: an outgoing expense on the
// source and a rate-scaled incoming amount on the destination, both tagged
// with the reserved Transfer categories. Locked endpoints are refused.
func transferFunds(ctx context.Context, tx *sql.Tx, src, dest core.Account, amount core.Money, rate float64, now core.Period, day int) error {
	if src.IsLocked {
		return fmt.Errorf("account %d: %w", src.ID, core.ErrAccountLocked)
	}
	if dest.IsLocked {
		return fmt.Errorf("account %d: %w", dest.ID, core.ErrAccountLocked)
	}
	incoming := amount
	if src.Currency != dest.Currency {
		incoming = amount.Scaled(rate)
	}
	out := core.Transaction{
		Name:       fmt.Sprintf("Transfer to %s", dest.Label),
		Amount:     amount,
		IsExpense:  true,
		Year:       now.Year,
		Month:      now.Month,
		Day:        day,
		AccountID:  src.ID,
		CategoryID: core.TransferCategoryFor(true),
	}
	in := core.Transaction{
		Name:       fmt.Sprintf("Transfer from %s", src.Label),
		Amount:     incoming,
		Year:       now.Year,
		Month:      now.Month,
		Day:        day,
		AccountID:  dest.ID,
		CategoryID: core.TransferCategoryFor(false),
	}
	for _, t := range []core.Transaction{out, in} {
		if _, err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		if err := applyMonthDelta(ctx, tx, t, +1); err != nil {
			return err
		}
	}
	return nil
}

func lockAccount(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE accounts SET is_locked = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

func accountBalance(ctx context.Context, q dbtx, id int64) (core.Money, error) {
	var cents int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(budget_cents - expenditure_cents), 0)
		FROM account_months
		WHERE account_id = ?
	`, id).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("account balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func allAccountIDs(ctx context.Context, q dbtx) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("query account ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getAccount(ctx context.Context, q dbtx, id int64) (core.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	return a, err
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var isLocked, isDefault int64
	err := row.Scan(&a.ID, &a.Label, &a.Currency.Label, &a.Currency.Unit, &isLocked, &isDefault,
		&a.StartingAmount.Cents, &a.PrevAccountID, &a.ClosingAmount.Cents)
	if err != nil {
		return core.Account{}, err
	}
	a.IsLocked = isLocked == 1
	a.IsDefault = isDefault == 1
	return a, nil
}

func queryAccounts(ctx context.Context, q dbtx, query string, args ...any) ([]core.Account, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
