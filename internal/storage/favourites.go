package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tally/internal/core"
)

// AddFavourite stores a quick-entry template. The duplicate check on
// (name, amount, category, account) and the insert share one scope.
func (r *Repository) AddFavourite(ctx context.Context, f core.FavouriteTransaction) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM favourite_transactions
			WHERE name = ? AND amount_cents = ? AND category_id = ? AND account_id = ?
		`, f.Name, f.Amount.Cents, f.CategoryID, f.AccountID).Scan(&existing)
		if err == nil {
			return core.ErrDuplicateFavourite
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check favourite duplicate: %w", err)
		}
		// is_smear is pinned false: templates are never amortized entries.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO favourite_transactions (name, amount_cents, is_expense, is_smear, category_id, account_id)
			VALUES (?, ?, ?, 0, ?, ?)
		`, f.Name, f.Amount.Cents, boolToInt(f.IsExpense), f.CategoryID, f.AccountID)
		if err != nil {
			return fmt.Errorf("insert favourite: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("favourite insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FavouritesForAccount lists an account's templates.
func (r *Repository) FavouritesForAccount(ctx context.Context, accountID int64) ([]core.FavouriteTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, is_expense, is_smear, category_id, account_id
		FROM favourite_transactions
		WHERE account_id = ?
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query favourites: %w", err)
	}
	defer rows.Close()
	var out []core.FavouriteTransaction
	for rows.Next() {
		var f core.FavouriteTransaction
		var isExpense, isSmear int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Amount.Cents, &isExpense, &isSmear, &f.CategoryID, &f.AccountID); err != nil {
			return nil, fmt.Errorf("scan favourite: %w", err)
		}
		f.IsExpense = isExpense == 1
		f.IsSmear = isSmear == 1
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFavourite rewrites the whitelisted fields only: name, amount,
// expense flag, account and category.
func (r *Repository) UpdateFavourite(ctx context.Context, f core.FavouriteTransaction) error {
	if err := f.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE favourite_transactions
		SET name = ?, amount_cents = ?, is_expense = ?, account_id = ?, category_id = ?
		WHERE id = ?
	`, f.Name, f.Amount.Cents, boolToInt(f.IsExpense), f.AccountID, f.CategoryID, f.ID)
	if err != nil {
		return fmt.Errorf("update favourite: %w", err)
	}
	return requireRow(res, f.ID)
}

// DeleteFavourite removes one template by id.
func (r *Repository) DeleteFavourite(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM favourite_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete favourite: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %d: %w", id, core.ErrNotFound)
	}
	return nil
}
