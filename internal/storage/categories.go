package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tally/internal/core"
)

const categoryColumns = "id, label, is_expense, to_show, is_user_category"

// defaultCategorySeed is written once during initial setup. The first four
// rows are the reserved system categories; ids 0 through 3 are fixed and
// referenced directly by generated and transfer transactions.
var defaultCategorySeed = []core.Category{
	{ID: core.CategoryRepeatExpense, Label: "Repeat", IsExpense: true},
	{ID: core.CategoryRepeatIncome, Label: "Repeat"},
	{ID: core.CategoryTransferExpense, Label: "Transfer", IsExpense: true},
	{ID: core.CategoryTransferIncome, Label: "Transfer"},
	{ID: 4, Label: "Food", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 5, Label: "Transport", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 6, Label: "Personal", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 7, Label: "Clothing", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 8, Label: "Entertainment", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 9, Label: "Bills", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 10, Label: "Health", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 11, Label: "Household", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 12, Label: "Gift", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 13, Label: "Holiday", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 14, Label: "Pets", IsExpense: true, ToShow: true, IsUserCategory: true},
	{ID: 15, Label: "Gift", ToShow: true, IsUserCategory: true},
	{ID: 16, Label: "Salary", ToShow: true, IsUserCategory: true},
	{ID: 17, Label: "Reimbursement", ToShow: true, IsUserCategory: true},
	{ID: 18, Label: "Grant", ToShow: true, IsUserCategory: true},
	{ID: 19, Label: "Loan", ToShow: true, IsUserCategory: true},
	{ID: 20, Label: "Misc", ToShow: true, IsUserCategory: true},
}

// AddCategory creates a visible user category. Reserved names and
// case-insensitive duplicates of any existing category, expense or income,
// are refused; the check and the insert share one scope.
func (r *Repository) AddCategory(ctx context.Context, label string, isExpense bool) (core.Category, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if core.IsReservedCategoryLabel(label) {
		return core.Category{}, fmt.Errorf("category %q: %w", label, core.ErrReservedCategoryName)
	}
	c := core.Category{Label: label, IsExpense: isExpense, ToShow: true, IsUserCategory: true}
	err := r.execTx(ctx, func(tx *sql.Tx) error {
		if err := checkCategoryLabelFree(ctx, tx, label, 0); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO categories (label, is_expense, to_show, is_user_category)
			VALUES (?, ?, 1, 1)
		`, label, boolToInt(isExpense))
		if err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
		c.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("category insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// RenameCategory changes a user category's label under the same reserved-name
// and duplicate rules as creation. System categories cannot be renamed.
func (r *Repository) RenameCategory(ctx context.Context, id int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return core.ErrEmptyName
	}
	if core.IsReservedCategoryLabel(label) {
		return fmt.Errorf("category %q: %w", label, core.ErrReservedCategoryName)
	}
	return r.execTx(ctx, func(tx *sql.Tx) error {
		c, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if !c.IsUserCategory {
			return fmt.Errorf("category %d: %w", id, core.ErrReservedCategoryName)
		}
		if err := checkCategoryLabelFree(ctx, tx, label, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE categories SET label = ? WHERE id = ?", label, id); err != nil {
			return fmt.Errorf("rename category: %w", err)
		}
		return nil
	})
}

// ActivateCategory makes a category selectable in entry forms again.
func (r *Repository) ActivateCategory(ctx context.Context, id int64) error {
	return r.setCategoryVisibility(ctx, id, true)
}

// DeactivateCategory hides a category from entry forms. Transactions that
// already reference it keep doing so.
func (r *Repository) DeactivateCategory(ctx context.Context, id int64) error {
	return r.setCategoryVisibility(ctx, id, false)
}

func (r *Repository) setCategoryVisibility(ctx context.Context, id int64, show bool) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		c, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if !c.IsUserCategory {
			return fmt.Errorf("category %d: %w", id, core.ErrReservedCategoryName)
		}
		_, err = tx.ExecContext(ctx, "UPDATE categories SET to_show = ? WHERE id = ?", boolToInt(show), id)
		if err != nil {
			return fmt.Errorf("set category visibility: %w", err)
		}
		return nil
	})
}

// UserCategories returns the visible user categories of one kind, for entry
// forms.
func (r *Repository) UserCategories(ctx context.Context, isExpense bool) ([]core.Category, error) {
	return queryCategories(ctx, r.db, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE is_user_category = 1 AND to_show = 1 AND is_expense = ?
		ORDER BY label
	`, boolToInt(isExpense))
}

// AllUserCategories returns every user category, hidden ones included, for
// the management view.
func (r *Repository) AllUserCategories(ctx context.Context) ([]core.Category, error) {
	return queryCategories(ctx, r.db, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE is_user_category = 1
		ORDER BY is_expense DESC, label
	`)
}

// AllCategories returns every category including the reserved system rows,
// for resolving labels on historic transactions.
func (r *Repository) AllCategories(ctx context.Context) ([]core.Category, error) {
	return queryCategories(ctx, r.db, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
}

// CategoryByID returns one category or core.ErrNotFound.
func (r *Repository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	return getCategory(ctx, r.db, id)
}

// checkCategoryLabelFree enforces case-insensitive uniqueness across every
// user category, both kinds together. The reserved system labels are caught
// earlier by IsReservedCategoryLabel. excludeID skips the row being renamed.
func checkCategoryLabelFree(ctx context.Context, q dbtx, label string, excludeID int64) error {
	var existing int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM categories
		WHERE is_user_category = 1 AND label = ? COLLATE NOCASE AND id != ?
	`, label, excludeID).Scan(&existing)
	if err == nil {
		return fmt.Errorf("category %q: %w", label, core.ErrDuplicateCategory)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check category duplicate: %w", err)
	}
	return nil
}

func getCategory(ctx context.Context, q dbtx, id int64) (core.Category, error) {
	row := q.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	var c core.Category
	var isExpense, toShow, isUser int64
	err := row.Scan(&c.ID, &c.Label, &isExpense, &toShow, &isUser)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, err
	}
	c.IsExpense = isExpense == 1
	c.ToShow = toShow == 1
	c.IsUserCategory = isUser == 1
	return c, nil
}

func queryCategories(ctx context.Context, q dbtx, query string, args ...any) ([]core.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		var isExpense, toShow, isUser int64
		if err := rows.Scan(&c.ID, &c.Label, &isExpense, &toShow, &isUser); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.IsExpense = isExpense == 1
		c.ToShow = toShow == 1
		c.IsUserCategory = isUser == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func seedDefaultCategories(ctx context.Context, tx *sql.Tx) error {
	for _, c := range defaultCategorySeed {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, label, is_expense, to_show, is_user_category)
			VALUES (?, ?, ?, ?, ?)
		`, c.ID, c.Label, boolToInt(c.IsExpense), boolToInt(c.ToShow), boolToInt(c.IsUserCategory))
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Label, err)
		}
	}
	return nil
}
