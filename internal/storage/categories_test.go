package storage

import (
	"context"
	"errors"
	"testing"

	"tally/internal/core"
)

func TestAddCategoryRejectsReservedNames(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	for _, label := range []string{"Repeat", "repeat", "TRANSFER", " transfer "} {
		if _, err := r.AddCategory(ctx, label, true); !errors.Is(err, core.ErrReservedCategoryName) {
			t.Errorf("AddCategory(%q) error = %v, want ErrReservedCategoryName", label, err)
		}
	}
}

func TestAddCategoryRejectsCaseInsensitiveDuplicates(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	if _, err := r.AddCategory(ctx, "Coffee", true); err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	if _, err := r.AddCategory(ctx, "COFFEE", true); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("AddCategory(duplicate) error = %v, want ErrDuplicateCategory", err)
	}
	// Uniqueness spans both kinds: an income category cannot reuse an
	// expense category's name either.
	if _, err := r.AddCategory(ctx, "coffee", false); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("AddCategory(income coffee) error = %v, want ErrDuplicateCategory", err)
	}
}

func TestAddCategoryRejectsSeededNameAcrossKinds(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	if err := r.InitialSetup(ctx, euro, core.BudgetTemplate{}); err != nil {
		t.Fatalf("InitialSetup() error = %v", err)
	}

	// "Salary" is seeded as an income category; an expense with the same
	// name, in any casing, is still a duplicate.
	if _, err := r.AddCategory(ctx, "salary", true); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("AddCategory(expense salary) error = %v, want ErrDuplicateCategory", err)
	}
}

func TestRenameCategory(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	c, err := r.AddCategory(ctx, "Books", true)
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	if err := r.RenameCategory(ctx, c.ID, "Reading"); err != nil {
		t.Fatalf("RenameCategory() error = %v", err)
	}
	got, err := r.CategoryByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("CategoryByID() error = %v", err)
	}
	if got.Label != "Reading" {
		t.Errorf("label = %q, want Reading", got.Label)
	}

	if err := r.RenameCategory(ctx, c.ID, "repeat"); !errors.Is(err, core.ErrReservedCategoryName) {
		t.Errorf("RenameCategory(reserved) error = %v, want ErrReservedCategoryName", err)
	}
}

func TestDeactivateCategoryHidesFromEntryForms(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	c, err := r.AddCategory(ctx, "Vices", true)
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	if err := r.DeactivateCategory(ctx, c.ID); err != nil {
		t.Fatalf("DeactivateCategory() error = %v", err)
	}

	visible, err := r.UserCategories(ctx, true)
	if err != nil {
		t.Fatalf("UserCategories() error = %v", err)
	}
	for _, v := range visible {
		if v.ID == c.ID {
			t.Errorf("deactivated category %d still visible", c.ID)
		}
	}

	all, err := r.AllUserCategories(ctx)
	if err != nil {
		t.Fatalf("AllUserCategories() error = %v", err)
	}
	found := false
	for _, v := range all {
		if v.ID == c.ID {
			found = true
			if v.ToShow {
				t.Errorf("category %d ToShow = true, want false", c.ID)
			}
		}
	}
	if !found {
		t.Errorf("deactivated category %d missing from AllUserCategories", c.ID)
	}

	if err := r.ActivateCategory(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCategory() error = %v", err)
	}
	got, err := r.CategoryByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("CategoryByID() error = %v", err)
	}
	if !got.ToShow {
		t.Errorf("ToShow after reactivation = false, want true")
	}
}
