package storage

import (
	"context"
	"errors"
	"testing"

	"tally/internal/core"
)

func TestAddFavouriteRejectsDuplicate(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	fav := core.FavouriteTransaction{
		Name:       "Coffee",
		Amount:     core.Money{Cents: 350},
		IsExpense:  true,
		CategoryID: 4,
		AccountID:  acc.ID,
	}
	if _, err := r.AddFavourite(ctx, fav); err != nil {
		t.Fatalf("AddFavourite() error = %v", err)
	}
	if _, err := r.AddFavourite(ctx, fav); !errors.Is(err, core.ErrDuplicateFavourite) {
		t.Errorf("AddFavourite(duplicate) error = %v, want ErrDuplicateFavourite", err)
	}

	// A different amount is a different favourite.
	fav.Amount = core.Money{Cents: 400}
	if _, err := r.AddFavourite(ctx, fav); err != nil {
		t.Errorf("AddFavourite(different amount) error = %v, want nil", err)
	}
}

func TestAddFavouriteStoresSmearFalse(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	// Even a caller-set flag is not persisted; templates are hand entries.
	if _, err := r.AddFavourite(ctx, core.FavouriteTransaction{
		Name: "Rent", Amount: core.Money{Cents: 90000}, IsExpense: true, IsSmear: true,
		CategoryID: 9, AccountID: acc.ID,
	}); err != nil {
		t.Fatalf("AddFavourite() error = %v", err)
	}

	favs, err := r.FavouritesForAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FavouritesForAccount() error = %v", err)
	}
	if len(favs) != 1 || favs[0].IsSmear {
		t.Errorf("favourites = %+v, want one entry with IsSmear false", favs)
	}
}

func TestUpdateFavourite(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	id, err := r.AddFavourite(ctx, core.FavouriteTransaction{
		Name: "Lunch", Amount: core.Money{Cents: 1200}, IsExpense: true,
		CategoryID: 4, AccountID: acc.ID,
	})
	if err != nil {
		t.Fatalf("AddFavourite() error = %v", err)
	}

	err = r.UpdateFavourite(ctx, core.FavouriteTransaction{
		ID: id, Name: "Lunch deal", Amount: core.Money{Cents: 990}, IsExpense: true,
		CategoryID: 4, AccountID: acc.ID,
	})
	if err != nil {
		t.Fatalf("UpdateFavourite() error = %v", err)
	}

	favs, err := r.FavouritesForAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FavouritesForAccount() error = %v", err)
	}
	if len(favs) != 1 || favs[0].Name != "Lunch deal" || favs[0].Amount.Cents != 990 {
		t.Errorf("favourites = %v, want single updated entry", favs)
	}

	err = r.UpdateFavourite(ctx, core.FavouriteTransaction{
		ID: 999, Name: "Ghost", Amount: core.Money{Cents: 1},
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateFavourite(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteFavourite(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	id, err := r.AddFavourite(ctx, core.FavouriteTransaction{
		Name: "Snack", Amount: core.Money{Cents: 200}, IsExpense: true,
		CategoryID: 4, AccountID: acc.ID,
	})
	if err != nil {
		t.Fatalf("AddFavourite() error = %v", err)
	}
	if err := r.DeleteFavourite(ctx, id); err != nil {
		t.Fatalf("DeleteFavourite() error = %v", err)
	}
	if err := r.DeleteFavourite(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteFavourite(twice) error = %v, want ErrNotFound", err)
	}
}
