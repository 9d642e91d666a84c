package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tally/internal/core"
)

var euro = core.Currency{Label: "Euro", Unit: "€"}

func testRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.db")
	r, err := Open(path, Horizon{FromYear: 2024, ToYear: 2025})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func testAccount(t *testing.T, r *Repository, label string) core.Account {
	t.Helper()
	a, err := r.AddAccount(context.Background(), core.Account{Label: label, Currency: euro})
	if err != nil {
		t.Fatalf("AddAccount(%q) error = %v", label, err)
	}
	return a
}

func balanceCents(t *testing.T, r *Repository, accountID int64) int64 {
	t.Helper()
	b, err := r.AccountBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("AccountBalance(%d) error = %v", accountID, err)
	}
	return b.Cents
}

func TestOpenCreatesSchema(t *testing.T) {
	r := testRepo(t)
	if _, err := r.AllCategories(context.Background()); err != nil {
		t.Fatalf("AllCategories() on fresh database error = %v", err)
	}
}
