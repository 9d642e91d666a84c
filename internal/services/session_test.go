package services

import (
	"context"
	"path/filepath"
	"testing"

	"tally/internal/core"
	"tally/internal/storage"
)

func testStorage(t *testing.T) *storage.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.db")
	r, err := storage.Open(path, storage.Horizon{FromYear: 2024, ToYear: 2025})
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBootstrapFirstRun(t *testing.T) {
	repo := testStorage(t)
	euro := core.Currency{Label: "Euro", Unit: "€"}
	tmpl := core.BudgetTemplate{Items: []core.BudgetItem{{Name: "Essentials", Amount: 50000}}}

	s := NewSession(repo, euro, tmpl)
	user, err := s.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if user.Currency != euro {
		t.Errorf("user currency = %v, want %v", user.Currency, euro)
	}

	accounts, err := repo.UnlockedAccounts(context.Background())
	if err != nil {
		t.Fatalf("UnlockedAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("got %d accounts after first run, want 2", len(accounts))
	}

	now, _ := core.Today()
	if user.LastLogin != now {
		t.Errorf("last login = %v, want %v", user.LastLogin, now)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	repo := testStorage(t)
	s := NewSession(repo, core.Currency{Label: "Euro", Unit: "€"}, core.BudgetTemplate{})

	ctx := context.Background()
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() second run error = %v", err)
	}

	accounts, err := repo.UnlockedAccounts(ctx)
	if err != nil {
		t.Fatalf("UnlockedAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("got %d accounts after double bootstrap, want 2", len(accounts))
	}
}

func TestSessionViewState(t *testing.T) {
	s := NewSession(testStorage(t), core.Currency{Label: "Euro", Unit: "€"}, core.BudgetTemplate{})

	if got := s.LastPage(); got != "" {
		t.Errorf("LastPage() before any navigation = %q, want empty", got)
	}
	s.SetLastPage("/accounts")
	if got := s.LastPage(); got != "/accounts" {
		t.Errorf("LastPage() = %q, want /accounts", got)
	}

	if s.Mobile() {
		t.Error("Mobile() default = true, want false")
	}
	s.SetMobile(true)
	if !s.Mobile() {
		t.Error("Mobile() after SetMobile(true) = false, want true")
	}
}

func TestOverviewMonth(t *testing.T) {
	repo := testStorage(t)
	ctx := context.Background()
	euro := core.Currency{Label: "Euro", Unit: "€"}
	if err := repo.InitialSetup(ctx, euro, core.BudgetTemplate{}); err != nil {
		t.Fatalf("InitialSetup() error = %v", err)
	}
	accounts, err := repo.UnlockedAccounts(ctx)
	if err != nil {
		t.Fatalf("UnlockedAccounts() error = %v", err)
	}

	_, err = repo.AddTransaction(ctx, core.Transaction{
		Name: "Groceries", Amount: core.Money{Cents: 3000}, IsExpense: true,
		Year: 2024, Month: 4, Day: 10, AccountID: accounts[0].ID, CategoryID: 4,
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	ov, err := NewOverview(repo).Month(ctx, core.Period{Year: 2024, Month: 4})
	if err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	if len(ov.Accounts) != 2 {
		t.Fatalf("got %d account summaries, want 2", len(ov.Accounts))
	}
	if ov.Accounts[0].Expenditure.Cents != 3000 {
		t.Errorf("default account expenditure = %d, want 3000", ov.Accounts[0].Expenditure.Cents)
	}
	if len(ov.Transactions) != 1 {
		t.Errorf("got %d transactions, want 1", len(ov.Transactions))
	}
	if ov.TotalBalance.Cents != -3000 {
		t.Errorf("total balance = %d, want -3000", ov.TotalBalance.Cents)
	}
	if ov.HasBudget {
		t.Errorf("HasBudget = true for unbudgeted month, want false")
	}
}
