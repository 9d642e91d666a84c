package storage

import (
	"context"
	"errors"
	"testing"

	"tally/internal/core"
)

func TestAddTransactionAdjustsAccountMonth(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	_, err := r.AddTransaction(ctx, core.Transaction{
		Name:       "Groceries",
		Amount:     core.Money{Cents: 4250},
		IsExpense:  true,
		Year:       2024,
		Month:      3,
		Day:        14,
		AccountID:  acc.ID,
		CategoryID: 4,
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if got := balanceCents(t, r, acc.ID); got != -4250 {
		t.Errorf("balance after expense = %d, want -4250", got)
	}

	_, err = r.AddTransaction(ctx, core.Transaction{
		Name:       "Salary",
		Amount:     core.Money{Cents: 10000},
		Year:       2024,
		Month:      3,
		Day:        1,
		AccountID:  acc.ID,
		CategoryID: 16,
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if got := balanceCents(t, r, acc.ID); got != 5750 {
		t.Errorf("balance after income = %d, want 5750", got)
	}

	months, err := r.AccountMonthsForMonth(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("AccountMonthsForMonth() error = %v", err)
	}
	if len(months) != 1 {
		t.Fatalf("got %d account months, want 1", len(months))
	}
	if months[0].Budget.Cents != 10000 || months[0].Expenditure.Cents != 4250 {
		t.Errorf("account month = budget %d expenditure %d, want 10000/4250",
			months[0].Budget.Cents, months[0].Expenditure.Cents)
	}
}

func TestUpdateTransactionRebalancesMonths(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	id, err := r.AddTransaction(ctx, core.Transaction{
		Name:      "Rent",
		Amount:    core.Money{Cents: 90000},
		IsExpense: true,
		Year:      2024, Month: 4, Day: 1,
		AccountID: acc.ID, CategoryID: 9,
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	updated := core.Transaction{
		ID:        id,
		Name:      "Rent",
		Amount:    core.Money{Cents: 95000},
		IsExpense: true,
		Year:      2024, Month: 5, Day: 1,
		AccountID: acc.ID, CategoryID: 9,
	}
	if err := r.UpdateTransaction(ctx, updated); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	april, err := r.AccountMonthsForMonth(ctx, 2024, 4)
	if err != nil {
		t.Fatalf("AccountMonthsForMonth() error = %v", err)
	}
	if april[0].Expenditure.Cents != 0 {
		t.Errorf("april expenditure = %d, want 0 after move", april[0].Expenditure.Cents)
	}
	may, err := r.AccountMonthsForMonth(ctx, 2024, 5)
	if err != nil {
		t.Fatalf("AccountMonthsForMonth() error = %v", err)
	}
	if may[0].Expenditure.Cents != 95000 {
		t.Errorf("may expenditure = %d, want 95000", may[0].Expenditure.Cents)
	}
}

func TestDeleteTransactionReversesContribution(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	id, err := r.AddTransaction(ctx, core.Transaction{
		Name:      "Cinema",
		Amount:    core.Money{Cents: 1500},
		IsExpense: true,
		Year:      2024, Month: 6, Day: 20,
		AccountID: acc.ID, CategoryID: 8,
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if err := r.DeleteTransaction(ctx, id); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if got := balanceCents(t, r, acc.ID); got != 0 {
		t.Errorf("balance after delete = %d, want 0", got)
	}
	if _, err := r.TransactionByID(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("TransactionByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	acc := testAccount(t, r, "Current")

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{
			name: "empty name",
			tx:   core.Transaction{Amount: core.Money{Cents: 100}, Year: 2024, Month: 1, Day: 1, AccountID: acc.ID},
			want: core.ErrEmptyName,
		},
		{
			name: "zero amount",
			tx:   core.Transaction{Name: "x", Year: 2024, Month: 1, Day: 1, AccountID: acc.ID},
			want: core.ErrInvalidAmount,
		},
		{
			name: "month out of range",
			tx:   core.Transaction{Name: "x", Amount: core.Money{Cents: 100}, Year: 2024, Month: 13, Day: 1, AccountID: acc.ID},
			want: core.ErrInvalidPeriod,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.AddTransaction(ctx, tt.tx); !errors.Is(err, tt.want) {
				t.Errorf("AddTransaction() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransactionsForAccountsMonth(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	a := testAccount(t, r, "Current")
	b := testAccount(t, r, "Savings")

	for _, accID := range []int64{a.ID, b.ID} {
		_, err := r.AddTransaction(ctx, core.Transaction{
			Name: "Entry", Amount: core.Money{Cents: 100}, IsExpense: true,
			Year: 2024, Month: 7, Day: 2, AccountID: accID, CategoryID: 4,
		})
		if err != nil {
			t.Fatalf("AddTransaction() error = %v", err)
		}
	}

	got, err := r.TransactionsForAccountsMonth(ctx, []int64{a.ID, b.ID}, 2024, 7)
	if err != nil {
		t.Fatalf("TransactionsForAccountsMonth() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d transactions, want 2", len(got))
	}

	got, err = r.TransactionsForAccountsMonth(ctx, nil, 2024, 7)
	if err != nil || got != nil {
		t.Errorf("empty account set = (%v, %v), want (nil, nil)", got, err)
	}
}
