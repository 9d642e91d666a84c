package core

import "testing"

func TestIsReservedCategoryLabel(t *testing.T) {
	reserved := []string{"Repeat", "REPEAT", "repeat", "transfer", "Transfer", " transfer "}
	for _, label := range reserved {
		if !IsReservedCategoryLabel(label) {
			t.Errorf("IsReservedCategoryLabel(%q) = false, want true", label)
		}
	}
	allowed := []string{"Groceries", "Repeats", "transferred", "Rent"}
	for _, label := range allowed {
		if IsReservedCategoryLabel(label) {
			t.Errorf("IsReservedCategoryLabel(%q) = true, want false", label)
		}
	}
}

func TestInstallmentAmount(t *testing.T) {
	monthly := RecurringTransaction{Amount: Money{Cents: 5000}, IsMonthly: true}
	if got := monthly.InstallmentAmount().Cents; got != 5000 {
		t.Errorf("monthly installment = %d, want 5000", got)
	}
	annual := RecurringTransaction{Amount: Money{Cents: 10000}, IsMonthly: false}
	if got := annual.InstallmentAmount().Cents; got != 833 {
		t.Errorf("annual installment = %d, want 833", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{Name: "Rent", Amount: Money{Cents: 100}, Year: 2024, Month: 6, Day: 1}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid transaction rejected: %v", err)
	}
	tests := []struct {
		name string
		tx   Transaction
	}{
		{"empty name", Transaction{Amount: Money{Cents: 100}, Year: 2024, Month: 6, Day: 1}},
		{"zero amount", Transaction{Name: "x", Year: 2024, Month: 6, Day: 1}},
		{"bad month", Transaction{Name: "x", Amount: Money{Cents: 100}, Year: 2024, Month: 13, Day: 1}},
		{"bad day", Transaction{Name: "x", Amount: Money{Cents: 100}, Year: 2024, Month: 6, Day: 0}},
	}
	for _, tt := range tests {
		if err := tt.tx.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestReservedCategoryRouting(t *testing.T) {
	if RepeatCategoryFor(true) != CategoryRepeatExpense || RepeatCategoryFor(false) != CategoryRepeatIncome {
		t.Error("repeat category routing wrong")
	}
	if TransferCategoryFor(true) != CategoryTransferExpense || TransferCategoryFor(false) != CategoryTransferIncome {
		t.Error("transfer category routing wrong")
	}
}
