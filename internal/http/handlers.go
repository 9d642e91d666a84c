package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/services"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	now, day := core.Today()
	accounts, err := s.storage.UnlockedAccounts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Account list error", "error", err)
	}
	expenseCats, err := s.storage.UserCategories(ctx, true)
	if err != nil {
		slog.ErrorContext(ctx, "Category list error", "error", err)
	}
	incomeCats, err := s.storage.UserCategories(ctx, false)
	if err != nil {
		slog.ErrorContext(ctx, "Category list error", "error", err)
	}

	data := struct {
		Year              int
		Month             int
		Day               int
		CurrencyUnit      string
		Accounts          []core.Account
		ExpenseCategories []core.Category
		IncomeCategories  []core.Category
	}{
		Year:              now.Year,
		Month:             now.Month,
		Day:               day,
		CurrencyUnit:      s.currency.Unit,
		Accounts:          accounts,
		ExpenseCategories: expenseCats,
		IncomeCategories:  incomeCats,
	}
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(ctx, "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) getOverview(ctx context.Context, p core.Period) (services.MonthOverview, error) {
	key := fmt.Sprintf("%d-%02d", p.Year, p.Month)
	if ov, found := s.overviewCache.Get(key); found {
		slog.DebugContext(ctx, "Overview cache hit", "year", p.Year, "month", p.Month)
		return ov, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	ov, err := s.overview.Month(cctx, p)
	if err != nil {
		return services.MonthOverview{}, fmt.Errorf("month overview %d-%02d: %w", p.Year, p.Month, err)
	}
	s.overviewCache.Set(key, ov)
	return ov, nil
}

// handleMonthOverview renders the monthly dashboard partial.
func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	now, _ := core.Today()
	p := core.Period{
		Year:  queryInt(r, "year", now.Year),
		Month: queryInt(r, "month", now.Month),
	}
	if !p.Valid() {
		slog.WarnContext(r.Context(), "Invalid period parameter", "year", p.Year, "month", p.Month)
		p = now
	}

	ov, err := s.getOverview(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month overview error", "error", err, "year", p.Year, "month", p.Month)
		_, _ = w.Write([]byte(`<section id="month-overview"><div class="placeholder">Failed to load overview</div></section>`))
		return
	}

	labels := s.categoryLabels(r.Context())

	type accountRow struct {
		Label       string
		Balance     string
		Budget      string
		Expenditure string
	}
	type txRow struct {
		Day      int
		Name     string
		Amount   string
		Category string
		Expense  bool
	}
	data := struct {
		Year         int
		Month        int
		TotalBalance string
		Accounts     []accountRow
		Transactions []txRow
		HasBudget    bool
		BudgetItems  []struct{ Name, Amount string }
	}{
		Year:         p.Year,
		Month:        p.Month,
		TotalBalance: formatAmount(s.currency.Unit, ov.TotalBalance.Cents),
		HasBudget:    ov.HasBudget,
	}
	for _, a := range ov.Accounts {
		data.Accounts = append(data.Accounts, accountRow{
			Label:       a.Account.Label,
			Balance:     formatAmount(a.Account.Currency.Unit, a.Balance.Cents),
			Budget:      formatAmount(a.Account.Currency.Unit, a.Budget.Cents),
			Expenditure: formatAmount(a.Account.Currency.Unit, a.Expenditure.Cents),
		})
	}
	for _, t := range ov.Transactions {
		data.Transactions = append(data.Transactions, txRow{
			Day:      t.Day,
			Name:     t.Name,
			Amount:   formatAmount(s.currency.Unit, t.Amount.Cents),
			Category: labels[t.CategoryID],
			Expense:  t.IsExpense,
		})
	}
	for _, item := range ov.Budget.Items {
		data.BudgetItems = append(data.BudgetItems, struct{ Name, Amount string }{
			Name:   item.Name,
			Amount: formatAmount(s.currency.Unit, item.Amount),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="month-overview"><div class="placeholder">Total: ` + data.TotalBalance + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "month_overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "month_overview.html")
		_, _ = w.Write([]byte(`<section id="month-overview"><div class="placeholder">Failed to render overview</div></section>`))
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	now, day := core.Today()

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Invalid amount")
		return
	}
	t := core.Transaction{
		Name:       sanitizeInput(r.Form.Get("name")),
		Amount:     core.Money{Cents: cents},
		IsExpense:  r.Form.Get("kind") != "income",
		Year:       formInt(r, "year", now.Year),
		Month:      formInt(r, "month", now.Month),
		Day:        formInt(r, "day", day),
		AccountID:  formID(r, "account_id"),
		CategoryID: formID(r, "category_id"),
	}

	id, err := s.storage.AddTransaction(r.Context(), t)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction create error", "error", err, "name", t.Name)
		writeErrorFragment(w, errorStatus(err), "Could not save transaction")
		return
	}
	s.invalidateOverviews(w, t.Year, t.Month)
	writeSuccessFragment(w, fmt.Sprintf("Saved %s (#%d): %s", t.Name, id, formatAmount(s.currency.Unit, t.Amount.Cents)))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	id := formID(r, "id")
	if err := s.storage.DeleteTransaction(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Transaction delete error", "error", err, "id", id)
		writeErrorFragment(w, errorStatus(err), "Could not delete transaction")
		return
	}
	now, _ := core.Today()
	s.invalidateOverviews(w, now.Year, now.Month)
	writeSuccessFragment(w, "Transaction deleted")
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Invalid amount")
		return
	}
	fromID := formID(r, "from_account_id")
	toID := formID(r, "to_account_id")
	rate := formRate(r, "rate")

	if err := s.storage.Transfer(r.Context(), fromID, toID, core.Money{Cents: cents}, rate); err != nil {
		slog.ErrorContext(r.Context(), "Transfer error", "error", err, "from", fromID, "to", toID)
		writeErrorFragment(w, errorStatus(err), "Could not transfer funds")
		return
	}
	now, _ := core.Today()
	s.invalidateOverviews(w, now.Year, now.Month)
	writeSuccessFragment(w, "Transfer recorded")
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	label := sanitizeInput(r.Form.Get("label"))
	isExpense := r.Form.Get("kind") != "income"

	c, err := s.storage.AddCategory(r.Context(), label, isExpense)
	if err != nil {
		slog.WarnContext(r.Context(), "Category create refused", "error", err, "label", label)
		writeErrorFragment(w, errorStatus(err), "Could not create category")
		return
	}
	writeSuccessFragment(w, fmt.Sprintf("Category %s created", c.Label))
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	now, _ := core.Today()
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Invalid amount")
		return
	}
	rt := core.RecurringTransaction{
		Name:      sanitizeInput(r.Form.Get("name")),
		Amount:    core.Money{Cents: cents},
		IsExpense: r.Form.Get("kind") != "income",
		IsMonthly: r.Form.Get("cadence") != "annual",
		Start: core.Period{
			Year:  formInt(r, "start_year", now.Year),
			Month: formInt(r, "start_month", now.Month),
		},
		End: core.Period{
			Year:  formInt(r, "end_year", now.Year+1),
			Month: formInt(r, "end_month", now.Month),
		},
		AccountID: formID(r, "account_id"),
	}

	created, err := s.storage.AddRecurring(r.Context(), rt)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recurring create error", "error", err, "name", rt.Name)
		writeErrorFragment(w, errorStatus(err), "Could not create recurring transaction")
		return
	}
	s.overviewCache.Purge()
	writeSuccessFragment(w, fmt.Sprintf("Recurring %s created, %s per month",
		created.Name, formatAmount(s.currency.Unit, created.MonthlyAmount.Cents)))
}

func (s *Server) handleStopRecurring(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	id := formID(r, "id")
	now, _ := core.Today()
	if err := s.storage.StopRecurring(r.Context(), id, now); err != nil {
		slog.WarnContext(r.Context(), "Recurring stop refused", "error", err, "id", id)
		writeErrorFragment(w, errorStatus(err), "Could not stop recurring transaction")
		return
	}
	s.overviewCache.Purge()
	writeSuccessFragment(w, "Recurring transaction stopped")
}

func (s *Server) handleCreateFavourite(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Invalid amount")
		return
	}
	f := core.FavouriteTransaction{
		Name:       sanitizeInput(r.Form.Get("name")),
		Amount:     core.Money{Cents: cents},
		IsExpense:  r.Form.Get("kind") != "income",
		CategoryID: formID(r, "category_id"),
		AccountID:  formID(r, "account_id"),
	}
	if _, err := s.storage.AddFavourite(r.Context(), f); err != nil {
		slog.WarnContext(r.Context(), "Favourite create refused", "error", err, "name", f.Name)
		writeErrorFragment(w, errorStatus(err), "Could not save favourite")
		return
	}
	writeSuccessFragment(w, fmt.Sprintf("Favourite %s saved", f.Name))
}

// invalidateOverviews purges the partial cache and triggers a client refresh.
func (s *Server) invalidateOverviews(w http.ResponseWriter, year, month int) {
	s.overviewCache.Purge()
	w.Header().Set("HX-Trigger",
		`{"ledger:changed": {"year": `+strconv.Itoa(year)+`, "month": `+strconv.Itoa(month)+`}}`)
}

func (s *Server) categoryLabels(ctx context.Context) map[int64]string {
	labels := make(map[int64]string)
	cats, err := s.storage.AllCategories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Category label lookup error", "error", err)
		return labels
	}
	for _, c := range cats {
		labels[c.ID] = c.Label
	}
	return labels
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
