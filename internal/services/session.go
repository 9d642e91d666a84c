package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tally/internal/core"
	"tally/internal/storage"
)

// Session orchestrates application startup: first-run setup and the
// once-per-month administration that keeps generated transactions and
// budgets current. It also carries per-process view state: the last page
// the user visited and whether they are on a mobile device.
type Session struct {
	storage         *storage.Repository
	defaultCurrency core.Currency
	defaultTemplate core.BudgetTemplate

	mu       sync.Mutex
	lastPage string
	mobile   bool
}

// NewSession creates a session service. currency and template are used only
// when the database is empty and initial setup has to run.
func NewSession(storage *storage.Repository, currency core.Currency, template core.BudgetTemplate) *Session {
	return &Session{
		storage:         storage,
		defaultCurrency: currency,
		defaultTemplate: template,
	}
}

// Bootstrap prepares the application for use. On a first run it performs the
// initial setup; on every run it ensures the current month has been
// administered. The returned user reflects the state after both steps.
func (s *Session) Bootstrap(ctx context.Context) (core.User, error) {
	_, err := s.storage.User(ctx)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "First run detected, performing initial setup")
		if err := s.storage.InitialSetup(ctx, s.defaultCurrency, s.defaultTemplate); err != nil {
			return core.User{}, fmt.Errorf("initial setup: %w", err)
		}
		_, err = s.storage.User(ctx)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}

	now, _ := core.Today()
	if err := s.storage.RunMonthlyAdmin(ctx, now); err != nil {
		return core.User{}, fmt.Errorf("monthly administration: %w", err)
	}
	return s.storage.User(ctx)
}

// SetLastPage records the page the user navigated to, so the next render can
// return them there. Not persisted; a restart falls back to the dashboard.
func (s *Session) SetLastPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPage = page
}

// LastPage returns the most recently visited page, or "" before the first
// navigation.
func (s *Session) LastPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPage
}

// SetMobile records whether the client is a mobile device, driving layout
// choices in the templates.
func (s *Session) SetMobile(mobile bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobile = mobile
}

func (s *Session) Mobile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobile
}
