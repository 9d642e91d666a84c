package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/config"
	"tally/internal/core"
	apphttp "tally/internal/http"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := applog.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.Open(cfg.SQLiteDBPath, storage.Horizon{
		FromYear: cfg.HorizonFromYear,
		ToYear:   cfg.HorizonToYear,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	currency := core.Currency{Label: cfg.DefaultCurrencyLabel, Unit: cfg.DefaultCurrencyUnit}
	session := services.NewSession(repo, currency, core.BudgetTemplate{})
	user, err := session.Bootstrap(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Bootstrap failed", "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Session ready",
		"currency", user.Currency.Label,
		"last_year", user.LastLogin.Year,
		"last_month", user.LastLogin.Month)

	srv := apphttp.NewServer(":"+cfg.Port, repo, user.Currency)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Server error", "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Server stopped gracefully")
}
