// Package storage is the data access layer: every domain operation runs
// against a local SQLite database, with compound mutations wrapped in a
// single transaction scope.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Horizon is the fixed range of years over which account months are
// provisioned when an account is created.
type Horizon struct {
	FromYear int
	ToYear   int
}

// DefaultHorizon matches the range the application has always provisioned.
var DefaultHorizon = Horizon{FromYear: 2018, ToYear: 2025}

// Repository exposes the domain operations over SQLite.
type Repository struct {
	db      *sql.DB
	horizon Horizon
}

// Open opens (or creates) the database at dbPath, runs migrations and
// returns a ready repository.
func Open(dbPath string, horizon Horizon) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if horizon.FromYear == 0 && horizon.ToYear == 0 {
		horizon = DefaultHorizon
	}

	return &Repository{db: db, horizon: horizon}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so query helpers can run
// inside or outside an explicit transaction scope.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execTx runs fn inside one transaction; either everything commits or
// everything rolls back. This is the only atomicity primitive in the layer.
func (r *Repository) execTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
