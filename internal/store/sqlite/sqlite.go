/*
Package sqlite provides a SQLite-backed implementation of core.Store.

It serves embedded single-node deployments and the fast test suite. The pool is capped at
one connection and every unit of work opens with BEGIN IMMEDIATE, so writers are serialized
by SQLite itself and the conditional stock update never races.

Callers must not touch the Store's own repositories while holding a unit of work open on
the same goroutine: the single connection belongs to the unit of work until it ends.

Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"flower-pos/internal/core"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements core.Store and core.CatalogWriter.
type Store struct {
	db *sql.DB
	repos
}

// New opens (creating if needed) the database at path and migrates the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, repos: repos{q: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a unit of work. It blocks while another unit of work holds the connection.
func (s *Store) Begin(ctx context.Context) (core.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx, repos: repos{q: tx}}, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	legacy_id TEXT UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS variants (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	length INTEGER NOT NULL CHECK (length > 0),
	stock INTEGER NOT NULL CHECK (stock >= 0),
	price TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (product_id, length)
);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	order_count INTEGER NOT NULL DEFAULT 0 CHECK (order_count >= 0),
	total_spent TEXT NOT NULL DEFAULT '0',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('sale', 'writeOff')),
	operation_id TEXT NOT NULL UNIQUE,
	payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid', 'expected', 'cancelled')),
	amount TEXT NOT NULL,
	discount TEXT NOT NULL DEFAULT '0',
	write_off_reason TEXT,
	note TEXT,
	customer_id TEXT REFERENCES customers(id),
	created_at TEXT NOT NULL,
	paid_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id) WHERE customer_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS transaction_items (
	transaction_id TEXT NOT NULL REFERENCES transactions(id),
	position INTEGER NOT NULL,
	variant_id TEXT NOT NULL REFERENCES variants(id),
	variant_key TEXT NOT NULL,
	length INTEGER NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	unit_price TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (transaction_id, position)
);

CREATE TABLE IF NOT EXISTS stock_adjustments (
	operation_id TEXT NOT NULL UNIQUE,
	variant_id TEXT NOT NULL REFERENCES variants(id),
	delta INTEGER NOT NULL CHECK (delta <> 0),
	resulting_stock INTEGER NOT NULL CHECK (resulting_stock >= 0),
	created_at TEXT NOT NULL
);
`

type unitOfWork struct {
	tx *sql.Tx
	repos
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// repos binds the repositories to one querier.
type repos struct {
	q querier
}

func (r repos) Variants() core.VariantRepository         { return variantRepo{q: r.q} }
func (r repos) Transactions() core.TransactionRepository { return transactionRepo{q: r.q} }
func (r repos) Customers() core.CustomerRepository       { return customerRepo{q: r.q} }
func (r repos) Adjustments() core.AdjustmentRepository   { return adjustmentRepo{q: r.q} }

// Helper functions

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on column
// ("table.column"); an empty column matches any unique violation.
func isUniqueViolation(err error, column string) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return column == "" || strings.Contains(se.Error(), column)
}
