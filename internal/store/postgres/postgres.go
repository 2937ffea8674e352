// Package postgres is the production core.Store on PostgreSQL through pgx.
//
// Stock moves through a single guarded UPDATE ... RETURNING; the row lock taken by that
// statement is held until the unit of work ends, so a concurrent decrement of the same
// variant waits and then re-evaluates the guard against the committed stock.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flower-pos/internal/core"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements core.Store and core.CatalogWriter.
type Store struct {
	pool *pgxpool.Pool
	repos
}

// New wraps an open pool. Close releases the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, repos: repos{db: pool}}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Begin(ctx context.Context) (core.UnitOfWork, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx, repos: repos{db: tx}}, nil
}

type unitOfWork struct {
	tx pgx.Tx
	repos
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

type repos struct {
	db dbtx
}

func (r repos) Variants() core.VariantRepository         { return variantRepo{db: r.db} }
func (r repos) Transactions() core.TransactionRepository { return transactionRepo{db: r.db} }
func (r repos) Customers() core.CustomerRepository       { return customerRepo{db: r.db} }
func (r repos) Adjustments() core.AdjustmentRepository   { return adjustmentRepo{db: r.db} }

const uniqueViolation = "23505"

// isUniqueViolation reports whether err violates the named unique constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
