package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// VariantRepository owns variant rows. Stock moves only through ConditionalAdjust.
type VariantRepository interface {
	// FindBySlug resolves a variant by its product's stable slug and length.
	FindBySlug(ctx context.Context, slug string, length int) (*Variant, error)
	// FindByLegacyID resolves a variant by its product's legacy identifier and length.
	FindByLegacyID(ctx context.Context, legacyID string, length int) (*Variant, error)
	GetByID(ctx context.Context, id string) (*Variant, error)
	List(ctx context.Context) ([]Variant, error)
	// ConditionalAdjust applies stock = stock + delta only when the result stays >= minResulting.
	// It returns the resulting stock, or ErrStockConflict when the precondition fails.
	ConditionalAdjust(ctx context.Context, id string, delta, minResulting int) (int, error)
}

// TransactionRepository owns transaction rows and doubles as the idempotency index.
type TransactionRepository interface {
	FindByOperationID(ctx context.Context, operationID string) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	// GetByIDForUpdate reads the row and holds a write lock on it until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	// Insert writes the transaction and its items. A reused operation id yields ErrDuplicateOperation.
	Insert(ctx context.Context, tx *Transaction) error
	// MarkPaid moves an unpaid transaction to paid. It returns false when the row was no longer unpaid.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// CustomerRepository exposes customers and their guarded statistics increment.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	IncrementStats(ctx context.Context, id string, orders int, amount decimal.Decimal) error
}

// AdjustmentRepository records operator stock adjustments and is their idempotency index.
type AdjustmentRepository interface {
	FindByOperationID(ctx context.Context, operationID string) (*StockAdjustment, error)
	// Insert records an applied adjustment. A reused operation id yields ErrDuplicateOperation.
	Insert(ctx context.Context, adj StockAdjustment, createdAt time.Time) error
}

// Repositories groups the per-entity repositories bound to one connection scope.
type Repositories interface {
	Variants() VariantRepository
	Transactions() TransactionRepository
	Customers() CustomerRepository
	Adjustments() AdjustmentRepository
}

// UnitOfWork is an open atomic scope. Commit and Rollback are its only terminal actions;
// Rollback after Commit is a no-op, so callers always defer it.
type UnitOfWork interface {
	Repositories
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the storage root. Its own repositories run outside any unit of work.
type Store interface {
	Repositories
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// CatalogWriter is the import-side write path for catalog and customer rows. The ledger
// never calls it; seeding and tests do.
type CatalogWriter interface {
	UpsertProduct(ctx context.Context, p Product) error
	UpsertVariant(ctx context.Context, v Variant) error
	UpsertCustomer(ctx context.Context, c Customer) error
}
