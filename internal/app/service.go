package app

import (
	"context"

	"flower-pos/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic and owns the cross-cutting work that follows
// a committed ledger operation: metrics and event publication.
type ApplicationService interface {
	// CreateSale records a sale from a cart, decrementing stock exactly once per operation id.
	// A repeated operation id returns the original transaction with Idempotent set.
	CreateSale(ctx context.Context, req core.SaleRequest) (*core.LedgerResult, error)

	// CreateWriteOff removes damaged or expired stock without revenue.
	CreateWriteOff(ctx context.Context, req core.WriteOffRequest) (*core.LedgerResult, error)

	// ConfirmPayment moves a pending or expected sale to paid and credits the customer once.
	ConfirmPayment(ctx context.Context, transactionID string) (*core.LedgerResult, error)

	// GetTransaction returns one transaction with its frozen line items.
	GetTransaction(ctx context.Context, id string) (*TransactionResult, error)

	// ListTransactions returns transactions newest first.
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (*TransactionListResult, error)

	// GetStockLevels returns every variant with its current stock.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	AdjustStock(ctx context.Context, req core.AdjustStockRequest) (*StockAdjustmentResult, error)
}
