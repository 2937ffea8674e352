package app

import "flower-pos/internal/core"

// TransactionResult is returned by GetTransaction.
type TransactionResult struct {
	Transaction *core.Transaction
}

// TransactionListResult is returned by ListTransactions.
type TransactionListResult struct {
	Transactions []core.Transaction
	Limit        int
	Offset       int
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Variants []core.Variant
}

// StockAdjustmentResult is returned by AdjustStock.
type StockAdjustmentResult struct {
	Adjustment *core.StockAdjustment
	Idempotent bool
}
