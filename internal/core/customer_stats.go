package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// applyPaidTransaction is the single place customer statistics move. It must run inside the
// unit of work that made the transaction paid, so stats and status commit together.
func applyPaidTransaction(ctx context.Context, uow UnitOfWork, customerID *string, amount decimal.Decimal) error {
	if customerID == nil {
		return nil
	}
	if err := uow.Customers().IncrementStats(ctx, *customerID, 1, amount); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFoundError(CodeCustomerNotFound, fmt.Sprintf("customer %s not found", *customerID))
		}
		return fmt.Errorf("failed to increment stats for customer %s: %w", *customerID, err)
	}
	return nil
}
