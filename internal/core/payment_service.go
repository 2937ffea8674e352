package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PaymentService moves sales from unpaid to paid and rolls customer statistics forward once.
type PaymentService interface {
	ConfirmPayment(ctx context.Context, transactionID string) (*LedgerResult, error)
}

type paymentService struct {
	store       Store
	logger      *slog.Logger
	unitTimeout time.Duration
	now         func() time.Time
}

func NewPaymentService(store Store, logger *slog.Logger) PaymentService {
	return &paymentService{
		store:       store,
		logger:      logger,
		unitTimeout: defaultUnitTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmPayment transitions pending/expected to paid. A transaction that is already paid
// comes back with Idempotent set and nothing is written.
func (s *paymentService) ConfirmPayment(ctx context.Context, transactionID string) (*LedgerResult, error) {
	if transactionID == "" {
		return nil, validationError(CodeMissingTransactionID, "transaction id is required")
	}

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.unitTimeout)
	defer cancel()

	uow, err := s.store.Begin(uctx)
	if err != nil {
		return nil, s.fail(ctx, "begin unit of work failed", transactionID, err)
	}
	defer uow.Rollback(uctx)

	tx, err := uow.Transactions().GetByIDForUpdate(uctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(CodeTransactionNotFound, fmt.Sprintf("transaction %s not found", transactionID))
		}
		return nil, s.fail(ctx, "transaction lookup failed", transactionID, err)
	}

	if tx.Kind != KindSale {
		return nil, &LedgerError{
			Code:    CodeInvalidTransactionType,
			Kind:    KindBusinessRule,
			Message: fmt.Sprintf("only sales can be paid; transaction %s is a %s", tx.ID, tx.Kind),
		}
	}

	switch {
	case tx.PaymentStatus == PaymentPaid:
		return &LedgerResult{Transaction: tx, Idempotent: true}, nil
	case !tx.PaymentStatus.IsUnpaid():
		return nil, &LedgerError{
			Code:    CodeInvalidPaymentTransition,
			Kind:    KindBusinessRule,
			Message: fmt.Sprintf("transaction %s is %s and cannot be paid", tx.ID, tx.PaymentStatus),
		}
	}

	paidAt := s.now()
	changed, err := uow.Transactions().MarkPaid(uctx, tx.ID, paidAt)
	if err != nil {
		return nil, s.fail(ctx, "mark paid failed", transactionID, err)
	}
	if !changed {
		// Another confirmation committed between the read and the guarded update.
		_ = uow.Rollback(uctx)
		current, err := s.store.Transactions().GetByID(ctx, tx.ID)
		if err != nil {
			return nil, s.fail(ctx, "transaction reload failed", transactionID, err)
		}
		if current.PaymentStatus != PaymentPaid {
			return nil, &LedgerError{
				Code:    CodeInvalidPaymentTransition,
				Kind:    KindBusinessRule,
				Message: fmt.Sprintf("transaction %s is %s and cannot be paid", current.ID, current.PaymentStatus),
			}
		}
		return &LedgerResult{Transaction: current, Idempotent: true}, nil
	}

	if err := applyPaidTransaction(uctx, uow, tx.CustomerID, tx.Amount); err != nil {
		var le *LedgerError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, s.fail(ctx, "customer stats update failed", transactionID, err)
	}

	if err := uow.Commit(uctx); err != nil {
		return nil, s.fail(ctx, "commit payment failed", transactionID, err)
	}

	tx.PaymentStatus = PaymentPaid
	tx.PaidAt = &paidAt

	s.logger.InfoContext(ctx, "payment confirmed",
		"transaction_id", tx.ID, "amount", tx.Amount.String())

	return &LedgerResult{Transaction: tx}, nil
}

func (s *paymentService) fail(ctx context.Context, msg, transactionID string, err error) *LedgerError {
	s.logger.ErrorContext(ctx, msg, "transaction_id", transactionID, "error", err)
	return internalError(err)
}
