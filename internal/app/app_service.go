package app

import (
	"context"
	"log/slog"
	"time"

	"flower-pos/internal/core"
	"flower-pos/internal/events"
	"flower-pos/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Operation names used as metric labels.
const (
	opCreateSale     = "create_sale"
	opCreateWriteOff = "create_write_off"
	opConfirmPayment = "confirm_payment"
	opAdjustStock    = "adjust_stock"
)

type appService struct {
	ledger    core.LedgerService
	payments  core.PaymentService
	inventory core.InventoryService
	metrics   *metrics.Metrics
	publisher events.Publisher
	logger    *slog.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	ledger core.LedgerService,
	payments core.PaymentService,
	inventory core.InventoryService,
	m *metrics.Metrics,
	publisher events.Publisher,
	logger *slog.Logger,
) ApplicationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &appService{
		ledger:    ledger,
		payments:  payments,
		inventory: inventory,
		metrics:   m,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *appService) CreateSale(ctx context.Context, req core.SaleRequest) (*core.LedgerResult, error) {
	start := time.Now()
	result, err := s.ledger.CreateSale(ctx, req)
	s.record(opCreateSale, result != nil && result.Idempotent, err, start)
	if err != nil {
		return nil, err
	}
	if !result.Idempotent {
		s.recordStock(opCreateSale, result.StockAdjustments)
		s.publish(ctx, events.SaleCreated, result.Transaction.ID, result)
	}
	return result, nil
}

func (s *appService) CreateWriteOff(ctx context.Context, req core.WriteOffRequest) (*core.LedgerResult, error) {
	start := time.Now()
	result, err := s.ledger.CreateWriteOff(ctx, req)
	s.record(opCreateWriteOff, result != nil && result.Idempotent, err, start)
	if err != nil {
		return nil, err
	}
	if !result.Idempotent {
		s.recordStock(opCreateWriteOff, result.StockAdjustments)
		s.publish(ctx, events.WriteOffCreated, result.Transaction.ID, result)
	}
	return result, nil
}

func (s *appService) ConfirmPayment(ctx context.Context, transactionID string) (*core.LedgerResult, error) {
	start := time.Now()
	result, err := s.payments.ConfirmPayment(ctx, transactionID)
	s.record(opConfirmPayment, result != nil && result.Idempotent, err, start)
	if err != nil {
		return nil, err
	}
	if !result.Idempotent {
		s.publish(ctx, events.PaymentConfirmed, result.Transaction.ID, result.Transaction)
	}
	return result, nil
}

func (s *appService) GetTransaction(ctx context.Context, id string) (*TransactionResult, error) {
	tx, err := s.ledger.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransactionResult{Transaction: tx}, nil
}

func (s *appService) ListTransactions(ctx context.Context, req ListTransactionsRequest) (*TransactionListResult, error) {
	filter, err := core.ParseTransactionFilter(req.Kind, req.PaymentStatus, req.CustomerID, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return &TransactionListResult{Transactions: txs, Limit: req.Limit, Offset: req.Offset}, nil
}

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	variants, err := s.inventory.StockLevels(ctx)
	if err != nil {
		return nil, err
	}
	if variants == nil {
		variants = []core.Variant{}
	}
	return &StockResult{Variants: variants}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req core.AdjustStockRequest) (*StockAdjustmentResult, error) {
	start := time.Now()
	result, err := s.inventory.AdjustStock(ctx, req)
	s.record(opAdjustStock, result != nil && result.Idempotent, err, start)
	if err != nil {
		return nil, err
	}
	if !result.Idempotent {
		s.recordStock(opAdjustStock, []core.StockAdjustment{*result.Adjustment})
		s.publish(ctx, events.StockAdjusted, result.Adjustment.VariantID, result.Adjustment)
	}
	return &StockAdjustmentResult{Adjustment: result.Adjustment, Idempotent: result.Idempotent}, nil
}

// record counts one ledger call by outcome.
func (s *appService) record(op string, idempotent bool, err error, start time.Time) {
	outcome, code := outcomeOf(idempotent, err)
	s.metrics.RecordOperation(op, outcome, code, time.Since(start))
}

func (s *appService) recordStock(op string, adjustments []core.StockAdjustment) {
	for _, a := range adjustments {
		s.metrics.RecordStockMove(op, a.Delta)
	}
}

// publish hands a committed fact to the publisher. Failures are logged and counted only:
// the transaction is already durable.
func (s *appService) publish(ctx context.Context, eventType, subject string, data any) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(pubCtx, events.NewEvent(eventType, subject, data))
	s.metrics.RecordEventPublished(eventType, err)
	if err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event_type", eventType,
			"subject", subject,
			"error", err,
		)
	}
}

func outcomeOf(idempotent bool, err error) (outcome, code string) {
	if err != nil {
		le := core.AsLedgerError(err)
		switch le.Kind {
		case core.KindConcurrency:
			return metrics.OutcomeConflict, le.Code
		case core.KindInternal:
			return metrics.OutcomeError, le.Code
		default:
			return metrics.OutcomeRejected, le.Code
		}
	}
	if idempotent {
		return metrics.OutcomeIdempotent, ""
	}
	return metrics.OutcomeCreated, ""
}
