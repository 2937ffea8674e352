package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultUnitTimeout = 10 * time.Second
	defaultListLimit   = 20
	maxListLimit       = 100
)

// LedgerService turns carts and write-offs into durable transactions, decrementing stock once.
type LedgerService interface {
	CreateSale(ctx context.Context, req SaleRequest) (*LedgerResult, error)
	CreateWriteOff(ctx context.Context, req WriteOffRequest) (*LedgerResult, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithUnitTimeout bounds how long one unit of work may stay open.
func WithUnitTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.unitTimeout = d
		}
	}
}

// WithClock replaces the wall clock used for created/paid timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

type Ledger struct {
	store       Store
	inventory   InventoryService
	logger      *slog.Logger
	unitTimeout time.Duration
	now         func() time.Time
}

func NewLedger(store Store, inventory InventoryService, logger *slog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:       store,
		inventory:   inventory,
		logger:      logger,
		unitTimeout: defaultUnitTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// resolvedLine pairs a cart line with the variant it resolved to.
type resolvedLine struct {
	item    LineItem
	variant *Variant
}

// CreateSale records a sale exactly once per operation id.
//
//  1. idempotency fast path outside any unit of work
//  2. customer and variant resolution, full stock pre-check
//  3. unit of work: idempotency re-check, conditional decrements, insert, customer stats
func (l *Ledger) CreateSale(ctx context.Context, req SaleRequest) (*LedgerResult, error) {
	status, err := validateSale(req)
	if err != nil {
		return nil, err
	}
	discount := decimal.Zero
	if req.Discount != nil {
		discount = *req.Discount
	}

	if res, err := l.findExisting(ctx, l.store, req.OperationID); err != nil || res != nil {
		return res, err
	}

	if _, err := l.store.Customers().GetByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(CodeCustomerNotFound, fmt.Sprintf("customer %s not found", req.CustomerID))
		}
		return nil, l.fail(ctx, "customer lookup failed", req.OperationID, err)
	}

	items := make([]LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = LineItem{
			VariantKey: it.VariantKey,
			Length:     it.Length,
			Quantity:   it.Quantity,
			UnitPrice:  *it.UnitPrice,
			Name:       it.Name,
		}
	}
	lines, err := l.resolveLines(ctx, req.OperationID, items)
	if err != nil {
		return l.settleStockError(ctx, req.OperationID, err)
	}

	uctx, cancel := l.unitContext(ctx)
	defer cancel()

	uow, err := l.store.Begin(uctx)
	if err != nil {
		return nil, l.fail(ctx, "begin unit of work failed", req.OperationID, err)
	}
	defer uow.Rollback(uctx)

	// A second writer may have committed the same operation since the fast path.
	if res, err := l.findExisting(uctx, uow, req.OperationID); err != nil || res != nil {
		return res, err
	}

	adjustments, err := l.decrementAll(uctx, uow, req.OperationID, lines)
	if err != nil {
		_ = uow.Rollback(uctx)
		return l.settleStockError(ctx, req.OperationID, err)
	}

	tx := &Transaction{
		ID:            uuid.NewString(),
		Kind:          KindSale,
		OperationID:   req.OperationID,
		PaymentStatus: status,
		Amount:        SaleAmount(items, discount),
		Discount:      discount,
		Items:         snapshot(lines),
		Note:          req.Note,
		CustomerID:    &req.CustomerID,
		CreatedAt:     l.now(),
	}
	if status == PaymentPaid {
		paidAt := tx.CreatedAt
		tx.PaidAt = &paidAt
	}

	if err := uow.Transactions().Insert(uctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			_ = uow.Rollback(uctx)
			return l.replay(ctx, req.OperationID)
		}
		return nil, l.fail(ctx, "insert sale failed", req.OperationID, err)
	}

	if status == PaymentPaid {
		if err := applyPaidTransaction(uctx, uow, tx.CustomerID, tx.Amount); err != nil {
			var le *LedgerError
			if errors.As(err, &le) {
				return nil, le
			}
			return nil, l.fail(ctx, "customer stats update failed", req.OperationID, err)
		}
	}

	if err := uow.Commit(uctx); err != nil {
		return nil, l.fail(ctx, "commit sale failed", req.OperationID, err)
	}

	l.logger.InfoContext(ctx, "sale recorded",
		"transaction_id", tx.ID, "operation_id", tx.OperationID,
		"amount", tx.Amount.String(), "payment_status", tx.PaymentStatus, "items", len(tx.Items))

	return &LedgerResult{Transaction: tx, StockAdjustments: adjustments}, nil
}

// CreateWriteOff removes stock without money changing hands. The transaction is always
// amount 0 and payment status cancelled.
func (l *Ledger) CreateWriteOff(ctx context.Context, req WriteOffRequest) (*LedgerResult, error) {
	if err := validateWriteOff(req); err != nil {
		return nil, err
	}

	if res, err := l.findExisting(ctx, l.store, req.OperationID); err != nil || res != nil {
		return res, err
	}

	lines, err := l.resolveLines(ctx, req.OperationID, []LineItem{{
		VariantKey: req.VariantKey,
		Length:     req.Length,
		Quantity:   req.Quantity,
	}})
	if err != nil {
		return l.settleStockError(ctx, req.OperationID, err)
	}

	uctx, cancel := l.unitContext(ctx)
	defer cancel()

	uow, err := l.store.Begin(uctx)
	if err != nil {
		return nil, l.fail(ctx, "begin unit of work failed", req.OperationID, err)
	}
	defer uow.Rollback(uctx)

	if res, err := l.findExisting(uctx, uow, req.OperationID); err != nil || res != nil {
		return res, err
	}

	adjustments, err := l.decrementAll(uctx, uow, req.OperationID, lines)
	if err != nil {
		_ = uow.Rollback(uctx)
		return l.settleStockError(ctx, req.OperationID, err)
	}

	reason := req.Reason
	tx := &Transaction{
		ID:             uuid.NewString(),
		Kind:           KindWriteOff,
		OperationID:    req.OperationID,
		PaymentStatus:  PaymentCancelled,
		Amount:         decimal.Zero,
		Discount:       decimal.Zero,
		Items:          snapshot(lines),
		WriteOffReason: &reason,
		Note:           req.Note,
		CreatedAt:      l.now(),
	}

	if err := uow.Transactions().Insert(uctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			_ = uow.Rollback(uctx)
			return l.replay(ctx, req.OperationID)
		}
		return nil, l.fail(ctx, "insert write-off failed", req.OperationID, err)
	}

	if err := uow.Commit(uctx); err != nil {
		return nil, l.fail(ctx, "commit write-off failed", req.OperationID, err)
	}

	l.logger.InfoContext(ctx, "write-off recorded",
		"transaction_id", tx.ID, "operation_id", tx.OperationID,
		"reason", reason, "quantity", req.Quantity)

	return &LedgerResult{Transaction: tx, StockAdjustments: adjustments}, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, validationError(CodeMissingTransactionID, "transaction id is required")
	}
	tx, err := l.store.Transactions().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(CodeTransactionNotFound, fmt.Sprintf("transaction %s not found", id))
		}
		return nil, l.fail(ctx, "transaction lookup failed", "", err)
	}
	return tx, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	txs, err := l.store.Transactions().List(ctx, filter)
	if err != nil {
		return nil, l.fail(ctx, "transaction list failed", "", err)
	}
	return txs, nil
}

// SaleAmount computes round(Σ unitPrice × quantity − discount), rounding halves up.
// A discount larger than the subtotal yields a negative amount; it is not clamped.
func SaleAmount(items []LineItem, discount decimal.Decimal) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return subtotal.Sub(discount).Add(decimal.New(5, -1)).Floor()
}

// findExisting is the idempotency index lookup. It returns (nil, nil) when the operation is new.
func (l *Ledger) findExisting(ctx context.Context, repos Repositories, operationID string) (*LedgerResult, error) {
	tx, err := repos.Transactions().FindByOperationID(ctx, operationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, l.fail(ctx, "idempotency lookup failed", operationID, err)
	}
	l.logger.InfoContext(ctx, "idempotent replay", "operation_id", operationID, "transaction_id", tx.ID)
	return &LedgerResult{Transaction: tx, Idempotent: true}, nil
}

// replay answers a request that lost the insert race on the unique operation id.
func (l *Ledger) replay(ctx context.Context, operationID string) (*LedgerResult, error) {
	res, err := l.findExisting(ctx, l.store, operationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, l.fail(ctx, "duplicate operation id without a committed transaction", operationID, ErrDuplicateOperation)
	}
	return res, nil
}

// settleStockError answers a stock or resolution failure with the committed transaction when
// the same operation was recorded meanwhile, and returns err otherwise. No unit of work may be open.
func (l *Ledger) settleStockError(ctx context.Context, operationID string, err error) (*LedgerResult, error) {
	switch ErrorCode(err) {
	case CodeInsufficientStock, CodeConcurrentModification, CodeVariantNotFound:
	default:
		return nil, err
	}
	res, lookupErr := l.findExisting(ctx, l.store, operationID)
	if lookupErr != nil || res == nil {
		return nil, err
	}
	return res, nil
}

// resolveLines resolves every line and pre-checks stock, collecting every failure instead of
// stopping at the first. Lines sharing a variant draw from the same remaining stock.
func (l *Ledger) resolveLines(ctx context.Context, operationID string, items []LineItem) ([]resolvedLine, error) {
	lines := make([]resolvedLine, 0, len(items))
	var missing []StockShortage
	for _, it := range items {
		v, err := l.inventory.FindVariant(ctx, l.store, it.VariantKey, it.Length)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				missing = append(missing, StockShortage{VariantKey: it.VariantKey, Length: it.Length, Requested: it.Quantity, Name: it.Name})
				continue
			}
			return nil, l.fail(ctx, "variant lookup failed", operationID, err)
		}
		lines = append(lines, resolvedLine{item: it, variant: v})
	}
	if len(missing) > 0 {
		return nil, notFoundError(CodeVariantNotFound, fmt.Sprintf("%d item(s) reference unknown variants", len(missing))).WithDetails(missing)
	}

	remaining := make(map[string]int, len(lines))
	var shortages []StockShortage
	for _, ln := range lines {
		available, seen := remaining[ln.variant.ID]
		if !seen {
			available = ln.variant.Stock
		}
		if available < ln.item.Quantity {
			shortages = append(shortages, shortageFor(ln, available))
		}
		remaining[ln.variant.ID] = available - ln.item.Quantity
	}
	if len(shortages) > 0 {
		return nil, insufficientStockError(shortages)
	}
	return lines, nil
}

// decrementAll applies one conditional decrement per line. The first conflict aborts; the
// caller's deferred rollback undoes every earlier decrement.
func (l *Ledger) decrementAll(ctx context.Context, uow UnitOfWork, operationID string, lines []resolvedLine) ([]StockAdjustment, error) {
	adjustments := make([]StockAdjustment, 0, len(lines))
	for _, ln := range lines {
		resulting, err := l.inventory.ConditionalAdjustTx(ctx, uow, ln.variant.ID, -ln.item.Quantity, 0)
		if err != nil {
			if errors.Is(err, ErrStockConflict) {
				available := currentStock(ctx, uow, ln.variant.ID, 0)
				l.logger.WarnContext(ctx, "stock conflict",
					"operation_id", operationID, "variant_id", ln.variant.ID,
					"requested", ln.item.Quantity, "available", available)
				return nil, concurrentModificationError(shortageFor(ln, available))
			}
			return nil, l.fail(ctx, "stock adjust failed", operationID, err)
		}
		adjustments = append(adjustments, StockAdjustment{
			VariantID:      ln.variant.ID,
			VariantKey:     ln.item.VariantKey,
			Length:         ln.variant.Length,
			Delta:          -ln.item.Quantity,
			ResultingStock: resulting,
		})
	}
	return adjustments, nil
}

// unitContext detaches the unit of work from caller cancellation and bounds it with the
// ledger's own timeout, so a dropped client never leaves half a sale behind.
func (l *Ledger) unitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), l.unitTimeout)
}

func (l *Ledger) fail(ctx context.Context, msg, operationID string, err error) *LedgerError {
	l.logger.ErrorContext(ctx, msg, "operation_id", operationID, "error", err)
	return internalError(err)
}

func shortageFor(ln resolvedLine, available int) StockShortage {
	name := ln.item.Name
	if name == "" {
		name = ln.variant.ProductName
	}
	return StockShortage{
		VariantKey: ln.item.VariantKey,
		Length:     ln.item.Length,
		Requested:  ln.item.Quantity,
		Available:  available,
		Name:       name,
	}
}

// snapshot freezes the resolved lines into the transaction's item list.
func snapshot(lines []resolvedLine) []LineItem {
	items := make([]LineItem, len(lines))
	for i, ln := range lines {
		it := ln.item
		it.VariantID = ln.variant.ID
		if it.Name == "" {
			it.Name = ln.variant.ProductName
		}
		items[i] = it
	}
	return items
}
