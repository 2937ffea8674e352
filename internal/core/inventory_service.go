package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// InventoryService resolves variants and moves stock through the conditional-adjust primitive.
type InventoryService interface {
	// Standalone operations (manage their own unit of work).
	StockLevels(ctx context.Context) ([]Variant, error)
	// AdjustStock applies an operator or import delta to one variant, once per operation id.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResult, error)

	// Scope-aware operations: work against the caller's Repositories or UnitOfWork.

	// FindVariant resolves productKey as a slug first, then as a legacy product id.
	FindVariant(ctx context.Context, repos Repositories, productKey string, length int) (*Variant, error)
	// ConditionalAdjustTx adjusts stock inside uow. ErrStockConflict signals that a concurrent
	// writer consumed the stock; it is not retried here.
	ConditionalAdjustTx(ctx context.Context, uow UnitOfWork, variantID string, delta, minResulting int) (int, error)
}

// AdjustStockRequest is an operator/import stock delta for one variant.
type AdjustStockRequest struct {
	OperationID string
	VariantID   string
	Delta       int
}

// AdjustStockResult distinguishes a fresh adjustment from a replay of a recorded one.
type AdjustStockResult struct {
	Adjustment *StockAdjustment `json:"data"`
	Idempotent bool             `json:"idempotent"`
}

type inventoryService struct {
	store  Store
	logger *slog.Logger
}

func NewInventoryService(store Store, logger *slog.Logger) InventoryService {
	return &inventoryService{store: store, logger: logger}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) StockLevels(ctx context.Context) ([]Variant, error) {
	variants, err := s.store.Variants().List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "stock levels query failed", "error", err)
		return nil, internalError(err)
	}
	return variants, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResult, error) {
	if strings.TrimSpace(req.OperationID) == "" {
		return nil, validationError(CodeMissingOperationID, "operation id is required")
	}
	if req.VariantID == "" {
		return nil, validationError(CodeInvalidItem, "variant id is required")
	}
	if req.Delta == 0 {
		return nil, validationError(CodeInvalidItem, "delta must be non-zero")
	}

	if res, err := s.findAdjustment(ctx, s.store, req.OperationID); err != nil || res != nil {
		return res, err
	}

	variant, err := s.store.Variants().GetByID(ctx, req.VariantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(CodeVariantNotFound, fmt.Sprintf("variant %s not found", req.VariantID))
		}
		s.logger.ErrorContext(ctx, "variant lookup failed", "variant_id", req.VariantID, "error", err)
		return nil, internalError(err)
	}
	shortage := StockShortage{
		VariantKey: variant.ProductSlug,
		Length:     variant.Length,
		Requested:  -req.Delta,
		Available:  variant.Stock,
		Name:       variant.ProductName,
	}
	if variant.Stock+req.Delta < 0 {
		return s.settleAdjustment(ctx, req.OperationID, insufficientStockError([]StockShortage{shortage}))
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "begin unit of work failed", "error", err)
		return nil, internalError(err)
	}
	defer uow.Rollback(ctx)

	if res, err := s.findAdjustment(ctx, uow, req.OperationID); err != nil || res != nil {
		return res, err
	}

	resulting, err := s.ConditionalAdjustTx(ctx, uow, variant.ID, req.Delta, 0)
	if err != nil {
		if errors.Is(err, ErrStockConflict) {
			shortage.Available = currentStock(ctx, uow, variant.ID, variant.Stock)
			_ = uow.Rollback(ctx)
			return s.settleAdjustment(ctx, req.OperationID, concurrentModificationError(shortage))
		}
		s.logger.ErrorContext(ctx, "stock adjust failed", "variant_id", variant.ID, "error", err)
		return nil, internalError(err)
	}

	adj := StockAdjustment{
		OperationID:    req.OperationID,
		VariantID:      variant.ID,
		VariantKey:     variant.ProductSlug,
		Length:         variant.Length,
		Delta:          req.Delta,
		ResultingStock: resulting,
	}
	if err := uow.Adjustments().Insert(ctx, adj, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			_ = uow.Rollback(ctx)
			return s.settleAdjustment(ctx, req.OperationID, internalError(err))
		}
		s.logger.ErrorContext(ctx, "record stock adjust failed", "operation_id", req.OperationID, "error", err)
		return nil, internalError(err)
	}

	if err := uow.Commit(ctx); err != nil {
		s.logger.ErrorContext(ctx, "commit stock adjust failed", "variant_id", variant.ID, "error", err)
		return nil, internalError(err)
	}

	s.logger.InfoContext(ctx, "stock adjusted",
		"operation_id", req.OperationID, "variant_id", variant.ID,
		"delta", req.Delta, "resulting_stock", resulting)

	return &AdjustStockResult{Adjustment: &adj}, nil
}

// findAdjustment returns the recorded adjustment for operationID, or (nil, nil) when it is new.
func (s *inventoryService) findAdjustment(ctx context.Context, repos Repositories, operationID string) (*AdjustStockResult, error) {
	adj, err := repos.Adjustments().FindByOperationID(ctx, operationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "adjustment lookup failed", "operation_id", operationID, "error", err)
		return nil, internalError(err)
	}
	return &AdjustStockResult{Adjustment: adj, Idempotent: true}, nil
}

// settleAdjustment answers with the committed adjustment when the same operation finished
// first, and with cause otherwise. No unit of work may be open.
func (s *inventoryService) settleAdjustment(ctx context.Context, operationID string, cause *LedgerError) (*AdjustStockResult, error) {
	res, err := s.findAdjustment(ctx, s.store, operationID)
	if err != nil || res == nil {
		return nil, cause
	}
	return res, nil
}

// ── Scope-aware operations ────────────────────────────────────────────────────

func (s *inventoryService) FindVariant(ctx context.Context, repos Repositories, productKey string, length int) (*Variant, error) {
	v, err := repos.Variants().FindBySlug(ctx, productKey, length)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to find variant by slug %s: %w", productKey, err)
	}

	// Older carts still carry the legacy product identifier.
	v, err = repos.Variants().FindByLegacyID(ctx, productKey, length)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find variant by legacy id %s: %w", productKey, err)
	}
	return v, nil
}

func (s *inventoryService) ConditionalAdjustTx(ctx context.Context, uow UnitOfWork, variantID string, delta, minResulting int) (int, error) {
	return uow.Variants().ConditionalAdjust(ctx, variantID, delta, minResulting)
}

// currentStock reads the stock a conflicting writer left behind, for error details only.
func currentStock(ctx context.Context, repos Repositories, variantID string, fallback int) int {
	v, err := repos.Variants().GetByID(ctx, variantID)
	if err != nil {
		return fallback
	}
	return v.Stock
}
