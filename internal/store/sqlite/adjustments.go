package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flower-pos/internal/core"
)

type adjustmentRepo struct {
	q querier
}

func (r adjustmentRepo) FindByOperationID(ctx context.Context, operationID string) (*core.StockAdjustment, error) {
	var a core.StockAdjustment
	err := r.q.QueryRowContext(ctx, `
		SELECT a.operation_id, a.variant_id, p.slug, v.length, a.delta, a.resulting_stock
		FROM stock_adjustments a
		JOIN variants v ON v.id = a.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE a.operation_id = ?`, operationID,
	).Scan(&a.OperationID, &a.VariantID, &a.VariantKey, &a.Length, &a.Delta, &a.ResultingStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find adjustment %s: %w", operationID, err)
	}
	return &a, nil
}

func (r adjustmentRepo) Insert(ctx context.Context, adj core.StockAdjustment, createdAt time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO stock_adjustments (operation_id, variant_id, delta, resulting_stock, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		adj.OperationID, adj.VariantID, adj.Delta, adj.ResultingStock, formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err, "stock_adjustments.operation_id") {
			return core.ErrDuplicateOperation
		}
		return fmt.Errorf("failed to insert adjustment %s: %w", adj.OperationID, err)
	}
	return nil
}
