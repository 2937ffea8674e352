package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"flower-pos/internal/core"
)

type customerRepo struct {
	db dbtx
}

func (r customerRepo) GetByID(ctx context.Context, id string) (*core.Customer, error) {
	var c core.Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, name, order_count, total_spent, updated_at
		FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.OrderCount, &c.TotalSpent, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}
	return &c, nil
}

// IncrementStats is a single relative UPDATE, so it never loses a concurrent increment.
func (r customerRepo) IncrementStats(ctx context.Context, id string, orders int, amount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE customers
		SET order_count = order_count + $2, total_spent = total_spent + $3, updated_at = now()
		WHERE id = $1`,
		id, orders, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to update stats of customer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
