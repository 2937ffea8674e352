package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"flower-pos/internal/core"
)

type customerRepo struct {
	q querier
}

func (r customerRepo) GetByID(ctx context.Context, id string) (*core.Customer, error) {
	var (
		c                core.Customer
		spent, updatedAt string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, order_count, total_spent, updated_at
		FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.OrderCount, &spent, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}
	if c.TotalSpent, err = decimal.NewFromString(spent); err != nil {
		return nil, fmt.Errorf("failed to parse total spent of customer %s: %w", id, err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementStats adds in decimal space because total_spent is stored as text.
// The read and the write are only atomic inside a unit of work.
func (r customerRepo) IncrementStats(ctx context.Context, id string, orders int, amount decimal.Decimal) error {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		UPDATE customers
		SET order_count = order_count + ?, total_spent = ?, updated_at = ?
		WHERE id = ?`,
		orders, c.TotalSpent.Add(amount).String(), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update stats of customer %s: %w", id, err)
	}
	return nil
}
