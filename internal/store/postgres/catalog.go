package postgres

import (
	"context"
	"fmt"

	"flower-pos/internal/core"
)

func (s *Store) UpsertProduct(ctx context.Context, p core.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, slug, legacy_id, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, legacy_id = EXCLUDED.legacy_id, name = EXCLUDED.name`,
		p.ID, p.Slug, p.LegacyID, p.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertVariant overwrites stock and price, the way the catalog import does.
func (s *Store) UpsertVariant(ctx context.Context, v core.Variant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO variants (id, product_id, length, stock, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET stock = EXCLUDED.stock, price = EXCLUDED.price, updated_at = now()`,
		v.ID, v.ProductID, v.Length, v.Stock, v.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert variant %s: %w", v.ID, err)
	}
	return nil
}

// UpsertCustomer creates a customer or renames it. Statistics are never overwritten.
func (s *Store) UpsertCustomer(ctx context.Context, c core.Customer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, name, order_count, total_spent)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		c.ID, c.Name, c.OrderCount, c.TotalSpent,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}
