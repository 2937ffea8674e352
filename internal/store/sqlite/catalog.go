package sqlite

import (
	"context"
	"fmt"
	"time"

	"flower-pos/internal/core"
)

// UpsertProduct inserts or renames a product.
func (s *Store) UpsertProduct(ctx context.Context, p core.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, slug, legacy_id, name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, legacy_id = excluded.legacy_id, name = excluded.name`,
		p.ID, p.Slug, nullString(p.LegacyID), p.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertVariant overwrites stock and price, the way the catalog import does.
func (s *Store) UpsertVariant(ctx context.Context, v core.Variant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variants (id, product_id, length, stock, price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET stock = excluded.stock, price = excluded.price, updated_at = excluded.updated_at`,
		v.ID, v.ProductID, v.Length, v.Stock, v.Price.String(), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert variant %s: %w", v.ID, err)
	}
	return nil
}

// UpsertCustomer creates a customer or renames it. Statistics are never overwritten.
func (s *Store) UpsertCustomer(ctx context.Context, c core.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, order_count, total_spent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		c.ID, c.Name, c.OrderCount, c.TotalSpent.String(), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}
