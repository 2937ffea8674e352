package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"flower-pos/internal/core"
)

type variantRepo struct {
	db dbtx
}

const variantSelect = `
	SELECT v.id, v.product_id, p.slug, p.name, v.length, v.stock, v.price, v.updated_at
	FROM variants v
	JOIN products p ON p.id = v.product_id`

func (r variantRepo) FindBySlug(ctx context.Context, slug string, length int) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE p.slug = $1 AND v.length = $2`, slug, length)
}

func (r variantRepo) FindByLegacyID(ctx context.Context, legacyID string, length int) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE p.legacy_id = $1 AND v.length = $2`, legacyID, length)
}

func (r variantRepo) GetByID(ctx context.Context, id string) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE v.id = $1`, id)
}

func (r variantRepo) List(ctx context.Context) ([]core.Variant, error) {
	rows, err := r.db.Query(ctx, variantSelect+` ORDER BY p.name, v.length`)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var out []core.Variant
	for rows.Next() {
		var v core.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.ProductSlug, &v.ProductName, &v.Length, &v.Stock, &v.Price, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r variantRepo) ConditionalAdjust(ctx context.Context, id string, delta, minResulting int) (int, error) {
	var stock int
	err := r.db.QueryRow(ctx, `
		UPDATE variants
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= $3
		RETURNING stock`,
		id, delta, minResulting,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust stock for variant %s: %w", id, err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM variants WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check variant %s: %w", id, err)
	}
	if !exists {
		return 0, core.ErrNotFound
	}
	return 0, core.ErrStockConflict
}

func (r variantRepo) getOne(ctx context.Context, query string, args ...any) (*core.Variant, error) {
	var v core.Variant
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&v.ID, &v.ProductID, &v.ProductSlug, &v.ProductName, &v.Length, &v.Stock, &v.Price, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch variant: %w", err)
	}
	return &v, nil
}
