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

type variantRepo struct {
	q querier
}

const variantSelect = `
	SELECT v.id, v.product_id, p.slug, p.name, v.length, v.stock, v.price, v.updated_at
	FROM variants v
	JOIN products p ON p.id = v.product_id`

func (r variantRepo) FindBySlug(ctx context.Context, slug string, length int) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE p.slug = ? AND v.length = ?`, slug, length)
}

func (r variantRepo) FindByLegacyID(ctx context.Context, legacyID string, length int) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE p.legacy_id = ? AND v.length = ?`, legacyID, length)
}

func (r variantRepo) GetByID(ctx context.Context, id string) (*core.Variant, error) {
	return r.getOne(ctx, variantSelect+` WHERE v.id = ?`, id)
}

func (r variantRepo) List(ctx context.Context) ([]core.Variant, error) {
	rows, err := r.q.QueryContext(ctx, variantSelect+` ORDER BY p.name, v.length`)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var out []core.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// ConditionalAdjust runs as one guarded UPDATE; zero affected rows means the precondition failed.
func (r variantRepo) ConditionalAdjust(ctx context.Context, id string, delta, minResulting int) (int, error) {
	var stock int
	err := r.q.QueryRowContext(ctx, `
		UPDATE variants
		SET stock = stock + ?, updated_at = ?
		WHERE id = ? AND stock + ? >= ?
		RETURNING stock`,
		delta, formatTime(time.Now()), id, delta, minResulting,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust stock for variant %s: %w", id, err)
	}

	var exists int
	err = r.q.QueryRowContext(ctx, `SELECT 1 FROM variants WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check variant %s: %w", id, err)
	}
	return 0, core.ErrStockConflict
}

func (r variantRepo) getOne(ctx context.Context, query string, args ...any) (*core.Variant, error) {
	v, err := scanVariant(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return v, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(row rowScanner) (*core.Variant, error) {
	var (
		v         core.Variant
		price     string
		updatedAt string
	)
	if err := row.Scan(&v.ID, &v.ProductID, &v.ProductSlug, &v.ProductName, &v.Length, &v.Stock, &price, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan variant: %w", err)
	}
	var err error
	if v.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse price of variant %s: %w", v.ID, err)
	}
	if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
