package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"flower-pos/internal/core"
)

type transactionRepo struct {
	db dbtx
}

const transactionSelect = `
	SELECT id, kind, operation_id, payment_status, amount, discount, write_off_reason,
	       note, customer_id, created_at, paid_at
	FROM transactions`

func (r transactionRepo) FindByOperationID(ctx context.Context, operationID string) (*core.Transaction, error) {
	return r.getOne(ctx, transactionSelect+` WHERE operation_id = $1`, operationID)
}

func (r transactionRepo) GetByID(ctx context.Context, id string) (*core.Transaction, error) {
	return r.getOne(ctx, transactionSelect+` WHERE id = $1`, id)
}

func (r transactionRepo) GetByIDForUpdate(ctx context.Context, id string) (*core.Transaction, error) {
	return r.getOne(ctx, transactionSelect+` WHERE id = $1 FOR UPDATE`, id)
}

func (r transactionRepo) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.PaymentStatus != nil {
		args = append(args, string(*filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}

	query := transactionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var (
		out []core.Transaction
		ids []string
	)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []core.LineItem{}
		}
	}
	return out, nil
}

func (r transactionRepo) Insert(ctx context.Context, tx *core.Transaction) error {
	var reason *string
	if tx.WriteOffReason != nil {
		s := string(*tx.WriteOffReason)
		reason = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions
		(id, kind, operation_id, payment_status, amount, discount, write_off_reason,
		 note, customer_id, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, string(tx.Kind), tx.OperationID, string(tx.PaymentStatus), tx.Amount, tx.Discount,
		reason, tx.Note, tx.CustomerID, tx.CreatedAt, tx.PaidAt,
	)
	if err != nil {
		if isUniqueViolation(err, "transactions_operation_id_key") {
			return core.ErrDuplicateOperation
		}
		return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}

	batch := &pgx.Batch{}
	for i, it := range tx.Items {
		batch.Queue(`
			INSERT INTO transaction_items
			(transaction_id, position, variant_id, variant_key, length, quantity, unit_price, name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			tx.ID, i, it.VariantID, it.VariantKey, it.Length, it.Quantity, it.UnitPrice, it.Name,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert items of transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r transactionRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET payment_status = 'paid', paid_at = $2
		WHERE id = $1 AND kind = 'sale' AND payment_status IN ('pending', 'expected')`,
		id, paidAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction %s paid: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r transactionRepo) getOne(ctx context.Context, query string, args ...any) (*core.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	items, err := r.loadItems(ctx, []string{tx.ID})
	if err != nil {
		return nil, err
	}
	tx.Items = items[tx.ID]
	if tx.Items == nil {
		tx.Items = []core.LineItem{}
	}
	return tx, nil
}

func (r transactionRepo) loadItems(ctx context.Context, ids []string) (map[string][]core.LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT transaction_id, variant_id, variant_key, length, quantity, unit_price, name
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.LineItem, len(ids))
	for rows.Next() {
		var (
			txID string
			it   core.LineItem
		)
		if err := rows.Scan(&txID, &it.VariantID, &it.VariantKey, &it.Length, &it.Quantity, &it.UnitPrice, &it.Name); err != nil {
			return nil, fmt.Errorf("failed to scan transaction item: %w", err)
		}
		out[txID] = append(out[txID], it)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*core.Transaction, error) {
	var (
		tx           core.Transaction
		kind, status string
		reason       *string
	)
	err := row.Scan(&tx.ID, &kind, &tx.OperationID, &status, &tx.Amount, &tx.Discount, &reason,
		&tx.Note, &tx.CustomerID, &tx.CreatedAt, &tx.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.Kind = core.TransactionKind(kind)
	tx.PaymentStatus = core.PaymentStatus(status)
	if reason != nil {
		wr := core.WriteOffReason(*reason)
		tx.WriteOffReason = &wr
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	if tx.PaidAt != nil {
		t := tx.PaidAt.UTC()
		tx.PaidAt = &t
	}
	return &tx, nil
}
