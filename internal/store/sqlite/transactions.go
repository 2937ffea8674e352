package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flower-pos/internal/core"
)

type transactionRepo struct {
	q querier
}

const transactionSelect = `
	SELECT id, kind, operation_id, payment_status, amount, discount, write_off_reason,
	       note, customer_id, created_at, paid_at
	FROM transactions`

func (r transactionRepo) FindByOperationID(ctx context.Context, operationID string) (*core.Transaction, error) {
	return r.getOne(ctx, transactionSelect+` WHERE operation_id = ?`, operationID)
}

func (r transactionRepo) GetByID(ctx context.Context, id string) (*core.Transaction, error) {
	return r.getOne(ctx, transactionSelect+` WHERE id = ?`, id)
}

// GetByIDForUpdate needs no row lock here: units of work start with BEGIN IMMEDIATE and
// already hold the database write lock.
func (r transactionRepo) GetByIDForUpdate(ctx context.Context, id string) (*core.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r transactionRepo) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.PaymentStatus != nil {
		where = append(where, "payment_status = ?")
		args = append(args, string(*filter.PaymentStatus))
	}
	if filter.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *filter.CustomerID)
	}

	query := transactionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	// Items are loaded after the cursor is released; the pool has a single connection.
	rows.Close()

	for i := range out {
		if out[i].Items, err = r.loadItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r transactionRepo) Insert(ctx context.Context, tx *core.Transaction) error {
	var reason sql.NullString
	if tx.WriteOffReason != nil {
		reason = sql.NullString{String: string(*tx.WriteOffReason), Valid: true}
	}
	var paidAt sql.NullString
	if tx.PaidAt != nil {
		paidAt = sql.NullString{String: formatTime(*tx.PaidAt), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, kind, operation_id, payment_status, amount, discount, write_off_reason,
		 note, customer_id, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		string(tx.Kind),
		tx.OperationID,
		string(tx.PaymentStatus),
		tx.Amount.String(),
		tx.Discount.String(),
		reason,
		nullString(tx.Note),
		nullString(tx.CustomerID),
		formatTime(tx.CreatedAt),
		paidAt,
	)
	if err != nil {
		if isUniqueViolation(err, "transactions.operation_id") {
			return core.ErrDuplicateOperation
		}
		return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}

	for i, it := range tx.Items {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO transaction_items
			(transaction_id, position, variant_id, variant_key, length, quantity, unit_price, name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, i, it.VariantID, it.VariantKey, it.Length, it.Quantity, it.UnitPrice.String(), it.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %d of transaction %s: %w", i, tx.ID, err)
		}
	}
	return nil
}

func (r transactionRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE transactions
		SET payment_status = 'paid', paid_at = ?
		WHERE id = ? AND kind = 'sale' AND payment_status IN ('pending', 'expected')`,
		formatTime(paidAt), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction %s paid: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r transactionRepo) getOne(ctx context.Context, query string, args ...any) (*core.Transaction, error) {
	tx, err := scanTransaction(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if tx.Items, err = r.loadItems(ctx, tx.ID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r transactionRepo) loadItems(ctx context.Context, transactionID string) ([]core.LineItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT variant_id, variant_key, length, quantity, unit_price, name
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY position`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	items := []core.LineItem{}
	for rows.Next() {
		var (
			it    core.LineItem
			price string
		)
		if err := rows.Scan(&it.VariantID, &it.VariantKey, &it.Length, &it.Quantity, &price, &it.Name); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse unit price: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		tx                          core.Transaction
		kind, status                string
		amount, discount, createdAt string
		reason, note, customerID    sql.NullString
		paidAt                      sql.NullString
	)
	err := row.Scan(&tx.ID, &kind, &tx.OperationID, &status, &amount, &discount, &reason,
		&note, &customerID, &createdAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Kind = core.TransactionKind(kind)
	tx.PaymentStatus = core.PaymentStatus(status)
	tx.Note = stringPtr(note)
	tx.CustomerID = stringPtr(customerID)
	if reason.Valid {
		r := core.WriteOffReason(reason.String)
		tx.WriteOffReason = &r
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount of transaction %s: %w", tx.ID, err)
	}
	if tx.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("failed to parse discount of transaction %s: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t, err := parseTime(paidAt.String)
		if err != nil {
			return nil, err
		}
		tx.PaidAt = &t
	}
	return &tx, nil
}
