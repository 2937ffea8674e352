package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindSale     TransactionKind = "sale"
	KindWriteOff TransactionKind = "writeOff"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentExpected  PaymentStatus = "expected"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsUnpaid reports whether a transaction in this status can still be confirmed.
func (s PaymentStatus) IsUnpaid() bool {
	return s == PaymentPending || s == PaymentExpected
}

type WriteOffReason string

const (
	ReasonDamage     WriteOffReason = "damage"
	ReasonExpiry     WriteOffReason = "expiry"
	ReasonAdjustment WriteOffReason = "adjustment"
	ReasonOther      WriteOffReason = "other"
)

func (r WriteOffReason) Valid() bool {
	switch r {
	case ReasonDamage, ReasonExpiry, ReasonAdjustment, ReasonOther:
		return true
	default:
		return false
	}
}

// Product is the catalog parent of variants. LegacyID is the identifier older carts still send.
type Product struct {
	ID       string  `json:"id"`
	Slug     string  `json:"slug"`
	LegacyID *string `json:"legacy_id"`
	Name     string  `json:"name"`
}

// Variant is a sellable length of a product. Stock never drops below zero.
type Variant struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductSlug string          `json:"product_slug"`
	ProductName string          `json:"product_name"`
	Length      int             `json:"length"`
	Stock       int             `json:"stock"`
	Price       decimal.Decimal `json:"price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LineItem is the frozen snapshot of a cart line at the moment the transaction was written.
// Later price or name changes on the Variant never touch it.
type LineItem struct {
	VariantID  string          `json:"variant_id"`
	VariantKey string          `json:"variant_key"`
	Length     int             `json:"length"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Name       string          `json:"name"`
}

// Transaction is a completed ledger event. Only PaymentStatus and PaidAt may change after insert.
type Transaction struct {
	ID             string          `json:"id"`
	Kind           TransactionKind `json:"kind"`
	OperationID    string          `json:"operation_id"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	Amount         decimal.Decimal `json:"amount"`
	Discount       decimal.Decimal `json:"discount"`
	Items          []LineItem      `json:"items"`
	WriteOffReason *WriteOffReason `json:"write_off_reason"`
	Note           *string         `json:"note"`
	CustomerID     *string         `json:"customer_id"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at"`
}

// Customer carries running statistics that only grow, and only with paid transactions.
type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OrderCount int             `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StockAdjustment reports one conditional adjust. OperationID is set only for operator
// adjustments, which are recorded on their own.
type StockAdjustment struct {
	OperationID    string `json:"operation_id,omitempty"`
	VariantID      string `json:"variant_id"`
	VariantKey     string `json:"variant_key"`
	Length         int    `json:"length"`
	Delta          int    `json:"delta"`
	ResultingStock int    `json:"resulting_stock"`
}

// StockShortage describes one line that cannot be fulfilled from current stock.
type StockShortage struct {
	VariantKey string `json:"variant_key"`
	Length     int    `json:"length"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Name       string `json:"name"`
}

// TransactionFilter narrows ListTransactions. Nil fields are ignored.
type TransactionFilter struct {
	Kind          *TransactionKind
	PaymentStatus *PaymentStatus
	CustomerID    *string
	Limit         int
	Offset        int
}
