package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SaleItem is one cart line as submitted by the request layer.
// UnitPrice is a pointer so that an omitted price can be told apart from a free item.
type SaleItem struct {
	VariantKey string           `json:"variant_key"`
	Length     int              `json:"length"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	Name       string           `json:"name"`
}

// SaleRequest is the input of Ledger.CreateSale. PaymentStatus defaults to pending.
type SaleRequest struct {
	OperationID   string           `json:"operation_id"`
	CustomerID    string           `json:"customer_id"`
	Items         []SaleItem       `json:"items"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	Note          *string          `json:"note,omitempty"`
	PaymentStatus *PaymentStatus   `json:"payment_status,omitempty"`
}

// WriteOffRequest is the input of Ledger.CreateWriteOff.
type WriteOffRequest struct {
	OperationID string         `json:"operation_id"`
	VariantKey  string         `json:"variant_key"`
	Length      int            `json:"length"`
	Quantity    int            `json:"quantity"`
	Reason      WriteOffReason `json:"reason"`
	Note        *string        `json:"note,omitempty"`
}

// ItemProblem points at one invalid field of one cart line.
type ItemProblem struct {
	Index int    `json:"index"`
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// LedgerResult distinguishes a freshly created transaction from an idempotent replay.
type LedgerResult struct {
	Transaction      *Transaction      `json:"data"`
	Idempotent       bool              `json:"idempotent"`
	StockAdjustments []StockAdjustment `json:"stockAdjustments,omitempty"`
}

// validateSale checks request shape only; it never touches storage.
func validateSale(req SaleRequest) (PaymentStatus, error) {
	if strings.TrimSpace(req.OperationID) == "" {
		return "", validationError(CodeMissingOperationID, "operation id is required")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return "", validationError(CodeMissingCustomerID, "customer id is required")
	}
	if len(req.Items) == 0 {
		return "", validationError(CodeMissingItems, "at least one item is required")
	}

	var problems []ItemProblem
	for i, it := range req.Items {
		problems = append(problems, itemProblems(i, it.VariantKey, it.Length, it.Quantity)...)
		if strings.TrimSpace(it.Name) == "" {
			problems = append(problems, ItemProblem{Index: i, Field: "name", Issue: "required"})
		}
		if it.UnitPrice == nil {
			problems = append(problems, ItemProblem{Index: i, Field: "unit_price", Issue: "required"})
		} else if it.UnitPrice.IsNegative() {
			problems = append(problems, ItemProblem{Index: i, Field: "unit_price", Issue: "must be >= 0"})
		}
	}
	if len(problems) > 0 {
		return "", validationError(CodeInvalidItem, fmt.Sprintf("%d invalid item field(s)", len(problems))).WithDetails(problems)
	}

	if req.Discount != nil && req.Discount.IsNegative() {
		return "", validationError(CodeInvalidDiscount, "discount must be >= 0")
	}

	status := PaymentPending
	if req.PaymentStatus != nil {
		status = *req.PaymentStatus
	}
	switch status {
	case PaymentPending, PaymentExpected, PaymentPaid:
	default:
		return "", validationError(CodeInvalidPaymentStatus, fmt.Sprintf("sales cannot be created with payment status %q", status))
	}
	return status, nil
}

func validateWriteOff(req WriteOffRequest) error {
	if strings.TrimSpace(req.OperationID) == "" {
		return validationError(CodeMissingOperationID, "operation id is required")
	}
	if problems := itemProblems(0, req.VariantKey, req.Length, req.Quantity); len(problems) > 0 {
		return validationError(CodeInvalidItem, "invalid write-off item").WithDetails(problems)
	}
	if !req.Reason.Valid() {
		return validationError(CodeInvalidReason, fmt.Sprintf("reason must be one of damage, expiry, adjustment, other; got %q", req.Reason))
	}
	return nil
}

func itemProblems(i int, variantKey string, length, quantity int) []ItemProblem {
	var problems []ItemProblem
	if strings.TrimSpace(variantKey) == "" {
		problems = append(problems, ItemProblem{Index: i, Field: "variant_key", Issue: "required"})
	}
	if length <= 0 {
		problems = append(problems, ItemProblem{Index: i, Field: "length", Issue: "must be > 0"})
	}
	if quantity <= 0 {
		problems = append(problems, ItemProblem{Index: i, Field: "quantity", Issue: "must be > 0"})
	}
	return problems
}

// ParseTransactionFilter turns request-layer strings into a TransactionFilter. Empty strings
// mean "any".
func ParseTransactionFilter(kind, status, customerID string, limit, offset int) (TransactionFilter, error) {
	f := TransactionFilter{Limit: limit, Offset: offset}
	if kind != "" {
		k := TransactionKind(kind)
		if k != KindSale && k != KindWriteOff {
			return f, validationError(CodeInvalidFilter, fmt.Sprintf("unknown transaction kind %q", kind))
		}
		f.Kind = &k
	}
	if status != "" {
		st := PaymentStatus(status)
		switch st {
		case PaymentPending, PaymentPaid, PaymentExpected, PaymentCancelled:
		default:
			return f, validationError(CodeInvalidFilter, fmt.Sprintf("unknown payment status %q", status))
		}
		f.PaymentStatus = &st
	}
	if customerID != "" {
		f.CustomerID = &customerID
	}
	if limit < 0 || offset < 0 {
		return f, validationError(CodeInvalidFilter, "limit and offset must be >= 0")
	}
	return f, nil
}
