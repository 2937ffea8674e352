package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by repositories. The ledger engine translates them into LedgerErrors.
var (
	ErrNotFound           = errors.New("not found")
	ErrStockConflict      = errors.New("stock precondition failed")
	ErrDuplicateOperation = errors.New("operation id already recorded")
)

// ErrorKind is the category of a LedgerError; each kind maps to one HTTP status.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindBusinessRule ErrorKind = "business_rule"
	KindConcurrency  ErrorKind = "concurrency"
	KindInternal     ErrorKind = "internal"
)

// Stable error codes exposed to callers.
const (
	CodeMissingOperationID       = "MISSING_OPERATION_ID"
	CodeMissingCustomerID        = "MISSING_CUSTOMER_ID"
	CodeMissingItems             = "MISSING_ITEMS"
	CodeMissingTransactionID     = "MISSING_TRANSACTION_ID"
	CodeInvalidItem              = "INVALID_ITEM"
	CodeInvalidReason            = "INVALID_REASON"
	CodeInvalidPaymentStatus     = "INVALID_PAYMENT_STATUS"
	CodeInvalidDiscount          = "INVALID_DISCOUNT"
	CodeInvalidFilter            = "INVALID_FILTER"
	CodeCustomerNotFound         = "CUSTOMER_NOT_FOUND"
	CodeVariantNotFound          = "VARIANT_NOT_FOUND"
	CodeTransactionNotFound      = "TRANSACTION_NOT_FOUND"
	CodeInsufficientStock        = "INSUFFICIENT_STOCK"
	CodeInvalidTransactionType   = "INVALID_TRANSACTION_TYPE"
	CodeInvalidPaymentTransition = "INVALID_PAYMENT_TRANSITION"
	CodeConcurrentModification   = "CONCURRENT_MODIFICATION"
	CodeInternalError            = "INTERNAL_ERROR"
)

// LedgerError is the only error type that crosses the engine boundary.
// Details is safe to serialize to callers; Err is kept for server-side logs only.
type LedgerError struct {
	Code    string
	Kind    ErrorKind
	Message string
	Details any
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to its status category.
func (e *LedgerError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule, KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry after refreshing its view of stock.
func (e *LedgerError) Retryable() bool {
	return e.Kind == KindConcurrency
}

func (e *LedgerError) WithDetails(details any) *LedgerError {
	e.Details = details
	return e
}

func validationError(code, message string) *LedgerError {
	return &LedgerError{Code: code, Kind: KindValidation, Message: message}
}

func notFoundError(code, message string) *LedgerError {
	return &LedgerError{Code: code, Kind: KindNotFound, Message: message}
}

func insufficientStockError(shortages []StockShortage) *LedgerError {
	return &LedgerError{
		Code:    CodeInsufficientStock,
		Kind:    KindBusinessRule,
		Message: fmt.Sprintf("insufficient stock for %d item(s)", len(shortages)),
		Details: shortages,
	}
}

func concurrentModificationError(shortage StockShortage) *LedgerError {
	return &LedgerError{
		Code:    CodeConcurrentModification,
		Kind:    KindConcurrency,
		Message: fmt.Sprintf("stock for %s (length %d) changed while processing; refresh and retry", shortage.Name, shortage.Length),
		Details: shortage,
	}
}

// internalError hides err from the caller-facing message.
func internalError(err error) *LedgerError {
	return &LedgerError{
		Code:    CodeInternalError,
		Kind:    KindInternal,
		Message: "an internal error occurred",
		Err:     err,
	}
}

// AsLedgerError extracts a *LedgerError from err, wrapping anything else as INTERNAL_ERROR.
func AsLedgerError(err error) *LedgerError {
	if err == nil {
		return nil
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return le
	}
	return internalError(err)
}

// ErrorCode returns the stable code carried by err, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	if le := AsLedgerError(err); le != nil {
		return le.Code
	}
	return ""
}
