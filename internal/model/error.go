package model

import (
	"errors"
	"fmt"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeEmptyCart         = "EMPTY_CART"
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeOutOfStock        = "OUT_OF_STOCK"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeInvalidVoucher    = "INVALID_VOUCHER"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK_ON_SHIP"
	ErrCodeTerminalState     = "TERMINAL_STATE_VIOLATION"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeWindowExpired     = "WINDOW_EXPIRED"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeReasonRequired    = "REASON_REQUIRED"
	ErrCodeInvalidSignature  = "INVALID_SIGNATURE"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodePersistence       = "PERSISTENCE_FAILURE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DomainError is a business-rule or validation failure with a stable code
// that handlers map onto HTTP statuses.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrEmptyCart        = NewDomainError(ErrCodeEmptyCart, "Order must contain at least one item")
	ErrProductNotFound  = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity  = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidVoucher   = NewDomainError(ErrCodeInvalidVoucher, "Voucher is invalid, expired or exhausted")
	ErrOrderNotFound    = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrTerminalState    = NewDomainError(ErrCodeTerminalState, "Order is in a terminal state")
	ErrForbidden        = NewDomainError(ErrCodeForbidden, "Order belongs to a different account")
	ErrWindowExpired    = NewDomainError(ErrCodeWindowExpired, "Cancellation window has expired")
	ErrInvalidState     = NewDomainError(ErrCodeInvalidState, "Order can no longer be cancelled")
	ErrReasonRequired   = NewDomainError(ErrCodeReasonRequired, "Cancellation reason is required")
	ErrInvalidSignature = NewDomainError(ErrCodeInvalidSignature, "Signature verification failed")
)

// NewOutOfStockError reports a validation-time shortfall for one cart line.
func NewOutOfStockError(productID, variantID string, requested, available int) *DomainError {
	return NewDomainError(ErrCodeOutOfStock,
		fmt.Sprintf("Insufficient stock for %s/%s: requested %d, available %d",
			productID, variantID, requested, available))
}

// NewInsufficientStockError reports the first line item that could not be
// committed during a shipping transition.
func NewInsufficientStockError(productID, variantID string) *DomainError {
	return NewDomainError(ErrCodeInsufficientStock,
		fmt.Sprintf("Insufficient stock to ship %s/%s", productID, variantID))
}

// ErrorCode extracts the domain error code from err, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
