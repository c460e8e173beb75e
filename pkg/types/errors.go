package types

import (
	"errors"
	"fmt"
)

// OrderErrorKind classifies order failures so callers can choose a recovery
// path without string-matching venue messages.
type OrderErrorKind int

const (
	OrderErrRejected OrderErrorKind = iota
	OrderErrInsufficientBalance
	OrderErrMinNotional
	OrderErrTimeout
)

// OrderError represents an error that occurred during order placement,
// cancellation, or execution.
type OrderError struct {
	Kind    OrderErrorKind
	Code    string // API error code or internal error code
	Message string // Human-readable error message
	OrderID string // Order ID if available
	TokenID string
}

func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("order failed (ID: %s): %s (%s)", e.OrderID, e.Message, e.Code)
	}

	return fmt.Sprintf("order failed: %s (%s)", e.Message, e.Code)
}

// Known Polymarket CLOB API error codes.
const (
	ErrInvalidMinTickSize = "INVALID_ORDER_MIN_TICK_SIZE"
	ErrInvalidMinSize     = "INVALID_ORDER_MIN_SIZE"
	ErrNotEnoughBalance   = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrFOKNotFilled       = "FOK_ORDER_NOT_FILLED_ERROR"
	ErrMarketNotReady     = "MARKET_NOT_READY"
	ErrUnmatched          = "UNMATCHED"
	ErrUnknownStatus      = "UNKNOWN_STATUS"
)

// ClassifyOrderCode maps a venue error code to an OrderErrorKind.
func ClassifyOrderCode(code string) OrderErrorKind {
	switch code {
	case ErrNotEnoughBalance:
		return OrderErrInsufficientBalance
	case ErrInvalidMinTickSize, ErrInvalidMinSize:
		return OrderErrMinNotional
	default:
		return OrderErrRejected
	}
}

// IsInsufficientBalance reports whether err is an order failure caused by
// missing collateral.
func IsInsufficientBalance(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe) && oe.Kind == OrderErrInsufficientBalance
}

// IsMinNotional reports whether err is a minimum size or tick rejection.
func IsMinNotional(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe) && oe.Kind == OrderErrMinNotional
}

// IsTimeout reports whether err is a venue call that exhausted its retries.
func IsTimeout(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe) && oe.Kind == OrderErrTimeout
}
