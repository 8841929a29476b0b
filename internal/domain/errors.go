package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrListingNotFound      = errors.New("listing_not_found")
	ErrTradeNotFound        = errors.New("trade_not_found")
	ErrInsufficientQuantity = errors.New("insufficient_quantity")

	// ErrUnsupportedOperator is returned by a trade log when the storage
	// back-end cannot evaluate a requested group reducer. Analytics
	// recover from it by recomputing from raw trades.
	ErrUnsupportedOperator = errors.New("unsupported_operator")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
