// Package errors provides custom error types for the JAD Bank API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrInsufficientFunds) matches wrapped copies of a sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized  = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden     = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is flagged for manual review", StatusCode: http.StatusLocked}

	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrOperatorNotConfigured = &AppError{Code: "OPERATOR_NOT_CONFIGURED", Message: "Operator endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Account errors.
var (
	ErrAccountNotFound            = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountUnderReconciliation = &AppError{Code: "ACCOUNT_UNDER_RECONCILIATION", Message: "Account has an unresolved operation, retry later", StatusCode: http.StatusConflict}
)

// Money movement errors.
var (
	ErrInsufficientFunds   = &AppError{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient account balance", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
	ErrRateNotFound        = &AppError{Code: "RATE_NOT_FOUND", Message: "No exchange rate for this currency pair", StatusCode: http.StatusBadRequest}
	ErrUnsupportedCurrency = &AppError{Code: "UNSUPPORTED_CURRENCY", Message: "Currency is not supported for this operation", StatusCode: http.StatusBadRequest}
	ErrCurrencyMismatch    = &AppError{Code: "CURRENCY_MISMATCH", Message: "Currency does not match the account currency", StatusCode: http.StatusBadRequest}
)

// Catalog and bill errors.
var (
	ErrStockNotFound   = &AppError{Code: "STOCK_NOT_FOUND", Message: "Stock not found", StatusCode: http.StatusNotFound}
	ErrBillNotFound    = &AppError{Code: "BILL_NOT_FOUND", Message: "Bill not found", StatusCode: http.StatusNotFound}
	ErrBillAlreadyPaid = &AppError{Code: "BILL_ALREADY_PAID", Message: "Bill has already been paid", StatusCode: http.StatusBadRequest}
)

// Store and consistency errors.
var (
	ErrStoreUnavailable   = &AppError{Code: "STORE_UNAVAILABLE", Message: "Storage is temporarily unavailable, no changes were made", StatusCode: http.StatusServiceUnavailable}
	ErrOperationAmbiguous = &AppError{Code: "OPERATION_AMBIGUOUS", Message: "Operation outcome is being reconciled, do not retry with a new key", StatusCode: http.StatusBadGateway}
	ErrInconsistent       = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrIntentNotFound     = &AppError{Code: "INTENT_NOT_FOUND", Message: "Intent not found", StatusCode: http.StatusNotFound}
	ErrFlagNotFound       = &AppError{Code: "FLAG_NOT_FOUND", Message: "Account flag not found", StatusCode: http.StatusNotFound}
)

// Idempotency errors.
var (
	ErrIdempotencyKeyRequired = &AppError{Code: "IDEMPOTENCY_KEY_REQUIRED", Message: "Idempotency-Key header is required", StatusCode: http.StatusBadRequest}
	ErrIdempotencyInProgress  = &AppError{Code: "IDEMPOTENCY_IN_PROGRESS", Message: "A request with this idempotency key is still in progress", StatusCode: http.StatusConflict}
	ErrIdempotencyKeyReused   = &AppError{Code: "IDEMPOTENCY_KEY_REUSED", Message: "Idempotency key was already used with a different request", StatusCode: http.StatusUnprocessableEntity}
)
