package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Webhook Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Order Lifecycle (ORD) ----

// ErrInvalidTransition is returned when from -> to is not an edge of the order graph.
func ErrInvalidTransition(from, to string) *AppError {
	return New("ORD_001", fmt.Sprintf("Invalid transition from %s to %s", from, to), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("ORD_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrOrderNotSettleable(reason string) *AppError {
	return New("ORD_003", fmt.Sprintf("Order cannot be settled: %s", reason), http.StatusConflict)
}

func ErrConcurrentModification() *AppError {
	return New("ORD_004", "Order was modified concurrently", http.StatusConflict)
}

func ErrInvalidOrder(message string) *AppError {
	return New("ORD_005", message, http.StatusBadRequest)
}

// ---- Ledger (LED) ----

// ErrLedgerPosting means the posting transaction failed and nothing was committed.
// Retrying is safe.
func ErrLedgerPosting(err error) *AppError {
	return Wrap("LED_001", "Ledger posting failed", http.StatusServiceUnavailable, err)
}

func ErrInsufficientBalance() *AppError {
	return New("LED_002", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrNegativeDebt() *AppError {
	return New("LED_003", "Pending debt cannot become negative", http.StatusUnprocessableEntity)
}

func ErrEntryKindNotAllowed(kind string) *AppError {
	return New("LED_004", fmt.Sprintf("Entry kind %s cannot be posted manually", kind), http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("LED_005", "Invalid amount", http.StatusBadRequest)
}

// ---- Debt Gate (GATE) ----

func ErrDebtLimitExceeded() *AppError {
	return New("GATE_001", "Driver pending debt has reached the credit limit", http.StatusForbidden)
}

// ---- Audit (AUD) ----

// ErrAuditSubsystem is recorded on audit records, never returned to settlement callers.
func ErrAuditSubsystem(err error) *AppError {
	return Wrap("AUD_001", "Audit reconciliation failed", http.StatusInternalServerError, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// ErrLockTimeout reports that the wallet row stayed locked past the
// store's lock_timeout. Callers may retry.
func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Wallet is busy, retry later", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ErrPayloadTooLarge rejects a request body above the router's limit.
func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_002", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}
