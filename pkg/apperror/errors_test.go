package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_002", "Insufficient wallet balance", http.StatusPaymentRequired),
			expected: "[LED_002] Insufficient wallet balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("ORD_004", "test", http.StatusConflict)
	assert.Nil(t, appErr.Unwrap())
}

func TestSecurityErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAccessKey", ErrInvalidAccessKey(), "SEC_001", 401},
		{"InvalidSignature", ErrInvalidSignature(), "SEC_002", 401},
		{"TimestampExpired", ErrTimestampExpired(), "SEC_003", 403},
		{"NonceUsed", ErrNonceUsed(), "SEC_004", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidTransition", ErrInvalidTransition("CREATED", "DELIVERED"), "ORD_001", 409},
		{"NotFound", ErrNotFound("Order"), "ORD_002", 404},
		{"NotSettleable", ErrOrderNotSettleable("no driver"), "ORD_003", 409},
		{"ConcurrentModification", ErrConcurrentModification(), "ORD_004", 409},
		{"InvalidOrder", ErrInvalidOrder("tip must not be negative"), "ORD_005", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestLedgerErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"LedgerPosting", ErrLedgerPosting(inner), "LED_001", 503},
		{"InsufficientBalance", ErrInsufficientBalance(), "LED_002", 402},
		{"NegativeDebt", ErrNegativeDebt(), "LED_003", 422},
		{"KindNotAllowed", ErrEntryKindNotAllowed("CASH_ORDER_ADEUDO"), "LED_004", 400},
		{"InvalidAmount", ErrInvalidAmount(), "LED_005", 400},
		{"DebtLimitExceeded", ErrDebtLimitExceeded(), "GATE_001", 403},
		{"AuditSubsystem", ErrAuditSubsystem(inner), "AUD_001", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}

	assert.True(t, errors.Is(ErrLedgerPosting(inner), inner))
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Wallet")
	assert.Contains(t, err.Message, "Wallet")
	assert.Equal(t, "ORD_002", err.Code)
}

func TestValidation(t *testing.T) {
	err := Validation("amount is required")
	assert.Equal(t, "VAL_001", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
}

func TestPayloadTooLarge(t *testing.T) {
	err := ErrPayloadTooLarge(1024)
	assert.Equal(t, "VAL_002", err.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, err.HTTPStatus)
	assert.Contains(t, err.Message, "1024")
}
