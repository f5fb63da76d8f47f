package service

import (
	"context"
	"testing"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, expected string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, money(expected).Equal(got), append([]interface{}{"expected %s, got %s", expected, got.String()}, msgAndArgs...)...)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func deliveredOrder(id, driverID string, method domain.PaymentMethod, total, tip string) *domain.Order {
	d := driverID
	at := fixedNow
	return &domain.Order{
		ID:            id,
		PaymentMethod: method,
		Status:        domain.OrderStatusDelivered,
		BaseFee:       money(total),
		Tip:           money(tip),
		TotalAmount:   money(total),
		DriverID:      &d,
		BusinessID:    "biz-1",
		CreatedAt:     fixedNow.Add(-time.Hour),
		UpdatedAt:     fixedNow,
		TerminalAt:    &at,
	}
}
