package service

import (
	"context"
	"testing"

	"driver-settlement-engine/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsCalculator_Calculate(t *testing.T) {
	calc := NewCentsCalculator(money("15.00"))

	tests := []struct {
		name   string
		method domain.PaymentMethod
		total  string
		tip    string
		want   string
	}{
		{"card with tip", domain.PaymentMethodCard, "150.00", "20.00", "155.00"},
		{"card no tip", domain.PaymentMethodCard, "100.00", "0", "85.00"},
		{"card total below commission", domain.PaymentMethodCard, "10.00", "5.00", "5.00"},
		{"card fractional centavos", domain.PaymentMethodCard, "99.995", "0.004", "85.00"},
		{"cash", domain.PaymentMethodCash, "200.00", "0", "15.00"},
		{"cash tip ignored", domain.PaymentMethodCash, "200.00", "30.00", "15.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := *deliveredOrder("ord-1", "drv-1", tt.method, tt.total, tt.tip)
			got, err := calc.Calculate(context.Background(), order)
			require.NoError(t, err)
			assertMoney(t, tt.want, got)
		})
	}
}

func TestCentsCalculator_AgreesWithSettlement(t *testing.T) {
	rules := domain.DefaultSettlementRules()
	calc := NewCentsCalculator(rules.FixedCommission)

	orders := []*domain.Order{
		deliveredOrder("o1", "drv-1", domain.PaymentMethodCard, "150.00", "20.00"),
		deliveredOrder("o2", "drv-1", domain.PaymentMethodCard, "12.34", "0.66"),
		deliveredOrder("o3", "drv-1", domain.PaymentMethodCash, "80.00", "10.00"),
	}
	for _, o := range orders {
		wallet := domain.NewDriverWallet("drv-1", rules.CreditLimit, fixedNow)
		result := computeSettlement(*o, *wallet, rules, fixedNow)

		got, err := calc.Calculate(context.Background(), *o)
		require.NoError(t, err)
		assertMoney(t, result.SystemCalculation.StringFixed(2), got, o.ID)
	}
}

func TestCentsCalculator_Errors(t *testing.T) {
	calc := NewCentsCalculator(money("15"))

	_, err := calc.Calculate(context.Background(), domain.Order{ID: "o", PaymentMethod: "BARTER"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = calc.Calculate(ctx, *deliveredOrder("o", "d", domain.PaymentMethodCash, "10", "0"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTipRatioDetector_Inspect(t *testing.T) {
	d := NewTipRatioDetector(money("0.5"))
	assert.Equal(t, "tip_ratio", d.Name())

	tests := []struct {
		name        string
		total, tip  string
		wantNil     bool
		wantFlagged bool
	}{
		{"no tip", "100", "0", true, false},
		{"modest tip", "100", "20", false, false},
		{"at ratio", "100", "50", false, false},
		{"generous tip", "100", "80", false, true},
		{"tip on zero total", "0", "10", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := *deliveredOrder("o", "d", domain.PaymentMethodCard, tt.total, tt.tip)
			signal, err := d.Inspect(context.Background(), order, money("0"))
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, signal)
				return
			}
			require.NotNil(t, signal)
			assert.Equal(t, "tip_ratio", signal.Detector)
			assert.Equal(t, tt.wantFlagged, signal.Flagged)
			assert.NotEmpty(t, signal.Detail)
		})
	}
}
