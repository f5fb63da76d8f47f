package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateOrderRequest{
		ID:            "  ord-1  ",
		PaymentMethod: " CARD ",
		TotalAmount:   " 150.00",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "ord-1", req.ID)
	assert.Equal(t, "CARD", req.PaymentMethod)
	assert.Equal(t, "150.00", req.TotalAmount)
}

func TestSanitizeStruct_EscapesPointerString(t *testing.T) {
	note := "  bonus for <b>rain</b> shift  "
	req := ManualEntryRequest{
		Kind:      "BONUS",
		Amount:    "50",
		Reference: "rain-1",
		Note:      &note,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "bonus for &lt;b&gt;rain&lt;/b&gt; shift", *req.Note)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := ManualEntryRequest{Kind: "BONUS", Note: nil}
	SanitizeStruct(&req)
	assert.Nil(t, req.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ord-001",
		"DRV_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ord 001",          // space
		"ord<001>",         // angle brackets
		"ord;DROP",         // semicolon
		"",                 // empty
		"ord-1:SETTLEMENT", // colon
		"ord\n001",         // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

// newValidator reads the binding tags the way gin's default validator does.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidators(v)
	return v
}

func TestMoneyTags(t *testing.T) {
	v := newValidator()

	tests := []struct {
		value       string
		money       bool
		signedMoney bool
	}{
		{"150.00", true, true},
		{"0", true, false},
		{"0.5", true, true},
		{"10.500", true, true},
		{"10.005", false, false},
		{"-30", false, true},
		{"-0.01", false, true},
		{"abc", false, false},
		{"1e3", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.money, v.Var(tt.value, "money") == nil, "money")
			assert.Equal(t, tt.signedMoney, v.Var(tt.value, "signed_money") == nil, "signed_money")
		})
	}
}

func TestEnumTags(t *testing.T) {
	v := newValidator()

	assert.NoError(t, v.Var("CASH", "payment_method"))
	assert.NoError(t, v.Var("CARD", "payment_method"))
	assert.Error(t, v.Var("card", "payment_method"))

	assert.NoError(t, v.Var("IN_TRANSIT", "order_status"))
	assert.Error(t, v.Var("LOST", "order_status"))

	assert.NoError(t, v.Var("WITHDRAWAL", "entry_kind"))
	assert.Error(t, v.Var("GIFT", "entry_kind"))
}

func TestCreateOrderRequest_Validation(t *testing.T) {
	v := newValidator()

	valid := CreateOrderRequest{ID: "ord-1", PaymentMethod: "CASH", TotalAmount: "80.00"}
	assert.NoError(t, v.Struct(valid))

	missingTotal := CreateOrderRequest{ID: "ord-1", PaymentMethod: "CASH"}
	assert.Error(t, v.Struct(missingTotal))

	negativeTip := CreateOrderRequest{ID: "ord-1", PaymentMethod: "CARD", TotalAmount: "10", Tip: "-1"}
	assert.Error(t, v.Struct(negativeTip))

	unknownMethod := CreateOrderRequest{ID: "ord-1", PaymentMethod: "CHEQUE", TotalAmount: "10"}
	assert.Error(t, v.Struct(unknownMethod))
}

func TestParseAmount(t *testing.T) {
	assert.True(t, ParseAmount("").IsZero())
	assert.Equal(t, "150.5", ParseAmount(" 150.50 ").String())
	assert.Equal(t, "-30", ParseAmount("-30").String())
}
