package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"driver-settlement-engine/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags used by the request DTOs.
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("safe_id", validateSafeID)
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("signed_money", validateSignedMoney)
	_ = v.RegisterValidation("payment_method", validatePaymentMethod)
	_ = v.RegisterValidation("order_status", validateOrderStatus)
	_ = v.RegisterValidation("entry_kind", validateEntryKind)
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// parseMoney accepts a decimal with at most two fractional digits.
func parseMoney(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, false
	}
	return d, true
}

// validateMoney accepts non-negative amounts.
func validateMoney(fl validator.FieldLevel) bool {
	d, ok := parseMoney(fl.Field().String())
	return ok && !d.IsNegative()
}

// validateSignedMoney accepts any non-zero amount.
func validateSignedMoney(fl validator.FieldLevel) bool {
	d, ok := parseMoney(fl.Field().String())
	return ok && !d.IsZero()
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	return domain.PaymentMethod(fl.Field().String()).IsValid()
}

func validateOrderStatus(fl validator.FieldLevel) bool {
	return domain.OrderStatus(fl.Field().String()).IsValid()
}

func validateEntryKind(fl validator.FieldLevel) bool {
	return domain.EntryKind(fl.Field().String()).IsValid()
}

// ParseAmount converts a validated money string; empty means zero.
func ParseAmount(raw string) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero
	}
	d, _ := parseMoney(raw)
	return d
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
