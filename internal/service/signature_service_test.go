package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secret := "dispatch-shared-secret"
	payload := svc.BuildCanonicalString("POST", "/api/v1/events/order-delivered", 1718000000, "n-1", `{"order_id":"ord-1"}`)

	signature := svc.Sign(secret, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify(secret, payload, signature))
	assert.True(t, svc.Verify(secret, payload, strings.ToUpper(signature)), "upper-case hex is accepted")
}

func TestHMACSignatureService_VerifyRejects(t *testing.T) {
	svc := NewHMACSignatureService()
	good := svc.Sign("key", "payload")

	tests := []struct {
		name      string
		secret    string
		payload   string
		signature string
	}{
		{"wrong key", "other", "payload", good},
		{"tampered payload", "key", "payload2", good},
		{"not hex", "key", "payload", "zz-not-hex"},
		{"truncated", "key", "payload", good[:32]},
		{"empty", "key", "payload", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
	assert.NotEqual(t, svc.Sign("key", "data"), svc.Sign("key2", "data"))
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t,
		`POST|/api/v1/events/order-delivered|1718000000|abc123|{"order_id":"ord-1"}`,
		svc.BuildCanonicalString("post", "/api/v1/events/order-delivered", 1718000000, "abc123", `{"order_id":"ord-1"}`))
	assert.Equal(t,
		"GET|/api/v1/drivers/drv-1/wallet|1718000000|nonce1|",
		svc.BuildCanonicalString("GET", "/api/v1/drivers/drv-1/wallet", 1718000000, "nonce1", ""))
}
