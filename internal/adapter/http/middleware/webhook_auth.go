package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"strconv"
	"time"

	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderAccessKey = "X-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	// CtxSource holds the authenticated dispatch access key.
	CtxSource = "webhook_source"

	defaultMaxDrift = 60 * time.Second
	defaultNonceTTL = 120 * time.Second
)

// WebhookAuthConfig holds the credentials the dispatch service signs
// delivery events with.
type WebhookAuthConfig struct {
	AccessKey string
	Secret    string
	MaxDrift  time.Duration
	NonceTTL  time.Duration
}

// WebhookAuth admits a delivery event only when its timestamp is fresh,
// its access key matches, its HMAC signature verifies and its nonce has not
// been seen in the replay window. The nonce is claimed last so an unsigned
// request cannot burn a legitimate one.
func WebhookAuth(
	cfg WebhookAuthConfig,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) gin.HandlerFunc {
	if cfg.MaxDrift <= 0 {
		cfg.MaxDrift = defaultMaxDrift
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = defaultNonceTTL
	}

	return func(c *gin.Context) {
		accessKey := c.GetHeader(HeaderAccessKey)
		signature := c.GetHeader(HeaderSignature)
		nonce := c.GetHeader(HeaderNonce)
		rawTS := c.GetHeader(HeaderTimestamp)
		if accessKey == "" || signature == "" || nonce == "" || rawTS == "" {
			reject(c, apperror.ErrInvalidAccessKey())
			return
		}

		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil || !withinDrift(time.Unix(ts, 0), cfg.MaxDrift) {
			reject(c, apperror.ErrTimestampExpired())
			return
		}

		if cfg.AccessKey == "" || subtle.ConstantTimeCompare([]byte(accessKey), []byte(cfg.AccessKey)) != 1 {
			reject(c, apperror.ErrInvalidAccessKey())
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			reject(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		canonical := sigSvc.BuildCanonicalString(c.Request.Method, c.Request.URL.Path, ts, nonce, string(body))
		if !sigSvc.Verify(cfg.Secret, canonical, signature) {
			log.Warn().Str("path", c.Request.URL.Path).Msg("delivery event signature mismatch")
			reject(c, apperror.ErrInvalidSignature())
			return
		}

		// Redis being down must not stop deliveries; settlement idempotency
		// still absorbs a replayed event.
		fresh, err := nonceStore.CheckAndSet(c.Request.Context(), accessKey, nonce, cfg.NonceTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("nonce store unavailable, admitting signed event")
		case !fresh:
			reject(c, apperror.ErrNonceUsed())
			return
		}

		c.Set(CtxSource, accessKey)
		c.Next()
	}
}

func withinDrift(sent time.Time, maxDrift time.Duration) bool {
	drift := time.Since(sent)
	if drift < 0 {
		drift = -drift
	}
	return drift <= maxDrift
}

func reject(c *gin.Context, err *apperror.AppError) {
	response.Error(c, err)
	c.Abort()
}
