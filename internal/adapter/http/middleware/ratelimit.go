package middleware

import (
	"strconv"
	"time"

	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule caps one route group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-group limits. Dispatch event
// traffic gets the most headroom; manual postings the least.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"orders":        {Limit: 300, Window: time.Minute},
		"events":        {Limit: 600, Window: time.Minute},
		"drivers":       {Limit: 120, Window: time.Minute},
		"drivers_write": {Limit: 30, Window: time.Minute},
		"audits":        {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter throttles a route group per caller. When the limiter store
// errors the request is let through and the headers are omitted.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := group + ":" + callerID(c)
		decision, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limiter unavailable, admitting request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int64(max(time.Until(decision.ResetAt).Seconds(), 1))
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			reject(c, apperror.ErrRateLimitExceeded())
			return
		}
		c.Next()
	}
}

// callerID prefers the dispatch access key and falls back to the client IP.
func callerID(c *gin.Context) string {
	if src := c.GetString(CtxSource); src != "" {
		return src
	}
	if ak := c.GetHeader(HeaderAccessKey); ak != "" {
		return ak
	}
	return c.ClientIP()
}
