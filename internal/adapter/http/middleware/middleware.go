package middleware

import (
	"fmt"
	"net/http"
	"time"

	"driver-settlement-engine/pkg/apperror"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"
	CtxRequestID    = "request_id"

	maxRequestIDLength = 64
)

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger writes one line per request. 4xx lines are warnings and
// 5xx lines are errors; both carry the apperror code that was returned.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}

		if code := c.GetString(response.CtxErrorCode); code != "" {
			event = event.Str("error_code", code)
		}
		if src := c.GetString(CtxSource); src != "" {
			event = event.Str("source", src)
		}
		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery turns a handler panic into a SYS_001 response.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error().
				Interface("panic", r).
				Str("request_id", c.GetString(CtxRequestID)).
				Str("path", c.Request.URL.Path).
				Msg("panic recovered")
			response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
			c.Abort()
		}()
		c.Next()
	}
}
