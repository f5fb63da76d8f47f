package middleware

import (
	"net/http"

	"driver-settlement-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies at maxBytes. A declared Content-Length
// above the cap is refused with VAL_002 before any handler runs; chunked
// bodies are cut off by http.MaxBytesReader and fail at bind time.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			reject(c, apperror.ErrPayloadTooLarge(maxBytes))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
