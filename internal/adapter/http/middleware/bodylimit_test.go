package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRouter reads the whole body and echoes it, answering 413 when the
// reader trips the limit.
func echoRouter(limit int64) *gin.Engine {
	r := gin.New()
	r.Use(MaxBodySize(limit))
	r.Any("/entries", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, string(b))
	})
	return r
}

func TestMaxBodySize(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		body     string
		wantCode int
	}{
		{"under limit", 1024, `{"kind":"TIME_BONUS"}`, http.StatusOK},
		{"exact limit", 5, "12345", http.StatusOK},
		{"declared length over limit", 16, strings.Repeat("A", 100), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			echoRouter(tt.limit).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/entries", bytes.NewBufferString(tt.body)))

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestMaxBodySize_DeclaredLengthReturnsErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	echoRouter(8).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(strings.Repeat("x", 64))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "VAL_002", errorCode(t, w))
}

func TestMaxBodySize_UnknownLengthCutOff(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/entries", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
	req.ContentLength = -1

	w := httptest.NewRecorder()
	echoRouter(8).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "too large", w.Body.String())
}

func TestMaxBodySize_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	echoRouter(1024).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/entries", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
