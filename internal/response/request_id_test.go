package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func requestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Get(ContextKeyRequestID)
		c.String(http.StatusOK, id.(string))
	})
	return r
}

func TestRequestIDPassthrough(t *testing.T) {
	r := requestIDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id-123", w.Body.String())
	assert.Equal(t, "upstream-id-123", w.Header().Get("X-Request-ID"))
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	r := requestIDRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
}

func TestRequestIDRejectsHostileValues(t *testing.T) {
	r := requestIDRouter()

	for _, bad := range []string{
		strings.Repeat("a", 65),
		"id with spaces",
		"id\"with'quotes",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		r.ServeHTTP(w, req)

		// A replacement uuid, never the hostile value.
		_, err := uuid.Parse(w.Body.String())
		assert.NoError(t, err, "value %q should have been replaced", bad)
	}
}
