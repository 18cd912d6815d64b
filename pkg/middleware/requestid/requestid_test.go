package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newRequestIDRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		*capture = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDPropagatesCallerHeader(t *testing.T) {
	var seen string
	r := newRequestIDRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "booking-trace-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "booking-trace-42", seen)
	assert.Equal(t, "booking-trace-42", rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMintsWhenAbsent(t *testing.T) {
	var seen string
	r := newRequestIDRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
