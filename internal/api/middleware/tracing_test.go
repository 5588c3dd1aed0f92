package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"example.com/garageroute/services/workshop/internal/tracing"
)

func serveWithTracing(t *testing.T, tracer tracing.Tracer) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Tracing(tracer))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestTracingWithDisabledTracer(t *testing.T) {
	w := serveWithTracing(t, tracing.Disabled())
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTracingWithNilTracer(t *testing.T) {
	w := serveWithTracing(t, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
