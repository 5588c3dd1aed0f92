package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"example.com/garageroute/services/workshop/internal/tracing"
)

// Tracing instruments requests with New Relic transactions. It is a
// no-op when tracing is disabled.
func Tracing(tracer tracing.Tracer) gin.HandlerFunc {
	if tracer == nil {
		return func(c *gin.Context) { c.Next() }
	}
	app := tracer.Application()
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return nrgin.Middleware(app)
}
