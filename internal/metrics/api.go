package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (m *Metrics) MetricsMiddleware(r *gin.Engine) {
	v2 := r.Group("/metrics")
	v2.GET("", func(c *gin.Context) {
		GetHandler().ServeHTTP(c.Writer, c.Request)
	})
}

// GetHandler serves the shared registry's exposition format, for
// processes (the queue worker) that expose metrics over a bare
// http.ServeMux instead of gin.
func GetHandler() http.Handler {
	return promhttp.HandlerFor(Reg(), promhttp.HandlerOpts{Registry: Reg()})
}
