package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"shop-analyzer/metrics"
)

// Metrics counts handled requests by route and status code. Unmatched paths
// are collapsed into one label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
