package middleware

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Recovery converts a handler panic into the same JSON error body the
// handlers use for explicit 500s, instead of gin's empty response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorf("Panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":  "Internal server error",
			"status": "error",
		})
	})
}
