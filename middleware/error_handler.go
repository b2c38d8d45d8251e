package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/claimqueue/common"
)

// ErrorHandler renders the last error attached to the context. APIErrors
// keep their status; anything else becomes a 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var apiErr common.APIError
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.Status, apiErr.Body())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
