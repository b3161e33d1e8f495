package middlewares

import "github.com/gin-gonic/gin"

// Keys stored on *gin.Context by the middlewares in this package.
const (
	CtxRequestID = "request_id"
	CtxEmail     = "auth.email"
)

// abortWithError writes the same error envelope the handlers use.
func abortWithError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
