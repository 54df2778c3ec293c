package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Origin answers CORS preflight and stamps the response headers the web
// client needs. Credentials are carried in the Authorization header, not
// cookies, so a wildcard origin is acceptable here.
func Origin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
