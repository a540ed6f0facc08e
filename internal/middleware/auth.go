package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authentication guards the API with a static bearer token. An empty token
// disables the check, which is how local development runs.
func Authentication(bearer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearer == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != bearer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid or missing bearer token"},
			})
			return
		}
		c.Next()
	}
}
