package middlewares

import (
	"net/http"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the session token into a username and puts it on
// the request context. Requests without a token pass through anonymous; the
// handlers decide whether a user is required.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), username))
		c.Next()
	}
}
