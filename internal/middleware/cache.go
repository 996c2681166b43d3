package middleware

import "github.com/gin-gonic/gin"

// NoStore marks responses as uncacheable. Used on routes that return live
// attempt state or credentials.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
