package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the session API key
const HeaderAPIKey = "X-Session-API-Key"

// APIKey rejects requests without the configured key. An empty key disables
// the check. Paths in public stay reachable without a key.
func APIKey(key string, public ...string) gin.HandlerFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	want := []byte(key)

	return func(c *gin.Context) {
		if key == "" || open[c.Request.URL.Path] {
			c.Next()
			return
		}

		got := []byte(c.GetHeader(HeaderAPIKey))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or missing API key",
			})
			return
		}
		c.Next()
	}
}
