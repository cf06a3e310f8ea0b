package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/shx815/simple-openhands/internal/shared/id"
)

// HeaderRequestID carries the request ID
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID tags every request with an ID, keeping one sent by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 128 {
			rid = id.NewRequestID()
		}
		c.Set(requestIDKey, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
