package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CapConcurrentRequests limits how many requests are in flight at once. The
// gateway funnels every cluster operation through one serialized request
// socket, so requests beyond the cap would only queue behind it; they are
// rejected with 429 and a Retry-After hint instead. A non-positive cap
// disables the limit.
func CapConcurrentRequests(maxInflight int) gin.HandlerFunc {
	if maxInflight <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	slots := make(chan struct{}, maxInflight)

	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many concurrent requests",
			})
			return
		}
		defer func() { <-slots }()
		c.Next()
	}
}
