package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers form boundaries and the non-file fields.
const multipartSlack = 1 << 20

// LimitBody caps request bodies at maxBytes plus multipart overhead. Reads
// past the cap fail inside the handler, which reports 413.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartSlack)
		}
		c.Next()
	}
}
