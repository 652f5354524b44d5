package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
)

// AttachRequestContext seeds connection metadata; auth fills in the caller.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
