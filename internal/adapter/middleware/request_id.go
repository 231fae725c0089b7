package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader はリクエスト ID を受け渡すヘッダー名。
const RequestIDHeader = "X-Request-ID"

// RequestID はリクエストに一意な ID を付与するミドルウェア。
// ハンドラーは c.Get("request_id") でエラーレスポンスに ID を含める。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = "req_" + uuid.New().String()[:12]
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
