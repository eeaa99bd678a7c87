package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 上下文键
const (
	ctxKeyRequestID = "request_id"
	ctxKeyPrincipal = "principal"
)

// RequestID 请求ID中间件；显式写入请求上下文，不依赖环境存储
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Header("X-Request-Id", rid)
		c.Next()
	}
}

// RequestIDFrom 读取请求ID（对外导出）
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRequestID); ok {
		if rid, ok := v.(string); ok {
			return rid
		}
	}
	return ""
}
