package middleware

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// Audit 审计中间件（对外导出）
// 已认证的状态变更调用追加审计行；插入失败只记日志，绝不影响响应
func Audit(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			return
		}

		p := PrincipalFrom(c)
		if p == nil {
			return
		}

		entry := &storage.AuditLog{
			UserID:     sql.NullString{String: p.UserID, Valid: true},
			Action:     c.Request.Method + " " + c.FullPath(),
			Route:      sql.NullString{String: c.FullPath(), Valid: true},
			Method:     sql.NullString{String: c.Request.Method, Valid: true},
			IP:         sql.NullString{String: ClientIP(c), Valid: true},
			UserAgent:  sql.NullString{String: c.Request.UserAgent(), Valid: true},
			StatusCode: sql.NullInt64{Int64: int64(c.Writer.Status()), Valid: true},
			RequestID:  sql.NullString{String: RequestIDFrom(c), Valid: true},
		}
		if target := c.Param("id"); target != "" {
			entry.TargetID = sql.NullString{String: target, Valid: true}
		}

		if err := store.Policy.InsertAudit(c.Request.Context(), entry); err != nil {
			log.Printf("⚠️ 追加审计日志失败: %v", err)
		}
	}
}
