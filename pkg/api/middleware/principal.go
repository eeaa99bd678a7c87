package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/auth"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// 会话cookie名
// 备用cookie仅为桥接开发环境明文HTTP下丢弃缺Secure cookie的浏览器
const (
	SessionCookie         = "fg_session"
	SessionCookieFallback = "fg_session_fb"
)

// Principal 身份解析中间件（对外导出）
// 主cookie优先，备用cookie兜底；签名或有效期失败一律401
func Principal(secret []byte, store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookie)
		if err != nil || raw == "" {
			raw, _ = c.Cookie(SessionCookieFallback)
		}
		if raw == "" {
			c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, "未登录"))
			c.Abort()
			return
		}

		p, err := auth.ParseSession(secret, raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, "会话无效或已过期"))
			c.Abort()
			return
		}

		// 停用用户只读：拒绝状态变更请求
		if c.Request.Method != http.MethodGet {
			user, err := store.Users.GetByID(c.Request.Context(), p.UserID)
			if err == nil && user.DeactivatedAt != nil {
				c.JSON(http.StatusForbidden, dto.NewErrorResponse(403, "账号已停用，仅可读取"))
				c.Abort()
				return
			}
		}

		c.Set(ctxKeyPrincipal, p)
		c.Next()
	}
}

// PrincipalFrom 读取已解析的身份（对外导出）
func PrincipalFrom(c *gin.Context) *auth.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}
