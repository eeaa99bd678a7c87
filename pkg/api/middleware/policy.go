package middleware

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// RateWindow 速率配额的统计窗口
const RateWindow = time.Hour

// Policy 策略门中间件：IP白名单 + 每用户速率配额（对外导出）
// 在Principal之后运行
func Policy(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, "未登录"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		clientIP := ClientIP(c)

		user, err := store.Users.GetByID(ctx, p.UserID)
		if err != nil {
			// 意外错误时放行（fail open），避免配置错误把所有人锁在门外
			// 这是显式运维策略，见部署文档
			log.Printf("⚠️ 策略门查询用户失败，放行: %v", err)
			c.Next()
			return
		}

		// IP白名单
		if user.AllowIPWhitelist {
			allowed, err := store.Policy.IsIPAllowed(ctx, user.ID, clientIP)
			if err != nil {
				log.Printf("⚠️ 策略门查询IP白名单失败，放行: %v", err)
			} else if !allowed {
				c.JSON(http.StatusForbidden, gin.H{
					"code":      403,
					"message":   "IP不在白名单中",
					"currentIp": clientIP,
				})
				c.Abort()
				return
			}
		}

		// 速率配额：过去一小时的采样数
		since := time.Now().UTC().Add(-RateWindow)
		count, err := store.Policy.CountSamplesSince(ctx, user.ID, since)
		if err != nil {
			log.Printf("⚠️ 策略门统计采样失败，放行: %v", err)
			c.Next()
			return
		}

		limit := user.RateLimit
		if count >= limit {
			c.Header("Retry-After", fmt.Sprintf("%d", int(RateWindow.Seconds())))
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(RateWindow).Unix()))
			c.JSON(http.StatusTooManyRequests, dto.NewErrorResponse(429, "超出速率配额"))
			c.Abort()
			return
		}

		if err := store.Policy.InsertSample(ctx, user.ID, c.FullPath(), clientIP); err != nil {
			log.Printf("⚠️ 追加速率采样失败: %v", err)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limit-count-1))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(RateWindow).Unix()))

		c.Next()
	}
}

// ClientIP 解析客户端IP（对外导出）
// X-Forwarded-For首跳 → X-Real-IP → socket对端；IPv6映射的IPv4做归一化
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return normalizeIP(first)
		}
	}
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return normalizeIP(realIP)
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return normalizeIP(c.Request.RemoteAddr)
	}
	return normalizeIP(host)
}

// normalizeIP IPv6映射的IPv4（::ffff:1.2.3.4）归一化为点分形式
func normalizeIP(raw string) string {
	ip := net.ParseIP(raw)
	if ip == nil {
		return raw
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
