// Package api HTTP API服务器与路由
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/handler"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/auth"
	"github.com/aliciakaith/flowgrid/pkg/core/bus"
	"github.com/aliciakaith/flowgrid/pkg/core/engine"
	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/core/vault"
	"github.com/aliciakaith/flowgrid/pkg/core/verify"
	"github.com/aliciakaith/flowgrid/pkg/mailer"
	"github.com/aliciakaith/flowgrid/pkg/report"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// Deps 路由装配依赖
type Deps struct {
	Store          *storage.Store
	Engine         *engine.Engine
	Worker         *verify.Worker
	Bus            *bus.Bus
	Vault          *vault.Vault
	Guard          *guard.Guard
	Mailer         *mailer.Mailer
	Reports        *report.Generator
	Google         *auth.GoogleProvider
	JWTSecret      []byte
	FrontendOrigin string
	SecureCookies  bool
	Version        string
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(d.FrontendOrigin))

	// 创建handlers
	authHandler := handler.NewAuthHandler(d.Store, d.Mailer, d.Google, d.JWTSecret, d.FrontendOrigin, d.SecureCookies)
	flowHandler := handler.NewFlowHandler(d.Store, d.Engine)
	execHandler := handler.NewExecutionHandler(d.Store, d.Engine)
	integrationHandler := handler.NewIntegrationHandler(d.Store, d.Worker, d.Vault)
	notificationHandler := handler.NewNotificationHandler(d.Store)
	ipHandler := handler.NewIPWhitelistHandler(d.Store)
	miscHandler := handler.NewMiscHandler(d.Store, d.Guard, d.Reports)
	wsHandler := handler.NewWSHandler(d.Bus, d.FrontendOrigin)
	healthHandler := handler.NewHealthHandler(d.Store, d.Version)

	// 健康检查路由（不带前缀、不鉴权）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// 身份解析 + 策略门 + 审计
	principal := middleware.Principal(d.JWTSecret, d.Store)
	policy := middleware.Policy(d.Store)
	audit := middleware.Audit(d.Store)

	// 认证路由（无需登录）
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify", authHandler.Verify)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.GET("/google", authHandler.GoogleLogin)
		authGroup.GET("/google/callback", authHandler.GoogleCallback)
		authGroup.GET("/me", principal, authHandler.Me)
	}

	// 业务路由（登录 + 策略门 + 审计）
	v1 := router.Group("/api/v1", principal, policy, audit)
	{
		flows := v1.Group("/flows")
		{
			flows.POST("", flowHandler.Create)
			flows.GET("", flowHandler.List)
			flows.GET("/:id", flowHandler.Get)
			flows.DELETE("/:id", flowHandler.Delete)
			flows.PATCH("/:id/status", flowHandler.UpdateStatus)
			flows.POST("/:id/versions", flowHandler.SaveVersion)
			flows.GET("/:id/versions", flowHandler.ListVersions)
			flows.GET("/:id/versions/:v", flowHandler.GetVersion)
		}

		executions := v1.Group("/executions")
		{
			executions.POST("/start", execHandler.Start)
			executions.GET("/recent", execHandler.ListRecent)
			executions.GET("/flow/:id", execHandler.ListByFlow)
			executions.GET("/:id", execHandler.Get)
			executions.GET("/:id/steps", execHandler.GetSteps)
			executions.GET("/:id/logs", execHandler.GetLogs)
			executions.POST("/:id/cancel", execHandler.Cancel)
			executions.DELETE("/:id", execHandler.Delete)
		}

		integrations := v1.Group("/integrations")
		{
			integrations.GET("", integrationHandler.List)
			integrations.POST("", integrationHandler.Create)
			integrations.PATCH("/:id", integrationHandler.Update)
			integrations.DELETE("/:id", integrationHandler.Delete)
			integrations.POST("/:id/verify", integrationHandler.Verify)
		}

		connections := v1.Group("/connections")
		{
			connections.GET("", integrationHandler.ListConnections)
			connections.POST("", integrationHandler.CreateConnection)
			connections.DELETE("/:id", integrationHandler.DeleteConnection)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("", notificationHandler.Create)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}

		ipWhitelist := v1.Group("/ip-whitelist")
		{
			ipWhitelist.GET("", ipHandler.List)
			ipWhitelist.POST("", ipHandler.Add)
			ipWhitelist.GET("/current-ip", ipHandler.CurrentIP)
			ipWhitelist.DELETE("/:ip", ipHandler.Delete)
		}

		v1.GET("/transactions/summary", miscHandler.TxSummary)
		v1.POST("/sandbox/fetch", miscHandler.SandboxFetch)
		v1.POST("/reports/compliance", miscHandler.GenerateReport)
	}

	// WebSocket事件通道（登录即可，不计速率配额）
	router.GET("/ws", principal, wsHandler.Subscribe)

	return router
}
