package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	store   *storage.Store
	version string
}

// NewHealthHandler 创建HealthHandler
func NewHealthHandler(store *storage.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health 存活检查
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Ready 就绪检查（探测数据库连接）
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
