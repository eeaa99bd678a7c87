package handler

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// IPWhitelistHandler IP白名单API处理器
type IPWhitelistHandler struct {
	store *storage.Store
}

// NewIPWhitelistHandler 创建IPWhitelistHandler
func NewIPWhitelistHandler(store *storage.Store) *IPWhitelistHandler {
	return &IPWhitelistHandler{store: store}
}

// List 列出当前用户的白名单
// GET /ip-whitelist
func (h *IPWhitelistHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	items, err := h.store.Policy.ListAllowlist(ctx, p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[*storage.IPAllowlistEntry]{
		Total: len(items),
		Items: items,
	}))
}

// Add 添加白名单条目
// POST /ip-whitelist
func (h *IPWhitelistHandler) Add(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.AddAllowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if net.ParseIP(req.IPAddress) == nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "IP地址非法"))
		return
	}

	if err := h.store.Policy.AddAllowlist(ctx, p.UserID, req.IPAddress, req.Description); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(map[string]string{"ip_address": req.IPAddress}))
}

// Delete 删除白名单条目
// DELETE /ip-whitelist/:ip
func (h *IPWhitelistHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Policy.DeleteAllowlist(ctx, p.UserID, c.Param("ip")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CurrentIP 返回调用方的客户端IP
// GET /ip-whitelist/current-ip
func (h *IPWhitelistHandler) CurrentIP(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CurrentIPResponse{
		CurrentIP: middleware.ClientIP(c),
	}))
}
