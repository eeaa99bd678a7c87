package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/core/verify"
	"github.com/aliciakaith/flowgrid/pkg/core/vault"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// IntegrationHandler 集成与凭证API处理器
type IntegrationHandler struct {
	store  *storage.Store
	worker *verify.Worker
	vault  *vault.Vault
}

// NewIntegrationHandler 创建IntegrationHandler
func NewIntegrationHandler(store *storage.Store, worker *verify.Worker, v *vault.Vault) *IntegrationHandler {
	return &IntegrationHandler{store: store, worker: worker, vault: v}
}

// List 列出组织集成
// GET /integrations
func (h *IntegrationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	items, err := h.store.Integrations.ListByOrg(ctx, p.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[*storage.Integration]{
		Total: len(items),
		Items: items,
	}))
}

// Create 创建集成并立即排入验证
// POST /integrations
func (h *IntegrationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	item, err := h.store.Integrations.Create(ctx, p.OrgID, req.Name, req.TestURL)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.worker.Enqueue(ctx, verify.Request{
		IntegrationID: item.ID,
		OrgID:         p.OrgID,
		Name:          item.Name,
		APIKey:        req.APIKey,
		TestURL:       req.TestURL,
	}); err != nil {
		respondError(c, err)
		return
	}

	// 验证异步进行：返回202与pending态的行
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(item))
}

// Update 更新集成
// PATCH /integrations/:id
func (h *IntegrationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	id := c.Param("id")

	var req dto.UpdateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	item, err := h.store.Integrations.GetByID(ctx, p.OrgID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = item.Name
	}
	testURL := req.TestURL
	if testURL == "" && item.TestURL.Valid {
		testURL = item.TestURL.String
	}

	if err := h.store.Integrations.Update(ctx, p.OrgID, id, name, testURL); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.store.Integrations.GetByID(ctx, p.OrgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(updated))
}

// Delete 删除集成
// DELETE /integrations/:id
func (h *IntegrationHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Integrations.Delete(ctx, p.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Verify 重验集成（幂等：并发重验last_checked最后写入者胜出）
// POST /integrations/:id/verify
func (h *IntegrationHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	id := c.Param("id")

	var req dto.VerifyIntegrationRequest
	_ = c.ShouldBindJSON(&req)

	item, err := h.store.Integrations.GetByID(ctx, p.OrgID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	vreq := verify.Request{
		IntegrationID: item.ID,
		OrgID:         p.OrgID,
		Name:          item.Name,
		APIKey:        req.APIKey,
	}
	if item.TestURL.Valid {
		vreq.TestURL = item.TestURL.String
	}

	if err := h.worker.Enqueue(ctx, vreq); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(map[string]string{"status": storage.IntegrationStatusPending}))
}

// ========== 凭证 ==========

// ListConnections 列出当前用户的凭证（不含明文配置）
// GET /connections
func (h *IntegrationHandler) ListConnections(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	items, err := h.store.Connections.ListByOwner(ctx, p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[*storage.Connection]{
		Total: len(items),
		Items: items,
	}))
}

// CreateConnection 保存凭证（配置经Vault加密后落库）
// POST /connections
func (h *IntegrationHandler) CreateConnection(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	enc, err := h.vault.Encrypt(req.Config)
	if err != nil {
		respondError(c, err)
		return
	}

	conn := &storage.Connection{
		OwnerUserID: p.UserID,
		Provider:    req.Provider,
		Env:         req.Env,
		Label:       req.Label,
		ConfigEnc:   enc,
	}
	if err := h.store.Connections.Create(ctx, conn); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(conn))
}

// DeleteConnection 删除凭证
// DELETE /connections/:id
func (h *IntegrationHandler) DeleteConnection(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Connections.Delete(ctx, p.UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
