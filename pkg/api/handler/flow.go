package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/core/engine"
	"github.com/aliciakaith/flowgrid/pkg/core/flow"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// FlowHandler Flow API处理器
type FlowHandler struct {
	store  *storage.Store
	engine *engine.Engine
}

// NewFlowHandler 创建FlowHandler
func NewFlowHandler(store *storage.Store, eng *engine.Engine) *FlowHandler {
	return &FlowHandler{store: store, engine: eng}
}

// Create 创建Flow
// POST /flows
func (h *FlowHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	f, err := h.store.Flows.Create(ctx, p.OrgID, req.Name, p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(flowView(f)))
}

// List 列出组织内Flow
// GET /flows
func (h *FlowHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	flows, err := h.store.Flows.ListByOrg(ctx, p.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.FlowSummary, 0, len(flows))
	for _, f := range flows {
		items = append(items, flowView(f))
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.FlowSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Get 获取Flow详情
// GET /flows/:id
func (h *FlowHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	f, err := h.store.Flows.GetByID(ctx, p.OrgID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(flowView(f)))
}

// Delete 软删除Flow
// DELETE /flows/:id
func (h *FlowHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Flows.SoftDelete(ctx, p.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateStatus 更新Flow状态；置为active时以deploy触发一次执行
// PATCH /flows/:id/status
func (h *FlowHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	flowID := c.Param("id")

	var req dto.UpdateFlowStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if err := h.store.Flows.UpdateStatus(ctx, p.OrgID, flowID, req.Status); err != nil {
		respondError(c, err)
		return
	}

	if req.Status == storage.FlowStatusActive {
		result, err := h.engine.StartExecution(ctx, p.OrgID, flowID, storage.TriggerDeploy, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(result))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"status": req.Status}))
}

// SaveVersion 保存新版本快照；写入前校验图结构
// POST /flows/:id/versions
func (h *FlowHandler) SaveVersion(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	flowID := c.Param("id")

	var req dto.SaveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if _, err := h.store.Flows.GetByID(ctx, p.OrgID, flowID); err != nil {
		respondError(c, err)
		return
	}

	// 写入时校验：节点唯一、边端点存在、无环；违反约束的图不落库
	if _, err := flow.ParseGraph(req.Graph); err != nil {
		respondError(c, err)
		return
	}

	v, err := h.store.Flows.SaveVersion(ctx, flowID, req.Graph, req.Variables)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(versionView(v)))
}

// ListVersions 列出版本
// GET /flows/:id/versions
func (h *FlowHandler) ListVersions(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	flowID := c.Param("id")

	if _, err := h.store.Flows.GetByID(ctx, p.OrgID, flowID); err != nil {
		respondError(c, err)
		return
	}

	versions, err := h.store.Flows.ListVersions(ctx, flowID)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.VersionSummary, 0, len(versions))
	for _, v := range versions {
		items = append(items, versionView(v))
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.VersionSummary]{
		Total: len(items),
		Items: items,
	}))
}

// GetVersion 获取指定版本（含图JSON）
// GET /flows/:id/versions/:v
func (h *FlowHandler) GetVersion(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	flowID := c.Param("id")

	if _, err := h.store.Flows.GetByID(ctx, p.OrgID, flowID); err != nil {
		respondError(c, err)
		return
	}

	var versionNum int
	if _, err := fmt.Sscanf(c.Param("v"), "%d", &versionNum); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "版本号非法"))
		return
	}

	v, err := h.store.Flows.GetVersion(ctx, flowID, versionNum)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(v))
}

func flowView(f *storage.Flow) dto.FlowSummary {
	return dto.FlowSummary{
		ID:        f.ID,
		Name:      f.Name,
		Status:    f.Status,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func versionView(v *storage.FlowVersion) dto.VersionSummary {
	return dto.VersionSummary{
		ID:        v.ID,
		FlowID:    v.FlowID,
		Version:   v.Version,
		CreatedAt: v.CreatedAt,
	}
}
