package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/core/engine"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// ExecutionHandler 执行API处理器
type ExecutionHandler struct {
	store  *storage.Store
	engine *engine.Engine
}

// NewExecutionHandler 创建ExecutionHandler
func NewExecutionHandler(store *storage.Store, eng *engine.Engine) *ExecutionHandler {
	return &ExecutionHandler{store: store, engine: eng}
}

// Start 启动执行（异步：running行落库即返回202）
// POST /executions/start
func (h *ExecutionHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.StartExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	triggerType := req.TriggerType
	if triggerType == "" {
		triggerType = storage.TriggerManual
	}
	switch triggerType {
	case storage.TriggerManual, storage.TriggerWebhook, storage.TriggerSchedule, storage.TriggerDeploy:
	default:
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "非法的触发方式"))
		return
	}

	result, err := h.engine.StartExecution(ctx, p.OrgID, req.FlowID, triggerType, req.TriggerData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(result))
}

// Get 查询执行详情
// GET /executions/:id
func (h *ExecutionHandler) Get(c *gin.Context) {
	p := middleware.PrincipalFrom(c)

	exec, err := h.requireOrgExecution(c, p.OrgID)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(executionView(exec)))
}

// GetSteps 查询执行步骤
// GET /executions/:id/steps
func (h *ExecutionHandler) GetSteps(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	exec, err := h.requireOrgExecution(c, p.OrgID)
	if err != nil {
		return
	}

	steps, err := h.store.Executions.GetSteps(ctx, exec.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(steps))
}

// GetLogs 查询执行日志
// GET /executions/:id/logs?limit=n
func (h *ExecutionHandler) GetLogs(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	exec, err := h.requireOrgExecution(c, p.OrgID)
	if err != nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	logs, err := h.store.Executions.GetLogs(ctx, exec.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(logs))
}

// ListByFlow 列出某Flow的执行
// GET /executions/flow/:id
func (h *ExecutionHandler) ListByFlow(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	flowID := c.Param("id")

	if _, err := h.store.Flows.GetByID(ctx, p.OrgID, flowID); err != nil {
		respondError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	execs, err := h.store.Executions.ListByFlow(ctx, flowID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.ExecutionSummary, 0, len(execs))
	for _, e := range execs {
		items = append(items, executionView(e))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.ExecutionSummary]{
		Total: len(items),
		Items: items,
	}))
}

// ListRecent 列出组织内最近执行
// GET /executions/recent?limit=n
func (h *ExecutionHandler) ListRecent(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	execs, err := h.store.Executions.ListRecentForOrg(ctx, p.OrgID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.ExecutionSummary, 0, len(execs))
	for _, e := range execs {
		items = append(items, executionView(e))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.ExecutionSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Cancel 协作式取消
// POST /executions/:id/cancel
func (h *ExecutionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.engine.CancelExecution(ctx, p.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(map[string]string{"message": "取消请求已受理"}))
}

// Delete 删除执行及从属记录
// DELETE /executions/:id
func (h *ExecutionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.engine.DeleteExecution(ctx, p.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// requireOrgExecution 加载执行并校验组织归属；失败时已写响应
func (h *ExecutionHandler) requireOrgExecution(c *gin.Context, orgID string) (*storage.FlowExecution, error) {
	ctx := c.Request.Context()
	id := c.Param("id")

	ok, err := h.store.Executions.ExecutionBelongsToOrg(ctx, id, orgID)
	if err != nil {
		respondError(c, err)
		return nil, err
	}
	if !ok {
		notFound := apperr.E(apperr.NotFound, "execution_not_found", "执行不存在")
		respondError(c, notFound)
		return nil, notFound
	}

	exec, err := h.store.Executions.GetExecution(ctx, id)
	if err != nil {
		respondError(c, err)
		return nil, err
	}
	return exec, nil
}

func executionView(e *storage.FlowExecution) dto.ExecutionSummary {
	view := dto.ExecutionSummary{
		ID:          e.ID,
		FlowID:      e.FlowID,
		FlowVersion: e.FlowVersion,
		Status:      e.Status,
		TriggerType: e.TriggerType,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
	}
	if e.ErrorMessage.Valid {
		view.ErrorMessage = e.ErrorMessage.String
	}
	if e.ExecutionTimeMs.Valid {
		view.ExecutionTimeMs = e.ExecutionTimeMs.Int64
	}
	return view
}
