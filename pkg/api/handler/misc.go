package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/report"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// SandboxFetchTimeout 沙箱抓取透传超时
const SandboxFetchTimeout = 10 * time.Second

// MiscHandler 杂项API：调用汇总、沙箱抓取、合规报告
type MiscHandler struct {
	store     *storage.Store
	guard     *guard.Guard
	reports   *report.Generator
	fetchHTTP *http.Client
}

// NewMiscHandler 创建MiscHandler
func NewMiscHandler(store *storage.Store, g *guard.Guard, reports *report.Generator) *MiscHandler {
	return &MiscHandler{
		store:     store,
		guard:     g,
		reports:   reports,
		fetchHTTP: &http.Client{Timeout: SandboxFetchTimeout},
	}
}

// TxSummary 组织内最近30天的调用汇总
// GET /transactions/summary
func (h *MiscHandler) TxSummary(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	summary, err := h.store.TxEvents.SummaryByOrg(ctx, p.OrgID, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(summary))
}

// SandboxFetch 图编辑器的抓取透传（同一SSRF防护，10秒超时）
// POST /sandbox/fetch
func (h *MiscHandler) SandboxFetch(c *gin.Context) {
	var req dto.SandboxFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if err := h.guard.CheckURL(req.URL); err != nil {
		respondError(c, err)
		return
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "URL非法"))
		return
	}

	resp, err := h.fetchHTTP.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse(502, fmt.Sprintf("抓取失败: %v", err)))
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SandboxFetchResponse{
		Status: resp.StatusCode,
		Body:   string(body),
	}))
}

// GenerateReport 生成组织合规报告
// POST /reports/compliance
func (h *MiscHandler) GenerateReport(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	path, err := h.reports.Generate(ctx, p.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(map[string]string{"path": path}))
}
