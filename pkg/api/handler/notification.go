package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// NotificationHandler 通知API处理器
type NotificationHandler struct {
	store *storage.Store
}

// NewNotificationHandler 创建NotificationHandler
func NewNotificationHandler(store *storage.Store) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List 列出组织通知
// GET /notifications?limit=n
func (h *NotificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.store.Notifications.ListByOrg(ctx, p.OrgID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[*storage.Notification]{
		Total: len(items),
		Items: items,
	}))
}

// Create 创建通知
// POST /notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	n, err := h.store.Notifications.Insert(ctx, p.OrgID, req.Type, req.Title, req.Message, "")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(n))
}

// MarkRead 标记单条已读
// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Notifications.MarkRead(ctx, p.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"message": "已读"}))
}

// MarkAllRead 标记全部已读
// POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)

	if err := h.store.Notifications.MarkAllRead(ctx, p.OrgID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"message": "全部已读"}))
}
