package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/tastegraph/pkg/response"
)

// ListNotifications 最近的通知
// @Summary 通知列表
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param limit query int false "条数" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.notifications.List(c.Request.Context(), caller(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// MarkNotificationsRead 全部标记为已读
// @Summary 通知已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications/read [post]
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}
