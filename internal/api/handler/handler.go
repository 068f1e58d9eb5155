package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/tastegraph/internal/api/middleware"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/response"
)

// Handler 聚合所有 HTTP 入口
type Handler struct {
	follows       service.FollowService
	profiles      service.ProfileService
	notifications service.NotificationService
	visibility    *service.VisibilityResolver
	ping          func(ctx context.Context) error
}

func New(follows service.FollowService, profiles service.ProfileService, notifications service.NotificationService, visibility *service.VisibilityResolver, ping func(ctx context.Context) error) *Handler {
	return &Handler{follows: follows, profiles: profiles, notifications: notifications, visibility: visibility, ping: ping}
}

// respondError 业务错误转 4xx，瞬时故障 503，其余 500
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrSelfFollowForbidden):
		response.Fail(c, http.StatusUnprocessableEntity, response.CodeSelfFollowForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadyFollowingOrPending):
		response.Conflict(c, response.CodeAlreadyFollowingOrPending, err.Error())
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, response.CodeRequestNotFound, err.Error())
	case errors.Is(err, service.ErrTargetNotFound):
		response.NotFound(c, response.CodeTargetNotFound, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, response.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrTransient):
		response.ServiceUnavailable(c, err)
	default:
		response.InternalError(c, err)
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func caller(c *gin.Context) string { return middleware.CallerID(c) }

type okResponse struct {
	OK bool `json:"ok"`
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, err)
			return
		}
	}
	response.Success(c, gin.H{"status": "ok"})
}
