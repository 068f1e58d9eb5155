package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/response"
)

type followRequest struct {
	TargetUserID string `json:"target_user_id" binding:"required,max=64"`
}

type followResponse struct {
	Status model.FollowStatus `json:"status"`
}

type respondRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// Follow 关注用户；对方私密时生成待处理请求
// @Summary 关注用户
// @Tags 关注
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body followRequest true "被关注者"
// @Success 200 {object} response.Response{data=followResponse}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/follows [post]
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	status, err := h.follows.Follow(c.Request.Context(), caller(c), req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, followResponse{Status: status})
}

// Unfollow 取消关注或撤回请求
// @Summary 取消关注
// @Tags 关注
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "被关注者ID"
// @Success 200 {object} response.Response{data=okResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/follows/{user_id} [delete]
func (h *Handler) Unfollow(c *gin.Context) {
	if err := h.follows.Unfollow(c.Request.Context(), caller(c), c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, okResponse{OK: true})
}

// RemoveFollower 移除粉丝
// @Summary 移除粉丝或撤销其请求
// @Tags 关注
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "粉丝ID"
// @Success 200 {object} response.Response{data=okResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/followers/{user_id} [delete]
func (h *Handler) RemoveFollower(c *gin.Context) {
	if err := h.follows.RemoveFollower(c.Request.Context(), caller(c), c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, okResponse{OK: true})
}

// RespondToRequest 接受或拒绝关注请求
// @Summary 处理关注请求
// @Tags 关注
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request_id path string true "请求ID"
// @Param request body respondRequest true "是否接受"
// @Success 200 {object} response.Response{data=service.RespondResult}
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/follows/requests/{request_id}/respond [post]
func (h *Handler) RespondToRequest(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.follows.RespondToRequest(c.Request.Context(), caller(c), c.Param("request_id"), *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

// ListPendingRequests 待处理的关注请求
// @Summary 待处理关注请求
// @Tags 关注
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]service.PendingRequest}
// @Failure 401 {object} response.Response
// @Router /api/v1/follows/requests [get]
func (h *Handler) ListPendingRequests(c *gin.Context) {
	list, err := h.follows.ListPendingRequests(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// GetStatus 查看者与目标用户的关系
// @Summary 关注状态
// @Tags 关注
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=service.FollowStatusView}
// @Router /api/v1/follows/status/{user_id} [get]
func (h *Handler) GetStatus(c *gin.Context) {
	view, err := h.follows.GetStatus(c.Request.Context(), caller(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// ListFollowers 粉丝列表（仅 accepted）
// @Summary 粉丝列表
// @Tags 关注
// @Produce json
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/users/{user_id}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.follows.ListFollowers(c.Request.Context(), c.Param("user_id"), caller(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFollowing 关注列表（仅 accepted）
// @Summary 关注列表
// @Tags 关注
// @Produce json
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/users/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.follows.ListFollowing(c.Request.Context(), c.Param("user_id"), caller(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// SearchUsers 按用户名、全名、简介搜索用户；登录时排除自己并带上 viewer_status
// @Summary 搜索用户
// @Tags 用户
// @Produce json
// @Param search query string false "关键字"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Router /api/v1/users [get]
func (h *Handler) SearchUsers(c *gin.Context) {
	page, pageSize := pageParams(c)
	res, err := h.follows.SearchUsers(c.Request.Context(), caller(c), c.Query("search"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": res.Total, "list": res.List})
}

// ListMutual 互相关注
// @Summary 互关列表
// @Tags 关注
// @Produce json
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=[]service.ProfileSummary}
// @Router /api/v1/users/{user_id}/mutual [get]
func (h *Handler) ListMutual(c *gin.Context) {
	list, err := h.follows.ListMutual(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// GetVisibility 查看者对某用户各类内容的可见性；带 kind 时只判断该类型
// @Summary 内容可见性
// @Tags 关注
// @Produce json
// @Param user_id path string true "主页所有者ID"
// @Param kind query string false "profile_posts | saved_items"
// @Success 200 {object} response.Response{data=service.ProfileVisibility}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{user_id}/visibility [get]
func (h *Handler) GetVisibility(c *gin.Context) {
	ctx := c.Request.Context()
	if kind := c.Query("kind"); kind != "" {
		ok, err := h.visibility.CanView(ctx, caller(c), c.Param("user_id"), service.ContentKind(kind))
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, gin.H{"kind": kind, "can_view": ok})
		return
	}
	v, err := h.visibility.Resolve(ctx, caller(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, v)
}
