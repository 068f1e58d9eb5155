package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/response"
)

// GetProfile 主页：资料、计数、与查看者的关系、可见性
// @Summary 用户主页
// @Tags 资料
// @Produce json
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=service.ProfileView}
// @Failure 404 {object} response.Response
// @Router /api/v1/profiles/{user_id} [get]
func (h *Handler) GetProfile(c *gin.Context) {
	view, err := h.profiles.GetProfile(c.Request.Context(), caller(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// UpsertProfile 创建或修改本人资料
// @Summary 编辑资料
// @Tags 资料
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileInput true "资料"
// @Success 200 {object} response.Response{data=model.Profile}
// @Failure 400 {object} response.Response
// @Router /api/v1/profile [put]
func (h *Handler) UpsertProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.profiles.UpsertOwnProfile(c.Request.Context(), caller(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, p)
}

// UpdateSettings 修改隐私开关，未传的字段保持不变
// @Summary 隐私设置
// @Tags 资料
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.PrivacySettings true "隐私开关"
// @Success 200 {object} response.Response{data=model.Profile}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/profile/settings [patch]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var in model.PrivacySettings
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.profiles.UpdateSettings(c.Request.Context(), caller(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, p)
}

// ReconcileCounts 用关注边重算本人的计数
// @Summary 校准计数
// @Tags 资料
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/profile/reconcile [post]
func (h *Handler) ReconcileCounts(c *gin.Context) {
	id := caller(c)
	if id == "" {
		respondError(c, service.ErrUnauthorized)
		return
	}
	counts, err := h.follows.ReconcileCounts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"followers_count": counts.Followers, "following_count": counts.Following})
}
