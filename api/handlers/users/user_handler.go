package users

import (
	"github.com/gin-gonic/gin"

	authSvc "backend/internal/auth"
	"backend/internal/common"
	userSvc "backend/internal/user"
)

// Handler 成员管理处理器
type Handler struct {
	svc *userSvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *userSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Me 查询本人信息
// @Summary 查询当前登录成员
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	principal, ok := authSvc.GetPrincipal(c)
	if !ok {
		common.ResponseErrorCode(c, common.CodeUnauthenticated, "未登录")
		return
	}
	u, err := h.svc.Get(c.Request.Context(), principal.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, u)
}

// List 成员列表
// @Summary 分页查询公司成员
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param keyword query string false "姓名/邮箱关键词"
// @Param role query string false "角色过滤"
// @Success 200 {object} common.PaginatedResponse
// @Router /api/users [get]
func (h *Handler) List(c *gin.Context) {
	var req userSvc.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	users, meta, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseListMeta(c, users, *meta)
}

// Get 查询单个成员
// @Summary 查询单个公司成员
// @Tags Users
// @Security BearerAuth
// @Param id path string true "成员ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, u)
}

// Invite 邀请成员
// @Summary 邀请新成员加入公司
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body user.InviteRequest true "邀请请求"
// @Success 201 {object} common.APIResponse
// @Router /api/users/invite [post]
func (h *Handler) Invite(c *gin.Context) {
	var req userSvc.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Invite(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, result)
}

type updateRoleDTO struct {
	Role authSvc.Role `json:"role" binding:"required"`
}

// UpdateRole 修改成员角色
// @Summary 修改成员角色
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "成员ID"
// @Param body body updateRoleDTO true "角色"
// @Success 200 {object} common.APIResponse
// @Router /api/users/{id}/role [put]
func (h *Handler) UpdateRole(c *gin.Context) {
	var dto updateRoleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	principal, _ := authSvc.GetPrincipal(c)
	u, err := h.svc.UpdateRole(c.Request.Context(), principal.UserID, c.Param("id"), dto.Role)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "角色已更新", u)
}

// Deactivate 禁用成员
// @Summary 禁用成员账号
// @Tags Users
// @Security BearerAuth
// @Param id path string true "成员ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/users/{id} [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	principal, _ := authSvc.GetPrincipal(c)
	if err := h.svc.Deactivate(c.Request.Context(), principal.UserID, c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "账号已禁用", nil)
}

// Reactivate 恢复成员
// @Summary 恢复被禁用的成员账号
// @Tags Users
// @Security BearerAuth
// @Param id path string true "成员ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/users/{id}/reactivate [post]
func (h *Handler) Reactivate(c *gin.Context) {
	if err := h.svc.Reactivate(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "账号已恢复", nil)
}

type changePasswordDTO struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// ChangePassword 修改本人密码
// @Summary 修改本人密码
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body changePasswordDTO true "修改请求"
// @Success 200 {object} common.APIResponse
// @Router /api/users/me/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	var dto changePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	principal, _ := authSvc.GetPrincipal(c)
	if err := h.svc.ChangePassword(c.Request.Context(), principal.UserID, dto.CurrentPassword, dto.NewPassword); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "密码已修改", nil)
}
