package auth

import (
	"github.com/gin-gonic/gin"

	authSvc "backend/internal/auth"
	"backend/internal/common"
	companySvc "backend/internal/company"
	userSvc "backend/internal/user"
)

// Handler 认证处理器
type Handler struct {
	users     *userSvc.Service
	companies *companySvc.Service
}

// NewHandler 创建处理器
func NewHandler(users *userSvc.Service, companies *companySvc.Service) *Handler {
	return &Handler{users: users, companies: companies}
}

// Register 公司注册
// @Summary 注册公司与初始管理员
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body company.RegisterRequest true "注册请求"
// @Success 201 {object} common.APIResponse
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req companySvc.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	result, err := h.companies.Register(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, result)
}

// Login 登录
// @Summary 邮箱密码登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body user.LoginRequest true "登录请求"
// @Success 200 {object} common.APIResponse
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req userSvc.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	result, err := h.users.Authenticate(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

type refreshDTO struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh 刷新令牌
// @Summary 用刷新令牌换取新令牌对
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body refreshDTO true "刷新请求"
// @Success 200 {object} common.APIResponse
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var dto refreshDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	tokens, err := h.users.Refresh(c.Request.Context(), dto.RefreshToken)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, tokens)
}

// Logout 注销
// @Summary 注销当前登录
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	principal, ok := authSvc.GetPrincipal(c)
	if !ok {
		common.ResponseErrorCode(c, common.CodeUnauthenticated, "未登录")
		return
	}

	token, err := authSvc.ParseBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		common.ResponseErrorCode(c, common.CodeUnauthenticated, "认证信息无效")
		return
	}
	if err := h.users.Logout(c.Request.Context(), principal.UserID, token); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "已注销", nil)
}
