package company

import (
	"github.com/gin-gonic/gin"

	authSvc "backend/internal/auth"
	"backend/internal/common"
	companySvc "backend/internal/company"
)

// Handler 公司管理处理器
type Handler struct {
	svc *companySvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *companySvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Get 查询当前公司
// @Summary 查询当前公司信息
// @Tags Company
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/company [get]
func (h *Handler) Get(c *gin.Context) {
	companyID := c.GetString("company_id")
	company, err := h.svc.Get(c.Request.Context(), companyID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, company)
}

type renameDTO struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// Rename 修改公司名称
// @Summary 修改公司名称
// @Tags Company
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body renameDTO true "改名请求"
// @Success 200 {object} common.APIResponse
// @Router /api/company [put]
func (h *Handler) Rename(c *gin.Context) {
	var dto renameDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	companyID := c.GetString("company_id")
	company, err := h.svc.Rename(c.Request.Context(), companyID, dto.Name)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "公司名称已更新", company)
}

// UpdateProfile 组合修改公司名称与管理员密码
// @Summary 同时修改公司名称和管理员密码
// @Tags Company
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body company.UpdateProfileRequest true "修改请求"
// @Success 200 {object} common.APIResponse
// @Router /api/company/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req companySvc.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	principal, ok := authSvc.GetPrincipal(c)
	if !ok {
		common.ResponseErrorCode(c, common.CodeUnauthenticated, "未登录")
		return
	}
	companyID := c.GetString("company_id")
	if err := h.svc.UpdateProfile(c.Request.Context(), companyID, principal.UserID, &req); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "公司信息已更新", nil)
}
