package budget

import (
	"github.com/gin-gonic/gin"

	budgetSvc "backend/internal/budget"
	"backend/internal/common"
)

// Handler 预算管理处理器
type Handler struct {
	svc *budgetSvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *budgetSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Current 本月预算
// @Summary 查询本月预算概况
// @Tags Budget
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/budget/current [get]
func (h *Handler) Current(c *gin.Context) {
	companyID := c.GetString("company_id")
	budget, err := h.svc.Current(c.Request.Context(), companyID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, budget)
}

// UpsertMonth 设置月度预算
// @Summary 设置某月预算额度
// @Tags Budget
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body budget.UpsertMonthRequest true "预算设置"
// @Success 200 {object} common.APIResponse
// @Router /api/budget [put]
func (h *Handler) UpsertMonth(c *gin.Context) {
	var req budgetSvc.UpsertMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	companyID := c.GetString("company_id")
	budget, err := h.svc.UpsertMonth(c.Request.Context(), companyID, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "预算已设置", budget)
}

// GetCriteria 查询预算基准
// @Summary 查询预算基准
// @Tags Budget
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/budget/criteria [get]
func (h *Handler) GetCriteria(c *gin.Context) {
	criteria, err := h.svc.GetCriteria(c.Request.Context())
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, criteria)
}

type upsertCriteriaDTO struct {
	Amount int64 `json:"amount" binding:"min=0"`
}

// UpsertCriteria 设置预算基准
// @Summary 设置预算基准（月度播种金额）
// @Tags Budget
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body upsertCriteriaDTO true "基准金额"
// @Success 200 {object} common.APIResponse
// @Router /api/budget/criteria [put]
func (h *Handler) UpsertCriteria(c *gin.Context) {
	var dto upsertCriteriaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	companyID := c.GetString("company_id")
	criteria, err := h.svc.UpsertCriteria(c.Request.Context(), companyID, dto.Amount)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "预算基准已设置", criteria)
}
