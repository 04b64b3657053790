package purchases

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backend/internal/common"
	purchaseSvc "backend/internal/purchase"
)

// Handler 采购申请处理器
type Handler struct {
	svc *purchaseSvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *purchaseSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Create 从购物车提交申请
// @Summary 从购物车提交采购申请
// @Tags Purchases
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body purchase.CreateRequest true "申请内容"
// @Success 201 {object} common.APIResponse
// @Router /api/purchases [post]
func (h *Handler) Create(c *gin.Context) {
	var req purchaseSvc.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	request, err := h.svc.CreateFromCart(c.Request.Context(), userID, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, request)
}

// CreateImmediate 即时采购
// @Summary 即时采购（创建即通过并扣减预算）
// @Tags Purchases
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body purchase.CreateRequest true "采购内容"
// @Success 201 {object} common.APIResponse
// @Router /api/purchases/immediate [post]
func (h *Handler) CreateImmediate(c *gin.Context) {
	var req purchaseSvc.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	request, err := h.svc.CreateImmediate(c.Request.Context(), userID, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, request)
}

// List 申请列表
// @Summary 分页查询采购申请
// @Tags Purchases
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param status query string false "状态过滤"
// @Param mine query bool false "只看本人申请"
// @Success 200 {object} common.PaginatedResponse
// @Router /api/purchases [get]
func (h *Handler) List(c *gin.Context) {
	var req purchaseSvc.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}
	if c.Query("mine") == "true" {
		req.RequesterID = c.GetString("user_id")
	}

	requests, meta, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseListMeta(c, requests, *meta)
}

// Get 申请详情
// @Summary 查询单个采购申请
// @Tags Purchases
// @Security BearerAuth
// @Param id path string true "申请ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/purchases/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	request, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, request)
}

// Approve 审批通过
// @Summary 审批通过采购申请
// @Tags Purchases
// @Security BearerAuth
// @Param id path string true "申请ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/purchases/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	approverID := c.GetString("user_id")
	request, err := h.svc.Approve(c.Request.Context(), approverID, c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "申请已通过", request)
}

type rejectDTO struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// Reject 驳回申请
// @Summary 驳回采购申请
// @Tags Purchases
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "申请ID"
// @Param body body rejectDTO true "驳回理由"
// @Success 200 {object} common.APIResponse
// @Router /api/purchases/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	var dto rejectDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "驳回理由不能为空")
		return
	}

	approverID := c.GetString("user_id")
	request, err := h.svc.Reject(c.Request.Context(), approverID, c.Param("id"), dto.Reason)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "申请已驳回", request)
}

// Cancel 撤回申请
// @Summary 撤回本人的采购申请
// @Tags Purchases
// @Security BearerAuth
// @Param id path string true "申请ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/purchases/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	requesterID := c.GetString("user_id")
	request, err := h.svc.Cancel(c.Request.Context(), requesterID, c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "申请已撤回", request)
}

// Dashboard 消费统计
// @Summary 公司消费统计仪表盘
// @Tags Purchases
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/purchases/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, stats)
}

// Export 导出月度采购明细
// @Summary 导出指定月份的采购明细 Excel
// @Tags Purchases
// @Security BearerAuth
// @Param year query int true "年份"
// @Param month query int true "月份"
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200
// @Router /api/purchases/export [get]
func (h *Handler) Export(c *gin.Context) {
	now := time.Now()
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "年份无效")
		return
	}
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil || month < 1 || month > 12 {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "月份无效")
		return
	}

	filename := purchaseSvc.ExportFilename(year, month)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := h.svc.ExportMonthly(c.Request.Context(), year, month, c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}
