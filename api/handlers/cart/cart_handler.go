package cart

import (
	"github.com/gin-gonic/gin"

	cartSvc "backend/internal/cart"
	"backend/internal/common"
)

// Handler 购物车处理器
type Handler struct {
	svc *cartSvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *cartSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// List 查询本人购物车
// @Summary 查询本人购物车
// @Tags Cart
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/cart [get]
func (h *Handler) List(c *gin.Context) {
	userID := c.GetString("user_id")
	items, total, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": items, "total": total})
}

// Add 加入购物车
// @Summary 加入购物车
// @Tags Cart
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body cart.AddRequest true "加购请求"
// @Success 200 {object} common.APIResponse
// @Router /api/cart/items [post]
func (h *Handler) Add(c *gin.Context) {
	var req cartSvc.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	item, err := h.svc.Add(c.Request.Context(), userID, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "已加入购物车", item)
}

type updateQuantityDTO struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// UpdateQuantity 修改数量
// @Summary 修改购物车条目数量
// @Tags Cart
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "条目ID"
// @Param body body updateQuantityDTO true "数量"
// @Success 200 {object} common.APIResponse
// @Router /api/cart/items/{id} [put]
func (h *Handler) UpdateQuantity(c *gin.Context) {
	var dto updateQuantityDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	item, err := h.svc.UpdateQuantity(c.Request.Context(), userID, c.Param("id"), dto.Quantity)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, item)
}

// Remove 移除条目
// @Summary 移除购物车条目
// @Tags Cart
// @Security BearerAuth
// @Param id path string true "条目ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/cart/items/{id} [delete]
func (h *Handler) Remove(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.svc.Remove(c.Request.Context(), userID, c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "已移除", nil)
}

// Clear 清空购物车
// @Summary 清空本人购物车
// @Tags Cart
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/cart [delete]
func (h *Handler) Clear(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.svc.Clear(c.Request.Context(), userID); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "购物车已清空", nil)
}
