package products

import (
	"github.com/gin-gonic/gin"

	"backend/internal/common"
	productSvc "backend/internal/product"
)

// Handler 商品管理处理器
type Handler struct {
	svc *productSvc.Service
}

// NewHandler 创建处理器
func NewHandler(svc *productSvc.Service) *Handler {
	return &Handler{svc: svc}
}

// List 商品列表
// @Summary 分页查询商品
// @Tags Products
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param keyword query string false "名称/描述关键词"
// @Param categoryId query string false "分类过滤"
// @Success 200 {object} common.PaginatedResponse
// @Router /api/products [get]
func (h *Handler) List(c *gin.Context) {
	var req productSvc.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	products, meta, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseListMeta(c, products, *meta)
}

// Get 商品详情
// @Summary 查询单个商品
// @Tags Products
// @Security BearerAuth
// @Param id path string true "商品ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/products/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	product, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, product)
}

// Create 创建商品
// @Summary 创建商品
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body product.CreateRequest true "商品信息"
// @Success 201 {object} common.APIResponse
// @Router /api/products [post]
func (h *Handler) Create(c *gin.Context) {
	var req productSvc.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, product)
}

// Update 修改商品
// @Summary 修改商品
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "商品ID"
// @Param body body product.UpdateRequest true "修改内容"
// @Success 200 {object} common.APIResponse
// @Router /api/products/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req productSvc.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "商品已更新", product)
}

// Deactivate 下架商品
// @Summary 下架商品
// @Tags Products
// @Security BearerAuth
// @Param id path string true "商品ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/products/{id} [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "商品已下架", nil)
}

// UploadImage 上传商品图片
// @Summary 上传商品图片
// @Tags Products
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "商品ID"
// @Param file formData file true "图片文件"
// @Success 200 {object} common.APIResponse
// @Router /api/products/{id}/image [post]
func (h *Handler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "缺少图片文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	defer file.Close()

	product, err := h.svc.UploadImage(c.Request.Context(), c.Param("id"),
		fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "图片已上传", product)
}

// ============================================================================
// 分类
// ============================================================================

// ListCategories 分类列表
// @Summary 查询商品分类
// @Tags Products
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/products/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, categories)
}

// CreateCategory 创建分类
// @Summary 创建商品分类
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body product.CategoryRequest true "分类信息"
// @Success 201 {object} common.APIResponse
// @Router /api/products/categories [post]
func (h *Handler) CreateCategory(c *gin.Context) {
	var req productSvc.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	category, err := h.svc.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, category)
}

// UpdateCategory 修改分类
// @Summary 修改商品分类
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "分类ID"
// @Param body body product.CategoryRequest true "分类信息"
// @Success 200 {object} common.APIResponse
// @Router /api/products/categories/{id} [put]
func (h *Handler) UpdateCategory(c *gin.Context) {
	var req productSvc.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	category, err := h.svc.UpdateCategory(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "分类已更新", category)
}

// DeleteCategory 删除分类
// @Summary 删除商品分类
// @Tags Products
// @Security BearerAuth
// @Param id path string true "分类ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/products/categories/{id} [delete]
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.svc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "分类已删除", nil)
}
