package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/storage"
	"backend/internal/tenant"
	"backend/internal/tenantdb"
)

// Service 商品服务
type Service struct {
	common.BaseService
	db        *tenantdb.DB
	store     storage.Storage
	signedTTL time.Duration
}

// NewService 创建商品服务
func NewService(db *tenantdb.DB, store storage.Storage, signedTTL time.Duration) *Service {
	if signedTTL <= 0 {
		signedTTL = 15 * time.Minute
	}
	return &Service{
		BaseService: common.BaseService{DB: db.Gorm()},
		db:          db,
		store:       store,
		signedTTL:   signedTTL,
	}
}

// ============================================================================
// 分类
// ============================================================================

// CategoryRequest 分类创建/修改请求
type CategoryRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=50"`
	SortOrder int    `json:"sortOrder"`
}

// CreateCategory 创建分类
func (s *Service) CreateCategory(ctx context.Context, req *CategoryRequest) (*Category, error) {
	category := &Category{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		SortOrder: req.SortOrder,
	}
	if err := s.db.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories 查询当前公司全部分类
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := s.db.Scoped(ctx, &Category{}).
		Order("sort_order ASC, created_at ASC").Find(&categories).Error
	return categories, err
}

// UpdateCategory 修改分类
func (s *Service) UpdateCategory(ctx context.Context, categoryID string, req *CategoryRequest) (*Category, error) {
	result := s.db.Scoped(ctx, &Category{}).Where("id = ?", categoryID).
		Updates(map[string]interface{}{
			"name":       strings.TrimSpace(req.Name),
			"sort_order": req.SortOrder,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound("分类不存在")
	}
	var category Category
	if err := s.db.First(ctx, &category, "id = ?", categoryID); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory 删除分类，关联商品改为未分类
func (s *Service) DeleteCategory(ctx context.Context, categoryID string) error {
	return s.db.Transaction(ctx, func(tx *tenantdb.DB) error {
		if err := tx.Scoped(ctx, &Product{}).Where("category_id = ?", categoryID).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Scoped(ctx, &Category{}).Where("id = ?", categoryID).Delete(&Category{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound("分类不存在")
		}
		return nil
	})
}

// ============================================================================
// 商品
// ============================================================================

// CreateRequest 商品创建请求
type CreateRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description string  `json:"description" binding:"max=500"`
	Price       int64   `json:"price" binding:"min=0"`
	CategoryID  *string `json:"categoryId"`
}

// Create 创建商品
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Product, error) {
	if req.Price < 0 {
		return nil, common.ErrInvalidInput("价格不能为负数")
	}
	if req.CategoryID != nil {
		var count int64
		if err := s.db.Scoped(ctx, &Category{}).Where("id = ?", *req.CategoryID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, common.ErrNotFound("分类不存在")
		}
	}

	product := &Product{
		ID:          uuid.New().String(),
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		IsActive:    true,
	}
	if err := s.db.Create(ctx, product); err != nil {
		return nil, err
	}
	logger.Info("商品创建", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateRequest 商品修改请求，nil 字段不变更
type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Price       *int64  `json:"price" binding:"omitempty,min=0"`
	CategoryID  *string `json:"categoryId"`
	IsActive    *bool   `json:"isActive"`
}

// Update 修改商品
func (s *Service) Update(ctx context.Context, productID string, req *UpdateRequest) (*Product, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, common.ErrInvalidInput("价格不能为负数")
		}
		updates["price"] = *req.Price
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			updates["category_id"] = nil
		} else {
			var count int64
			if err := s.db.Scoped(ctx, &Category{}).Where("id = ?", *req.CategoryID).
				Count(&count).Error; err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, common.ErrNotFound("分类不存在")
			}
			updates["category_id"] = *req.CategoryID
		}
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.Get(ctx, productID)
	}

	result := s.db.Scoped(ctx, &Product{}).Where("id = ?", productID).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound("商品不存在")
	}
	return s.Get(ctx, productID)
}

// Deactivate 下架商品。只标记 is_active，历史采购记录保持可追溯。
func (s *Service) Deactivate(ctx context.Context, productID string) error {
	result := s.db.Scoped(ctx, &Product{}).Where("id = ?", productID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound("商品不存在")
	}
	return nil
}

// Get 查询单个商品
func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	var product Product
	err := s.db.Scoped(ctx, &Product{}).Preload("Category").
		Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("商品不存在")
	}
	if err != nil {
		return nil, err
	}
	s.fillImageURL(ctx, &product)
	return &product, nil
}

// ListRequest 商品列表请求
type ListRequest struct {
	common.PaginationRequest
	Keyword         string `form:"keyword"`
	CategoryID      string `form:"categoryId"`
	IncludeInactive bool   `form:"includeInactive"`
	SortBy          string `form:"sortBy"`
	SortOrder       string `form:"sortOrder"`
}

// List 分页查询商品。普通成员只看在售商品，管理员可带下架商品。
func (s *Service) List(ctx context.Context, req *ListRequest) ([]Product, *common.PaginationMeta, error) {
	query := s.db.Scoped(ctx, &Product{})
	if !req.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if req.CategoryID != "" {
		query = query.Where("category_id = ?", req.CategoryID)
	}
	if req.Keyword != "" {
		query = s.ApplyKeywordSearch(query, req.Keyword, []string{"name", "description"})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var products []Product
	query = s.ApplySorting(query, req.SortBy, req.SortOrder, []string{"name", "price", "created_at"})
	if err := s.ApplyPagination(query, req.PaginationRequest).
		Preload("Category").Find(&products).Error; err != nil {
		return nil, nil, err
	}
	for i := range products {
		s.fillImageURL(ctx, &products[i])
	}
	meta := common.NewPaginationMeta(req.GetPage(), req.GetLimit(), total)
	return products, &meta, nil
}

// ============================================================================
// 商品图片
// ============================================================================

// UploadImage 上传商品图片并绑定到商品
func (s *Service) UploadImage(ctx context.Context, productID, filename string, reader io.Reader, size int64, contentType string) (*Product, error) {
	if s.store == nil {
		return nil, common.ErrInvalidInput("未配置文件存储")
	}
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, common.ErrForbidden("缺少租户上下文")
	}
	product, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return nil, common.ErrInvalidInput("不支持的图片格式")
	}

	key := fmt.Sprintf("products/%s/%s%s", tc.CompanyID, uuid.New().String(), ext)
	if _, err := s.store.Put(ctx, key, reader, size, contentType); err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) {
			return nil, common.ErrInvalidInput("文件超出大小限制")
		}
		return nil, err
	}

	oldKey := product.ImageKey
	result := s.db.Scoped(ctx, &Product{}).Where("id = ?", productID).
		Update("image_key", key)
	if result.Error != nil {
		return nil, result.Error
	}
	if oldKey != "" {
		if err := s.store.Delete(ctx, oldKey); err != nil {
			logger.Warn("旧图片删除失败", zap.Error(err), zap.String("key", oldKey))
		}
	}
	return s.Get(ctx, productID)
}

func (s *Service) fillImageURL(ctx context.Context, p *Product) {
	if p.ImageKey == "" || s.store == nil {
		return
	}
	url, err := s.store.SignedURL(ctx, p.ImageKey, s.signedTTL)
	if err != nil {
		logger.Warn("图片签名地址生成失败", zap.Error(err), zap.String("key", p.ImageKey))
		return
	}
	p.ImageURL = url
}
